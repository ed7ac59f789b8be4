package accounts

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ParseThresholdPattern parses a configured duration pattern ("48h", "30m").
// An unparseable pattern is a configuration error, not something to paper
// over with a default.
func ParseThresholdPattern(pattern string) (time.Duration, error) {
	duration, err := time.ParseDuration(pattern)
	if err != nil {
		return 0, goerrors.Wrap(err, ErrConfiguration.Category, ErrConfiguration.Message).
			WithTextCode(ErrConfiguration.TextCode).
			WithMetadata(map[string]any{"pattern": pattern})
	}
	return duration, nil
}

// IsWithinThresholdPeriod checks if the given time is within the threshold
// counted back from now.
func IsWithinThresholdPeriod(now, t time.Time, pattern string) (bool, error) {
	duration, err := ParseThresholdPattern(pattern)
	if err != nil {
		return false, err
	}

	threshold := now.Add(-duration)
	if t.After(threshold) {
		return true, nil
	}

	return false, nil
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod
func IsOutsideThresholdPeriod(now, t time.Time, pattern string) (bool, error) {
	valid, err := IsWithinThresholdPeriod(now, t, pattern)
	if err != nil {
		return false, err
	}

	return !valid, nil
}
