package accounts

import (
	"context"
	"time"
)

// ReconcilerIntervals configures how often each sweep fires.
type ReconcilerIntervals struct {
	Expiry   time.Duration
	Reminder time.Duration
	Unblock  time.Duration
}

const defaultReconcilerInterval = time.Hour

func (i ReconcilerIntervals) withDefaults() ReconcilerIntervals {
	if i.Expiry <= 0 {
		i.Expiry = defaultReconcilerInterval
	}
	if i.Reminder <= 0 {
		i.Reminder = defaultReconcilerInterval
	}
	if i.Unblock <= 0 {
		i.Unblock = defaultReconcilerInterval
	}
	return i
}

// Reconciler periodically sweeps stale account state: registrations that
// never completed, activation reminders due at the halfway mark, and
// lockouts whose window has elapsed. Every job is idempotent; re-running
// against already-reconciled state is a no-op.
type Reconciler struct {
	store     CredentialStore
	tokens    TokenStore
	lifecycle *LifecycleManager
	notifier  Notifier
	config    Config
	logger    Logger
	intervals ReconcilerIntervals
	now       func() time.Time
}

// NewReconciler returns a new Reconciler built on the lifecycle manager's
// unblock and delete primitives.
func NewReconciler(store CredentialStore, tokens TokenStore, lifecycle *LifecycleManager, notifier Notifier, cfg Config) *Reconciler {
	return &Reconciler{
		store:     store,
		tokens:    tokens,
		lifecycle: lifecycle,
		notifier:  normalizeNotifier(notifier),
		config:    cfg,
		logger:    defLogger{},
		intervals: ReconcilerIntervals{}.withDefaults(),
		now:       time.Now,
	}
}

func (r *Reconciler) WithLogger(logger Logger) *Reconciler {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithIntervals overrides the per-job firing intervals.
func (r *Reconciler) WithIntervals(intervals ReconcilerIntervals) *Reconciler {
	r.intervals = intervals.withDefaults()
	return r
}

// WithClock injects a custom clock (useful for tests).
func (r *Reconciler) WithClock(clock func() time.Time) *Reconciler {
	if clock != nil {
		r.now = clock
	}
	return r
}

// Start runs the three sweeps on independent tickers until ctx is cancelled.
// Each job runs inline in its own loop, so a job never overlaps with itself;
// it does run concurrently with request-driven operations on the same
// storage.
func (r *Reconciler) Start(ctx context.Context) {
	go r.loop(ctx, r.intervals.Expiry, "expire-unverified", r.ExpireUnverifiedRegistrations)
	go r.loop(ctx, r.intervals.Reminder, "activation-reminders", r.ResendActivationReminders)
	go r.loop(ctx, r.intervals.Unblock, "auto-unblock", r.AutoUnblockExpiredLockouts)
}

func (r *Reconciler) loop(ctx context.Context, interval time.Duration, name string, job func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := job(ctx); err != nil {
				r.logger.Error("reconciler job %s failed: %v", name, err)
			}
		}
	}
}

// ExpireUnverifiedRegistrations deletes accounts that never activated within
// the grace period, tokens first. An unparseable grace period aborts the run
// instead of silently falling back to a default.
func (r *Reconciler) ExpireUnverifiedRegistrations(ctx context.Context) error {
	grace, err := ParseThresholdPattern(r.config.GetRegistrationGracePeriod())
	if err != nil {
		return err
	}

	cutoff := r.now().Add(-grace)
	stale, err := r.store.FindUnverifiedCreatedBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	removed := 0
	for _, account := range stale {
		if err := r.lifecycle.RemoveAccount(ctx, SystemActor, account.ID); err != nil {
			r.logger.Error("failed to expire unverified account %s: %v", account.ID.String(), err)
			continue
		}
		removed++
	}

	if removed > 0 {
		r.logger.Info("expired %d unverified registrations", removed)
	}
	return nil
}

// ResendActivationReminders sends a fresh activation email for REGISTER
// tokens whose account is older than half the grace period, reusing the
// existing token value, then deletes the token. The reminder is one-shot:
// after it fires, the only remaining path to activation is the original
// link, until the expiry sweep removes the account.
func (r *Reconciler) ResendActivationReminders(ctx context.Context) error {
	grace, err := ParseThresholdPattern(r.config.GetRegistrationGracePeriod())
	if err != nil {
		return err
	}

	now := r.now()
	cutoff := now.Add(-grace / 2)

	tokens, err := r.tokens.FindByKind(ctx, TokenRegister)
	if err != nil {
		return err
	}

	sent := 0
	for _, token := range tokens {
		account, err := r.store.FindByID(ctx, token.AccountID)
		if err != nil {
			if IsNotFound(err) {
				// Orphaned token; the owning account is already gone.
				if err := r.tokens.Remove(ctx, token.ID); err != nil && !IsNotFound(err) {
					r.logger.Warn("failed to drop orphaned token %s: %v", token.ID.String(), err)
				}
				continue
			}
			r.logger.Error("failed to resolve account for reminder token %s: %v", token.ID.String(), err)
			continue
		}

		if account.Active || account.CreatedAt == nil || account.CreatedAt.After(cutoff) {
			continue
		}

		locale := account.Language
		if locale == "" {
			locale = r.config.GetDefaultLanguage()
		}
		url := reminderURL(r.config.GetActivationURL(), token.Value)
		if err := r.notifier.Send(ctx, TemplateActivationReminder, account.FirstName, account.Email, url, locale); err != nil {
			r.logger.Warn("activation reminder send failed for account %s: %v", account.ID.String(), err)
		}

		if err := r.tokens.Remove(ctx, token.ID); err != nil && !IsNotFound(err) {
			r.logger.Warn("failed to consume reminder token %s: %v", token.ID.String(), err)
			continue
		}
		sent++
	}

	if sent > 0 {
		r.logger.Info("sent %d activation reminders", sent)
	}
	return nil
}

// AutoUnblockExpiredLockouts lifts blocks that were triggered by failed
// logins once the configured unblock window has elapsed. Administrative
// blocks (no BlockedTime) are never touched.
func (r *Reconciler) AutoUnblockExpiredLockouts(ctx context.Context) error {
	window, err := ParseThresholdPattern(r.config.GetAutoUnblockWindow())
	if err != nil {
		return err
	}

	cutoff := r.now().Add(-window)
	blocked, err := r.store.FindAutoBlockedBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	unblocked := 0
	for _, account := range blocked {
		if err := r.lifecycle.UnblockAccount(ctx, SystemActor, account.ID); err != nil {
			if IsConflict(err) {
				// Someone unblocked it between the query and the write.
				continue
			}
			r.logger.Error("failed to auto-unblock account %s: %v", account.ID.String(), err)
			continue
		}
		unblocked++
	}

	if unblocked > 0 {
		r.logger.Info("auto-unblocked %d accounts", unblocked)
	}
	return nil
}

func reminderURL(base, value string) string {
	if base == "" {
		return EncodeTransport(value)
	}
	if base[len(base)-1] == '/' {
		return base + EncodeTransport(value)
	}
	return base + "/" + EncodeTransport(value)
}
