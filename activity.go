package accounts

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess     ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure     ActivityEventType = "auth.login.failure"
	ActivityEventAccountCreated   ActivityEventType = "account.created"
	ActivityEventAccountActivated ActivityEventType = "account.activated"
	ActivityEventAccountRemoved   ActivityEventType = "account.removed"
	ActivityEventAccountBlocked   ActivityEventType = "account.blocked"
	ActivityEventAccountUnblocked ActivityEventType = "account.unblocked"
	ActivityEventPasswordReset    ActivityEventType = "account.password.reset"
	ActivityEventEmailChanged     ActivityEventType = "account.email.changed"
	ActivityEventRoleAdded        ActivityEventType = "account.role.added"
	ActivityEventRoleRemoved      ActivityEventType = "account.role.removed"
)

// ActorRef identifies who/what triggered an operation. The authenticated
// identity is always passed in explicitly, never read from ambient state.
type ActorRef struct {
	ID   string
	Type string
}

// SystemActor marks operations triggered by the reconciliation scheduler.
var SystemActor = ActorRef{Type: "system"}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	AccountID  string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

func emitActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	sink = normalizeActivitySink(sink)

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil && logger != nil {
		logger.Warn("activity sink record error: %v", err)
	}
}
