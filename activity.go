package auth

import (
	"context"
	"time"
)

// ActivityEventType names an authentication event
type ActivityEventType string

const (
	ActivityEventLoginSuccess ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure ActivityEventType = "auth.login.failure"
	ActivityEventLoginLocked  ActivityEventType = "auth.login.locked"
	ActivityEventLogout       ActivityEventType = "auth.logout"
	ActivityEventAdminCreated ActivityEventType = "auth.admin.created"
)

// IsLoginAttempt reports whether the event records the result of a login
func (t ActivityEventType) IsLoginAttempt() bool {
	switch t {
	case ActivityEventLoginSuccess, ActivityEventLoginFailure, ActivityEventLoginLocked:
		return true
	default:
		return false
	}
}

// ActorRef identifies who triggered an event. Type is "user", "system" or
// "unknown" for attempts against an email with no identity.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent is emitted by the Authenticator, the login controller and
// the provisioning command. Unlike AuditRecord it is not persisted here.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink receives activity events. Errors are logged by the emitter
// and never fail the operation that produced the event.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error { return nil }

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

func emitActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		logger.Warn("activity sink failed", "event", event.EventType, "user_id", event.UserID, "error", err)
	}
}
