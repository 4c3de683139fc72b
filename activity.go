package authmanager

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserCreated       ActivityEventType = "user.created"
	ActivityEventUserStatusChanged ActivityEventType = "user.status.changed"
	ActivityEventPasswordChanged   ActivityEventType = "user.password.changed"
	ActivityEventLoginSuccess      ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure      ActivityEventType = "auth.login.failure"
	ActivityEventAPIKeyIssued      ActivityEventType = "auth.apikey.issued"
	ActivityEventAPIKeyRevoked     ActivityEventType = "auth.apikey.revoked"
	ActivityEventRoleGranted       ActivityEventType = "group.role.granted"
	ActivityEventRoleRevoked       ActivityEventType = "group.role.revoked"
)

// ActorRef identifies who/what triggered an action.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	FromState  UserState
	ToState    UserState
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

func actorFromIdentity(identity Identity) ActorRef {
	switch {
	case identity == nil:
		return ActorRef{Type: "unknown"}
	case IsSystemIdentity(identity):
		return ActorRef{ID: identity.ID(), Type: "system"}
	default:
		return ActorRef{ID: identity.ID(), Type: "user"}
	}
}

// recorder emits events best-effort: sink errors are logged, never returned.
type recorder struct {
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

func (r recorder) record(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.now()
	}
	if err := normalizeActivitySink(r.sink).Record(ctx, event); err != nil {
		r.logger.Warn("activity sink error", "event", event.EventType, "error", err)
	}
}
