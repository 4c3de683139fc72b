package activitymap

import (
	"strings"
	"time"

	authmanager "github.com/goliatone/go-authmanager"
)

const (
	// MetadataKeyActorType carries ActorRef.Type.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyFromState carries the source account state of a transition.
	MetadataKeyFromState = "from_state"
	// MetadataKeyToState carries the target account state of a transition.
	MetadataKeyToState = "to_state"
)

const (
	defaultChannel    = "authmanager"
	defaultObjectType = "user"
	defaultActorID    = "system"
)

// Record is the flat shape audit consumers receive.
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes Normalize.
type Option func(*options)

type options struct {
	channel       string
	objectType    string
	actorFallback string
	objectID      func(authmanager.ActivityEvent) string
	now           func() time.Time
}

// Normalize flattens event into a Record. The actor falls back to the
// affected user and then to the configured fallback. event is not modified.
func Normalize(event authmanager.ActivityEvent, opts ...Option) Record {
	o := options{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	objectID := event.UserID
	if o.objectID != nil {
		objectID = o.objectID(event)
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = o.now()
	}

	return Record{
		ActorID:    firstNonEmpty(event.Actor.ID, event.UserID, o.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: o.objectType,
		ObjectID:   strings.TrimSpace(objectID),
		Channel:    o.channel,
		Metadata:   metadataFor(event),
		OccurredAt: occurredAt.UTC(),
	}
}

// WithChannel sets the channel records are tagged with.
func WithChannel(channel string) Option {
	return func(o *options) {
		o.channel = strings.TrimSpace(channel)
	}
}

// WithObjectType sets the object type records are tagged with.
func WithObjectType(objectType string) Option {
	return func(o *options) {
		o.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides how the object id is read from an event.
func WithObjectIDResolver(resolver func(authmanager.ActivityEvent) string) Option {
	return func(o *options) {
		o.objectID = resolver
	}
}

// WithActorFallback sets the actor id used when neither actor nor user is known.
func WithActorFallback(actorID string) Option {
	return func(o *options) {
		o.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithClock sets the clock used for events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func metadataFor(event authmanager.ActivityEvent) map[string]any {
	out := make(map[string]any, len(event.Metadata)+3)
	for k, v := range event.Metadata {
		out[k] = v
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if _, ok := out[MetadataKeyActorType]; !ok {
			out[MetadataKeyActorType] = actorType
		}
	}
	if event.FromState != "" {
		out[MetadataKeyFromState] = string(event.FromState)
	}
	if event.ToState != "" {
		out[MetadataKeyToState] = string(event.ToState)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
