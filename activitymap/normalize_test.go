package activitymap_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	authmanager "github.com/goliatone/go-authmanager"
	"github.com/goliatone/go-authmanager/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := authmanager.ActivityEvent{
		EventType:  authmanager.ActivityEventUserStatusChanged,
		Actor:      authmanager.ActorRef{ID: "admin-42", Type: "user"},
		UserID:     "user-100",
		FromState:  authmanager.UserStateActive,
		ToState:    authmanager.UserStateInactive,
		Metadata:   map[string]any{"reason": "policy"},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "admin-42", out.ActorID)
	assert.Equal(t, string(authmanager.ActivityEventUserStatusChanged), out.Verb)
	assert.Equal(t, "user", out.ObjectType)
	assert.Equal(t, "user-100", out.ObjectID)
	assert.Equal(t, "authmanager", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))

	assert.Equal(t, "policy", out.Metadata["reason"])
	assert.Equal(t, "user", out.Metadata[activitymap.MetadataKeyActorType])
	assert.Equal(t, "active", out.Metadata[activitymap.MetadataKeyFromState])
	assert.Equal(t, "inactive", out.Metadata[activitymap.MetadataKeyToState])

	assert.Len(t, event.Metadata, 1, "source metadata is left untouched")
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	event := authmanager.ActivityEvent{
		EventType: authmanager.ActivityEventAPIKeyRevoked,
		Actor:     authmanager.ActorRef{Type: "user"},
		UserID:    "user-200",
		Metadata: map[string]any{
			"api_key_id":                     "key-1",
			activitymap.MetadataKeyActorType: "existing",
		},
	}

	out := activitymap.Normalize(event,
		activitymap.WithChannel("security"),
		activitymap.WithObjectType("api_key"),
		activitymap.WithClock(func() time.Time { return fixed }),
		activitymap.WithObjectIDResolver(func(e authmanager.ActivityEvent) string {
			id, _ := e.Metadata["api_key_id"].(string)
			return id
		}),
	)

	assert.Equal(t, "security", out.Channel)
	assert.Equal(t, "api_key", out.ObjectType)
	assert.Equal(t, "key-1", out.ObjectID)
	assert.Equal(t, "existing", out.Metadata[activitymap.MetadataKeyActorType])
	assert.Equal(t, fixed, out.OccurredAt)
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  authmanager.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses actor id when present",
			event:  authmanager.ActivityEvent{Actor: authmanager.ActorRef{ID: "actor-1"}, UserID: "user-1"},
			expect: "actor-1",
		},
		{
			name:   "falls back to user id",
			event:  authmanager.ActivityEvent{UserID: "user-1"},
			expect: "user-1",
		},
		{
			name:   "falls back to system",
			event:  authmanager.ActivityEvent{},
			expect: "system",
		},
		{
			name:   "custom fallback",
			event:  authmanager.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("cli")},
			expect: "cli",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, activitymap.Normalize(tt.event, tt.opts...).ActorID)
		})
	}
}

func TestLogSinkRecordsManagerEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := activitymap.NewLogSink(zap.New(core))

	require.NoError(t, sink.Record(context.Background(), authmanager.ActivityEvent{
		EventType: authmanager.ActivityEventUserCreated,
		UserID:    "user-1",
		ToState:   authmanager.UserStateActive,
	}))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, string(authmanager.ActivityEventUserCreated), entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "user-1", fields["actor_id"])
	assert.Equal(t, "user-1", fields["object_id"])
	assert.Equal(t, "authmanager", fields["channel"])
}

var _ authmanager.ActivitySink = (*activitymap.LogSink)(nil)
