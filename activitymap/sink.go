package activitymap

import (
	"context"

	"go.uber.org/zap"

	authmanager "github.com/goliatone/go-authmanager"
)

// LogSink writes every activity event as one structured log line.
type LogSink struct {
	logger *zap.Logger
	opts   []Option
}

// NewLogSink returns a sink that logs normalized events at info level.
func NewLogSink(logger *zap.Logger, opts ...Option) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger, opts: opts}
}

// Record implements authmanager.ActivitySink.
func (s *LogSink) Record(_ context.Context, event authmanager.ActivityEvent) error {
	r := Normalize(event, s.opts...)
	s.logger.Info(r.Verb,
		zap.String("actor_id", r.ActorID),
		zap.String("object_type", r.ObjectType),
		zap.String("object_id", r.ObjectID),
		zap.String("channel", r.Channel),
		zap.Any("metadata", r.Metadata),
		zap.Time("occurred_at", r.OccurredAt),
	)
	return nil
}
