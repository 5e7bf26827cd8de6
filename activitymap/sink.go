package activitymap

import (
	"context"

	auth "github.com/folio-cms/go-admin-auth"
)

// ForwardFunc receives normalized activity records
type ForwardFunc func(ctx context.Context, record Record) error

// Sink normalizes auth events and forwards them downstream
type Sink struct {
	forward ForwardFunc
	opts    []Option
}

var _ auth.ActivitySink = (*Sink)(nil)

// NewSink returns a sink calling forward for every event
func NewSink(forward ForwardFunc, opts ...Option) *Sink {
	return &Sink{forward: forward, opts: opts}
}

// Record implements auth.ActivitySink
func (s *Sink) Record(ctx context.Context, event auth.ActivityEvent) error {
	if s == nil || s.forward == nil {
		return nil
	}
	return s.forward(ctx, Normalize(event, s.opts...))
}

// LogForwarder writes each record to logger at info level
func LogForwarder(logger auth.Logger) ForwardFunc {
	return func(_ context.Context, record Record) error {
		logger.Info("activity",
			"verb", record.Verb,
			"actor_id", record.ActorID,
			"object", record.ObjectType+":"+record.ObjectID,
			"outcome", record.Outcome,
			"channel", record.Channel,
			"metadata", record.Metadata,
		)
		return nil
	}
}
