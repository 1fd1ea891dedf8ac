package events

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"phonelease/pkg/requestcontext"
)

// Sink receives published events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher stamps events and fans them out to sinks. Sink failures are
// logged and returned joined; callers treat events as observability and do
// not fail their operation on a publish error.
type Publisher struct {
	sinks  []Sink
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for sink failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher over the given sinks.
func NewPublisher(sinks []Sink, opts ...Option) *Publisher {
	p := &Publisher{sinks: sinks, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish assigns ID, timestamp and request ID when missing, then appends
// the event to every sink.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	var errs []error
	for _, sink := range p.sinks {
		if err := sink.Append(ctx, event); err != nil {
			p.logger.ErrorContext(ctx, "event sink append failed",
				"event_type", event.Type,
				"event_id", event.ID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
