package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrBufferFull is returned by AsyncSink.Append when the event was dropped.
var ErrBufferFull = errors.New("event buffer full")

// DefaultDrainTimeout bounds how long a stopping Worker keeps delivering
// buffered events.
const DefaultDrainTimeout = 5 * time.Second

// AsyncSink buffers events on a channel so slow sinks (Kafka) stay off the
// request path. Pair it with a Worker that drains the channel. Append never
// blocks: when the buffer is full the event is dropped and counted.
type AsyncSink struct {
	inbox   chan Event
	dropped prometheus.Counter
}

// AsyncOption configures an AsyncSink.
type AsyncOption func(*AsyncSink)

// WithDropCounter counts events dropped on a full buffer.
func WithDropCounter(c prometheus.Counter) AsyncOption {
	return func(s *AsyncSink) {
		s.dropped = c
	}
}

// NewDropCounter registers the dropped-events counter with reg.
func NewDropCounter(reg prometheus.Registerer) prometheus.Counter {
	return promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "phonelease_events_dropped_total",
		Help: "Events dropped because the async publish buffer was full",
	})
}

// NewAsyncSink creates a buffered sink with the given capacity.
func NewAsyncSink(capacity int, opts ...AsyncOption) *AsyncSink {
	s := &AsyncSink{inbox: make(chan Event, capacity)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append enqueues the event, or drops it and returns ErrBufferFull.
func (s *AsyncSink) Append(_ context.Context, event Event) error {
	select {
	case s.inbox <- event:
		return nil
	default:
		if s.dropped != nil {
			s.dropped.Inc()
		}
		return ErrBufferFull
	}
}

// Worker consumes buffered events and delivers them downstream. It keeps
// background processing testable without a live broker.
type Worker struct {
	downstream   Sink
	inbox        <-chan Event
	logger       *slog.Logger
	drainTimeout time.Duration
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithDrainTimeout overrides DefaultDrainTimeout.
func WithDrainTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.drainTimeout = d
	}
}

func NewWorker(source *AsyncSink, downstream Sink, logger *slog.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{downstream: downstream, inbox: source.inbox, logger: logger, drainTimeout: DefaultDrainTimeout}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run delivers events until ctx is cancelled, then delivers what is still
// buffered for up to the drain timeout. Delivery failures are logged and the
// event is dropped.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			w.drain(ctx)
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			w.drain(ctx)
			return ctx.Err()
		case event := <-w.inbox:
			w.deliver(ctx, event)
		}
	}
}

func (w *Worker) drain(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), w.drainTimeout)
	defer cancel()
	for {
		if ctx.Err() != nil {
			w.logger.WarnContext(ctx, "event drain timed out", "remaining", len(w.inbox))
			return
		}
		select {
		case event := <-w.inbox:
			w.deliver(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event Event) {
	if err := w.downstream.Append(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "event delivery failed",
			"event_type", event.Type,
			"event_id", event.ID,
			"error", err,
		)
	}
}
