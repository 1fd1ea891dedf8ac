package events

import (
	"context"
	"log/slog"
)

// LogSink writes one structured log line per event.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Append(ctx context.Context, event Event) error {
	env := toEnvelope(event)
	s.logger.InfoContext(ctx, "event",
		"event_type", env.Type,
		"event_id", env.ID,
		"request_id", env.RequestID,
		"key", event.Key(),
		"amount", env.Amount,
		"owner", env.Owner,
		"expiry", env.Expiry,
	)
	return nil
}
