package worker

import (
	"context"
	"log/slog"

	audit "attest/pkg/platform/audit"
)

// Sink receives drained events.
type Sink interface {
	Handle(ctx context.Context, event audit.Event) error
}

// Worker consumes audit events from a channel and forwards them to a sink.
// It keeps background streaming testable without wiring broker clients.
type Worker struct {
	sink   Sink
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func New(sink Sink, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run drains the inbox until the context is cancelled. Sink failures are
// logged and skipped; the durable record already lives in the audit store.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Handle(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit sink failed",
					"action", event.Action,
					"subject", event.Subject,
					"error", err,
				)
			}
		}
	}
}
