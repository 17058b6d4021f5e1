package audit

import (
	"context"

	"github.com/google/uuid"

	"attest/pkg/requestcontext"
)

// Publisher captures structured audit events. Writes to the store are
// synchronous so a failed append fails the calling operation; the optional
// inbox feeds the streaming worker without blocking the caller.
type Publisher struct {
	store Store
	inbox chan<- Event
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithInbox streams a copy of every event to the given channel. Sends are
// non-blocking; a full channel drops the streamed copy, never the stored one.
func WithInbox(inbox chan<- Event) Option {
	return func(p *Publisher) {
		p.inbox = inbox
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit persists the event, assigning ID and timestamp when unset.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	if p.inbox != nil {
		select {
		case p.inbox <- event:
		default:
		}
	}
	return nil
}

// List returns the stored trail for one subject.
func (p *Publisher) List(ctx context.Context, subject string) ([]Event, error) {
	return p.store.ListBySubject(ctx, subject)
}
