// Package kafka streams audit events to the audit topic. Delivery here is
// best-effort: the store write has already succeeded, so a broker outage
// costs stream freshness, not the audit record.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"attest/internal/platform/kafka/producer"
	audit "attest/pkg/platform/audit"
)

type payload struct {
	ID        string            `json:"id"`
	Timestamp string            `json:"timestamp"`
	Action    string            `json:"action"`
	Subject   string            `json:"subject"`
	Actor     string            `json:"actor,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// Publisher forwards audit events to Kafka, keyed by subject so all events
// for one issuer or certificate land in one partition, in order.
type Publisher struct {
	producer *producer.Producer
	logger   *slog.Logger
}

func New(p *producer.Producer, logger *slog.Logger) *Publisher {
	return &Publisher{producer: p, logger: logger}
}

// Handle publishes one event. Marshal failures are programming errors and
// are logged, not retried.
func (p *Publisher) Handle(ctx context.Context, event audit.Event) error {
	body, err := json.Marshal(payload{
		ID:        event.ID.String(),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Action:    event.Action,
		Subject:   event.Subject,
		Actor:     event.Actor,
		Detail:    event.Detail,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal audit event", "error", err, "action", event.Action)
		return nil
	}
	return p.producer.Publish(ctx, event.Subject, body)
}
