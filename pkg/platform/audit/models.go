// Package audit captures the append-only event trail for registry and
// certificate mutations. Events are persisted through a Store and optionally
// streamed to Kafka by the outbox worker.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action names for every mutation the core performs. These are the stable
// identifiers consumers key on; do not rename.
const (
	ActionIssuerRegistered   = "issuer_registered"
	ActionIssuerUpdated      = "issuer_updated"
	ActionIssuerDeactivated  = "issuer_deactivated"
	ActionIssuerReactivated  = "issuer_reactivated"
	ActionCertificateCount   = "certificate_count_updated"
	ActionCertificateIssued  = "certificate_issued"
	ActionCertificateRevoked = "certificate_revoked"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID
	Timestamp time.Time
	Action    string
	// Subject identifies the entity acted on: an issuer address or a
	// certificate fingerprint in hex form.
	Subject string
	// Actor identifies who performed the action, when known.
	Actor string
	// Detail carries action-specific fields (names, counts, recipients).
	Detail map[string]string
}

// Store persists events. It is append-only; events are never mutated or
// deleted.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}
