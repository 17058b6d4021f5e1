package service

import (
	"context"
	"log/slog"

	"attest/internal/certificate/models"
	dErrors "attest/pkg/domain-errors"
	audit "attest/pkg/platform/audit"
)

// auditEmitter translates certificate domain events into audit events.
// A nil publisher disables auditing (unit tests, tooling).
type auditEmitter struct {
	logger    *slog.Logger
	publisher *audit.Publisher
}

func newAuditEmitter(logger *slog.Logger, publisher *audit.Publisher) *auditEmitter {
	return &auditEmitter{logger: logger, publisher: publisher}
}

func (e *auditEmitter) emit(ctx context.Context, event audit.Event) error {
	if e.publisher == nil {
		return nil
	}
	if err := e.publisher.Emit(ctx, event); err != nil {
		if e.logger != nil {
			e.logger.ErrorContext(ctx, "audit emit failed", "action", event.Action, "error", err)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (e *auditEmitter) emitIssued(ctx context.Context, ev models.CertificateIssued) error {
	return e.emit(ctx, audit.Event{
		Action:    audit.ActionCertificateIssued,
		Subject:   ev.Fingerprint.String(),
		Actor:     ev.Issuer.Hex(),
		Timestamp: ev.At,
		Detail:    map[string]string{"recipient": ev.Recipient.Hex()},
	})
}

func (e *auditEmitter) emitRevoked(ctx context.Context, actor string, ev models.CertificateRevoked) error {
	return e.emit(ctx, audit.Event{
		Action:    audit.ActionCertificateRevoked,
		Subject:   ev.Fingerprint.String(),
		Actor:     actor,
		Timestamp: ev.At,
	})
}
