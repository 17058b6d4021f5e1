package service

import (
	"context"
	"log/slog"
	"strconv"

	"attest/internal/issuer/models"
	dErrors "attest/pkg/domain-errors"
	audit "attest/pkg/platform/audit"
)

// auditEmitter translates registry domain events into audit events.
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

func (e *auditEmitter) emitRegistered(ctx context.Context, actor string, ev models.IssuerRegistered) error {
	return e.emit(ctx, audit.Event{
		Action:    audit.ActionIssuerRegistered,
		Subject:   ev.Address.Hex(),
		Actor:     actor,
		Timestamp: ev.At,
		Detail:    map[string]string{"name": ev.Name, "location": ev.Location},
	})
}

func (e *auditEmitter) emitUpdated(ctx context.Context, actor string, ev models.IssuerUpdated) error {
	return e.emit(ctx, audit.Event{
		Action:  audit.ActionIssuerUpdated,
		Subject: ev.Address.Hex(),
		Actor:   actor,
		Detail:  map[string]string{"name": ev.Name, "location": ev.Location},
	})
}

func (e *auditEmitter) emitDeactivated(ctx context.Context, actor string, ev models.IssuerDeactivated) error {
	return e.emit(ctx, audit.Event{
		Action:    audit.ActionIssuerDeactivated,
		Subject:   ev.Address.Hex(),
		Actor:     actor,
		Timestamp: ev.At,
	})
}

func (e *auditEmitter) emitReactivated(ctx context.Context, actor string, ev models.IssuerReactivated) error {
	return e.emit(ctx, audit.Event{
		Action:    audit.ActionIssuerReactivated,
		Subject:   ev.Address.Hex(),
		Actor:     actor,
		Timestamp: ev.At,
	})
}

func (e *auditEmitter) emitCountUpdated(ctx context.Context, ev models.CertificateCountUpdated) error {
	return e.emit(ctx, audit.Event{
		Action:  audit.ActionCertificateCount,
		Subject: ev.Address.Hex(),
		Detail:  map[string]string{"new_count": strconv.FormatUint(ev.NewCount, 10)},
	})
}
