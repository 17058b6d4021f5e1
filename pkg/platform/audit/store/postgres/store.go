package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	audit "attest/pkg/platform/audit"
	txcontext "attest/pkg/platform/tx"

	"github.com/google/uuid"
)

// Store persists audit events in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE audit_events (
//	    id         UUID PRIMARY KEY,
//	    occurred_at TIMESTAMPTZ NOT NULL,
//	    action     TEXT NOT NULL,
//	    subject    TEXT NOT NULL,
//	    actor      TEXT NOT NULL DEFAULT '',
//	    detail     JSONB NOT NULL DEFAULT '{}'
//	);
//	CREATE INDEX audit_events_subject_idx ON audit_events (subject, occurred_at);
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("marshal audit detail: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO audit_events (id, occurred_at, action, subject, actor, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, event.Timestamp, event.Action, event.Subject, event.Actor, detail)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, occurred_at, action, subject, actor, detail
		FROM audit_events
		WHERE subject = $1
		ORDER BY occurred_at
	`, subject)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event  audit.Event
			id     uuid.UUID
			detail []byte
		)
		if err := rows.Scan(&id, &event.Timestamp, &event.Action, &event.Subject, &event.Actor, &detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.ID = id
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &event.Detail); err != nil {
				return nil, fmt.Errorf("unmarshal audit detail: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
