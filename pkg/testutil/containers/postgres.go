//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// Schema mirrors the table definitions documented on the postgres stores.
const schema = `
CREATE TABLE IF NOT EXISTS issuers (
    seq               BIGSERIAL,
    address           TEXT PRIMARY KEY,
    name              TEXT NOT NULL,
    location          TEXT NOT NULL,
    registered_at     TIMESTAMPTZ NOT NULL,
    active            BOOLEAN NOT NULL,
    certificate_count BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS issuers_seq_idx ON issuers (seq);

CREATE TABLE IF NOT EXISTS certificates (
    seq         BIGSERIAL,
    fingerprint TEXT PRIMARY KEY,
    issuer      TEXT NOT NULL,
    recipient   TEXT NOT NULL,
    issued_at   TIMESTAMPTZ NOT NULL,
    revoked     BOOLEAN NOT NULL DEFAULT FALSE,
    revoked_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS certificates_recipient_idx ON certificates (recipient, seq);

CREATE TABLE IF NOT EXISTS audit_events (
    id          UUID PRIMARY KEY,
    occurred_at TIMESTAMPTZ NOT NULL,
    action      TEXT NOT NULL,
    subject     TEXT NOT NULL,
    actor       TEXT NOT NULL DEFAULT '',
    detail      JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS audit_events_subject_idx ON audit_events (subject, occurred_at);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// project schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a PostgreSQL container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("attest"),
		tcpostgres.WithUsername("attest"),
		tcpostgres.WithPassword("attest"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	pc := &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(context.Background())
	})
	return pc
}

// TruncateTables removes all rows from the given tables.
// Use between tests to ensure isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s CASCADE", strings.Join(tables, ", ")))
	return err
}
