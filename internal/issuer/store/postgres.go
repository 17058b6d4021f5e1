package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"attest/internal/issuer/models"
	"attest/pkg/domain"
	"attest/pkg/platform/sentinel"
	txcontext "attest/pkg/platform/tx"
)

// Postgres persists issuers in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE issuers (
//	    seq               BIGSERIAL,
//	    address           TEXT PRIMARY KEY,
//	    name              TEXT NOT NULL,
//	    location          TEXT NOT NULL,
//	    registered_at     TIMESTAMPTZ NOT NULL,
//	    active            BOOLEAN NOT NULL,
//	    certificate_count BIGINT NOT NULL DEFAULT 0
//	);
//	CREATE INDEX issuers_seq_idx ON issuers (seq);
//
// seq preserves registration order for pagination. Rows are never deleted.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (p *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return p.db
}

func (p *Postgres) Create(ctx context.Context, issuer *models.Issuer) error {
	result, err := p.execer(ctx).ExecContext(ctx, `
		INSERT INTO issuers (address, name, location, registered_at, active, certificate_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (address) DO NOTHING
	`, issuer.Address.Hex(), issuer.Name, issuer.Location, issuer.RegisteredAt, issuer.Active, issuer.CertificateCount)
	if err != nil {
		return fmt.Errorf("insert issuer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert issuer: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (p *Postgres) FindByAddress(ctx context.Context, addr domain.Address) (*models.Issuer, error) {
	return scanIssuer(p.execer(ctx).QueryRowContext(ctx, `
		SELECT address, name, location, registered_at, active, certificate_count
		FROM issuers
		WHERE address = $1
	`, addr.Hex()))
}

func (p *Postgres) Execute(ctx context.Context, addr domain.Address, validate func(*models.Issuer) error, mutate func(*models.Issuer)) (*models.Issuer, error) {
	if tx, ok := txcontext.From(ctx); ok {
		// Caller owns the transactional boundary; the row lock is
		// released at its commit.
		return p.executeIn(ctx, tx, addr, validate, mutate)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin issuer mutation: %w", err)
	}
	issuer, err := p.executeIn(ctx, tx, addr, validate, mutate)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit issuer mutation: %w", err)
	}
	return issuer, nil
}

func (p *Postgres) executeIn(ctx context.Context, tx *sql.Tx, addr domain.Address, validate func(*models.Issuer) error, mutate func(*models.Issuer)) (*models.Issuer, error) {
	issuer, err := scanIssuer(tx.QueryRowContext(ctx, `
		SELECT address, name, location, registered_at, active, certificate_count
		FROM issuers
		WHERE address = $1
		FOR UPDATE
	`, addr.Hex()))
	if err != nil {
		return nil, err
	}
	if validate != nil {
		if err := validate(issuer); err != nil {
			return nil, err
		}
	}
	mutate(issuer)

	_, err = tx.ExecContext(ctx, `
		UPDATE issuers
		SET name = $2, location = $3, active = $4, certificate_count = $5
		WHERE address = $1
	`, issuer.Address.Hex(), issuer.Name, issuer.Location, issuer.Active, issuer.CertificateCount)
	if err != nil {
		return nil, fmt.Errorf("update issuer: %w", err)
	}
	return issuer, nil
}

func (p *Postgres) ListAll(ctx context.Context, start, limit int) ([]domain.Address, bool, error) {
	if start < 0 || limit <= 0 {
		return nil, false, sentinel.ErrOutOfRange
	}

	var total int
	if err := p.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM issuers`).Scan(&total); err != nil {
		return nil, false, fmt.Errorf("count issuers: %w", err)
	}
	if total == 0 {
		return nil, false, nil
	}
	if start >= total {
		return nil, false, sentinel.ErrOutOfRange
	}

	rows, err := p.execer(ctx).QueryContext(ctx, `
		SELECT address FROM issuers ORDER BY seq OFFSET $1 LIMIT $2
	`, start, limit)
	if err != nil {
		return nil, false, fmt.Errorf("list issuers: %w", err)
	}
	defer rows.Close()

	var addrs []domain.Address
	for rows.Next() {
		var hex string
		if err := rows.Scan(&hex); err != nil {
			return nil, false, fmt.Errorf("scan issuer address: %w", err)
		}
		addr, err := domain.ParseAddress(hex)
		if err != nil {
			return nil, false, fmt.Errorf("decode stored address %q: %w", hex, err)
		}
		addrs = append(addrs, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return addrs, start+len(addrs) < total, nil
}

func (p *Postgres) ListActive(ctx context.Context, start, limit int) ([]domain.Address, []string, bool, error) {
	if start < 0 || limit <= 0 {
		return nil, nil, false, sentinel.ErrOutOfRange
	}

	var total int
	if err := p.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM issuers WHERE active`).Scan(&total); err != nil {
		return nil, nil, false, fmt.Errorf("count active issuers: %w", err)
	}
	if total == 0 {
		return nil, nil, false, nil
	}
	if start >= total {
		return nil, nil, false, sentinel.ErrOutOfRange
	}

	rows, err := p.execer(ctx).QueryContext(ctx, `
		SELECT address, name FROM issuers WHERE active ORDER BY seq OFFSET $1 LIMIT $2
	`, start, limit)
	if err != nil {
		return nil, nil, false, fmt.Errorf("list active issuers: %w", err)
	}
	defer rows.Close()

	var (
		addrs []domain.Address
		names []string
	)
	for rows.Next() {
		var (
			hex  string
			name string
		)
		if err := rows.Scan(&hex, &name); err != nil {
			return nil, nil, false, fmt.Errorf("scan active issuer: %w", err)
		}
		addr, err := domain.ParseAddress(hex)
		if err != nil {
			return nil, nil, false, fmt.Errorf("decode stored address %q: %w", hex, err)
		}
		addrs = append(addrs, addr)
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, false, err
	}
	return addrs, names, start+len(addrs) < total, nil
}

func (p *Postgres) Stats(ctx context.Context) (models.RegistryStats, error) {
	var stats models.RegistryStats
	err := p.execer(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE active), COALESCE(SUM(certificate_count), 0)
		FROM issuers
	`).Scan(&stats.TotalIssuers, &stats.ActiveIssuers, &stats.CertificatesIssued)
	if err != nil {
		return models.RegistryStats{}, fmt.Errorf("issuer stats: %w", err)
	}
	return stats, nil
}

func scanIssuer(row *sql.Row) (*models.Issuer, error) {
	var (
		issuer models.Issuer
		hex    string
	)
	err := row.Scan(&hex, &issuer.Name, &issuer.Location, &issuer.RegisteredAt, &issuer.Active, &issuer.CertificateCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan issuer: %w", err)
	}
	addr, err := domain.ParseAddress(hex)
	if err != nil {
		return nil, fmt.Errorf("decode stored address %q: %w", hex, err)
	}
	issuer.Address = addr
	return &issuer, nil
}
