package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"attest/internal/certificate/models"
	"attest/internal/fingerprint"
	"attest/pkg/domain"
	"attest/pkg/platform/sentinel"
	txcontext "attest/pkg/platform/tx"
)

// Postgres persists certificates in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE certificates (
//	    seq         BIGSERIAL,
//	    fingerprint TEXT PRIMARY KEY,
//	    issuer      TEXT NOT NULL,
//	    recipient   TEXT NOT NULL,
//	    issued_at   TIMESTAMPTZ NOT NULL,
//	    revoked     BOOLEAN NOT NULL DEFAULT FALSE,
//	    revoked_at  TIMESTAMPTZ
//	);
//	CREATE INDEX certificates_recipient_idx ON certificates (recipient, seq);
//
// seq preserves issuance order for per-recipient pagination. Rows are never
// deleted; revocation only flips the flag.
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

func (p *Postgres) Create(ctx context.Context, cert *models.Certificate) error {
	result, err := p.execer(ctx).ExecContext(ctx, `
		INSERT INTO certificates (fingerprint, issuer, recipient, issued_at, revoked, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (fingerprint) DO NOTHING
	`, cert.Fingerprint.Hex(false), cert.Issuer.Hex(), cert.Recipient.Hex(), cert.IssuedAt, cert.Revoked, cert.RevokedAt)
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (p *Postgres) FindByFingerprint(ctx context.Context, fp fingerprint.Digest) (*models.Certificate, error) {
	return scanCertificate(p.execer(ctx).QueryRowContext(ctx, `
		SELECT fingerprint, issuer, recipient, issued_at, revoked, revoked_at
		FROM certificates
		WHERE fingerprint = $1
	`, fp.Hex(false)))
}

func (p *Postgres) Execute(ctx context.Context, fp fingerprint.Digest, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error) {
	if tx, ok := txcontext.From(ctx); ok {
		// Caller owns the transactional boundary; the row lock is
		// released at its commit.
		return p.executeIn(ctx, tx, fp, validate, mutate)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin certificate mutation: %w", err)
	}
	cert, err := p.executeIn(ctx, tx, fp, validate, mutate)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit certificate mutation: %w", err)
	}
	return cert, nil
}

func (p *Postgres) executeIn(ctx context.Context, tx *sql.Tx, fp fingerprint.Digest, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error) {
	cert, err := scanCertificate(tx.QueryRowContext(ctx, `
		SELECT fingerprint, issuer, recipient, issued_at, revoked, revoked_at
		FROM certificates
		WHERE fingerprint = $1
		FOR UPDATE
	`, fp.Hex(false)))
	if err != nil {
		return nil, err
	}
	if validate != nil {
		if err := validate(cert); err != nil {
			return nil, err
		}
	}
	mutate(cert)

	_, err = tx.ExecContext(ctx, `
		UPDATE certificates
		SET revoked = $2, revoked_at = $3
		WHERE fingerprint = $1
	`, cert.Fingerprint.Hex(false), cert.Revoked, cert.RevokedAt)
	if err != nil {
		return nil, fmt.Errorf("update certificate: %w", err)
	}
	return cert, nil
}

func (p *Postgres) ListByRecipient(ctx context.Context, recipient domain.Address, start, limit int) ([]fingerprint.Digest, bool, error) {
	if start < 0 || limit <= 0 {
		return nil, false, sentinel.ErrOutOfRange
	}

	var total int
	err := p.execer(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM certificates WHERE recipient = $1
	`, recipient.Hex()).Scan(&total)
	if err != nil {
		return nil, false, fmt.Errorf("count recipient certificates: %w", err)
	}
	if total == 0 {
		return nil, false, nil
	}
	if start >= total {
		return nil, false, sentinel.ErrOutOfRange
	}

	rows, err := p.execer(ctx).QueryContext(ctx, `
		SELECT fingerprint FROM certificates
		WHERE recipient = $1
		ORDER BY seq OFFSET $2 LIMIT $3
	`, recipient.Hex(), start, limit)
	if err != nil {
		return nil, false, fmt.Errorf("list recipient certificates: %w", err)
	}
	defer rows.Close()

	var fps []fingerprint.Digest
	for rows.Next() {
		var hex string
		if err := rows.Scan(&hex); err != nil {
			return nil, false, fmt.Errorf("scan fingerprint: %w", err)
		}
		fp, err := fingerprint.ParseHex(hex)
		if err != nil {
			return nil, false, fmt.Errorf("decode stored fingerprint %q: %w", hex, err)
		}
		fps = append(fps, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return fps, start+len(fps) < total, nil
}

func (p *Postgres) Stats(ctx context.Context) (models.StoreStats, error) {
	var stats models.StoreStats
	err := p.execer(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE revoked)
		FROM certificates
	`).Scan(&stats.TotalCertificates, &stats.TotalRevoked)
	if err != nil {
		return models.StoreStats{}, fmt.Errorf("certificate stats: %w", err)
	}
	return stats, nil
}

func scanCertificate(row *sql.Row) (*models.Certificate, error) {
	var (
		cert      models.Certificate
		fpHex     string
		issuer    string
		recipient string
		revokedAt sql.NullTime
	)
	err := row.Scan(&fpHex, &issuer, &recipient, &cert.IssuedAt, &cert.Revoked, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan certificate: %w", err)
	}

	fp, err := fingerprint.ParseHex(fpHex)
	if err != nil {
		return nil, fmt.Errorf("decode stored fingerprint %q: %w", fpHex, err)
	}
	cert.Fingerprint = fp
	if cert.Issuer, err = domain.ParseAddress(issuer); err != nil {
		return nil, fmt.Errorf("decode stored issuer %q: %w", issuer, err)
	}
	if cert.Recipient, err = domain.ParseAddress(recipient); err != nil {
		return nil, fmt.Errorf("decode stored recipient %q: %w", recipient, err)
	}
	if revokedAt.Valid {
		t := revokedAt.Time.UTC()
		cert.RevokedAt = &t
	}
	return &cert, nil
}
