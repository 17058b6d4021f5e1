package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "attest/pkg/domain-errors"
	txcontext "attest/pkg/platform/tx"
)

const defaultStoreTxTimeout = 5 * time.Second

// postgresStoreTx brackets issuance in one database transaction. The
// *sql.Tx travels down through the context, so the certificate insert and
// the issuer count update run against the same transaction and commit or
// roll back together.
type postgresStoreTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newPostgresStoreTx(db *sql.DB) *postgresStoreTx {
	return &postgresStoreTx{db: db}
}

func (t *postgresStoreTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultStoreTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}
