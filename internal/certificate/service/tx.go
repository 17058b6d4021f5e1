package service

import (
	"context"
	"sync"

	dErrors "attest/pkg/domain-errors"
)

// StoreTx brackets a multi-store mutation so its writes commit or abort
// together. Issuance uses it to bind the certificate insert to the
// issuer's count increment.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// inMemoryStoreTx serializes mutations with a single mutex. With in-memory
// stores there is nothing to roll back, so mutual exclusion alone gives the
// commit-together guarantee: the only write that can fail inside the
// bracket is the duplicate-fingerprint insert, which fails before any other
// state is touched.
type inMemoryStoreTx struct {
	mu sync.Mutex
}

func newInMemoryStoreTx() *inMemoryStoreTx {
	return &inMemoryStoreTx{}
}

func (t *inMemoryStoreTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}
