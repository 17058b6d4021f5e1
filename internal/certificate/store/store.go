// Package store persists issued certificates keyed by document fingerprint.
package store

import (
	"context"

	"attest/internal/certificate/models"
	"attest/internal/fingerprint"
	"attest/pkg/domain"
)

// Store is the persistence contract for certificates. Implementations
// signal storage facts with sentinel errors; the service layer translates
// them into caller-facing domain errors:
//
//   - Create returns sentinel.ErrAlreadyUsed when a certificate already
//     exists for the fingerprint, revoked or not.
//   - FindByFingerprint and Execute return sentinel.ErrNotFound for an
//     unknown fingerprint.
//   - ListByRecipient returns sentinel.ErrOutOfRange for a start index past
//     the end of a non-empty sequence, or a non-positive limit.
//
// Execute runs validate then mutate against the live record as one
// indivisible step and returns the post-mutation snapshot. A validate error
// aborts with no state change.
type Store interface {
	Create(ctx context.Context, cert *models.Certificate) error
	FindByFingerprint(ctx context.Context, fp fingerprint.Digest) (*models.Certificate, error)
	Execute(ctx context.Context, fp fingerprint.Digest, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error)
	ListByRecipient(ctx context.Context, recipient domain.Address, start, limit int) ([]fingerprint.Digest, bool, error)
	Stats(ctx context.Context) (models.StoreStats, error)
}
