// Package store provides issuer persistence. Implementations keep issuers
// in registration order for pagination and maintain the registry counters
// incrementally so Stats never requires a full scan.
package store

import (
	"context"

	"attest/internal/issuer/models"
	"attest/pkg/domain"
)

// Store is interface-driven to keep the registry logic testable and to
// allow swapping in-memory and PostgreSQL persistence without rewiring
// business code.
//
// Sentinel contract:
//   - Create returns sentinel.ErrAlreadyUsed when the address was ever
//     registered, active or not
//   - FindByAddress and Execute return sentinel.ErrNotFound for unknown
//     addresses
//   - ListAll and ListActive return sentinel.ErrOutOfRange when start is
//     past the end of a non-empty (filtered) sequence
type Store interface {
	Create(ctx context.Context, issuer *models.Issuer) error
	FindByAddress(ctx context.Context, addr domain.Address) (*models.Issuer, error)

	// Execute runs an atomic validate-then-mutate against one issuer.
	// The implementation holds its lock (mutex or FOR UPDATE) for the
	// duration of both callbacks so no other mutation can interleave.
	Execute(ctx context.Context, addr domain.Address, validate func(*models.Issuer) error, mutate func(*models.Issuer)) (*models.Issuer, error)

	// ListAll returns up to limit addresses starting at the 0-based
	// start index in registration order, plus whether more remain.
	ListAll(ctx context.Context, start, limit int) ([]domain.Address, bool, error)

	// ListActive is ListAll filtered to active issuers; start and limit
	// apply to the filtered sequence. Names are returned alongside the
	// addresses.
	ListActive(ctx context.Context, start, limit int) ([]domain.Address, []string, bool, error)

	Stats(ctx context.Context) (models.RegistryStats, error)
}
