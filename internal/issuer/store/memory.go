package store

import (
	"context"
	"sync"

	"attest/internal/issuer/models"
	"attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

// InMemory keeps issuers in a map plus an insertion-order slice. A single
// RWMutex held for the whole of each mutating call gives every mutation the
// indivisible-step semantics the registry requires.
type InMemory struct {
	mu        sync.RWMutex
	byAddress map[domain.Address]*models.Issuer
	order     []domain.Address

	activeCount uint64
	certsIssued uint64
}

func NewInMemory() *InMemory {
	return &InMemory{byAddress: make(map[domain.Address]*models.Issuer)}
}

func (s *InMemory) Create(_ context.Context, issuer *models.Issuer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byAddress[issuer.Address]; exists {
		return sentinel.ErrAlreadyUsed
	}
	stored := *issuer
	s.byAddress[issuer.Address] = &stored
	s.order = append(s.order, issuer.Address)
	if stored.Active {
		s.activeCount++
	}
	return nil
}

func (s *InMemory) FindByAddress(_ context.Context, addr domain.Address) (*models.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issuer, ok := s.byAddress[addr]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *issuer
	return &found, nil
}

func (s *InMemory) Execute(_ context.Context, addr domain.Address, validate func(*models.Issuer) error, mutate func(*models.Issuer)) (*models.Issuer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issuer, ok := s.byAddress[addr]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if validate != nil {
		if err := validate(issuer); err != nil {
			return nil, err
		}
	}

	wasActive := issuer.Active
	prevCount := issuer.CertificateCount
	mutate(issuer)

	// Keep the incremental counters in lockstep with the mutation.
	if wasActive && !issuer.Active {
		s.activeCount--
	} else if !wasActive && issuer.Active {
		s.activeCount++
	}
	s.certsIssued += issuer.CertificateCount - prevCount

	updated := *issuer
	return &updated, nil
}

func (s *InMemory) ListAll(_ context.Context, start, limit int) ([]domain.Address, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	window, hasMore, err := paginate(len(s.order), start, limit)
	if err != nil {
		return nil, false, err
	}
	addrs := append([]domain.Address{}, s.order[window.start:window.end]...)
	return addrs, hasMore, nil
}

func (s *InMemory) ListActive(_ context.Context, start, limit int) ([]domain.Address, []string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		active []domain.Address
		names  []string
	)
	for _, addr := range s.order {
		if issuer := s.byAddress[addr]; issuer.Active {
			active = append(active, addr)
			names = append(names, issuer.Name)
		}
	}

	window, hasMore, err := paginate(len(active), start, limit)
	if err != nil {
		return nil, nil, false, err
	}
	return active[window.start:window.end], names[window.start:window.end], hasMore, nil
}

func (s *InMemory) Stats(_ context.Context) (models.RegistryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.RegistryStats{
		TotalIssuers:       uint64(len(s.order)),
		ActiveIssuers:      s.activeCount,
		CertificatesIssued: s.certsIssued,
	}, nil
}

type window struct {
	start, end int
}

// paginate applies the shared pagination contract: a start index past the
// end of a non-empty sequence is out of range; an empty sequence yields an
// empty page for any start.
func paginate(total, start, limit int) (window, bool, error) {
	if start < 0 || limit <= 0 {
		return window{}, false, sentinel.ErrOutOfRange
	}
	if total == 0 {
		return window{}, false, nil
	}
	if start >= total {
		return window{}, false, sentinel.ErrOutOfRange
	}
	end := start + limit
	if end > total {
		end = total
	}
	return window{start: start, end: end}, end < total, nil
}
