package store

import (
	"context"
	"sync"

	"attest/internal/certificate/models"
	"attest/internal/fingerprint"
	"attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

// InMemory keeps certificates in a map keyed by fingerprint plus a
// per-recipient issuance-order index. A single RWMutex held for the whole
// of each mutating call gives mutations indivisible-step semantics.
type InMemory struct {
	mu            sync.RWMutex
	byFingerprint map[fingerprint.Digest]*models.Certificate
	byRecipient   map[domain.Address][]fingerprint.Digest

	total   uint64
	revoked uint64
}

func NewInMemory() *InMemory {
	return &InMemory{
		byFingerprint: make(map[fingerprint.Digest]*models.Certificate),
		byRecipient:   make(map[domain.Address][]fingerprint.Digest),
	}
}

func (s *InMemory) Create(_ context.Context, cert *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byFingerprint[cert.Fingerprint]; exists {
		return sentinel.ErrAlreadyUsed
	}
	stored := *cert
	s.byFingerprint[cert.Fingerprint] = &stored
	s.byRecipient[cert.Recipient] = append(s.byRecipient[cert.Recipient], cert.Fingerprint)
	s.total++
	if stored.Revoked {
		s.revoked++
	}
	return nil
}

func (s *InMemory) FindByFingerprint(_ context.Context, fp fingerprint.Digest) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cert, ok := s.byFingerprint[fp]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *cert
	return &found, nil
}

func (s *InMemory) Execute(_ context.Context, fp fingerprint.Digest, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cert, ok := s.byFingerprint[fp]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if validate != nil {
		if err := validate(cert); err != nil {
			return nil, err
		}
	}

	wasRevoked := cert.Revoked
	mutate(cert)
	if !wasRevoked && cert.Revoked {
		s.revoked++
	} else if wasRevoked && !cert.Revoked {
		s.revoked--
	}

	updated := *cert
	return &updated, nil
}

func (s *InMemory) ListByRecipient(_ context.Context, recipient domain.Address, start, limit int) ([]fingerprint.Digest, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	held := s.byRecipient[recipient]
	window, hasMore, err := paginate(len(held), start, limit)
	if err != nil {
		return nil, false, err
	}
	fps := append([]fingerprint.Digest{}, held[window.start:window.end]...)
	return fps, hasMore, nil
}

func (s *InMemory) Stats(_ context.Context) (models.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.StoreStats{
		TotalCertificates: s.total,
		TotalRevoked:      s.revoked,
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
