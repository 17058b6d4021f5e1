package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"attest/internal/certificate/models"
	"attest/internal/certificate/store"
	"attest/internal/fingerprint"
	issuerservice "attest/internal/issuer/service"
	issuerstore "attest/internal/issuer/store"
	"attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
)

type CertServiceSuite struct {
	suite.Suite
	certs    *Service
	registry *issuerservice.Registry
	ctx      context.Context

	owner  domain.Address
	issuer domain.Address
}

func (s *CertServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.owner = testAddr(0xAA)
	s.issuer = testAddr(0x01)

	registry, err := issuerservice.New(s.owner, issuerstore.NewInMemory())
	s.Require().NoError(err)
	s.registry = registry
	_, err = registry.Register(s.ctx, s.owner, s.issuer, "Test University", "Testville")
	s.Require().NoError(err)

	certs, err := New(store.NewInMemory(), registry, registry.CertificateCounter())
	s.Require().NoError(err)
	s.certs = certs
}

func TestCertServiceSuite(t *testing.T) {
	suite.Run(t, new(CertServiceSuite))
}

func testAddr(n byte) domain.Address {
	var a domain.Address
	a[0] = n
	a[19] = 0x01
	return a
}

func testFP(n int) fingerprint.Digest {
	return fingerprint.New(fmt.Appendf(nil, "diploma-%d", n))
}

func (s *CertServiceSuite) issuerCount() uint64 {
	info, err := s.registry.Info(s.ctx, s.issuer)
	s.Require().NoError(err)
	return info.CertificateCount
}

func (s *CertServiceSuite) issue(n int) fingerprint.Digest {
	fp := testFP(n)
	_, err := s.certs.Issue(s.ctx, s.issuer, fp, testAddr(0x99))
	s.Require().NoError(err)
	return fp
}

func (s *CertServiceSuite) TestIssue() {
	s.Run("issues and bumps the issuer count atomically", func() {
		cert, err := s.certs.Issue(s.ctx, s.issuer, testFP(1), testAddr(0x99))
		s.Require().NoError(err)
		s.False(cert.Revoked)
		s.Equal(s.issuer, cert.Issuer)

		info, err := s.registry.Info(s.ctx, s.issuer)
		s.Require().NoError(err)
		s.Equal(uint64(1), info.CertificateCount)
	})

	s.Run("rejects unregistered issuers as unknown", func() {
		_, err := s.certs.Issue(s.ctx, testAddr(0x44), testFP(2), testAddr(0x99))
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects deactivated issuers and leaves the count alone", func() {
		before := s.issuerCount()
		_, err := s.registry.Deactivate(s.ctx, s.owner, s.issuer)
		s.Require().NoError(err)

		_, err = s.certs.Issue(s.ctx, s.issuer, testFP(3), testAddr(0x99))
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal(before, s.issuerCount())

		// Reactivation restores issuance authority.
		_, err = s.registry.Reactivate(s.ctx, s.owner, s.issuer)
		s.Require().NoError(err)
		_, err = s.certs.Issue(s.ctx, s.issuer, testFP(3), testAddr(0x99))
		s.Require().NoError(err)
	})

	s.Run("duplicate fingerprint conflicts and does not bump the count", func() {
		fp := s.issue(4)
		before := s.issuerCount()

		_, err := s.certs.Issue(s.ctx, s.issuer, fp, testAddr(0x88))
		s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(before, s.issuerCount())
	})

	s.Run("rejects a zero recipient", func() {
		_, err := s.certs.Issue(s.ctx, s.issuer, testFP(5), domain.ZeroAddress)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *CertServiceSuite) TestRevoke() {
	s.Run("only the issuing institution may revoke", func() {
		fp := s.issue(1)

		other := testAddr(0x02)
		_, err := s.registry.Register(s.ctx, s.owner, other, "Other U", "Elsewhere")
		s.Require().NoError(err)

		_, err = s.certs.Revoke(s.ctx, other, fp)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		cert, err := s.certs.Revoke(s.ctx, s.issuer, fp)
		s.Require().NoError(err)
		s.True(cert.Revoked)
	})

	s.Run("revocation is one-way", func() {
		fp := s.issue(2)
		_, err := s.certs.Revoke(s.ctx, s.issuer, fp)
		s.Require().NoError(err)

		_, err = s.certs.Revoke(s.ctx, s.issuer, fp)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown fingerprint is not found", func() {
		_, err := s.certs.Revoke(s.ctx, s.issuer, testFP(777))
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("issuer deactivation does not block revocation", func() {
		fp := s.issue(3)
		_, err := s.registry.Deactivate(s.ctx, s.owner, s.issuer)
		s.Require().NoError(err)
		defer func() {
			_, err := s.registry.Reactivate(s.ctx, s.owner, s.issuer)
			s.Require().NoError(err)
		}()

		cert, err := s.certs.Revoke(s.ctx, s.issuer, fp)
		s.Require().NoError(err)
		s.True(cert.Revoked)
	})
}

func (s *CertServiceSuite) TestVerify() {
	s.Run("active certificate verifies with issuer name", func() {
		fp := s.issue(1)

		result, err := s.certs.Verify(s.ctx, fp)
		s.Require().NoError(err)
		s.True(result.Valid)
		s.False(result.Revoked)
		s.Equal(models.StatusActive, result.Status)
		s.Equal("Test University", result.IssuerName)
		s.Equal(s.issuer, result.Issuer)
	})

	s.Run("revoked certificate stays valid with REVOKED status", func() {
		fp := s.issue(2)
		_, err := s.certs.Revoke(s.ctx, s.issuer, fp)
		s.Require().NoError(err)

		result, err := s.certs.Verify(s.ctx, fp)
		s.Require().NoError(err)
		s.True(result.Valid)
		s.True(result.Revoked)
		s.Equal(models.StatusRevoked, result.Status)
	})

	s.Run("unknown fingerprint is a NOT_FOUND result, not an error", func() {
		result, err := s.certs.Verify(s.ctx, testFP(888))
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(models.StatusNotFound, result.Status)
		s.Empty(result.IssuerName)
	})

	s.Run("all-zero fingerprint on an empty store is NOT_FOUND", func() {
		var zero fingerprint.Digest
		result, err := s.certs.Verify(s.ctx, zero)
		s.Require().NoError(err)
		s.Equal(models.StatusNotFound, result.Status)
	})

	s.Run("deactivating the issuer does not invalidate existing certificates", func() {
		fp := s.issue(3)
		_, err := s.registry.Deactivate(s.ctx, s.owner, s.issuer)
		s.Require().NoError(err)
		defer func() {
			_, err := s.registry.Reactivate(s.ctx, s.owner, s.issuer)
			s.Require().NoError(err)
		}()

		result, err := s.certs.Verify(s.ctx, fp)
		s.Require().NoError(err)
		s.True(result.Valid)
		s.Equal(models.StatusActive, result.Status)
	})
}

func (s *CertServiceSuite) TestVerifyCache() {
	s.Run("caches found results and overwrites the entry on revoke", func() {
		cache := newFakeCache()
		certs, err := New(store.NewInMemory(), s.registry, s.registry.CertificateCounter(),
			WithCache(cache),
		)
		s.Require().NoError(err)

		fp := testFP(50)
		_, err = certs.Issue(s.ctx, s.issuer, fp, testAddr(0x99))
		s.Require().NoError(err)

		result, err := certs.Verify(s.ctx, fp)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, result.Status)
		s.Contains(cache.entries, fp)

		_, err = certs.Revoke(s.ctx, s.issuer, fp)
		s.Require().NoError(err)
		s.Require().Contains(cache.entries, fp)
		s.Equal(models.StatusRevoked, cache.entries[fp].Status)

		result, err = certs.Verify(s.ctx, fp)
		s.Require().NoError(err)
		s.Equal(models.StatusRevoked, result.Status)
	})

	s.Run("a lookup racing a revocation cannot reinstate the active result", func() {
		cache := newFakeCache()
		certs, err := New(store.NewInMemory(), s.registry, s.registry.CertificateCounter(),
			WithCache(cache),
		)
		s.Require().NoError(err)

		fp := testFP(52)
		_, err = certs.Issue(s.ctx, s.issuer, fp, testAddr(0x99))
		s.Require().NoError(err)

		// The stale lookup loads the record before the revocation lands.
		stale, err := certs.Verify(s.ctx, fp)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, stale.Status)

		_, err = certs.Revoke(s.ctx, s.issuer, fp)
		s.Require().NoError(err)

		// Its deferred cache population runs after the revocation's write
		// and must not replace the revoked entry.
		s.Require().NoError(cache.Add(s.ctx, fp, stale))
		s.Equal(models.StatusRevoked, cache.entries[fp].Status)

		result, err := certs.Verify(s.ctx, fp)
		s.Require().NoError(err)
		s.True(result.Revoked)
		s.Equal(models.StatusRevoked, result.Status)
	})

	s.Run("NOT_FOUND results are never cached", func() {
		cache := newFakeCache()
		certs, err := New(store.NewInMemory(), s.registry, s.registry.CertificateCounter(),
			WithCache(cache),
		)
		s.Require().NoError(err)

		fp := testFP(51)
		result, err := certs.Verify(s.ctx, fp)
		s.Require().NoError(err)
		s.Equal(models.StatusNotFound, result.Status)
		s.NotContains(cache.entries, fp)

		// A later issuance is visible immediately.
		_, err = certs.Issue(s.ctx, s.issuer, fp, testAddr(0x99))
		s.Require().NoError(err)
		result, err = certs.Verify(s.ctx, fp)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, result.Status)
	})
}

func (s *CertServiceSuite) TestQueries() {
	s.Run("pages fingerprints per recipient", func() {
		recipient := testAddr(0x77)
		for i := 60; i < 63; i++ {
			_, err := s.certs.Issue(s.ctx, s.issuer, testFP(i), recipient)
			s.Require().NoError(err)
		}

		fps, hasMore, err := s.certs.CertificatesFor(s.ctx, recipient, 0, 2)
		s.Require().NoError(err)
		s.True(hasMore)
		s.Len(fps, 2)

		_, _, err = s.certs.CertificatesFor(s.ctx, recipient, 5, 2)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeOutOfRange))

		_, _, err = s.certs.CertificatesFor(s.ctx, recipient, 0, 0)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("stats count issued and revoked", func() {
		certs, err := New(store.NewInMemory(), s.registry, s.registry.CertificateCounter())
		s.Require().NoError(err)

		fp := testFP(70)
		_, err = certs.Issue(s.ctx, s.issuer, fp, testAddr(0x99))
		s.Require().NoError(err)
		_, err = certs.Issue(s.ctx, s.issuer, testFP(71), testAddr(0x99))
		s.Require().NoError(err)
		_, err = certs.Revoke(s.ctx, s.issuer, fp)
		s.Require().NoError(err)

		stats, err := certs.Stats(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(2), stats.TotalCertificates)
		s.Equal(uint64(1), stats.TotalRevoked)
	})
}

type fakeCache struct {
	entries map[fingerprint.Digest]*models.VerificationResult
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[fingerprint.Digest]*models.VerificationResult)}
}

func (c *fakeCache) Get(_ context.Context, fp fingerprint.Digest) (*models.VerificationResult, bool, error) {
	result, ok := c.entries[fp]
	return result, ok, nil
}

func (c *fakeCache) Add(_ context.Context, fp fingerprint.Digest, result *models.VerificationResult) error {
	if _, ok := c.entries[fp]; !ok {
		c.entries[fp] = result
	}
	return nil
}

func (c *fakeCache) Set(_ context.Context, fp fingerprint.Digest, result *models.VerificationResult) error {
	c.entries[fp] = result
	return nil
}
