package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"attest/internal/certificate/models"
	"attest/internal/fingerprint"
	"attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

type CertStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *CertStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestCertStoreSuite(t *testing.T) {
	suite.Run(t, new(CertStoreSuite))
}

func addr(n byte) domain.Address {
	var a domain.Address
	a[0] = 0x22
	a[19] = n
	return a
}

func fp(n int) fingerprint.Digest {
	return fingerprint.New(fmt.Appendf(nil, "document-%d", n))
}

func (s *CertStoreSuite) newCert(n int, recipient domain.Address) *models.Certificate {
	cert, err := models.New(fp(n), addr(1), recipient, time.Now())
	s.Require().NoError(err)
	return cert
}

func (s *CertStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds certificate by fingerprint", func() {
		cert := s.newCert(1, addr(9))
		s.Require().NoError(s.store.Create(s.ctx, cert))

		found, err := s.store.FindByFingerprint(s.ctx, cert.Fingerprint)
		s.Require().NoError(err)
		s.Equal(cert.Issuer, found.Issuer)
		s.Equal(cert.Recipient, found.Recipient)
		s.False(found.Revoked)
	})

	s.Run("returns ErrNotFound for unknown fingerprint", func() {
		_, err := s.store.FindByFingerprint(s.ctx, fp(999))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate fingerprint", func() {
		cert := s.newCert(2, addr(9))
		s.Require().NoError(s.store.Create(s.ctx, cert))

		err := s.store.Create(s.ctx, s.newCert(2, addr(8)))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("duplicate rejection persists after revocation", func() {
		cert := s.newCert(3, addr(9))
		s.Require().NoError(s.store.Create(s.ctx, cert))
		_, err := s.store.Execute(s.ctx, cert.Fingerprint, nil, func(c *models.Certificate) {
			c.ApplyRevocation(time.Now())
		})
		s.Require().NoError(err)

		err = s.store.Create(s.ctx, s.newCert(3, addr(9)))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})
}

func (s *CertStoreSuite) TestExecute() {
	s.Run("tracks the revoked counter", func() {
		cert := s.newCert(1, addr(9))
		s.Require().NoError(s.store.Create(s.ctx, cert))

		updated, err := s.store.Execute(s.ctx, cert.Fingerprint, nil, func(c *models.Certificate) {
			c.ApplyRevocation(time.Now())
		})
		s.Require().NoError(err)
		s.True(updated.Revoked)
		s.NotNil(updated.RevokedAt)

		stats, err := s.store.Stats(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(1), stats.TotalCertificates)
		s.Equal(uint64(1), stats.TotalRevoked)
	})

	s.Run("validate failure leaves state untouched", func() {
		cert := s.newCert(2, addr(9))
		s.Require().NoError(s.store.Create(s.ctx, cert))

		_, err := s.store.Execute(s.ctx, cert.Fingerprint,
			func(*models.Certificate) error { return fmt.Errorf("nope") },
			func(c *models.Certificate) { c.ApplyRevocation(time.Now()) },
		)
		s.Require().Error(err)

		found, err := s.store.FindByFingerprint(s.ctx, cert.Fingerprint)
		s.Require().NoError(err)
		s.False(found.Revoked)
	})
}

func (s *CertStoreSuite) TestListByRecipient() {
	s.Run("pages in issuance order per recipient", func() {
		alice, bob := addr(9), addr(8)
		for i := 1; i <= 3; i++ {
			s.Require().NoError(s.store.Create(s.ctx, s.newCert(i, alice)))
		}
		s.Require().NoError(s.store.Create(s.ctx, s.newCert(4, bob)))

		page, hasMore, err := s.store.ListByRecipient(s.ctx, alice, 0, 2)
		s.Require().NoError(err)
		s.True(hasMore)
		s.Equal([]fingerprint.Digest{fp(1), fp(2)}, page)

		page, hasMore, err = s.store.ListByRecipient(s.ctx, alice, 2, 2)
		s.Require().NoError(err)
		s.False(hasMore)
		s.Equal([]fingerprint.Digest{fp(3)}, page)
	})

	s.Run("recipient with nothing issued yields an empty page", func() {
		page, hasMore, err := s.store.ListByRecipient(s.ctx, addr(7), 0, 10)
		s.Require().NoError(err)
		s.Empty(page)
		s.False(hasMore)
	})

	s.Run("start past the end is out of range", func() {
		carol := addr(6)
		s.Require().NoError(s.store.Create(s.ctx, s.newCert(10, carol)))

		_, _, err := s.store.ListByRecipient(s.ctx, carol, 1, 5)
		s.Require().ErrorIs(err, sentinel.ErrOutOfRange)
	})
}
