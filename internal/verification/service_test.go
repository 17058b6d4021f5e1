package verification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"attest/internal/certificate/models"
	certservice "attest/internal/certificate/service"
	certstore "attest/internal/certificate/store"
	issuerservice "attest/internal/issuer/service"
	issuerstore "attest/internal/issuer/store"
	"attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
)

type VerificationSuite struct {
	suite.Suite
	service *Service
	certs   *certservice.Service
	ctx     context.Context

	issuer domain.Address
}

func (s *VerificationSuite) SetupTest() {
	s.ctx = context.Background()

	var owner domain.Address
	owner[0] = 0xAA
	owner[19] = 0x01
	s.issuer = domain.Address{0x01, 19: 0x01}

	registry, err := issuerservice.New(owner, issuerstore.NewInMemory())
	s.Require().NoError(err)
	_, err = registry.Register(s.ctx, owner, s.issuer, "Test University", "Testville")
	s.Require().NoError(err)

	s.certs, err = certservice.New(certstore.NewInMemory(), registry, registry.CertificateCounter())
	s.Require().NoError(err)

	s.service, err = New(s.certs, nil)
	s.Require().NoError(err)
}

func TestVerificationSuite(t *testing.T) {
	suite.Run(t, new(VerificationSuite))
}

func (s *VerificationSuite) TestVerifyDocument() {
	document := []byte("transcript for alice")

	s.Run("hashing is deterministic regardless of entry path", func() {
		fp := s.service.Fingerprint(document)

		recipient := domain.Address{0x99, 19: 0x01}
		_, err := s.certs.Issue(s.ctx, s.issuer, fp, recipient)
		s.Require().NoError(err)

		byDocument, err := s.service.VerifyDocument(s.ctx, document)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, byDocument.Status)

		byText, err := s.service.VerifyFingerprintText(s.ctx, fp.Hex(false))
		s.Require().NoError(err)
		s.Equal(byDocument, byText)

		prefixed, err := s.service.VerifyFingerprintText(s.ctx, fp.Hex(true))
		s.Require().NoError(err)
		s.Equal(byDocument, prefixed)
	})

	s.Run("unissued document reports NOT_FOUND", func() {
		result, err := s.service.VerifyDocument(s.ctx, []byte("never issued"))
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(models.StatusNotFound, result.Status)
	})

	s.Run("a one-byte change misses the original certificate", func() {
		tampered := append([]byte(nil), document...)
		tampered[0] ^= 0x01

		result, err := s.service.VerifyDocument(s.ctx, tampered)
		s.Require().NoError(err)
		s.Equal(models.StatusNotFound, result.Status)
	})
}

func (s *VerificationSuite) TestVerifyFingerprintText() {
	s.Run("malformed text fails before any lookup", func() {
		for _, text := range []string{"", "0x", "nothex", "abcd", "0x" + "zz"} {
			_, err := s.service.VerifyFingerprintText(s.ctx, text)
			s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidInput), "input %q", text)
		}
	})

	s.Run("uppercase hex is accepted", func() {
		fp := s.service.Fingerprint([]byte("cased"))
		recipient := domain.Address{0x98, 19: 0x01}
		_, err := s.certs.Issue(s.ctx, s.issuer, fp, recipient)
		s.Require().NoError(err)

		upper := "0x" + toUpperHex(fp.Hex(false))
		result, err := s.service.VerifyFingerprintText(s.ctx, upper)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, result.Status)
	})
}

func toUpperHex(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
