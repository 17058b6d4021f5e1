package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	certservice "attest/internal/certificate/service"
	certstore "attest/internal/certificate/store"
	issuerservice "attest/internal/issuer/service"
	issuerstore "attest/internal/issuer/store"
	"attest/internal/verification"
	"attest/pkg/domain"
)

type VerificationHandlerSuite struct {
	suite.Suite
	router   http.Handler
	verifier *verification.Service
	certs    *certservice.Service
	ctx      context.Context

	issuer domain.Address
}

func (s *VerificationHandlerSuite) SetupTest() {
	s.ctx = context.Background()
	owner := domain.Address{0xAA, 19: 0x01}
	s.issuer = domain.Address{0x01, 19: 0x01}

	registry, err := issuerservice.New(owner, issuerstore.NewInMemory())
	s.Require().NoError(err)
	_, err = registry.Register(s.ctx, owner, s.issuer, "Test University", "Testville")
	s.Require().NoError(err)

	s.certs, err = certservice.New(certstore.NewInMemory(), registry, registry.CertificateCounter())
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.verifier, err = verification.New(s.certs, logger)
	s.Require().NoError(err)

	r := chi.NewRouter()
	New(s.verifier, logger).Register(r)
	s.router = r
}

func TestVerificationHandlerSuite(t *testing.T) {
	suite.Run(t, new(VerificationHandlerSuite))
}

func (s *VerificationHandlerSuite) upload(path string, document []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "diploma.pdf")
	s.Require().NoError(err)
	_, err = part.Write(document)
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *VerificationHandlerSuite) TestVerifyFile() {
	document := []byte("alice's diploma")

	s.Run("verifies an issued document", func() {
		fp := s.verifier.Fingerprint(document)
		recipient := domain.Address{0x99, 19: 0x01}
		_, err := s.certs.Issue(s.ctx, s.issuer, fp, recipient)
		s.Require().NoError(err)

		w := s.upload("/api/verification/file", document)
		s.Require().Equal(http.StatusOK, w.Code)

		var resp struct {
			Valid      bool   `json:"valid"`
			Status     string `json:"status"`
			IssuerName string `json:"issuer_name"`
		}
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.True(resp.Valid)
		s.Equal("ACTIVE", resp.Status)
		s.Equal("Test University", resp.IssuerName)
	})

	s.Run("unknown document is NOT_FOUND with a 200", func() {
		w := s.upload("/api/verification/file", []byte("never issued"))
		s.Require().Equal(http.StatusOK, w.Code)

		var resp struct {
			Valid  bool   `json:"valid"`
			Status string `json:"status"`
		}
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.False(resp.Valid)
		s.Equal("NOT_FOUND", resp.Status)
	})

	s.Run("empty upload is a bad request", func() {
		w := s.upload("/api/verification/file", nil)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("raw body upload works without multipart framing", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/verification/file", bytes.NewReader(document))
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		s.Equal(http.StatusOK, w.Code)
	})
}

func (s *VerificationHandlerSuite) TestVerifyHash() {
	s.Run("accepts prefixed and unprefixed fingerprints", func() {
		document := []byte("bob's transcript")
		fp := s.verifier.Fingerprint(document)
		recipient := domain.Address{0x98, 19: 0x01}
		_, err := s.certs.Issue(s.ctx, s.issuer, fp, recipient)
		s.Require().NoError(err)

		for _, text := range []string{fp.Hex(true), fp.Hex(false)} {
			body, err := json.Marshal(map[string]string{"fingerprint": text})
			s.Require().NoError(err)

			req := httptest.NewRequest(http.MethodPost, "/api/verification/hash", bytes.NewReader(body))
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			s.Require().Equal(http.StatusOK, w.Code)

			var resp struct {
				Status string `json:"status"`
			}
			s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
			s.Equal("ACTIVE", resp.Status)
		}
	})

	s.Run("malformed fingerprint is a bad request", func() {
		body, err := json.Marshal(map[string]string{"fingerprint": "zz"})
		s.Require().NoError(err)

		req := httptest.NewRequest(http.MethodPost, "/api/verification/hash", bytes.NewReader(body))
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *VerificationHandlerSuite) TestFingerprint() {
	s.Run("returns the canonical fingerprint of the upload", func() {
		document := []byte("some document")
		w := s.upload("/api/fingerprint", document)
		s.Require().Equal(http.StatusOK, w.Code)

		var resp struct {
			Fingerprint string `json:"fingerprint"`
			Hex         string `json:"hex"`
		}
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.Equal(s.verifier.Fingerprint(document).Hex(true), resp.Fingerprint)
		s.Equal(s.verifier.Fingerprint(document).Hex(false), resp.Hex)
	})
}
