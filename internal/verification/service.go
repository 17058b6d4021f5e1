// Package verification is the document-facing entry point: it turns raw
// document bytes or user-supplied fingerprint text into verification
// results.
package verification

import (
	"context"
	"fmt"
	"log/slog"

	"attest/internal/certificate/models"
	"attest/internal/fingerprint"
)

// Verifier answers fingerprint lookups. Satisfied by the certificate
// service.
type Verifier interface {
	Verify(ctx context.Context, fp fingerprint.Digest) (*models.VerificationResult, error)
}

// Service hashes documents and normalizes fingerprint text before
// delegating to the certificate verifier. It holds no state of its own.
type Service struct {
	verifier Verifier
	logger   *slog.Logger
}

func New(verifier Verifier, logger *slog.Logger) (*Service, error) {
	if verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	return &Service{verifier: verifier, logger: logger}, nil
}

// Fingerprint computes the canonical fingerprint of a document. The same
// bytes always produce the same fingerprint, independent of file name or
// upload path.
func (s *Service) Fingerprint(document []byte) fingerprint.Digest {
	return fingerprint.New(document)
}

// VerifyDocument hashes the document and looks the fingerprint up.
func (s *Service) VerifyDocument(ctx context.Context, document []byte) (*models.VerificationResult, error) {
	fp := fingerprint.New(document)
	if s.logger != nil {
		s.logger.DebugContext(ctx, "verifying document", "fingerprint", fp.String(), "size_bytes", len(document))
	}
	return s.verifier.Verify(ctx, fp)
}

// VerifyFingerprintText parses user-supplied fingerprint text, with or
// without the 0x prefix, and looks it up. Malformed text fails with
// CodeInvalidInput before any lookup.
func (s *Service) VerifyFingerprintText(ctx context.Context, text string) (*models.VerificationResult, error) {
	fp, err := fingerprint.ParseHex(text)
	if err != nil {
		return nil, err
	}
	return s.verifier.Verify(ctx, fp)
}
