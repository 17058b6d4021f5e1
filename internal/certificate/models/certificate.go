package models

import (
	"time"

	"attest/internal/fingerprint"
	"attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
)

// Certificate is an immutable record binding a document fingerprint to an
// issuer and recipient. A fingerprint maps to at most one certificate for
// all time; issuance against a used fingerprint is rejected, never
// overwritten. Certificates are revocable but never deleted, so the store
// doubles as an audit log of everything ever issued.
type Certificate struct {
	Fingerprint fingerprint.Digest `json:"fingerprint"`
	Issuer      domain.Address     `json:"issuer"`
	Recipient   domain.Address     `json:"recipient"`
	IssuedAt    time.Time          `json:"issued_at"`
	Revoked     bool               `json:"revoked"`
	RevokedAt   *time.Time         `json:"revoked_at,omitempty"`
}

// StoreStats are the store-wide counters, maintained incrementally and
// always equal to a scan over the certificate set.
type StoreStats struct {
	TotalCertificates uint64 `json:"total_certificates"`
	TotalRevoked      uint64 `json:"total_revoked"`
}

// New constructs an unrevoked certificate.
func New(fp fingerprint.Digest, issuer, recipient domain.Address, now time.Time) (*Certificate, error) {
	if issuer.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "issuer address cannot be the zero address")
	}
	if recipient.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "recipient address cannot be the zero address")
	}
	return &Certificate{
		Fingerprint: fp,
		Issuer:      issuer,
		Recipient:   recipient,
		IssuedAt:    now,
	}, nil
}

// CanRevoke checks revocation authority and state. Only the issuing
// institution may revoke; revocation is one-way.
func (c *Certificate) CanRevoke(caller domain.Address) error {
	if caller != c.Issuer {
		return dErrors.New(dErrors.CodeUnauthorized, "only the issuing institution may revoke")
	}
	if c.Revoked {
		return dErrors.New(dErrors.CodeInvariantViolation, "certificate is already revoked")
	}
	return nil
}

// ApplyRevocation marks the certificate revoked.
// Call CanRevoke first to validate the transition.
func (c *Certificate) ApplyRevocation(now time.Time) {
	c.Revoked = true
	c.RevokedAt = &now
}
