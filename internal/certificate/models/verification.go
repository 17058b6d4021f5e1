package models

import (
	"time"

	"attest/internal/fingerprint"
	"attest/pkg/domain"
)

// Status communicates the trust disposition of a fingerprint.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusRevoked  Status = "REVOKED"
	StatusNotFound Status = "NOT_FOUND"
)

// VerificationResult is the three-outcome answer to "is this document
// backed by a genuine certificate".
//
// Valid answers "does an authentic record exist for this fingerprint";
// Status communicates trust disposition. A revoked certificate is Valid
// (the record exists and is authentic) with Status REVOKED, so callers
// must check both and must not collapse them.
type VerificationResult struct {
	Valid       bool               `json:"valid"`
	Revoked     bool               `json:"revoked"`
	Status      Status             `json:"status"`
	Fingerprint fingerprint.Digest `json:"fingerprint"`
	Issuer      domain.Address     `json:"issuer,omitzero"`
	Recipient   domain.Address     `json:"recipient,omitzero"`
	IssuedAt    time.Time          `json:"issued_at,omitzero"`
	IssuerName  string             `json:"issuer_name,omitempty"`
}
