package models

import (
	"time"

	"attest/internal/fingerprint"
	"attest/pkg/domain"
)

// Domain events emitted on successful certificate mutations.

type CertificateIssued struct {
	Fingerprint fingerprint.Digest
	Issuer      domain.Address
	Recipient   domain.Address
	At          time.Time
}

type CertificateRevoked struct {
	Fingerprint fingerprint.Digest
	At          time.Time
}
