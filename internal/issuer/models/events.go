package models

import (
	"time"

	"attest/pkg/domain"
)

// Domain events emitted on successful registry mutations. The service
// translates them into audit events; consumers key on the subject address.

type IssuerRegistered struct {
	Address  domain.Address
	Name     string
	Location string
	At       time.Time
}

type IssuerUpdated struct {
	Address  domain.Address
	Name     string
	Location string
}

type IssuerDeactivated struct {
	Address domain.Address
	At      time.Time
}

type IssuerReactivated struct {
	Address domain.Address
	At      time.Time
}

type CertificateCountUpdated struct {
	Address  domain.Address
	NewCount uint64
}
