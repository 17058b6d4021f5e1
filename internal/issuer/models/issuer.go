package models

import (
	"strings"
	"time"

	"attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
)

// Issuer is the aggregate root for an accredited institution.
//
// Invariants:
//   - Address is non-zero and unique among all issuers ever registered;
//     registration is a one-time event per address
//   - Name and Location are non-empty after trimming
//   - RegisteredAt is immutable after construction
//   - CertificateCount is monotonically non-decreasing
//   - Deactivation and reactivation flip Active only; they never reset
//     RegisteredAt or CertificateCount
//
// Issuers are never deleted. The registry is an append-only log of
// institutions with a mutable active flag, so historical certificates stay
// attributable after an issuer loses accreditation.
type Issuer struct {
	Address          domain.Address `json:"address"`
	Name             string         `json:"name"`
	Location         string         `json:"location"`
	RegisteredAt     time.Time      `json:"registered_at"`
	Active           bool           `json:"active"`
	CertificateCount uint64         `json:"certificate_count"`
}

// RegistryStats are the registry-wide counters. They are maintained
// incrementally on every mutation and must always equal a scan over the
// issuer set.
type RegistryStats struct {
	TotalIssuers       uint64 `json:"total_issuers"`
	ActiveIssuers      uint64 `json:"active_issuers"`
	CertificatesIssued uint64 `json:"certificates_issued"`
}

// New constructs a registered, active issuer.
func New(addr domain.Address, name, location string, now time.Time) (*Issuer, error) {
	if addr.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "issuer address cannot be the zero address")
	}
	name, location, err := validateFields(name, location)
	if err != nil {
		return nil, err
	}
	return &Issuer{
		Address:      addr,
		Name:         name,
		Location:     location,
		RegisteredAt: now,
		Active:       true,
	}, nil
}

// CanRename checks the replacement name and location.
// Use with ApplyRename in Execute callbacks.
func (i *Issuer) CanRename(name, location string) error {
	_, _, err := validateFields(name, location)
	return err
}

// ApplyRename replaces the name and location in place. The active flag and
// counters are untouched.
func (i *Issuer) ApplyRename(name, location string) {
	i.Name = strings.TrimSpace(name)
	i.Location = strings.TrimSpace(location)
}

// CanDeactivate checks if the issuer can transition to inactive.
func (i *Issuer) CanDeactivate() error {
	if !i.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "issuer is already inactive")
	}
	return nil
}

// ApplyDeactivation transitions the issuer to inactive.
// Call CanDeactivate first to validate the transition.
func (i *Issuer) ApplyDeactivation() {
	i.Active = false
}

// CanReactivate checks if the issuer can transition back to active.
func (i *Issuer) CanReactivate() error {
	if i.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "issuer is already active")
	}
	return nil
}

// ApplyReactivation transitions the issuer to active.
// Call CanReactivate first to validate the transition.
func (i *Issuer) ApplyReactivation() {
	i.Active = true
}

func validateFields(name, location string) (string, string, error) {
	name = strings.TrimSpace(name)
	location = strings.TrimSpace(location)
	if name == "" {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "issuer name cannot be empty")
	}
	if location == "" {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "issuer location cannot be empty")
	}
	return name, location, nil
}
