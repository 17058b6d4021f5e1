package service

import (
	"context"

	"attest/internal/issuer/models"
	"attest/pkg/domain"
)

// CertificateCounter is the capability to bump an issuer's certificate
// count. It is deliberately not reachable through the registry's public
// mutation surface: the registry hands exactly one value out at wiring
// time, to the certificate store, which invokes it inside the issuance
// transaction. Holding the capability is the authorization.
type CertificateCounter struct {
	registry *Registry
}

// CertificateCounter returns the increment capability for this registry.
func (r *Registry) CertificateCounter() CertificateCounter {
	return CertificateCounter{registry: r}
}

// Increment adds one issued certificate to the issuer's count and returns
// the new count. It participates in any transaction present on the
// context, so issuance and the count update commit or abort together.
func (c CertificateCounter) Increment(ctx context.Context, addr domain.Address) (uint64, error) {
	issuer, err := c.registry.issuers.Execute(ctx, addr,
		nil,
		func(i *models.Issuer) { i.CertificateCount++ },
	)
	if err != nil {
		return 0, wrapIssuerErr(err)
	}

	if err := c.registry.audit.emitCountUpdated(ctx, models.CertificateCountUpdated{
		Address:  issuer.Address,
		NewCount: issuer.CertificateCount,
	}); err != nil {
		return 0, err
	}
	return issuer.CertificateCount, nil
}
