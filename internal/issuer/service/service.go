// Package service implements the issuer registry: issuer lifecycle,
// owner-gated mutation, and paginated queries.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	issuermetrics "attest/internal/issuer/metrics"
	"attest/internal/issuer/models"
	"attest/internal/issuer/store"
	"attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	audit "attest/pkg/platform/audit"
	"attest/pkg/platform/sentinel"
	"attest/pkg/requestcontext"
)

// Registry orchestrates the issuer lifecycle. A single owner address,
// fixed at construction, gates every mutation: a mismatched caller fails
// with CodeUnauthorized before any state is touched. Registry state is
// explicit owned state, constructed once per process and passed by handle
// to collaborators.
type Registry struct {
	owner   domain.Address
	issuers store.Store
	audit   *auditEmitter
	metrics *issuermetrics.Metrics
	logger  *slog.Logger
}

type registryConfig struct {
	logger         *slog.Logger
	auditPublisher *audit.Publisher
	metrics        *issuermetrics.Metrics
}

// Option configures optional Registry collaborators.
type Option func(*registryConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *registryConfig) { cfg.logger = logger }
}

func WithAuditPublisher(publisher *audit.Publisher) Option {
	return func(cfg *registryConfig) { cfg.auditPublisher = publisher }
}

func WithMetrics(m *issuermetrics.Metrics) Option {
	return func(cfg *registryConfig) { cfg.metrics = m }
}

// New constructs the registry. The owner address must be non-zero; it is
// the only caller the mutating operations accept.
func New(owner domain.Address, issuers store.Store, opts ...Option) (*Registry, error) {
	if issuers == nil {
		return nil, fmt.Errorf("issuer store is required")
	}
	if owner.IsZero() {
		return nil, fmt.Errorf("owner address is required")
	}
	cfg := &registryConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Registry{
		owner:   owner,
		issuers: issuers,
		audit:   newAuditEmitter(cfg.logger, cfg.auditPublisher),
		metrics: cfg.metrics,
		logger:  cfg.logger,
	}, nil
}

// Register records a new issuer. Registration is a one-time event per
// address: a second attempt fails with CodeConflict even if the issuer has
// since been deactivated.
func (r *Registry) Register(ctx context.Context, caller, addr domain.Address, name, location string) (*models.Issuer, error) {
	if err := r.requireOwner(caller); err != nil {
		return nil, err
	}
	start := time.Now()

	issuer, err := models.New(addr, name, location, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := r.issuers.Create(ctx, issuer); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "issuer already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register issuer")
	}

	if err := r.audit.emitRegistered(ctx, caller.Hex(), models.IssuerRegistered{
		Address:  issuer.Address,
		Name:     issuer.Name,
		Location: issuer.Location,
		At:       issuer.RegisteredAt,
	}); err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.IssuersRegistered.Inc()
		r.metrics.ObserveRegister(start)
	}
	return issuer, nil
}

// Update replaces an issuer's name and location in place. The active flag
// and counters are untouched.
func (r *Registry) Update(ctx context.Context, caller, addr domain.Address, name, location string) (*models.Issuer, error) {
	if err := r.requireOwner(caller); err != nil {
		return nil, err
	}

	issuer, err := r.issuers.Execute(ctx, addr,
		func(i *models.Issuer) error { return i.CanRename(name, location) },
		func(i *models.Issuer) { i.ApplyRename(name, location) },
	)
	if err != nil {
		return nil, wrapIssuerErr(err)
	}

	if err := r.audit.emitUpdated(ctx, caller.Hex(), models.IssuerUpdated{
		Address:  issuer.Address,
		Name:     issuer.Name,
		Location: issuer.Location,
	}); err != nil {
		return nil, err
	}
	return issuer, nil
}

// Deactivate transitions an issuer to inactive, suspending its authority
// to issue new certificates. Existing certificates remain verifiable.
func (r *Registry) Deactivate(ctx context.Context, caller, addr domain.Address) (*models.Issuer, error) {
	if err := r.requireOwner(caller); err != nil {
		return nil, err
	}

	issuer, err := r.issuers.Execute(ctx, addr,
		func(i *models.Issuer) error {
			if err := i.CanDeactivate(); err != nil {
				return dErrors.New(dErrors.CodeConflict, "issuer is already inactive")
			}
			return nil
		},
		func(i *models.Issuer) { i.ApplyDeactivation() },
	)
	if err != nil {
		return nil, wrapIssuerErr(err)
	}

	if err := r.audit.emitDeactivated(ctx, caller.Hex(), models.IssuerDeactivated{
		Address: issuer.Address,
		At:      requestcontext.Now(ctx),
	}); err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.IssuersDeactivated.Inc()
	}
	return issuer, nil
}

// Reactivate restores a deactivated issuer. Reactivation, not
// re-registration, is the only path back to active.
func (r *Registry) Reactivate(ctx context.Context, caller, addr domain.Address) (*models.Issuer, error) {
	if err := r.requireOwner(caller); err != nil {
		return nil, err
	}

	issuer, err := r.issuers.Execute(ctx, addr,
		func(i *models.Issuer) error {
			if err := i.CanReactivate(); err != nil {
				return dErrors.New(dErrors.CodeConflict, "issuer is already active")
			}
			return nil
		},
		func(i *models.Issuer) { i.ApplyReactivation() },
	)
	if err != nil {
		return nil, wrapIssuerErr(err)
	}

	if err := r.audit.emitReactivated(ctx, caller.Hex(), models.IssuerReactivated{
		Address: issuer.Address,
		At:      requestcontext.Now(ctx),
	}); err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.IssuersReactivated.Inc()
	}
	return issuer, nil
}

// IsRegisteredActive reports whether the address is registered and active.
func (r *Registry) IsRegisteredActive(ctx context.Context, addr domain.Address) (bool, error) {
	issuer, err := r.issuers.FindByAddress(ctx, addr)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up issuer")
	}
	return issuer.Active, nil
}

// IsKnown reports whether the address was ever registered, active or not.
func (r *Registry) IsKnown(ctx context.Context, addr domain.Address) (bool, error) {
	_, err := r.issuers.FindByAddress(ctx, addr)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up issuer")
	}
	return true, nil
}

// Info returns the full issuer record.
func (r *Registry) Info(ctx context.Context, addr domain.Address) (*models.Issuer, error) {
	issuer, err := r.issuers.FindByAddress(ctx, addr)
	if err != nil {
		return nil, wrapIssuerErr(err)
	}
	return issuer, nil
}

// NameOf returns the issuer's display name.
func (r *Registry) NameOf(ctx context.Context, addr domain.Address) (string, error) {
	issuer, err := r.issuers.FindByAddress(ctx, addr)
	if err != nil {
		return "", wrapIssuerErr(err)
	}
	return issuer.Name, nil
}

// ListAll pages over every issuer address in registration order.
func (r *Registry) ListAll(ctx context.Context, start, limit int) ([]domain.Address, bool, error) {
	if err := validatePage(start, limit); err != nil {
		return nil, false, err
	}
	addrs, hasMore, err := r.issuers.ListAll(ctx, start, limit)
	if err != nil {
		return nil, false, wrapPageErr(err)
	}
	return addrs, hasMore, nil
}

// ListActive pages over active issuers only; start and limit apply to the
// filtered sequence, not the raw storage order.
func (r *Registry) ListActive(ctx context.Context, start, limit int) ([]domain.Address, []string, bool, error) {
	if err := validatePage(start, limit); err != nil {
		return nil, nil, false, err
	}
	addrs, names, hasMore, err := r.issuers.ListActive(ctx, start, limit)
	if err != nil {
		return nil, nil, false, wrapPageErr(err)
	}
	return addrs, names, hasMore, nil
}

// Stats returns the registry-wide counters.
func (r *Registry) Stats(ctx context.Context) (models.RegistryStats, error) {
	stats, err := r.issuers.Stats(ctx)
	if err != nil {
		return models.RegistryStats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read registry stats")
	}
	return stats, nil
}

func (r *Registry) requireOwner(caller domain.Address) error {
	if caller != r.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the registry owner")
	}
	return nil
}

func validatePage(start, limit int) error {
	if limit <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "limit must be greater than zero")
	}
	if start < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "start cannot be negative")
	}
	return nil
}

func wrapIssuerErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "issuer is not registered")
	case dErrors.HasCode(err, dErrors.CodeInvalidInput),
		dErrors.HasCode(err, dErrors.CodeConflict):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "issuer registry operation failed")
	}
}

func wrapPageErr(err error) error {
	if errors.Is(err, sentinel.ErrOutOfRange) {
		return dErrors.New(dErrors.CodeOutOfRange, "start index out of bounds")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list issuers")
}
