// Package service implements certificate issuance, revocation, and
// fingerprint verification.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	certmetrics "attest/internal/certificate/metrics"
	"attest/internal/certificate/models"
	"attest/internal/certificate/store"
	"attest/internal/fingerprint"
	"attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	audit "attest/pkg/platform/audit"
	"attest/pkg/platform/sentinel"
	"attest/pkg/requestcontext"
)

// IssuerDirectory is the view of the issuer registry the certificate
// module needs: issuance authority and display names.
type IssuerDirectory interface {
	IsRegisteredActive(ctx context.Context, addr domain.Address) (bool, error)
	NameOf(ctx context.Context, addr domain.Address) (string, error)
}

// CertificateCounter bumps an issuer's issued-certificate count. Satisfied
// by the registry's capability type; the service never mutates the
// registry any other way.
type CertificateCounter interface {
	Increment(ctx context.Context, addr domain.Address) (uint64, error)
}

// Cache is an optional read-through cache for verification results. Add
// populates without replacing an existing entry; Set replaces
// unconditionally. Verify only ever Adds and Revoke Sets the revoked
// result, so a lookup racing a revocation cannot reinstate a stale active
// entry.
type Cache interface {
	Get(ctx context.Context, fp fingerprint.Digest) (*models.VerificationResult, bool, error)
	Add(ctx context.Context, fp fingerprint.Digest, result *models.VerificationResult) error
	Set(ctx context.Context, fp fingerprint.Digest, result *models.VerificationResult) error
}

// Service orchestrates the certificate lifecycle. Issuance binds the
// certificate insert and the issuer's count increment into one
// transactional step; verification is a pure read enriched with the
// issuer's display name.
type Service struct {
	certs   store.Store
	issuers IssuerDirectory
	counter CertificateCounter
	tx      StoreTx
	cache   Cache
	audit   *auditEmitter
	metrics *certmetrics.Metrics
	logger  *slog.Logger
}

type serviceConfig struct {
	tx             StoreTx
	cache          Cache
	logger         *slog.Logger
	auditPublisher *audit.Publisher
	metrics        *certmetrics.Metrics
}

// Option configures optional Service collaborators.
type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) { cfg.logger = logger }
}

func WithAuditPublisher(publisher *audit.Publisher) Option {
	return func(cfg *serviceConfig) { cfg.auditPublisher = publisher }
}

func WithMetrics(m *certmetrics.Metrics) Option {
	return func(cfg *serviceConfig) { cfg.metrics = m }
}

// WithStoreTx sets the transactional boundary for issuance. Defaults to an
// in-process mutex suitable for the in-memory stores.
func WithStoreTx(tx StoreTx) Option {
	return func(cfg *serviceConfig) { cfg.tx = tx }
}

// WithCache enables the verification result cache.
func WithCache(cache Cache) Option {
	return func(cfg *serviceConfig) { cfg.cache = cache }
}

// New constructs the service. The store, directory, and counter are
// required; everything else is optional.
func New(certs store.Store, issuers IssuerDirectory, counter CertificateCounter, opts ...Option) (*Service, error) {
	if certs == nil {
		return nil, fmt.Errorf("certificate store is required")
	}
	if issuers == nil {
		return nil, fmt.Errorf("issuer directory is required")
	}
	if counter == nil {
		return nil, fmt.Errorf("certificate counter is required")
	}
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.tx == nil {
		cfg.tx = newInMemoryStoreTx()
	}
	return &Service{
		certs:   certs,
		issuers: issuers,
		counter: counter,
		tx:      cfg.tx,
		cache:   cfg.cache,
		audit:   newAuditEmitter(cfg.logger, cfg.auditPublisher),
		metrics: cfg.metrics,
		logger:  cfg.logger,
	}, nil
}

// Issue records a certificate for the fingerprint on behalf of the caller,
// who must be a registered, currently active issuer. The insert and the
// issuer's count increment commit or abort together; on any failure no
// certificate exists and no count has moved.
func (s *Service) Issue(ctx context.Context, caller domain.Address, fp fingerprint.Digest, recipient domain.Address) (*models.Certificate, error) {
	start := time.Now()

	var cert *models.Certificate
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		active, err := s.issuers.IsRegisteredActive(txCtx, caller)
		if err != nil {
			return err
		}
		if !active {
			return dErrors.New(dErrors.CodeNotFound, "issuer is not registered or not active")
		}

		created, err := models.New(fp, caller, recipient, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if err := s.certs.Create(txCtx, created); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "certificate already exists for this fingerprint")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store certificate")
		}
		if _, err := s.counter.Increment(txCtx, caller); err != nil {
			return err
		}

		if err := s.audit.emitIssued(txCtx, models.CertificateIssued{
			Fingerprint: created.Fingerprint,
			Issuer:      created.Issuer,
			Recipient:   created.Recipient,
			At:          created.IssuedAt,
		}); err != nil {
			return err
		}
		cert = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CertificatesIssued.Inc()
		s.metrics.ObserveIssue(start)
	}
	return cert, nil
}

// Revoke marks the certificate revoked. Only the issuing institution may
// revoke, and revocation is permanent; the record stays queryable so
// verification can report REVOKED rather than NOT_FOUND.
func (s *Service) Revoke(ctx context.Context, caller domain.Address, fp fingerprint.Digest) (*models.Certificate, error) {
	now := requestcontext.Now(ctx)

	cert, err := s.certs.Execute(ctx, fp,
		func(c *models.Certificate) error {
			if err := c.CanRevoke(caller); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					return dErrors.New(dErrors.CodeConflict, "certificate is already revoked")
				}
				return err
			}
			return nil
		},
		func(c *models.Certificate) { c.ApplyRevocation(now) },
	)
	if err != nil {
		return nil, wrapCertErr(err)
	}

	s.cacheRevoked(ctx, cert)

	if err := s.audit.emitRevoked(ctx, caller.Hex(), models.CertificateRevoked{
		Fingerprint: cert.Fingerprint,
		At:          now,
	}); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.CertificatesRevoked.Inc()
	}
	return cert, nil
}

// Verify answers the three-outcome question for a fingerprint. An unknown
// fingerprint is a NOT_FOUND result, not an error; found results carry the
// full record plus the issuer's display name and are cached when a cache
// is configured.
func (s *Service) Verify(ctx context.Context, fp fingerprint.Digest) (*models.VerificationResult, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, fp)
		if err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "verification cache read failed", "error", err)
		}
		if ok {
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
			}
			return cached, nil
		}
		if s.metrics != nil {
			s.metrics.CacheMisses.Inc()
		}
	}

	cert, err := s.certs.FindByFingerprint(ctx, fp)
	if errors.Is(err, sentinel.ErrNotFound) {
		result := &models.VerificationResult{
			Status:      models.StatusNotFound,
			Fingerprint: fp,
		}
		s.observeVerification(result.Status)
		return result, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up certificate")
	}

	result := resultOf(cert)

	// Name enrichment is best effort: a directory gap must not turn a
	// verifiable certificate into an error.
	name, err := s.issuers.NameOf(ctx, cert.Issuer)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, err
	}
	result.IssuerName = name

	if s.cache != nil {
		if err := s.cache.Add(ctx, fp, result); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "verification cache write failed", "error", err)
		}
	}
	s.observeVerification(result.Status)
	return result, nil
}

func resultOf(cert *models.Certificate) *models.VerificationResult {
	result := &models.VerificationResult{
		Valid:       true,
		Revoked:     cert.Revoked,
		Status:      models.StatusActive,
		Fingerprint: cert.Fingerprint,
		Issuer:      cert.Issuer,
		Recipient:   cert.Recipient,
		IssuedAt:    cert.IssuedAt,
	}
	if cert.Revoked {
		result.Status = models.StatusRevoked
	}
	return result
}

// Info returns the stored certificate for a fingerprint.
func (s *Service) Info(ctx context.Context, fp fingerprint.Digest) (*models.Certificate, error) {
	cert, err := s.certs.FindByFingerprint(ctx, fp)
	if err != nil {
		return nil, wrapCertErr(err)
	}
	return cert, nil
}

// CertificatesFor pages over the fingerprints issued to a recipient in
// issuance order.
func (s *Service) CertificatesFor(ctx context.Context, recipient domain.Address, start, limit int) ([]fingerprint.Digest, bool, error) {
	if limit <= 0 {
		return nil, false, dErrors.New(dErrors.CodeInvalidInput, "limit must be greater than zero")
	}
	if start < 0 {
		return nil, false, dErrors.New(dErrors.CodeInvalidInput, "start cannot be negative")
	}
	fps, hasMore, err := s.certs.ListByRecipient(ctx, recipient, start, limit)
	if err != nil {
		if errors.Is(err, sentinel.ErrOutOfRange) {
			return nil, false, dErrors.New(dErrors.CodeOutOfRange, "start index out of bounds")
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
	}
	return fps, hasMore, nil
}

// Stats returns the store-wide counters.
func (s *Service) Stats(ctx context.Context) (models.StoreStats, error) {
	stats, err := s.certs.Stats(ctx)
	if err != nil {
		return models.StoreStats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read certificate stats")
	}
	return stats, nil
}

// cacheRevoked publishes the revoked result over any cached entry. Verify
// never replaces an existing entry, so once this write lands no racing
// lookup can bring the active result back.
func (s *Service) cacheRevoked(ctx context.Context, cert *models.Certificate) {
	if s.cache == nil {
		return
	}
	result := resultOf(cert)
	if name, err := s.issuers.NameOf(ctx, cert.Issuer); err == nil {
		result.IssuerName = name
	}
	if err := s.cache.Set(ctx, cert.Fingerprint, result); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "verification cache update failed", "error", err)
	}
}

func (s *Service) observeVerification(status models.Status) {
	if s.metrics != nil {
		s.metrics.Verifications.WithLabelValues(string(status)).Inc()
	}
}

func wrapCertErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "no certificate exists for this fingerprint")
	case dErrors.HasCode(err, dErrors.CodeUnauthorized),
		dErrors.HasCode(err, dErrors.CodeConflict),
		dErrors.HasCode(err, dErrors.CodeInvalidInput):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "certificate operation failed")
	}
}
