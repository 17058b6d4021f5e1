package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the certificate module.
type Metrics struct {
	CertificatesIssued  prometheus.Counter
	CertificatesRevoked prometheus.Counter
	Verifications       *prometheus.CounterVec
	IssueDuration       prometheus.Histogram
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
}

// New creates a new Metrics instance with all certificate metrics registered.
func New() *Metrics {
	return &Metrics{
		CertificatesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_certificates_issued_total",
			Help: "Total number of certificates issued",
		}),
		CertificatesRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_certificates_revoked_total",
			Help: "Total number of certificates revoked",
		}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_verifications_total",
			Help: "Total number of verification requests by outcome",
		}, []string{"status"}),
		IssueDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attest_certificate_issue_duration_seconds",
			Help:    "Duration of certificate issuance operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_verification_cache_hits_total",
			Help: "Verification results served from cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_verification_cache_misses_total",
			Help: "Verification requests that missed the cache",
		}),
	}
}

// ObserveIssue records the duration of an issuance.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveIssue(start time.Time) {
	m.IssueDuration.Observe(time.Since(start).Seconds())
}
