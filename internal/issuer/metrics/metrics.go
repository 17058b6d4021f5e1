package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the issuer registry module.
type Metrics struct {
	IssuersRegistered  prometheus.Counter
	IssuersDeactivated prometheus.Counter
	IssuersReactivated prometheus.Counter
	RegisterDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		IssuersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_issuers_registered_total",
			Help: "Total number of issuers registered",
		}),
		IssuersDeactivated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_issuers_deactivated_total",
			Help: "Total number of issuer deactivations",
		}),
		IssuersReactivated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_issuers_reactivated_total",
			Help: "Total number of issuer reactivations",
		}),
		RegisterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attest_issuer_register_duration_seconds",
			Help:    "Duration of issuer registration operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveRegister records the duration of a registration.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRegister(start time.Time) {
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}
