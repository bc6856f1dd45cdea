package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	emitted         prometheus.Counter
	persistFailures prometheus.Counter
	persistDuration prometheus.Histogram
}

// NewMetrics registers the collectors with the default registry. Call once
// per process.
func NewMetrics() *Metrics {
	return &Metrics{
		emitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certify_audit_compliance_emitted_total",
			Help: "Compliance audit events persisted",
		}),
		persistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certify_audit_compliance_failures_total",
			Help: "Compliance audit events that failed to persist",
		}),
		persistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "certify_audit_compliance_persist_seconds",
			Help:    "Time to persist a compliance audit event",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncEventsEmitted()                   { m.emitted.Inc() }
func (m *Metrics) IncPersistFailures()                 { m.persistFailures.Inc() }
func (m *Metrics) ObservePersistDuration(secs float64) { m.persistDuration.Observe(secs) }
