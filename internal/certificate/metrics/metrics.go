package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for issuance, verification and sweeps.
// All methods are safe on a nil receiver.
type Metrics struct {
	// Issuance latency including the ledger confirmation wait
	IssueLatency prometheus.Histogram

	// Issuance outcomes: issued, not_found, forbidden, ledger_failed, persist_failed
	IssueOutcome *prometheus.CounterVec

	// Ledger operation latency by op: record, read
	LedgerLatency *prometheus.HistogramVec

	// Verification verdicts
	Verdicts *prometheus.CounterVec

	// Ledger writes whose registry insert failed afterwards
	OrphanedLedgerEntries prometheus.Counter

	Revocations prometheus.Counter

	// Integrity sweep findings by result: intact, tampered, unanchored, failed
	SweepResults *prometheus.CounterVec
}

// New registers the collectors with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IssueLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "certify_issue_duration_seconds",
			Help:    "Duration of certificate issuance including ledger confirmation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		IssueOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certify_issue_outcomes_total",
			Help: "Certificate issuance outcomes",
		}, []string{"outcome"}),
		LedgerLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certify_ledger_duration_seconds",
			Help:    "Duration of ledger operations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60},
		}, []string{"op", "result"}),
		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certify_verification_verdicts_total",
			Help: "Verification verdicts",
		}, []string{"verdict"}),
		OrphanedLedgerEntries: f.NewCounter(prometheus.CounterOpts{
			Name: "certify_orphaned_ledger_entries_total",
			Help: "Ledger entries written whose registry record could not be persisted",
		}),
		Revocations: f.NewCounter(prometheus.CounterOpts{
			Name: "certify_revocations_total",
			Help: "Certificates moved to revoked",
		}),
		SweepResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certify_sweep_results_total",
			Help: "Integrity sweep results per certificate",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveIssue(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.IssueOutcome.WithLabelValues(outcome).Inc()
	if outcome == "issued" {
		m.IssueLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveLedger(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.LedgerLatency.WithLabelValues(op, result).Observe(d.Seconds())
}

func (m *Metrics) IncrementVerdict(verdict string) {
	if m != nil {
		m.Verdicts.WithLabelValues(verdict).Inc()
	}
}

func (m *Metrics) IncrementOrphaned() {
	if m != nil {
		m.OrphanedLedgerEntries.Inc()
	}
}

func (m *Metrics) IncrementRevocations() {
	if m != nil {
		m.Revocations.Inc()
	}
}

func (m *Metrics) IncrementSweep(result string) {
	if m != nil {
		m.SweepResults.WithLabelValues(result).Inc()
	}
}
