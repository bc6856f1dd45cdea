package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.ObserveIssue("issued", time.Second)
	m.ObserveIssue("ledger_failed", time.Second)
	m.IncrementVerdict("match")
	m.IncrementVerdict("match")
	m.IncrementOrphaned()
	m.ObserveLedger("record", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IssueOutcome.WithLabelValues("issued")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Verdicts.WithLabelValues("match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrphanedLedgerEntries))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveIssue("issued", time.Second)
		m.IncrementVerdict("match")
		m.IncrementOrphaned()
		m.IncrementSweep("intact")
		m.IncrementRevocations()
		m.ObserveLedger("read", nil, time.Millisecond)
	})
}
