package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"certify/pkg/platform/circuit"
	"certify/pkg/platform/sentinel"
)

var breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "certify_ledger_circuit_open",
	Help: "1 while the ledger circuit breaker is open",
}, []string{"name"})

// Guarded fails fast with sentinel.ErrUnavailable while the backing ledger
// keeps failing. Not-found and conflict results are answers, not failures,
// and do not trip the breaker.
type Guarded struct {
	next    Ledger
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuarded(next Ledger, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{next: next, breaker: breaker, logger: logger}
}

func (g *Guarded) RecordEntry(ctx context.Context, entry Entry) (Confirmation, error) {
	if !g.breaker.Allow() {
		return Confirmation{}, sentinel.ErrUnavailable
	}
	conf, err := g.next.RecordEntry(ctx, entry)
	g.record(ctx, err)
	return conf, err
}

func (g *Guarded) ReadEntry(ctx context.Context, identifier string) (Entry, error) {
	if !g.breaker.Allow() {
		return Entry{}, sentinel.ErrUnavailable
	}
	e, err := g.next.ReadEntry(ctx, identifier)
	g.record(ctx, err)
	return e, err
}

func (g *Guarded) record(ctx context.Context, err error) {
	var change circuit.StateChange
	if err == nil || errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrConflict) {
		_, change = g.breaker.RecordSuccess()
	} else {
		_, change = g.breaker.RecordFailure()
	}
	switch {
	case change.Opened:
		breakerState.WithLabelValues(g.breaker.Name()).Set(1)
		g.logger.WarnContext(ctx, "ledger circuit opened", "breaker", g.breaker.Name(), "error", err)
	case change.Closed:
		breakerState.WithLabelValues(g.breaker.Name()).Set(0)
		g.logger.InfoContext(ctx, "ledger circuit closed", "breaker", g.breaker.Name())
	}
}
