// Package worker relays outbox entries to the message broker.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "certify/pkg/platform/audit"
)

var relayed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "certify_audit_outbox_relayed_total",
	Help: "Outbox entries relayed to the broker by result",
}, []string{"result"})

// Outbox is the relay's view of the outbox table.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Sink publishes a batch and returns once the broker acknowledged it.
type Sink interface {
	PublishOutbox(ctx context.Context, entries []audit.OutboxEntry) error
}

// Relay polls the outbox and publishes in order. Entries are marked only
// after the broker acknowledged them, so delivery is at least once.
type Relay struct {
	outbox   Outbox
	sink     Sink
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

func NewRelay(outbox Outbox, sink Sink, interval time.Duration, batch int, logger *slog.Logger) *Relay {
	if batch <= 0 {
		batch = 100
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{outbox: outbox, sink: sink, interval: interval, batch: batch, logger: logger}
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil {
				r.logger.WarnContext(ctx, "outbox relay failed", "error", err)
			}
		}
	}
}

// RelayOnce publishes one batch and reports how many entries were relayed.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.outbox.FetchUnpublished(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if err := r.sink.PublishOutbox(ctx, entries); err != nil {
		relayed.WithLabelValues("publish_failed").Add(float64(len(entries)))
		return 0, err
	}
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if err := r.outbox.MarkPublished(ctx, ids, time.Now()); err != nil {
		// already on the broker; the next poll republishes them
		relayed.WithLabelValues("mark_failed").Add(float64(len(entries)))
		return 0, err
	}
	relayed.WithLabelValues("ok").Add(float64(len(entries)))
	return len(entries), nil
}
