// Package compliance provides a fail-closed audit publisher for registry
// changes.
//
// Emit writes synchronously. When called with a transaction in ctx the event
// lands in the outbox in that same transaction, so a failed write must fail
// the calling operation.
//
// Use for: certificate_issued, certificate_revoked, certificate_request_*
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "certify/pkg/platform/audit"
)

type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a compliance publisher. The store should be outbox-backed in
// production for guaranteed delivery.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit persists the event or returns an error the caller must not ignore.
func (p *Publisher) Emit(ctx context.Context, event audit.ComplianceEvent) error {
	start := time.Now()

	if event.ActorID == "" {
		return fmt.Errorf("compliance event requires ActorID")
	}
	if event.Action == "" {
		return fmt.Errorf("compliance event requires Action")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := p.store.Append(ctx, event.ToEvent()); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "compliance audit failed",
				"action", event.Action,
				"subject", event.Subject,
				"actor_id", event.ActorID,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.ObservePersistDuration(time.Since(start).Seconds())
		p.metrics.IncEventsEmitted()
	}
	return nil
}
