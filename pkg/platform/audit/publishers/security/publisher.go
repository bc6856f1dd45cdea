// Package security buffers integrity findings and flushes them to the audit
// store in the background. Emit never blocks and never fails the caller.
package security

import (
	"context"
	"log/slog"
	"time"

	audit "certify/pkg/platform/audit"
)

const flushBatch = 100

type Publisher struct {
	store    audit.Store
	buffer   *RingBuffer
	interval time.Duration
	logger   *slog.Logger
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithCapacity(n int) Option {
	return func(p *Publisher) {
		p.buffer = NewRingBuffer(n)
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:    store,
		buffer:   NewRingBuffer(0),
		interval: time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit queues the event for the next flush.
func (p *Publisher) Emit(_ context.Context, event audit.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityWarning
	}
	p.buffer.Enqueue(event)
}

// Run flushes on every tick until ctx ends, then drains what is left.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			p.Flush(drainCtx)
			cancel()
			return
		case <-ticker.C:
			p.Flush(ctx)
		}
	}
}

// Flush writes every buffered event. Events that fail to persist are
// logged and dropped.
func (p *Publisher) Flush(ctx context.Context) {
	for {
		batch := p.buffer.DequeueBatch(flushBatch)
		if len(batch) == 0 {
			return
		}
		for _, event := range batch {
			if err := p.store.Append(ctx, event.ToEvent()); err != nil {
				p.logger.WarnContext(ctx, "security audit dropped",
					"action", event.Action,
					"subject", event.Subject,
					"error", err,
				)
			}
		}
	}
}

// Pending reports buffered events and the total dropped for overflow.
func (p *Publisher) Pending() (buffered int, dropped int64) {
	return p.buffer.Len(), p.buffer.Dropped()
}
