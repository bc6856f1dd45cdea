package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "certify/pkg/platform/audit"
)

type fakeOutbox struct {
	mu        sync.Mutex
	entries   []audit.OutboxEntry
	published map[uuid.UUID]bool
}

func (f *fakeOutbox) FetchUnpublished(_ context.Context, limit int) ([]audit.OutboxEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []audit.OutboxEntry
	for _, e := range f.entries {
		if !f.published[e.ID] && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, ids []uuid.UUID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.published[id] = true
	}
	return nil
}

type fakeSink struct {
	err  error
	sent []audit.OutboxEntry
}

func (f *fakeSink) PublishOutbox(_ context.Context, entries []audit.OutboxEntry) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, entries...)
	return nil
}

func newOutbox(n int) *fakeOutbox {
	f := &fakeOutbox{published: make(map[uuid.UUID]bool)}
	for i := 0; i < n; i++ {
		f.entries = append(f.entries, audit.OutboxEntry{ID: uuid.New(), EventType: "certificate_issued"})
	}
	return f
}

func TestRelayOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes in batches and marks entries", func(t *testing.T) {
		outbox := newOutbox(3)
		sink := &fakeSink{}
		r := NewRelay(outbox, sink, time.Second, 2, nil)

		n, err := r.RelayOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = r.RelayOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = r.RelayOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Len(t, sink.sent, 3)
	})

	t.Run("broker failure leaves entries unpublished", func(t *testing.T) {
		outbox := newOutbox(1)
		r := NewRelay(outbox, &fakeSink{err: errors.New("broker down")}, time.Second, 10, nil)

		_, err := r.RelayOnce(ctx)
		require.Error(t, err)
		pending, _ := outbox.FetchUnpublished(ctx, 10)
		assert.Len(t, pending, 1)
	})
}
