package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certify/internal/ledger"
	"certify/internal/ledger/memory"
	"certify/pkg/platform/sentinel"
)

type countingLedger struct {
	*memory.Ledger
	reads int
}

func (c *countingLedger) ReadEntry(ctx context.Context, identifier string) (ledger.Entry, error) {
	c.reads++
	return c.Ledger.ReadEntry(ctx, identifier)
}

func TestCachedReads(t *testing.T) {
	ctx := context.Background()
	backing := &countingLedger{Ledger: memory.New()}
	l := New(backing, time.Minute, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err := l.RecordEntry(ctx, ledger.Entry{Identifier: "cert-1", Fingerprint: "abc"})
	require.NoError(t, err)

	t.Run("second read is served locally", func(t *testing.T) {
		first, err := l.ReadEntry(ctx, "cert-1")
		require.NoError(t, err)
		second, err := l.ReadEntry(ctx, "cert-1")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, backing.reads)
	})

	t.Run("cached entries survive backend outage", func(t *testing.T) {
		backing.FailReads(errors.New("rpc down"))
		defer backing.FailReads(nil)

		got, err := l.ReadEntry(ctx, "cert-1")
		require.NoError(t, err)
		assert.Equal(t, "abc", got.Fingerprint)
	})

	t.Run("absent entries are not cached", func(t *testing.T) {
		_, err := l.ReadEntry(ctx, "cert-2")
		require.ErrorIs(t, err, sentinel.ErrNotFound)

		_, err = l.RecordEntry(ctx, ledger.Entry{Identifier: "cert-2", Fingerprint: "def"})
		require.NoError(t, err)

		got, err := l.ReadEntry(ctx, "cert-2")
		require.NoError(t, err)
		assert.Equal(t, "def", got.Fingerprint)
	})
}

func TestSealedEntries(t *testing.T) {
	key := []byte("server-secret")
	l := New(memory.New(), time.Minute, WithRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), key))
	genuine := ledger.Entry{Identifier: "cert-1", Fingerprint: "abc", IssuerRef: "issuer-1"}

	t.Run("sealed entry opens under the same key", func(t *testing.T) {
		raw, err := l.seal("cert-1", genuine)
		require.NoError(t, err)

		got, err := l.open("cert-1", raw)
		require.NoError(t, err)
		assert.Equal(t, genuine, got)
	})

	t.Run("entry with a rewritten fingerprint is rejected", func(t *testing.T) {
		raw, err := l.seal("cert-1", genuine)
		require.NoError(t, err)
		var signed signedEntry
		require.NoError(t, json.Unmarshal(raw, &signed))
		signed.Entry.Fingerprint = "attacker-chosen"
		forged, err := json.Marshal(signed)
		require.NoError(t, err)

		_, err = l.open("cert-1", forged)
		assert.ErrorIs(t, err, errForged)
	})

	t.Run("entry without a mac is rejected", func(t *testing.T) {
		forged, err := json.Marshal(genuine)
		require.NoError(t, err)
		_, err = l.open("cert-1", []byte(`{"entry":`+string(forged)+`}`))
		assert.ErrorIs(t, err, errForged)
	})

	t.Run("entry signed under another key is rejected", func(t *testing.T) {
		other := New(memory.New(), time.Minute, WithRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), []byte("other-secret")))
		raw, err := other.seal("cert-1", genuine)
		require.NoError(t, err)

		_, err = l.open("cert-1", raw)
		assert.ErrorIs(t, err, errForged)
	})

	t.Run("entry moved to another identifier is rejected", func(t *testing.T) {
		raw, err := l.seal("cert-1", genuine)
		require.NoError(t, err)

		_, err = l.open("cert-2", raw)
		assert.ErrorIs(t, err, errForged)
	})

	t.Run("malformed value is an error", func(t *testing.T) {
		_, err := l.open("cert-1", []byte("{not json"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, errForged)
	})
}

func TestRedisTierNeedsKey(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	l := New(memory.New(), time.Minute,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRedis(client, nil))
	assert.Nil(t, l.redis)
}
