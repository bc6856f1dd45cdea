//go:build integration

package containers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const redisImage = "redis:7-alpine"

// RedisContainer hosts the shared ledger cache tier. Suites get their own
// clients from NewClient so one suite closing a client cannot break another.
type RedisContainer struct {
	container *tcredis.RedisContainer
	opts      *redis.Options
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcredis.Run(ctx, redisImage)
	require.NoError(t, err, "start redis")

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(context.Background())
		require.NoError(t, err, "redis connection string")
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		_ = container.Terminate(context.Background())
		require.NoError(t, err, "parse redis url")
	}
	return &RedisContainer{container: container, opts: opts}
}

// NewClient returns a pinged client that is closed when the test ends.
func (r *RedisContainer) NewClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(r.opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err(), "ping redis")
	return client
}

// SetRaw stores value under key verbatim, bypassing any encoding the code
// under test applies.
func (r *RedisContainer) SetRaw(t *testing.T, key string, value []byte) {
	t.Helper()
	client := r.NewClient(t)
	require.NoError(t, client.Set(context.Background(), key, value, time.Minute).Err())
}

// GetRaw returns the bytes stored under key, or nil when the key is absent.
func (r *RedisContainer) GetRaw(t *testing.T, key string) []byte {
	t.Helper()
	client := r.NewClient(t)
	raw, err := client.Get(context.Background(), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	require.NoError(t, err)
	return raw
}

// DeletePrefix removes every key starting with prefix.
func (r *RedisContainer) DeletePrefix(t *testing.T, prefix string) {
	t.Helper()
	ctx := context.Background()
	client := r.NewClient(t)
	iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		require.NoError(t, client.Del(ctx, iter.Val()).Err())
	}
	require.NoError(t, iter.Err())
}
