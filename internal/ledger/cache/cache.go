// Package cache fronts ledger reads with an in-process cache and an optional
// Redis tier. Ledger entries never change once written, so a cached entry
// can only be evicted, never stale. Absent entries are not cached because
// an identifier may be anchored later.
//
// Redis is shared and writable by other parties, so every value stored there
// carries an HMAC-SHA256 over the identifier and entry under a server key.
// A value that fails verification is treated as a miss and the ledger itself
// is read.
package cache

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"certify/internal/ledger"
)

const keyPrefix = "certify:ledger:"

var (
	errEmpty  = errors.New("cached entry is empty")
	errForged = errors.New("cached entry failed authentication")
)

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "certify_ledger_cache_lookups_total",
	Help: "Ledger read cache lookups by tier and result",
}, []string{"tier", "result"})

// Ledger decorates a ledger.Ledger with read caching. Writes pass through.
type Ledger struct {
	next   ledger.Ledger
	local  *gocache.Cache
	redis  *redis.Client
	macKey []byte
	ttl    time.Duration
	logger *slog.Logger
}

// signedEntry is the Redis value.
type signedEntry struct {
	Entry ledger.Entry `json:"entry"`
	MAC   []byte       `json:"mac"`
}

type Option func(*Ledger)

// WithRedis adds a shared second tier whose values are authenticated with
// macKey. The tier stays off when macKey is empty.
func WithRedis(client *redis.Client, macKey []byte) Option {
	return func(l *Ledger) {
		l.redis = client
		l.macKey = macKey
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func New(next ledger.Ledger, ttl time.Duration, opts ...Option) *Ledger {
	l := &Ledger{
		next:   next,
		local:  gocache.New(ttl, 2*ttl),
		ttl:    ttl,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.redis != nil && len(l.macKey) == 0 {
		l.logger.Warn("ledger cache MAC key not set, redis tier disabled")
		l.redis = nil
	}
	return l
}

func (l *Ledger) RecordEntry(ctx context.Context, entry ledger.Entry) (ledger.Confirmation, error) {
	return l.next.RecordEntry(ctx, entry)
}

func (l *Ledger) ReadEntry(ctx context.Context, identifier string) (ledger.Entry, error) {
	if v, ok := l.local.Get(identifier); ok {
		lookups.WithLabelValues("local", "hit").Inc()
		return v.(ledger.Entry), nil
	}
	lookups.WithLabelValues("local", "miss").Inc()

	if l.redis != nil {
		entry, ok := l.readRedis(ctx, identifier)
		if ok {
			l.local.Set(identifier, entry, l.ttl)
			return entry, nil
		}
	}

	entry, err := l.next.ReadEntry(ctx, identifier)
	if err != nil {
		return ledger.Entry{}, err
	}
	if entry.IsEmpty() {
		return entry, nil
	}
	l.local.Set(identifier, entry, l.ttl)
	if l.redis != nil {
		l.writeRedis(ctx, identifier, entry)
	}
	return entry, nil
}

func (l *Ledger) readRedis(ctx context.Context, identifier string) (ledger.Entry, bool) {
	raw, err := l.redis.Get(ctx, keyPrefix+identifier).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			l.logger.WarnContext(ctx, "ledger cache read failed", "identifier", identifier, "error", err)
			lookups.WithLabelValues("redis", "error").Inc()
		} else {
			lookups.WithLabelValues("redis", "miss").Inc()
		}
		return ledger.Entry{}, false
	}
	entry, err := l.open(identifier, raw)
	switch {
	case errors.Is(err, errForged):
		l.logger.ErrorContext(ctx, "ledger cache entry failed authentication", "identifier", identifier)
		lookups.WithLabelValues("redis", "forged").Inc()
		return ledger.Entry{}, false
	case err != nil:
		lookups.WithLabelValues("redis", "error").Inc()
		return ledger.Entry{}, false
	}
	lookups.WithLabelValues("redis", "hit").Inc()
	return entry, true
}

func (l *Ledger) writeRedis(ctx context.Context, identifier string, entry ledger.Entry) {
	raw, err := l.seal(identifier, entry)
	if err != nil {
		return
	}
	if err := l.redis.Set(ctx, keyPrefix+identifier, raw, l.ttl).Err(); err != nil {
		l.logger.WarnContext(ctx, "ledger cache write failed", "identifier", identifier, "error", err)
	}
}

func (l *Ledger) seal(identifier string, entry ledger.Entry) ([]byte, error) {
	return json.Marshal(signedEntry{Entry: entry, MAC: l.sign(identifier, entry)})
}

func (l *Ledger) open(identifier string, raw []byte) (ledger.Entry, error) {
	var signed signedEntry
	if err := json.Unmarshal(raw, &signed); err != nil {
		return ledger.Entry{}, err
	}
	if signed.Entry.IsEmpty() {
		return ledger.Entry{}, errEmpty
	}
	if signed.Entry.Identifier != identifier || !hmac.Equal(signed.MAC, l.sign(identifier, signed.Entry)) {
		return ledger.Entry{}, errForged
	}
	return signed.Entry, nil
}

// sign binds the entry to the key it is stored under. Fields are length
// prefixed so no two entries share an encoding.
func (l *Ledger) sign(identifier string, e ledger.Entry) []byte {
	mac := hmac.New(sha256.New, l.macKey)
	for _, f := range []string{identifier, e.Identifier, e.Fingerprint, e.AuxiliaryPointer, e.IssuerRef} {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(f)))
		mac.Write(n[:])
		mac.Write([]byte(f))
	}
	return mac.Sum(nil)
}
