//go:build integration

package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certify/internal/ledger"
	"certify/internal/ledger/memory"
	"certify/pkg/testutil/containers"
)

var cacheKey = []byte("integration-cache-key")

type RedisTierSuite struct {
	suite.Suite
	redis   *containers.RedisContainer
	backing *countingLedger
	entry   ledger.Entry
}

func TestRedisTierSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisTierSuite))
}

func (s *RedisTierSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisTierSuite) SetupTest() {
	s.redis.DeletePrefix(s.T(), keyPrefix)
	s.backing = &countingLedger{Ledger: memory.New()}
	s.entry = ledger.Entry{Identifier: "cert-1", Fingerprint: "abc", IssuerRef: "issuer-1"}
	_, err := s.backing.RecordEntry(context.Background(), s.entry)
	s.Require().NoError(err)
}

// newCache returns a cache with an empty local tier over the shared backing ledger.
func (s *RedisTierSuite) newCache(key []byte) *Ledger {
	return New(s.backing, time.Minute,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRedis(s.redis.NewClient(s.T()), key))
}

func (s *RedisTierSuite) TestEntrySharedAcrossInstances() {
	ctx := context.Background()

	got, err := s.newCache(cacheKey).ReadEntry(ctx, "cert-1")
	s.Require().NoError(err)
	s.Equal(s.entry, got)
	s.NotNil(s.redis.GetRaw(s.T(), keyPrefix+"cert-1"))

	s.backing.FailReads(errors.New("rpc down"))
	got, err = s.newCache(cacheKey).ReadEntry(ctx, "cert-1")
	s.Require().NoError(err)
	s.Equal(s.entry, got)
	s.Equal(1, s.backing.reads)
}

func (s *RedisTierSuite) TestMissReadsLedgerAndFillsRedis() {
	l := s.newCache(cacheKey)

	got, err := l.ReadEntry(context.Background(), "cert-1")
	s.Require().NoError(err)
	s.Equal("abc", got.Fingerprint)
	s.Equal(1, s.backing.reads)

	stored, err := l.open("cert-1", s.redis.GetRaw(s.T(), keyPrefix+"cert-1"))
	s.Require().NoError(err)
	s.Equal(s.entry, stored)
}

func (s *RedisTierSuite) TestMalformedValueFallsBackToLedger() {
	s.redis.SetRaw(s.T(), keyPrefix+"cert-1", []byte("{not json"))
	l := s.newCache(cacheKey)

	got, err := l.ReadEntry(context.Background(), "cert-1")
	s.Require().NoError(err)
	s.Equal("abc", got.Fingerprint)
	s.Equal(1, s.backing.reads)

	repaired, err := l.open("cert-1", s.redis.GetRaw(s.T(), keyPrefix+"cert-1"))
	s.Require().NoError(err)
	s.Equal(s.entry, repaired)
}

func (s *RedisTierSuite) TestForgedValueIsIgnored() {
	s.Run("unsigned entry with a chosen fingerprint", func() {
		s.redis.SetRaw(s.T(), keyPrefix+"cert-1",
			[]byte(`{"entry":{"identifier":"cert-1","fingerprint":"attacker-chosen"},"mac":"AAAA"}`))

		got, err := s.newCache(cacheKey).ReadEntry(context.Background(), "cert-1")
		s.Require().NoError(err)
		s.Equal("abc", got.Fingerprint)
	})

	s.Run("entry signed with another key", func() {
		forger := s.newCache([]byte("guessed-key"))
		raw, err := forger.seal("cert-1", ledger.Entry{Identifier: "cert-1", Fingerprint: "attacker-chosen"})
		s.Require().NoError(err)
		s.redis.SetRaw(s.T(), keyPrefix+"cert-1", raw)

		got, err := s.newCache(cacheKey).ReadEntry(context.Background(), "cert-1")
		s.Require().NoError(err)
		s.Equal("abc", got.Fingerprint)
	})
}

func (s *RedisTierSuite) TestUnavailableRedisStillServesLedger() {
	client := s.redis.NewClient(s.T())
	l := New(s.backing, time.Minute,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRedis(client, cacheKey))
	s.Require().NoError(client.Close())

	got, err := l.ReadEntry(context.Background(), "cert-1")
	s.Require().NoError(err)
	s.Equal(s.entry, got)
	s.Nil(s.redis.GetRaw(s.T(), keyPrefix+"cert-1"))
}
