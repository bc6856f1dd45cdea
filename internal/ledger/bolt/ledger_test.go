package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"certify/internal/ledger"
	"certify/pkg/platform/sentinel"
)

type BoltLedgerSuite struct {
	suite.Suite
	path   string
	ledger *Ledger
	ctx    context.Context
}

func TestBoltLedgerSuite(t *testing.T) {
	suite.Run(t, new(BoltLedgerSuite))
}

func (s *BoltLedgerSuite) SetupTest() {
	s.ctx = context.Background()
	s.path = filepath.Join(s.T().TempDir(), "ledger.db")
	l, err := Open(s.path)
	s.Require().NoError(err)
	s.ledger = l
}

func (s *BoltLedgerSuite) TearDownTest() {
	_ = s.ledger.Close()
}

func (s *BoltLedgerSuite) TestWriteOnce() {
	entry := ledger.Entry{Identifier: "cert-1", Fingerprint: "f1", AuxiliaryPointer: "N/A", IssuerRef: "issuer-1"}

	conf, err := s.ledger.RecordEntry(s.ctx, entry)
	s.Require().NoError(err)
	s.NotEmpty(conf.TxRef)
	s.Equal(uint64(1), conf.BlockNumber)

	_, err = s.ledger.RecordEntry(s.ctx, ledger.Entry{Identifier: "cert-1", Fingerprint: "f2"})
	s.ErrorIs(err, sentinel.ErrConflict)

	got, err := s.ledger.ReadEntry(s.ctx, "cert-1")
	s.Require().NoError(err)
	s.Equal(entry, got)
}

func (s *BoltLedgerSuite) TestMissingEntry() {
	_, err := s.ledger.ReadEntry(s.ctx, "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *BoltLedgerSuite) TestEntriesSurviveReopen() {
	_, err := s.ledger.RecordEntry(s.ctx, ledger.Entry{Identifier: "cert-2", Fingerprint: "f"})
	s.Require().NoError(err)
	s.Require().NoError(s.ledger.Close())

	reopened, err := Open(s.path)
	s.Require().NoError(err)
	s.ledger = reopened

	got, err := s.ledger.ReadEntry(s.ctx, "cert-2")
	s.Require().NoError(err)
	s.Equal("f", got.Fingerprint)

	conf, err := s.ledger.RecordEntry(s.ctx, ledger.Entry{Identifier: "cert-3", Fingerprint: "g"})
	s.Require().NoError(err)
	s.Equal(uint64(2), conf.BlockNumber)
}
