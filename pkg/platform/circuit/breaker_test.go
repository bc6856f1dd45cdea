package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
	now     time.Time
	breaker *Breaker
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) SetupTest() {
	s.now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.breaker = New("ledger",
		WithFailureThreshold(3),
		WithSuccessThreshold(2),
		WithCooldown(10*time.Second),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *BreakerSuite) fail(n int) (opened bool) {
	for range n {
		_, change := s.breaker.RecordFailure()
		opened = opened || change.Opened
	}
	return opened
}

func (s *BreakerSuite) TestStartsClosed() {
	s.Equal(StateClosed, s.breaker.State())
	s.Equal("ledger", s.breaker.Name())
	s.True(s.breaker.Allow())
}

func (s *BreakerSuite) TestOpensOnThirdConsecutiveFailure() {
	s.False(s.fail(2))
	s.False(s.breaker.IsOpen())

	useFallback, change := s.breaker.RecordFailure()
	s.True(useFallback)
	s.True(change.Opened)
	s.True(s.breaker.IsOpen())
	s.False(s.breaker.Allow(), "open breaker rejects calls during cooldown")
}

func (s *BreakerSuite) TestSuccessResetsFailureRun() {
	s.fail(2)
	s.breaker.RecordSuccess()
	s.False(s.fail(2), "failure run restarts after a success")
	s.False(s.breaker.IsOpen())
}

func (s *BreakerSuite) TestProbesAfterCooldown() {
	s.fail(3)
	s.now = s.now.Add(9 * time.Second)
	s.False(s.breaker.Allow())

	s.now = s.now.Add(time.Second)
	s.True(s.breaker.Allow())
}

func (s *BreakerSuite) TestFailedProbeRestartsCooldown() {
	s.fail(3)
	s.now = s.now.Add(10 * time.Second)
	s.Require().True(s.breaker.Allow())

	useFallback, change := s.breaker.RecordFailure()
	s.True(useFallback)
	s.False(change.Opened, "already open")
	s.False(s.breaker.Allow())
}

func (s *BreakerSuite) TestClosesAfterSuccessThreshold() {
	s.fail(3)
	s.now = s.now.Add(10 * time.Second)

	usePrimary, change := s.breaker.RecordSuccess()
	s.False(usePrimary)
	s.False(change.Closed)

	usePrimary, change = s.breaker.RecordSuccess()
	s.True(usePrimary)
	s.True(change.Closed)
	s.Equal(StateClosed, s.breaker.State())
}

func (s *BreakerSuite) TestReset() {
	s.fail(3)
	s.breaker.Reset()
	s.False(s.breaker.IsOpen())
	s.False(s.fail(2))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
}
