package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimits() Limits {
	return Limits{SearchLimit: 3, TokenLimit: 1000, RunTimeout: time.Minute}
}

func TestConsumeSearch_EnforcesLimit(t *testing.T) {
	s := NewStore(testLimits(), time.Hour)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.ConsumeSearch("sess-1"))
	}
	err := s.ConsumeSearch("sess-1")
	assert.ErrorIs(t, err, ErrSearchBudgetExceeded)

	b := s.Snapshot("sess-1")
	assert.Equal(t, 3, b.SearchesUsed, "counter must not overrun the limit")
}

func TestConsumeSearch_NeverOverrunsUnderConcurrency(t *testing.T) {
	s := NewStore(Limits{SearchLimit: 3, TokenLimit: 1000, RunTimeout: time.Minute}, time.Hour)

	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.ConsumeSearch("sess-race"); err == nil {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(3), allowed, "exactly search_limit calls may pass")
	assert.Equal(t, 3, s.Snapshot("sess-race").SearchesUsed)
}

func TestConsumeSearch_IndependentSessions(t *testing.T) {
	s := NewStore(testLimits(), time.Hour)

	require.NoError(t, s.ConsumeSearch("a"))
	require.NoError(t, s.ConsumeSearch("b"))
	assert.Equal(t, 1, s.Snapshot("a").SearchesUsed)
	assert.Equal(t, 1, s.Snapshot("b").SearchesUsed)
}

func TestConsumeSearch_RefusedAfterDeadline(t *testing.T) {
	s := NewStore(Limits{SearchLimit: 3, TokenLimit: 1000, RunTimeout: 10 * time.Millisecond}, time.Hour)

	now := time.Now()
	s.now = func() time.Time { return now }
	require.NoError(t, s.ConsumeSearch("sess-t"))

	s.now = func() time.Time { return now.Add(time.Second) }
	err := s.ConsumeSearch("sess-t")
	assert.ErrorIs(t, err, ErrDeadlineExceeded)
}

func TestAddTokens_ReportsExhaustionButStaysMonotonic(t *testing.T) {
	s := NewStore(Limits{SearchLimit: 3, TokenLimit: 100, RunTimeout: time.Minute}, time.Hour)

	require.NoError(t, s.AddTokens("sess-tok", 60))
	err := s.AddTokens("sess-tok", 60)
	assert.ErrorIs(t, err, ErrTokenBudgetExceeded)
	assert.Equal(t, 120, s.Snapshot("sess-tok").TokensUsed, "spend is recorded even past the cap")
}

func TestCheckDeadline(t *testing.T) {
	s := NewStore(Limits{SearchLimit: 3, TokenLimit: 100, RunTimeout: time.Minute}, time.Hour)

	now := time.Now()
	s.now = func() time.Time { return now }
	require.NoError(t, s.CheckDeadline("sess-d"))

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	assert.ErrorIs(t, s.CheckDeadline("sess-d"), ErrDeadlineExceeded)
}

func TestStore_TTLEviction(t *testing.T) {
	s := NewStore(testLimits(), time.Minute)

	now := time.Now()
	s.now = func() time.Time { return now }
	require.NoError(t, s.ConsumeSearch("sess-ttl"))
	require.NoError(t, s.ConsumeSearch("sess-ttl"))
	require.NoError(t, s.ConsumeSearch("sess-ttl"))

	// After the TTL the session starts fresh with a new deadline and counters.
	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	require.NoError(t, s.ConsumeSearch("sess-ttl"))
	assert.Equal(t, 1, s.Snapshot("sess-ttl").SearchesUsed)
}

func TestClose_DiscardsBudget(t *testing.T) {
	s := NewStore(testLimits(), time.Hour)

	require.NoError(t, s.ConsumeSearch("sess-c"))
	s.Close("sess-c")
	assert.Equal(t, 0, s.Snapshot("sess-c").SearchesUsed)
}
