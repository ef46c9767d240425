// Package session tracks per-session resource budgets and the per-identity
// concurrency cap. Budgets are monotonic counters: they only increase, are
// never decremented, and are discarded when the session expires or is
// explicitly closed.
package session

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrSearchBudgetExceeded = errors.New("search budget exceeded")
	ErrTokenBudgetExceeded  = errors.New("token budget exceeded")
	ErrDeadlineExceeded     = errors.New("session deadline exceeded")
)

// Limits configures a Store. The same limits apply to every session.
type Limits struct {
	SearchLimit int           // searches allowed per session
	TokenLimit  int           // token spend allowed per session
	RunTimeout  time.Duration // session deadline relative to first use
}

// Budget is a point-in-time snapshot of one session's counters.
type Budget struct {
	SessionID    string
	SearchesUsed int
	SearchLimit  int
	TokensUsed   int
	TokenLimit   int
	StartedAt    time.Time
	Deadline     time.Time
}

type entry struct {
	searchesUsed int
	tokensUsed   int
	startedAt    time.Time
	deadline     time.Time
	lastSeen     time.Time
}

// Store owns all live session budgets. All counter updates go through the
// store's mutex, making the check-and-increment in ConsumeSearch atomic with
// respect to concurrent tool calls in the same session.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	limits   Limits
	ttl      time.Duration
	now      func() time.Time // overridable in tests
}

// NewStore creates a budget store. Sessions idle longer than ttl are swept
// on access.
func NewStore(limits Limits, ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*entry),
		limits:   limits,
		ttl:      ttl,
		now:      time.Now,
	}
}

// get returns the live entry for a session, creating it on first use.
// Caller must hold s.mu.
func (s *Store) get(sessionID string) *entry {
	now := s.now()
	e, ok := s.sessions[sessionID]
	if ok && s.ttl > 0 && now.Sub(e.lastSeen) > s.ttl {
		delete(s.sessions, sessionID)
		ok = false
	}
	if !ok {
		e = &entry{
			startedAt: now,
			deadline:  now.Add(s.limits.RunTimeout),
		}
		s.sessions[sessionID] = e
	}
	e.lastSeen = now
	return e
}

// Snapshot returns the session's current budget, creating it on first use.
func (s *Store) Snapshot(sessionID string) Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.get(sessionID)
	return Budget{
		SessionID:    sessionID,
		SearchesUsed: e.searchesUsed,
		SearchLimit:  s.limits.SearchLimit,
		TokensUsed:   e.tokensUsed,
		TokenLimit:   s.limits.TokenLimit,
		StartedAt:    e.startedAt,
		Deadline:     e.deadline,
	}
}

// ConsumeSearch atomically checks the session's search counter and deadline
// and increments the counter. The counter is only incremented when the call
// is allowed, so searches_used never exceeds the limit.
func (s *Store) ConsumeSearch(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.get(sessionID)
	if s.now().After(e.deadline) {
		return ErrDeadlineExceeded
	}
	if e.searchesUsed >= s.limits.SearchLimit {
		return ErrSearchBudgetExceeded
	}
	e.searchesUsed++
	return nil
}

// AddTokens records token spend for the session. The count is recorded even
// when it crosses the limit (counters are monotonic); the error tells the
// caller the budget is now exhausted.
func (s *Store) AddTokens(sessionID string, n int) error {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.get(sessionID)
	e.tokensUsed += n
	if e.tokensUsed > s.limits.TokenLimit {
		return ErrTokenBudgetExceeded
	}
	return nil
}

// CheckDeadline returns ErrDeadlineExceeded when the session's wall-clock
// budget has elapsed. Evaluated by the coordinator before every agent step;
// it doubles as the cooperative cancellation point.
func (s *Store) CheckDeadline(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.get(sessionID)
	if s.now().After(e.deadline) {
		return ErrDeadlineExceeded
	}
	return nil
}

// Close discards a session's budget.
func (s *Store) Close(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
