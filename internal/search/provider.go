// Package search implements the mediated web-search gateway: provider
// backends, per-session rate limiting, and trust-tier classification of
// results.
package search

import (
	"context"
	"errors"
	"time"
)

// Timeout applied to every backend HTTP call.
const TimeoutSearchCall = 15 * time.Second

// Domain errors for the search package.
var (
	// ErrInvalidQuery: the query failed the gateway pre-check (empty, too
	// long, or blocked topic). Policy failure, recoverable by rephrasing.
	ErrInvalidQuery = errors.New("invalid search query")
	// ErrRateLimited: the session's search budget or dispatch rate is
	// exhausted. The tool call is refused, not queued.
	ErrRateLimited = errors.New("search rate limited")
	// ErrSearchUnavailable: the backend failed after the bounded retry.
	// Infrastructure failure; the run surfaces it as Failed.
	ErrSearchUnavailable = errors.New("search backend unavailable")
	// ErrNoProvider: no backend is configured (no API key found).
	ErrNoProvider = errors.New("no search provider configured")
)

// RefusalError is a query refusal with its guard reason code. It wraps
// ErrInvalidQuery or ErrRateLimited so callers branch with errors.Is and
// read the reason with errors.As instead of parsing the message.
type RefusalError struct {
	Reason string
	Err    error
}

func (e *RefusalError) Error() string { return e.Reason + ": " + e.Err.Error() }

func (e *RefusalError) Unwrap() error { return e.Err }

// RawResult is a single untiered result as returned by a backend.
type RawResult struct {
	Title   string
	URL     string
	Snippet string
}

// Provider is the capability every search backend implements. Exactly one
// provider is selected per process at startup (see NewProvider).
type Provider interface {
	// Name returns the provider identifier (e.g. "serper", "serpapi").
	Name() string
	// RawSearch executes the query and returns results in backend order.
	RawSearch(ctx context.Context, query string) ([]RawResult, error)
}
