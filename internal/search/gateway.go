package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/aivet-io/aivet/internal/guard"
	aivetotel "github.com/aivet-io/aivet/internal/otel"
	"github.com/aivet-io/aivet/internal/session"
)

var tracer = aivetotel.Tracer("github.com/aivet-io/aivet/internal/search")

// Query is one agent-issued search. Never persisted beyond the call.
type Query struct {
	Text      string
	SessionID string
	ToolName  string // the AI tool under assessment, used for tiering
}

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	Provider   Provider
	Budgets    *session.Store
	Guard      *guard.Guard
	Classifier *Classifier
	SessionQPS int           // dispatch rate per session; <=0 disables
	MaxResults int           // results kept per query
	Backoff    time.Duration // delay before the single retry
}

// Gateway mediates every outbound search: pre-check, atomic budget
// consumption, rate limiting, bounded retry, snippet sanitization, and
// trust-tier classification. One Gateway serves all sessions.
type Gateway struct {
	provider   Provider
	budgets    *session.Store
	guard      *guard.Guard
	classifier *Classifier
	sanitizer  *bluemonday.Policy
	maxResults int
	backoff    time.Duration

	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	sessionQPS int
}

// NewGateway creates a search gateway.
func NewGateway(cfg GatewayConfig) *Gateway {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	return &Gateway{
		provider:   cfg.Provider,
		budgets:    cfg.Budgets,
		guard:      cfg.Guard,
		classifier: cfg.Classifier,
		sanitizer:  bluemonday.StrictPolicy(),
		maxResults: maxResults,
		backoff:    backoff,
		limiters:   make(map[string]*rate.Limiter),
		sessionQPS: cfg.SessionQPS,
	}
}

// Search validates, budgets, dispatches, and classifies one query. Results
// keep backend order; callers needing prioritized evidence sort at the point
// of use with SortForCitation.
func (gw *Gateway) Search(ctx context.Context, q Query) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "search.gateway",
		trace.WithAttributes(
			attribute.String("session_id", q.SessionID),
			attribute.String("provider", gw.provider.Name()),
		))
	defer span.End()

	verdict := gw.guard.CheckQuery(q.Text)
	if !verdict.Allowed() {
		span.SetAttributes(attribute.String("rejected", verdict.Reason))
		return nil, &RefusalError{Reason: verdict.Reason, Err: ErrInvalidQuery}
	}
	text := verdict.Value(q.Text)

	if lim := gw.limiter(q.SessionID); lim != nil && !lim.Allow() {
		return nil, &RefusalError{Reason: guard.ReasonSearchBudgetExceeded, Err: ErrRateLimited}
	}

	// Atomic check-and-increment; the counter never overruns the limit even
	// under concurrent tool calls for the same session.
	if err := gw.budgets.ConsumeSearch(q.SessionID); err != nil {
		switch {
		case errors.Is(err, session.ErrSearchBudgetExceeded):
			return nil, &RefusalError{Reason: guard.ReasonSearchBudgetExceeded, Err: ErrRateLimited}
		case errors.Is(err, session.ErrDeadlineExceeded):
			return nil, fmt.Errorf("consuming search budget: %w", err)
		default:
			return nil, err
		}
	}

	raw, err := gw.dispatch(ctx, text)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if len(raw) > gw.maxResults {
		raw = raw[:gw.maxResults]
	}

	results := make([]Result, 0, len(raw))
	for _, r := range raw {
		results = append(results, Result{
			Title:   gw.sanitizeText(r.Title),
			URL:     r.URL,
			Snippet: gw.sanitizeText(r.Snippet),
			Tier:    gw.classifier.Classify(q.ToolName, r.URL),
		})
	}

	log.Info().
		Str("session_id", q.SessionID).
		Int("results", len(results)).
		Func(aivetotel.LogTraceFields(ctx)).
		Msg("search_dispatched")
	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

// dispatch calls the backend with at most one bounded retry with backoff.
// Callers must not retry further; failures surface as ErrSearchUnavailable.
func (gw *Gateway) dispatch(ctx context.Context, text string) ([]RawResult, error) {
	raw, err := gw.provider.RawSearch(ctx, text)
	if err == nil {
		return raw, nil
	}
	log.Warn().Err(err).Str("provider", gw.provider.Name()).Msg("search_backend_retrying")

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", ctx.Err(), ErrSearchUnavailable)
	case <-time.After(gw.backoff):
	}

	raw, err = gw.provider.RawSearch(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%s backend: %v: %w", gw.provider.Name(), err, ErrSearchUnavailable)
	}
	return raw, nil
}

// sanitizeText strips any HTML markup a backend leaked into titles or
// snippets before the text enters the pipeline.
func (gw *Gateway) sanitizeText(s string) string {
	return strings.TrimSpace(gw.sanitizer.Sanitize(s))
}

func (gw *Gateway) limiter(sessionID string) *rate.Limiter {
	if gw.sessionQPS <= 0 {
		return nil
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	lim, ok := gw.limiters[sessionID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(gw.sessionQPS), gw.sessionQPS*2)
		gw.limiters[sessionID] = lim
	}
	return lim
}
