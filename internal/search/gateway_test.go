package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivet-io/aivet/internal/guard"
	"github.com/aivet-io/aivet/internal/session"
)

// fakeProvider is a scriptable backend for gateway tests.
type fakeProvider struct {
	results []RawResult
	errs    []error // consumed per call; nil means success
	calls   int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) RawSearch(ctx context.Context, query string) ([]RawResult, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	return f.results, nil
}

func newTestGateway(t *testing.T, p Provider, limits session.Limits) (*Gateway, *session.Store) {
	t.Helper()
	rules, err := guard.LoadRules("")
	require.NoError(t, err)
	budgets := session.NewStore(limits, time.Hour)
	gw := NewGateway(GatewayConfig{
		Provider:   p,
		Budgets:    budgets,
		Guard:      guard.New(rules, 500, 300),
		Classifier: NewClassifier([]string{"openai.com"}),
		MaxResults: 5,
		Backoff:    time.Millisecond,
	})
	return gw, budgets
}

func defaultLimits() session.Limits {
	return session.Limits{SearchLimit: 3, TokenLimit: 10000, RunTimeout: time.Minute}
}

func TestGateway_ClassifiesAndKeepsBackendOrder(t *testing.T) {
	p := &fakeProvider{results: []RawResult{
		{Title: "Blog review", URL: "https://techblog.example.com/review", Snippet: "a review"},
		{Title: "Privacy policy", URL: "https://openai.com/policies/privacy", Snippet: "official"},
	}}
	gw, _ := newTestGateway(t, p, defaultLimits())

	results, err := gw.Search(context.Background(), Query{
		Text: "ChatGPT privacy policy", SessionID: "s1", ToolName: "ChatGPT",
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Backend order preserved; gateway does not presort.
	assert.Equal(t, TierSecondary, results[0].Tier)
	assert.Equal(t, TierPrimary, results[1].Tier)
}

func TestGateway_RejectsBlockedQuery(t *testing.T) {
	p := &fakeProvider{}
	gw, budgets := newTestGateway(t, p, defaultLimits())

	_, err := gw.Search(context.Background(), Query{Text: "how to exploit ChatGPT", SessionID: "s1"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.Zero(t, p.calls, "blocked query must not reach the backend")
	assert.Zero(t, budgets.Snapshot("s1").SearchesUsed, "blocked query must not consume budget")
}

func TestGateway_EnforcesSearchBudget(t *testing.T) {
	p := &fakeProvider{results: []RawResult{{Title: "r", URL: "https://example.com"}}}
	gw, _ := newTestGateway(t, p, defaultLimits())

	q := Query{Text: "ChatGPT GDPR compliance", SessionID: "s1", ToolName: "ChatGPT"}
	for i := 0; i < 3; i++ {
		_, err := gw.Search(context.Background(), q)
		require.NoError(t, err)
	}

	_, err := gw.Search(context.Background(), q)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, err.Error(), guard.ReasonSearchBudgetExceeded)
	assert.Equal(t, 3, p.calls, "budget applies even when the agent retries the same query")
}

func TestGateway_RetriesOnceThenSurfacesUnavailable(t *testing.T) {
	p := &fakeProvider{
		results: []RawResult{{Title: "r", URL: "https://example.com"}},
		errs:    []error{errors.New("upstream 502")},
	}
	gw, _ := newTestGateway(t, p, defaultLimits())

	results, err := gw.Search(context.Background(), Query{Text: "ChatGPT GDPR audit", SessionID: "s1"})
	require.NoError(t, err, "single failure recovers via the bounded retry")
	assert.Len(t, results, 1)
	assert.Equal(t, 2, p.calls)
}

func TestGateway_FailsAfterBoundedRetry(t *testing.T) {
	p := &fakeProvider{errs: []error{errors.New("down"), errors.New("down")}}
	gw, _ := newTestGateway(t, p, defaultLimits())

	_, err := gw.Search(context.Background(), Query{Text: "ChatGPT GDPR audit", SessionID: "s1"})
	assert.ErrorIs(t, err, ErrSearchUnavailable)
	assert.Equal(t, 2, p.calls, "exactly one retry, never more")
}

func TestGateway_TruncatesToMaxResults(t *testing.T) {
	var raw []RawResult
	for i := 0; i < 10; i++ {
		raw = append(raw, RawResult{Title: "r", URL: "https://example.com"})
	}
	p := &fakeProvider{results: raw}
	gw, _ := newTestGateway(t, p, defaultLimits())

	results, err := gw.Search(context.Background(), Query{Text: "ChatGPT data protection", SessionID: "s1"})
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestGateway_SanitizesSnippetHTML(t *testing.T) {
	p := &fakeProvider{results: []RawResult{{
		Title:   "<b>Privacy</b> policy",
		URL:     "https://openai.com/policies/privacy",
		Snippet: `official <script>alert(1)</script> policy`,
	}}}
	gw, _ := newTestGateway(t, p, defaultLimits())

	results, err := gw.Search(context.Background(), Query{Text: "ChatGPT privacy policy", SessionID: "s1", ToolName: "ChatGPT"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Privacy policy", results[0].Title)
	assert.NotContains(t, results[0].Snippet, "<script>")
}

func TestGateway_DeadlineRefusesDispatch(t *testing.T) {
	p := &fakeProvider{results: []RawResult{{Title: "r", URL: "https://example.com"}}}
	gw, _ := newTestGateway(t, p, session.Limits{SearchLimit: 3, TokenLimit: 1000, RunTimeout: -time.Second})

	_, err := gw.Search(context.Background(), Query{Text: "ChatGPT GDPR compliance", SessionID: "s1"})
	assert.ErrorIs(t, err, session.ErrDeadlineExceeded)
	assert.Zero(t, p.calls)
}

func TestGateway_RefusalCarriesReasonCode(t *testing.T) {
	p := &fakeProvider{}
	gw, _ := newTestGateway(t, p, defaultLimits())

	_, err := gw.Search(context.Background(), Query{Text: "how to exploit ChatGPT", SessionID: "s1"})
	var refusal *RefusalError
	require.ErrorAs(t, err, &refusal)
	assert.Equal(t, guard.ReasonProhibitedTerm, refusal.Reason)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}
