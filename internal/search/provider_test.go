package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerperProvider_ParsesOrganicResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ChatGPT privacy policy", body["q"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"organic": []map[string]string{
				{"title": "Privacy policy", "link": "https://openai.com/policies/privacy", "snippet": "Our policy"},
				{"title": "Review", "link": "https://blog.example.com/r", "snippet": "A review"},
			},
		})
	}))
	defer srv.Close()

	p := NewSerperProviderWithBaseURL("test-key", srv.URL)
	results, err := p.RawSearch(context.Background(), "ChatGPT privacy policy")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Privacy policy", results[0].Title)
	assert.Equal(t, "https://openai.com/policies/privacy", results[0].URL)
}

func TestSerperProvider_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewSerperProviderWithBaseURL("bad-key", srv.URL)
	_, err := p.RawSearch(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestSerpAPIProvider_ParsesOrganicResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "google", r.URL.Query().Get("engine"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "Notion AI DPA", r.URL.Query().Get("q"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"organic_results": []map[string]string{
				{"title": "Notion DPA", "link": "https://www.notion.so/dpa", "snippet": "DPA terms"},
			},
		})
	}))
	defer srv.Close()

	p := NewSerpAPIProviderWithBaseURL("test-key", srv.URL)
	results, err := p.RawSearch(context.Background(), "Notion AI DPA")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://www.notion.so/dpa", results[0].URL)
}

func TestNewProvider_ExplicitSelection(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Provider: "serper", SerperAPIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "serper", p.Name())

	p, err = NewProvider(ProviderConfig{Provider: "serpapi", SerpAPIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "serpapi", p.Name())
}

func TestNewProvider_ExplicitWithoutKeyFails(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "serper"})
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestNewProvider_AutoSelectPrefersSerper(t *testing.T) {
	p, err := NewProvider(ProviderConfig{SerperAPIKey: "a", SerpAPIKey: "b"})
	require.NoError(t, err)
	assert.Equal(t, "serper", p.Name())

	p, err = NewProvider(ProviderConfig{SerpAPIKey: "b"})
	require.NoError(t, err)
	assert.Equal(t, "serpapi", p.Name())
}

func TestNewProvider_NoKeysFails(t *testing.T) {
	_, err := NewProvider(ProviderConfig{})
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestNewProvider_UnknownNameFails(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "bing"})
	assert.Error(t, err)
}
