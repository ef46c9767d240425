package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const defaultSerpAPIBaseURL = "https://serpapi.com"

// SerpAPIProvider queries the SerpAPI Google engine.
type SerpAPIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSerpAPIProvider creates a SerpAPI provider with the given API key.
func NewSerpAPIProvider(apiKey string) *SerpAPIProvider {
	return &SerpAPIProvider{
		apiKey:  apiKey,
		baseURL: defaultSerpAPIBaseURL,
		client:  &http.Client{Timeout: TimeoutSearchCall},
	}
}

// NewSerpAPIProviderWithBaseURL creates a SerpAPI provider pointed at a
// custom base URL (e.g. an httptest server).
func NewSerpAPIProviderWithBaseURL(apiKey, baseURL string) *SerpAPIProvider {
	p := NewSerpAPIProvider(apiKey)
	p.baseURL = baseURL
	return p
}

// Name returns the provider identifier.
func (p *SerpAPIProvider) Name() string { return "serpapi" }

type serpAPIResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// RawSearch executes the query against SerpAPI.
func (p *SerpAPIProvider) RawSearch(ctx context.Context, query string) ([]RawResult, error) {
	q := url.Values{}
	q.Set("engine", "google")
	q.Set("q", query)
	q.Set("api_key", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search.json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building serpapi request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi call: unexpected status %d", resp.StatusCode)
	}

	var sr serpAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decoding serpapi response: %w", err)
	}

	results := make([]RawResult, 0, len(sr.OrganicResults))
	for _, o := range sr.OrganicResults {
		results = append(results, RawResult{Title: o.Title, URL: o.Link, Snippet: o.Snippet})
	}
	return results, nil
}
