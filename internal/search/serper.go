package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultSerperBaseURL = "https://google.serper.dev"

// SerperProvider queries the Google Serper API.
type SerperProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSerperProvider creates a Serper provider with the given API key.
func NewSerperProvider(apiKey string) *SerperProvider {
	return &SerperProvider{
		apiKey:  apiKey,
		baseURL: defaultSerperBaseURL,
		client:  &http.Client{Timeout: TimeoutSearchCall},
	}
}

// NewSerperProviderWithBaseURL creates a Serper provider pointed at a custom
// base URL (e.g. an httptest server).
func NewSerperProviderWithBaseURL(apiKey, baseURL string) *SerperProvider {
	p := NewSerperProvider(apiKey)
	p.baseURL = baseURL
	return p
}

// Name returns the provider identifier.
func (p *SerperProvider) Name() string { return "serper" }

type serperRequest struct {
	Q string `json:"q"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// RawSearch executes the query against the Serper API.
func (p *SerperProvider) RawSearch(ctx context.Context, query string) ([]RawResult, error) {
	body, err := json.Marshal(serperRequest{Q: query})
	if err != nil {
		return nil, fmt.Errorf("encoding serper request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building serper request: %w", err)
	}
	req.Header.Set("X-API-KEY", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper api call: unexpected status %d", resp.StatusCode)
	}

	var sr serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decoding serper response: %w", err)
	}

	results := make([]RawResult, 0, len(sr.Organic))
	for _, o := range sr.Organic {
		results = append(results, RawResult{Title: o.Title, URL: o.Link, Snippet: o.Snippet})
	}
	return results, nil
}
