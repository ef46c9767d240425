package search

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// ProviderConfig selects and configures the process-wide search backend.
// Selection is a static factory decision made once from configuration,
// never negotiated per request.
type ProviderConfig struct {
	Provider     string // "serper", "serpapi", or "" for auto-select
	SerperAPIKey string
	SerpAPIKey   string
}

// NewProvider returns the configured backend. When Provider is empty the
// factory auto-selects by available API key, Serper first. Fails with
// ErrNoProvider when no usable key is configured.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "serper":
		if cfg.SerperAPIKey == "" {
			return nil, fmt.Errorf("serper selected but no API key configured: %w", ErrNoProvider)
		}
		log.Info().Str("provider", "serper").Msg("search_provider_selected")
		return NewSerperProvider(cfg.SerperAPIKey), nil
	case "serpapi":
		if cfg.SerpAPIKey == "" {
			return nil, fmt.Errorf("serpapi selected but no API key configured: %w", ErrNoProvider)
		}
		log.Info().Str("provider", "serpapi").Msg("search_provider_selected")
		return NewSerpAPIProvider(cfg.SerpAPIKey), nil
	case "":
		if cfg.SerperAPIKey != "" {
			log.Info().Str("provider", "serper").Msg("search_provider_auto_selected")
			return NewSerperProvider(cfg.SerperAPIKey), nil
		}
		if cfg.SerpAPIKey != "" {
			log.Info().Str("provider", "serpapi").Msg("search_provider_auto_selected")
			return NewSerpAPIProvider(cfg.SerpAPIKey), nil
		}
		return nil, ErrNoProvider
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}
}
