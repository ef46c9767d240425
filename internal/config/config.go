// Package config holds operator-level configuration for an aivet deployment.
//
// This is infrastructure config set by whoever deploys aivet, not end-user
// input. Values are read from env vars (AIVET_*) or an optional
// aivet.config.yaml, merged by Viper. Guardrail pattern sets live in the
// embedded patterns package and can be overridden per deployment via
// pattern override files (see patterns_file keys below).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Viper keys. Each maps to an env var with the AIVET_ prefix
// (e.g. "search_limit" -> AIVET_SEARCH_LIMIT) and to a YAML field in
// aivet.config.yaml.
const (
	KeyDataDir           = "data_dir"
	KeyListenAddr        = "listen_addr"
	KeyMaxInputChars     = "max_input_chars"
	KeyMaxQueryChars     = "max_query_chars"
	KeySearchLimit       = "search_limit"
	KeyRunTimeoutSec     = "run_timeout_seconds"
	KeyTokenLimit        = "token_limit"
	KeyMaxConcurrent     = "max_concurrent_runs"
	KeySessionTTLMin     = "session_ttl_minutes"
	KeySearchQPS         = "search_qps"
	KeyMaxSearchResults  = "max_search_results"
	KeySearchProvider    = "search_provider"
	KeySerperAPIKey      = "serper_api_key"
	KeySerpAPIKey        = "serpapi_api_key"
	KeyOpenAIAPIKey      = "openai_api_key"
	KeyOpenAIBaseURL     = "openai_base_url"
	KeyModel             = "model"
	KeyPrimaryDomains    = "primary_domains"
	KeyPatternsFile      = "patterns_file"
	KeyMaxAgentSteps     = "max_agent_steps"
	KeyAuditDisabled     = "audit_disabled"
)

// Defaults. The search and input limits mirror the policy the assessment
// agent is instructed with, so the guardrails and the prompt agree.
const (
	DefaultListenAddr    = ":8080"
	DefaultMaxInputChars = 500
	DefaultMaxQueryChars = 300
	DefaultSearchLimit   = 3
	DefaultRunTimeoutSec = 120
	DefaultTokenLimit    = 32000
	DefaultMaxConcurrent = 2
	DefaultSessionTTLMin = 30
	DefaultSearchQPS     = 1
	DefaultMaxResults    = 5
	DefaultModel         = "gpt-4o-mini"
	DefaultMaxAgentSteps = 8
)

// Config holds resolved operator-level configuration for an aivet process.
type Config struct {
	DataDir          string        // base directory for state (~/.aivet)
	ListenAddr       string        // HTTP listen address for serve
	MaxInputChars    int           // max length of an assessment request input
	MaxQueryChars    int           // max length of an agent-issued search query
	SearchLimit      int           // searches allowed per session
	RunTimeout       time.Duration // wall-clock budget per run
	TokenLimit       int           // token budget per session
	MaxConcurrent    int           // concurrent runs allowed per caller identity
	SessionTTL       time.Duration // idle session budget lifetime
	SearchQPS        int           // per-session search dispatch rate
	MaxSearchResults int           // results kept per query
	SearchProvider   string        // "serper", "serpapi", or "" for auto
	SerperAPIKey     string
	SerpAPIKey       string
	OpenAIAPIKey     string
	OpenAIBaseURL    string // override for tests / compatible endpoints
	Model            string
	PrimaryDomains   []string // operator additions to the embedded allowlist
	PatternsFile     string   // optional guardrail pattern override file
	MaxAgentSteps    int      // hard cap on agent reasoning steps per run
	AuditDisabled    bool
}

// AuditDBPath returns the full path to the audit SQLite database.
func (c *Config) AuditDBPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

func init() {
	viper.SetEnvPrefix("AIVET")
	viper.AutomaticEnv()
	viper.SetDefault(KeyListenAddr, DefaultListenAddr)
	viper.SetDefault(KeyMaxInputChars, DefaultMaxInputChars)
	viper.SetDefault(KeyMaxQueryChars, DefaultMaxQueryChars)
	viper.SetDefault(KeySearchLimit, DefaultSearchLimit)
	viper.SetDefault(KeyRunTimeoutSec, DefaultRunTimeoutSec)
	viper.SetDefault(KeyTokenLimit, DefaultTokenLimit)
	viper.SetDefault(KeyMaxConcurrent, DefaultMaxConcurrent)
	viper.SetDefault(KeySessionTTLMin, DefaultSessionTTLMin)
	viper.SetDefault(KeySearchQPS, DefaultSearchQPS)
	viper.SetDefault(KeyMaxSearchResults, DefaultMaxResults)
	viper.SetDefault(KeyModel, DefaultModel)
	viper.SetDefault(KeyMaxAgentSteps, DefaultMaxAgentSteps)
}

// Load reads configuration from Viper (which merges env vars, config file,
// and defaults) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:          resolveDataDir(),
		ListenAddr:       viper.GetString(KeyListenAddr),
		MaxInputChars:    viper.GetInt(KeyMaxInputChars),
		MaxQueryChars:    viper.GetInt(KeyMaxQueryChars),
		SearchLimit:      viper.GetInt(KeySearchLimit),
		RunTimeout:       time.Duration(viper.GetInt(KeyRunTimeoutSec)) * time.Second,
		TokenLimit:       viper.GetInt(KeyTokenLimit),
		MaxConcurrent:    viper.GetInt(KeyMaxConcurrent),
		SessionTTL:       time.Duration(viper.GetInt(KeySessionTTLMin)) * time.Minute,
		SearchQPS:        viper.GetInt(KeySearchQPS),
		MaxSearchResults: viper.GetInt(KeyMaxSearchResults),
		SearchProvider:   viper.GetString(KeySearchProvider),
		SerperAPIKey:     viper.GetString(KeySerperAPIKey),
		SerpAPIKey:       viper.GetString(KeySerpAPIKey),
		OpenAIAPIKey:     viper.GetString(KeyOpenAIAPIKey),
		OpenAIBaseURL:    viper.GetString(KeyOpenAIBaseURL),
		Model:            viper.GetString(KeyModel),
		PrimaryDomains:   viper.GetStringSlice(KeyPrimaryDomains),
		PatternsFile:     viper.GetString(KeyPatternsFile),
		MaxAgentSteps:    viper.GetInt(KeyMaxAgentSteps),
		AuditDisabled:    viper.GetBool(KeyAuditDisabled),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".aivet"
	}
	return filepath.Join(home, ".aivet")
}

func (c *Config) validate() error {
	if c.MaxInputChars <= 0 {
		return fmt.Errorf("max_input_chars must be positive")
	}
	if c.SearchLimit <= 0 {
		return fmt.Errorf("search_limit must be positive")
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("run_timeout_seconds must be positive")
	}
	if c.TokenLimit <= 0 {
		return fmt.Errorf("token_limit must be positive")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent_runs must be positive")
	}
	if c.MaxAgentSteps <= 0 {
		return fmt.Errorf("max_agent_steps must be positive")
	}
	switch c.SearchProvider {
	case "", "serper", "serpapi":
	default:
		return fmt.Errorf("search_provider must be serper or serpapi, got %q", c.SearchProvider)
	}
	return nil
}
