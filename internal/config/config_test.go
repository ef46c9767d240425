package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
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

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultMaxInputChars, cfg.MaxInputChars)
	assert.Equal(t, DefaultSearchLimit, cfg.SearchLimit)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.False(t, cfg.AuditDisabled)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("AIVET_SEARCH_LIMIT", "5")
	t.Setenv("AIVET_MODEL", "gpt-4o")
	t.Setenv("AIVET_DATA_DIR", "/tmp/aivet-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.SearchLimit)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, "/tmp/aivet-test", cfg.DataDir)
	assert.Equal(t, filepath.Join("/tmp/aivet-test", "audit.db"), cfg.AuditDBPath())
}

func TestLoad_RejectsNonPositiveSearchLimit(t *testing.T) {
	resetViper(t)
	t.Setenv("AIVET_SEARCH_LIMIT", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search_limit must be positive")
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	resetViper(t)
	t.Setenv("AIVET_SEARCH_PROVIDER", "bing")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search_provider")
}
