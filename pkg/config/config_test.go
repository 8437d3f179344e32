package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("CHUTES_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHUTES_API_KEY")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHUTES_API_KEY", "cpk_live_0123456789")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retries)
	assert.Empty(t, cfg.FallbackEndpoints)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHUTES_API_KEY", "cpk_live_0123456789")
	t.Setenv("CHUTES_API_BASE_URL", "https://staging.chutes.ai")
	t.Setenv("CHUTES_TIMEOUT", "5s")
	t.Setenv("CHUTES_RETRIES", "1")
	t.Setenv("CHUTES_FALLBACK_ENDPOINTS", "https://b.chutes.ai, https://c.chutes.ai")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://staging.chutes.ai", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 1, cfg.Retries)
	assert.Equal(t, []string{"https://b.chutes.ai", "https://c.chutes.ai"}, cfg.FallbackEndpoints)
}

func TestValidateRejectsPlaceholderKeys(t *testing.T) {
	for _, key := range []string{"your_api_key", "YOUR-API-KEY", "changeme", "short"} {
		cfg := &Config{APIKey: key}
		err := cfg.Validate()
		require.Error(t, err, "key %q should be rejected", key)
		assert.Contains(t, err.Error(), "API key")
	}
}

func TestValidateRejectsNonHTTPBaseURL(t *testing.T) {
	cfg := &Config{APIKey: "cpk_live_0123456789", BaseURL: "ftp://api.chutes.ai"}
	assert.Error(t, cfg.Validate())
}

func TestValidateFillsZeroValues(t *testing.T) {
	cfg := &Config{APIKey: "cpk_live_0123456789", Timeout: -1, Retries: -2}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 0, cfg.Retries)
}
