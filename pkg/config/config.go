// Package config loads and validates the plugin configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultBaseURL is the production Chutes API endpoint
const DefaultBaseURL = "https://api.chutes.ai"

// placeholderKeys are values people paste from docs without replacing.
var placeholderKeys = map[string]bool{
	"your_api_key": true,
	"your-api-key": true,
	"api_key_here": true,
	"changeme":     true,
	"xxxxxxxx":     true,
}

// Config holds the plugin configuration
type Config struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Retries           int           `mapstructure:"retries"`
	FallbackEndpoints []string      `mapstructure:"fallback_endpoints"`
}

// Load reads configuration from the environment with defaults applied.
// CHUTES_API_KEY is required; CHUTES_API_BASE_URL optionally overrides
// the production endpoint.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("retries", 3)
	v.SetDefault("fallback_endpoints", []string{})

	// Bind errors only occur with no key-or-env argument, so they are
	// not reachable here.
	_ = v.BindEnv("api_key", "CHUTES_API_KEY")
	_ = v.BindEnv("base_url", "CHUTES_API_BASE_URL")
	_ = v.BindEnv("timeout", "CHUTES_TIMEOUT")
	_ = v.BindEnv("retries", "CHUTES_RETRIES")
	_ = v.BindEnv("fallback_endpoints", "CHUTES_FALLBACK_ENDPOINTS")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	// The env var holds a comma-separated list.
	if raw := v.GetString("fallback_endpoints"); raw != "" {
		cfg.FallbackEndpoints = splitAndTrim(raw)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for usable values
func (c *Config) Validate() error {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		return fmt.Errorf("CHUTES_API_KEY is required")
	}
	if len(key) < 8 || placeholderKeys[strings.ToLower(key)] {
		return fmt.Errorf("CHUTES_API_KEY does not look like a real API key")
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base URL %q must be an http(s) URL", c.BaseURL)
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	return nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
