package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/lazyload/pkg/logging"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, TriggerSentinel, cfg.Feed.Trigger)
	assert.Equal(t, 25, cfg.Feed.Tolerance)
	assert.Equal(t, 500*time.Millisecond, cfg.Feed.Quiet.Std())
	assert.Equal(t, "/items", cfg.Source.Endpoint)
	assert.False(t, cfg.Cache.Enabled)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[source]
base_url = "https://api.example.com"
endpoint = "/v1/products"
timeout = "3s"

[feed]
trigger = "scroll"
tolerance = 40
quiet = "250ms"
initial_search = "lamp"

[retry.server]
max_attempts = 5

[cache]
enabled = true
ttl = "1m"

[log]
level = "debug"
file = "/tmp/lazyfeed.log"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Source.BaseURL)
	assert.Equal(t, "/v1/products", cfg.Source.Endpoint)
	assert.Equal(t, "page", cfg.Source.PageParam)
	assert.Equal(t, 3*time.Second, cfg.Source.Timeout.Std())
	assert.Equal(t, TriggerScroll, cfg.Feed.Trigger)
	assert.Equal(t, 40, cfg.Feed.Tolerance)
	assert.Equal(t, 250*time.Millisecond, cfg.Feed.Quiet.Std())
	assert.Equal(t, "lamp", cfg.Feed.InitialSearch)
	assert.Equal(t, 5, cfg.Retry.Server.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.Server.InitialBackoff.Std())
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Cache.Addr)
	assert.Equal(t, time.Minute, cfg.Cache.TTL.Std())

	lc := cfg.LoggingConfig()
	assert.Equal(t, logging.LevelDebug, lc.Level)
	assert.Equal(t, "/tmp/lazyfeed.log", lc.File)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed toml", "[source\nbase_url = 1"},
		{"bad duration", "[feed]\nquiet = \"soon\""},
		{"invalid value", "[feed]\ntrigger = \"click\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestSave_ThenLoad(t *testing.T) {
	cfg := Default()
	cfg.Source.BaseURL = "https://items.example.org"
	cfg.Feed.MaxHeight = 32
	cfg.Prefetch.Pages = 2
	cfg.Breaker.Timeout = Duration(45 * time.Second)

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative base url", func(c *Config) { c.Source.BaseURL = "/items" }},
		{"empty endpoint", func(c *Config) { c.Source.Endpoint = "" }},
		{"zero timeout", func(c *Config) { c.Source.Timeout = 0 }},
		{"unknown trigger", func(c *Config) { c.Feed.Trigger = "hover" }},
		{"negative tolerance", func(c *Config) { c.Feed.Tolerance = -1 }},
		{"zero total pages", func(c *Config) { c.Feed.TotalPages = 0 }},
		{"no retry attempts", func(c *Config) { c.Retry.Network.MaxAttempts = 0 }},
		{"failure ratio above one", func(c *Config) { c.Breaker.FailureRatio = 1.5 }},
		{"cache without addr", func(c *Config) { c.Cache.Enabled = true; c.Cache.Addr = "" }},
		{"shared budget without cache", func(c *Config) { c.RateLimit.Shared = true }},
		{"thresholds out of order", func(c *Config) { c.RateLimit.Critical = 30 }},
		{"negative prefetch", func(c *Config) { c.Prefetch.Pages = -2 }},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoaderConfig(t *testing.T) {
	cfg := Default()
	cfg.Source.QueryParam = "q"
	cfg.Retry.RateLimit.MaxAttempts = 6

	lc := cfg.LoaderConfig()
	assert.Equal(t, "http://localhost:8080", lc.BaseURL)
	assert.Equal(t, "q", lc.QueryParam)
	assert.Equal(t, 15*time.Second, lc.Timeout)
	assert.Equal(t, 6, lc.Retry.RateLimit.MaxAttempts)
	assert.Equal(t, 5*time.Second, lc.Retry.RateLimit.InitialBackoff)
	assert.Equal(t, 0.6, lc.Breaker.FailureRatio)

	rl := cfg.RateLimitTrackerConfig()
	assert.Equal(t, 5, rl.Thresholds.Critical)
	assert.Equal(t, time.Second, rl.ThrottleDelay)

	wc := cfg.WarmConfig()
	assert.Equal(t, 4, wc.MaxConcurrency)
}
