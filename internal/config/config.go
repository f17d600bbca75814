// Package config loads the lazyfeed TOML configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Sternrassler/lazyload/pkg/loader"
	"github.com/Sternrassler/lazyload/pkg/logging"
	"github.com/Sternrassler/lazyload/pkg/ratelimit"
	"github.com/Sternrassler/lazyload/pkg/search"
	"github.com/Sternrassler/lazyload/pkg/trigger"
)

// Trigger kinds accepted in [feed].trigger.
const (
	TriggerScroll   = "scroll"
	TriggerSentinel = "sentinel"
)

// Duration is a time.Duration written as a Go duration string ("500ms").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the lazyfeed configuration.
type Config struct {
	Source    SourceConfig    `toml:"source"`
	Feed      FeedConfig      `toml:"feed"`
	Retry     RetryConfig     `toml:"retry"`
	Breaker   BreakerConfig   `toml:"breaker"`
	Cache     CacheConfig     `toml:"cache"`
	RateLimit RateLimitConfig `toml:"ratelimit"`
	Prefetch  PrefetchConfig  `toml:"prefetch"`
	Log       LogConfig       `toml:"log"`
}

// SourceConfig describes the paged HTTP endpoint.
type SourceConfig struct {
	BaseURL    string   `toml:"base_url"`
	Endpoint   string   `toml:"endpoint"`
	PageParam  string   `toml:"page_param"`
	QueryParam string   `toml:"query_param"`
	UserAgent  string   `toml:"user_agent"`
	Timeout    Duration `toml:"timeout"`
}

// FeedConfig holds the pagination and trigger settings.
type FeedConfig struct {
	Trigger       string   `toml:"trigger"`
	Tolerance     int      `toml:"tolerance"`
	Quiet         Duration `toml:"quiet"`
	TotalPages    int      `toml:"total_pages"`
	MaxHeight     int      `toml:"max_height"`
	InitialSearch string   `toml:"initial_search"`
}

// RetryClass is the backoff of one error class.
type RetryClass struct {
	MaxAttempts    int      `toml:"max_attempts"`
	InitialBackoff Duration `toml:"initial_backoff"`
	MaxBackoff     Duration `toml:"max_backoff"`
	Multiplier     float64  `toml:"multiplier"`
}

// RetryConfig holds the per-class retry settings.
type RetryConfig struct {
	Server    RetryClass `toml:"server"`
	RateLimit RetryClass `toml:"rate_limit"`
	Network   RetryClass `toml:"network"`
}

// BreakerConfig holds the circuit breaker settings.
type BreakerConfig struct {
	MaxRequests  uint32   `toml:"max_requests"`
	Interval     Duration `toml:"interval"`
	Timeout      Duration `toml:"timeout"`
	MinRequests  uint32   `toml:"min_requests"`
	FailureRatio float64  `toml:"failure_ratio"`
}

// CacheConfig holds the Redis page cache settings.
type CacheConfig struct {
	Enabled  bool     `toml:"enabled"`
	Addr     string   `toml:"addr"`
	Password string   `toml:"password,omitempty"`
	DB       int      `toml:"db"`
	TTL      Duration `toml:"ttl"`
}

// RateLimitConfig holds the request budget thresholds. With Shared the
// budget is kept in Redis (requires the cache connection).
type RateLimitConfig struct {
	Enabled       bool     `toml:"enabled"`
	Shared        bool     `toml:"shared"`
	Critical      int      `toml:"critical"`
	Warning       int      `toml:"warning"`
	Healthy       int      `toml:"healthy"`
	ThrottleDelay Duration `toml:"throttle_delay"`
}

// PrefetchConfig holds the look-ahead settings.
type PrefetchConfig struct {
	Pages          int      `toml:"pages"`
	MaxConcurrency int      `toml:"max_concurrency"`
	Timeout        Duration `toml:"timeout"`
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
	File   string `toml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	src := loader.DefaultConfig("http://localhost:8080")
	retry := loader.DefaultRetryPolicy()
	breaker := loader.DefaultBreakerConfig()
	rl := ratelimit.DefaultConfig()
	warm := loader.DefaultWarmConfig()

	return &Config{
		Source: SourceConfig{
			BaseURL:    src.BaseURL,
			Endpoint:   src.Endpoint,
			PageParam:  src.PageParam,
			QueryParam: src.QueryParam,
			UserAgent:  src.UserAgent,
			Timeout:    Duration(src.Timeout),
		},
		Feed: FeedConfig{
			Trigger:    TriggerSentinel,
			Tolerance:  trigger.DefaultTolerance,
			Quiet:      Duration(search.DefaultQuietPeriod),
			TotalPages: 1,
			MaxHeight:  20,
		},
		Retry: RetryConfig{
			Server:    retryClass(retry.Server),
			RateLimit: retryClass(retry.RateLimit),
			Network:   retryClass(retry.Network),
		},
		Breaker: BreakerConfig{
			MaxRequests:  breaker.MaxRequests,
			Interval:     Duration(breaker.Interval),
			Timeout:      Duration(breaker.Timeout),
			MinRequests:  breaker.MinRequests,
			FailureRatio: breaker.FailureRatio,
		},
		Cache: CacheConfig{
			Addr: "localhost:6379",
			TTL:  Duration(loader.DefaultCacheTTL),
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			Critical:      rl.Thresholds.Critical,
			Warning:       rl.Thresholds.Warning,
			Healthy:       rl.Thresholds.Healthy,
			ThrottleDelay: Duration(rl.ThrottleDelay),
		},
		Prefetch: PrefetchConfig{
			MaxConcurrency: warm.MaxConcurrency,
			Timeout:        Duration(warm.Timeout),
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

func retryClass(c loader.RetryConfig) RetryClass {
	return RetryClass{
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: Duration(c.InitialBackoff),
		MaxBackoff:     Duration(c.MaxBackoff),
		Multiplier:     c.BackoffMultiplier,
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "lazyfeed", "config.toml")
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Source.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("source.base_url: %q is not an absolute URL", c.Source.BaseURL)
	}
	if c.Source.Endpoint == "" {
		return errors.New("source.endpoint is required")
	}
	if c.Source.Timeout <= 0 {
		return errors.New("source.timeout must be positive")
	}
	switch c.Feed.Trigger {
	case TriggerScroll, TriggerSentinel:
	default:
		return fmt.Errorf("feed.trigger: unknown trigger %q (want %q or %q)", c.Feed.Trigger, TriggerScroll, TriggerSentinel)
	}
	if c.Feed.Tolerance < 0 {
		return errors.New("feed.tolerance must not be negative")
	}
	if c.Feed.Quiet < 0 {
		return errors.New("feed.quiet must not be negative")
	}
	if c.Feed.TotalPages < 1 {
		return errors.New("feed.total_pages must be at least 1")
	}
	for name, rc := range map[string]RetryClass{
		"server":     c.Retry.Server,
		"rate_limit": c.Retry.RateLimit,
		"network":    c.Retry.Network,
	} {
		if rc.MaxAttempts < 1 {
			return fmt.Errorf("retry.%s.max_attempts must be at least 1", name)
		}
	}
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		return errors.New("breaker.failure_ratio must be in (0, 1]")
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return errors.New("cache.addr is required when the cache is enabled")
	}
	if c.RateLimit.Shared && !c.Cache.Enabled {
		return errors.New("ratelimit.shared requires the redis cache to be enabled")
	}
	if c.RateLimit.Enabled && !(c.RateLimit.Critical < c.RateLimit.Warning && c.RateLimit.Warning <= c.RateLimit.Healthy) {
		return errors.New("ratelimit thresholds must satisfy critical < warning <= healthy")
	}
	if c.Prefetch.Pages < 0 {
		return errors.New("prefetch.pages must not be negative")
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	return nil
}

// LoaderConfig converts the source, retry and breaker sections.
func (c *Config) LoaderConfig() loader.Config {
	return loader.Config{
		BaseURL:    c.Source.BaseURL,
		Endpoint:   c.Source.Endpoint,
		PageParam:  c.Source.PageParam,
		QueryParam: c.Source.QueryParam,
		UserAgent:  c.Source.UserAgent,
		Timeout:    c.Source.Timeout.Std(),
		Retry: loader.RetryPolicy{
			Server:    c.Retry.Server.loader(),
			RateLimit: c.Retry.RateLimit.loader(),
			Network:   c.Retry.Network.loader(),
		},
		Breaker: loader.BreakerConfig{
			MaxRequests:  c.Breaker.MaxRequests,
			Interval:     c.Breaker.Interval.Std(),
			Timeout:      c.Breaker.Timeout.Std(),
			MinRequests:  c.Breaker.MinRequests,
			FailureRatio: c.Breaker.FailureRatio,
		},
	}
}

func (r RetryClass) loader() loader.RetryConfig {
	return loader.RetryConfig{
		MaxAttempts:       r.MaxAttempts,
		InitialBackoff:    r.InitialBackoff.Std(),
		MaxBackoff:        r.MaxBackoff.Std(),
		BackoffMultiplier: r.Multiplier,
	}
}

// RateLimitTrackerConfig converts the ratelimit section.
func (c *Config) RateLimitTrackerConfig() ratelimit.Config {
	return ratelimit.Config{
		Thresholds: ratelimit.Thresholds{
			Critical: c.RateLimit.Critical,
			Warning:  c.RateLimit.Warning,
			Healthy:  c.RateLimit.Healthy,
		},
		ThrottleDelay: c.RateLimit.ThrottleDelay.Std(),
	}
}

// WarmConfig converts the prefetch section.
func (c *Config) WarmConfig() loader.WarmConfig {
	return loader.WarmConfig{
		MaxConcurrency: c.Prefetch.MaxConcurrency,
		Timeout:        c.Prefetch.Timeout.Std(),
	}
}

// LoggingConfig converts the log section.
func (c *Config) LoggingConfig() logging.Config {
	level, _ := logging.ParseLevel(c.Log.Level)
	return logging.Config{
		Level:  level,
		Pretty: c.Log.Pretty,
		File:   c.Log.File,
	}
}
