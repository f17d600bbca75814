package loader

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lazyload_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lazyload_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lazyload_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the backoff settings of one error class.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// backoff returns the wait after the given failed attempt (1-based).
func (c RetryConfig) backoff(attempt int) time.Duration {
	d := float64(c.InitialBackoff)
	mult := c.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	for i := 1; i < attempt; i++ {
		d *= mult
		if c.MaxBackoff > 0 && d >= float64(c.MaxBackoff) {
			return c.MaxBackoff
		}
	}
	return time.Duration(d)
}

// RetryPolicy maps retryable error classes to their backoff settings.
type RetryPolicy struct {
	Server    RetryConfig
	RateLimit RetryConfig
	Network   RetryConfig
}

// DefaultRetryPolicy returns the default per-class policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		// 5xx - shorter backoff
		Server: RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
		},
		// 429 - longer backoff
		RateLimit: RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    5 * time.Second,
			MaxBackoff:        60 * time.Second,
			BackoffMultiplier: 2.0,
		},
		// network - medium backoff
		Network: RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    2 * time.Second,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2.0,
		},
	}
}

// NoRetry disables retries for every class.
func NoRetry() RetryPolicy {
	one := RetryConfig{MaxAttempts: 1}
	return RetryPolicy{Server: one, RateLimit: one, Network: one}
}

// ForClass returns the settings for class; ok is false for classes that
// are never retried.
func (p RetryPolicy) ForClass(class ErrorClass) (cfg RetryConfig, ok bool) {
	if !shouldRetry(class) {
		return RetryConfig{}, false
	}
	switch class {
	case ErrorClassServer:
		return p.Server, true
	case ErrorClassRateLimit:
		return p.RateLimit, true
	default:
		return p.Network, true
	}
}

// retryWithBackoff runs fn until it succeeds, fails with a class that is
// not retried, or the attempts of the failing class are used up. Waits use
// exponential backoff with ±20% jitter and end early when ctx is done.
func retryWithBackoff(ctx context.Context, policy RetryPolicy, logger zerolog.Logger, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("Request succeeded after retry")
			}
			return nil
		}

		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		}

		class := ClassOf(err)
		cfg, ok := policy.ForClass(class)
		if !ok {
			return err
		}

		if attempt >= cfg.MaxAttempts {
			retryExhaustedTotal.WithLabelValues(string(class)).Inc()
			logger.Error().
				Err(err).
				Str("error_class", string(class)).
				Int("max_attempts", cfg.MaxAttempts).
				Msg("Retry attempts exhausted")
			return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, err)
		}

		retriesTotal.WithLabelValues(string(class)).Inc()

		jitter := time.Duration(float64(cfg.backoff(attempt)) * (0.8 + rand.Float64()*0.4))
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(jitter.Seconds())

		logger.Warn().
			Err(err).
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			logger.Warn().
				Str("error_class", string(class)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
		}
	}
}
