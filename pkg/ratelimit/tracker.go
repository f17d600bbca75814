package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrBudgetExhausted is returned by Allow when the remaining budget is critical.
var ErrBudgetExhausted = errors.New("rate limit budget exhausted")

// Prometheus metrics for rate limit tracking.
var (
	budgetRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lazyload_ratelimit_remaining",
		Help: "Requests remaining in the current source rate limit window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lazyload_ratelimit_blocks_total",
		Help: "Total number of requests blocked due to critical budget",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lazyload_ratelimit_throttles_total",
		Help: "Total number of requests throttled due to low budget",
	})
)

// Config configures a Tracker.
type Config struct {
	Thresholds Thresholds

	// ThrottleDelay is how long Allow waits when the budget is low (default 1s).
	ThrottleDelay time.Duration
}

// DefaultConfig returns the default thresholds and a one second throttle.
func DefaultConfig() Config {
	return Config{
		Thresholds:    DefaultThresholds(),
		ThrottleDelay: time.Second,
	}
}

// Tracker monitors a source's request budget and gates requests.
type Tracker struct {
	store  StateStore
	config Config
	logger zerolog.Logger
}

// NewTracker creates a tracker backed by store.
func NewTracker(store StateStore, cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	if cfg.ThrottleDelay < 0 {
		cfg.ThrottleDelay = 0
	}
	return &Tracker{
		store:  store,
		config: cfg,
		logger: logger.With().Str("component", "ratelimit").Logger(),
	}
}

// GetState returns the stored state, or DefaultState when no response has
// reported a budget yet.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	state, err := t.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		t.logger.Debug().Msg("No rate limit state stored, assuming healthy")
		return DefaultState(), nil
	}
	state.UpdateHealth(t.config.Thresholds)
	return state, nil
}

// UpdateFromHeaders records the budget reported by a response. Responses
// without the headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderReset)
	}
	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	now := time.Now()
	state := &State{
		Remaining:  remain,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}
	state.UpdateHealth(t.config.Thresholds)

	if err := t.store.Save(ctx, state); err != nil {
		return err
	}
	budgetRemaining.Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock(t.config.Thresholds):
		t.logger.Error().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit CRITICAL - requests will be blocked")
	case state.NeedsThrottling(t.config.Thresholds):
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Bool("is_healthy", state.IsHealthy).
			Msg("Rate limit state updated")
	}
	return nil
}

// Allow gates one request. It returns ErrBudgetExhausted while the budget
// is critical and waits ThrottleDelay while it is low.
func (t *Tracker) Allow(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock(t.config.Thresholds) {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Rate limit critical - blocking request")
		rateLimitBlocksTotal.Inc()
		return fmt.Errorf("%w: resets in %v", ErrBudgetExhausted, state.TimeUntilReset().Round(time.Second))
	}

	if state.NeedsThrottling(t.config.Thresholds) && t.config.ThrottleDelay > 0 {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("delay", t.config.ThrottleDelay).
			Msg("Rate limit warning - throttling request")
		rateLimitThrottlesTotal.Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.config.ThrottleDelay):
		}
	}
	return nil
}
