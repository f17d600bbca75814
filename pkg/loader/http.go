package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/Sternrassler/lazyload/pkg/ratelimit"
)

// Prometheus metrics for HTTP page requests.
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lazyload_http_requests_total",
		Help: "Total page requests by endpoint and status",
	}, []string{"endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lazyload_http_request_duration_seconds",
		Help:    "Page request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lazyload_http_errors_total",
		Help: "Total page request errors by class",
	}, []string{"class"})

	breakerTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lazyload_breaker_transitions_total",
		Help: "Circuit breaker state changes by target state",
	}, []string{"to"})
)

// BreakerConfig configures the circuit breaker around page requests.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32

	// Interval after which closed-state counts are cleared (0 = never).
	Interval time.Duration

	// Timeout is how long the breaker stays open.
	Timeout time.Duration

	// MinRequests before the failure ratio is considered.
	MinRequests uint32

	// FailureRatio at or above which the breaker opens.
	FailureRatio float64
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  1,
		Interval:     30 * time.Second,
		Timeout:      10 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

// Config holds the HTTP source configuration.
type Config struct {
	// BaseURL of the source, e.g. "http://localhost:8080"
	BaseURL string

	// Endpoint is the listing path, e.g. "/items"
	Endpoint string

	// PageParam and QueryParam name the query parameters (default "page", "search").
	PageParam  string
	QueryParam string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per request attempt.
	Timeout time.Duration

	Retry   RetryPolicy
	Breaker BreakerConfig

	// RateLimiter gates requests on the budget reported by the source (optional).
	RateLimiter *ratelimit.Tracker

	// Logger (default: disabled).
	Logger *zerolog.Logger
}

// DefaultConfig returns a configuration for baseURL with the default
// parameters, retry policy and breaker.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Endpoint:   "/items",
		PageParam:  "page",
		QueryParam: "search",
		UserAgent:  "lazyload/0.1.0",
		Timeout:    15 * time.Second,
		Retry:      DefaultRetryPolicy(),
		Breaker:    DefaultBreakerConfig(),
	}
}

// HTTPSource loads pages from a paged JSON endpoint.
type HTTPSource[T any] struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	decoder    Decoder[T]
	loader     Loader[T]
	config     Config
	logger     zerolog.Logger
}

// NewHTTPSource creates a source. A nil decoder selects JSONDecoder.
func NewHTTPSource[T any](cfg Config, decoder Decoder[T]) (*HTTPSource[T], error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.PageParam == "" {
		cfg.PageParam = "page"
	}
	if cfg.QueryParam == "" {
		cfg.QueryParam = "search"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Breaker == (BreakerConfig{}) {
		cfg.Breaker = DefaultBreakerConfig()
	}
	if decoder == nil {
		decoder = JSONDecoder[T]{}
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "http-source").Str("endpoint", cfg.Endpoint).Logger()
	}

	s := &HTTPSource[T]{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		decoder:    decoder,
		config:     cfg,
		logger:     logger,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Endpoint,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.Breaker.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.Breaker.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerTransitionsTotal.WithLabelValues(to.String()).Inc()
			ev := logger.Warn()
			if to == gobreaker.StateOpen {
				ev = logger.Error()
			}
			ev.Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})
	s.loader = Decoded[T](s.Fetch, decoder)
	return s, nil
}

// Load implements Loader.
func (s *HTTPSource[T]) Load(ctx context.Context, req Request) (Result[T], error) {
	return s.loader.Load(ctx, req)
}

// URL returns the request URL for req.
func (s *HTTPSource[T]) URL(req Request) string {
	q := url.Values{}
	q.Set(s.config.PageParam, strconv.Itoa(req.Page))
	if req.Query != "" {
		q.Set(s.config.QueryParam, req.Query)
	}
	return strings.TrimRight(s.config.BaseURL, "/") + s.config.Endpoint + "?" + q.Encode()
}

// Fetch performs the page request with rate limiting, retries and the
// circuit breaker. The returned response has a 2xx or 4xx status; the
// caller closes its body.
func (s *HTTPSource[T]) Fetch(ctx context.Context, req Request) (*http.Response, error) {
	endpoint := s.config.Endpoint
	startTime := time.Now()
	defer func() {
		httpRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	s.logger.Debug().Stringer("request", req).Msg("Fetching page")

	var resp *http.Response
	err := retryWithBackoff(ctx, s.config.Retry, s.logger, func() error {
		if s.config.RateLimiter != nil {
			if err := s.config.RateLimiter.Allow(ctx); err != nil {
				httpRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
				return err
			}
		}

		out, err := s.breaker.Execute(func() (interface{}, error) {
			return s.attempt(ctx, req)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			httpRequestsTotal.WithLabelValues(endpoint, "circuit_open").Inc()
			return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		if err != nil {
			return err
		}
		resp = out.(*http.Response)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *HTTPSource[T]) attempt(ctx context.Context, req Request) (*http.Response, error) {
	endpoint := s.config.Endpoint
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(req), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", s.config.UserAgent)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		httpErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		httpRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		s.logger.Warn().Err(err).Stringer("request", req).Msg("HTTP request failed")
		return nil, err
	}

	if s.config.RateLimiter != nil {
		if err := s.config.RateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	status := strconv.Itoa(resp.StatusCode)
	httpRequestsTotal.WithLabelValues(endpoint, status).Inc()

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		httpErrorsTotal.WithLabelValues(string(class)).Inc()
		s.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Stringer("request", req).
			Msg("Page request error")

		if class == ErrorClassClient {
			// Not retried; the caller reports the status.
			return resp, nil
		}
		resp.Body.Close()
		return nil, &HTTPError{StatusCode: resp.StatusCode, Class: class, Message: resp.Status}
	}
	return resp, nil
}

// BreakerState returns the circuit breaker state.
func (s *HTTPSource[T]) BreakerState() gobreaker.State {
	return s.breaker.State()
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (s *HTTPSource[T]) SetHTTPClient(client *http.Client) {
	s.httpClient = client
}
