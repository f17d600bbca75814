// Command pagesrv serves a generated item catalog as a paged JSON listing.
// It is the demo and test backend for lazyfeed.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/lazyload/internal/catalog"
	"github.com/Sternrassler/lazyload/pkg/loader"
	"github.com/Sternrassler/lazyload/pkg/logging"
	"github.com/Sternrassler/lazyload/pkg/metrics"
	"github.com/Sternrassler/lazyload/pkg/ratelimit"
)

var servedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pagesrv_requests_total",
	Help: "Listing requests served by status",
}, []string{"status"})

func main() {
	port := getEnv("PORT", "8080")
	items := getEnvInt("ITEMS", 500)
	perPage := getEnvInt("PER_PAGE", 20)
	prefix := getEnv("ITEM_PREFIX", "item")
	latency := getEnvDuration("LATENCY", 0)
	limit := getEnvInt("RATE_LIMIT", 0)
	window := getEnvDuration("RATE_WINDOW", time.Minute)

	level, _ := logging.ParseLevel(getEnv("LOG_LEVEL", "info"))
	logger, closer, err := logging.Setup(logging.Config{
		Level:  level,
		Pretty: getEnv("LOG_PRETTY", "") != "",
		Output: os.Stderr,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	srv := &server{
		catalog: catalog.New(catalog.Generate(prefix, items), perPage),
		latency: latency,
		logger:  logger.With().Str("component", "pagesrv").Logger(),
	}
	if limit > 0 {
		srv.budget = newBudget(limit, window)
	}

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			srv.logger.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	srv.logger.Info().
		Str("addr", httpServer.Addr).
		Int("items", items).
		Int("per_page", perPage).
		Int("rate_limit", limit).
		Msg("Starting page server")

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		srv.logger.Error().Err(err).Msg("Server failed")
		os.Exit(1)
	}
	srv.logger.Info().Msg("Page server stopped")
}

type server struct {
	catalog *catalog.Catalog
	budget  *budget
	latency time.Duration
	logger  zerolog.Logger
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/items", s.itemsHandler)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) itemsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.fail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.budget != nil {
		remaining, reset, ok := s.budget.take(time.Now())
		w.Header().Set(ratelimit.HeaderRemaining, strconv.Itoa(remaining))
		w.Header().Set(ratelimit.HeaderReset, strconv.Itoa(int(reset.Seconds())))
		if !ok {
			s.fail(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
	}

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		s.fail(w, http.StatusBadRequest, "invalid page")
		return
	}
	query := r.URL.Query().Get("search")

	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-r.Context().Done():
			return
		}
	}

	items, total := s.catalog.Page(page, query)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set(loader.HeaderTotalPages, strconv.Itoa(total))
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(items); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}

	servedTotal.WithLabelValues(strconv.Itoa(http.StatusOK)).Inc()
	s.logger.Debug().
		Int("page", page).
		Str("query", query).
		Int("items", len(items)).
		Int("total_pages", total).
		Msg("Served page")
}

func (s *server) fail(w http.ResponseWriter, status int, msg string) {
	servedTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// budget is a fixed-window request allowance.
type budget struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	used    int
	resetAt time.Time
}

func newBudget(limit int, window time.Duration) *budget {
	return &budget{limit: limit, window: window}
}

// take consumes one request. It returns the budget left after the request
// and the time until the window resets.
func (b *budget) take(now time.Time) (remaining int, reset time.Duration, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !now.Before(b.resetAt) {
		b.used = 0
		b.resetAt = now.Add(b.window)
	}
	reset = b.resetAt.Sub(now)
	if b.used >= b.limit {
		return 0, reset, false
	}
	b.used++
	return b.limit - b.used, reset, true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}
