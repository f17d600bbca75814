// Package metrics exposes the Prometheus registry the lazyload packages
// register with. All metrics are defined in their owning packages
// (pagination, search, loader, cache, ratelimit) via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by lazyload.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics registered with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Names lists every metric lazyload defines.
var Names = []string{
	"lazyload_pages_committed_total",
	"lazyload_advance_skipped_total",
	"lazyload_load_failures_total",
	"lazyload_load_duration_seconds",
	"lazyload_resets_total",
	"lazyload_search_edits_total",
	"lazyload_search_loads_total",
	"lazyload_http_requests_total",
	"lazyload_http_request_duration_seconds",
	"lazyload_http_errors_total",
	"lazyload_breaker_transitions_total",
	"lazyload_retries_total",
	"lazyload_retry_backoff_seconds",
	"lazyload_retry_exhausted_total",
	"lazyload_cache_hits_total",
	"lazyload_cache_misses_total",
	"lazyload_cache_errors_total",
	"lazyload_cache_invalidated_total",
	"lazyload_ratelimit_remaining",
	"lazyload_ratelimit_blocks_total",
	"lazyload_ratelimit_throttles_total",
}

// Metrics Documentation
//
// Store Metrics (pkg/pagination):
//   - lazyload_pages_committed_total (Counter): Pages committed to stores
//   - lazyload_advance_skipped_total{reason} (Counter): Advance no-ops (out_of_range, suppressed, stale)
//   - lazyload_load_failures_total{kind} (Counter): Loader failures (load, decode)
//   - lazyload_load_duration_seconds (Histogram): Duration of loads dispatched by Advance
//   - lazyload_resets_total (Counter): Store resets
//
// Search Metrics (pkg/search):
//   - lazyload_search_edits_total (Counter): Term edits received
//   - lazyload_search_loads_total{result} (Counter): Debounced loads (committed, failed, stale)
//
// Request Metrics (pkg/loader):
//   - lazyload_http_requests_total{endpoint, status} (Counter): Page requests by endpoint and HTTP status
//   - lazyload_http_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - lazyload_http_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - lazyload_breaker_transitions_total{to} (Counter): Circuit breaker state changes
//   - lazyload_retries_total{error_class} (Counter): Retry attempts
//   - lazyload_retry_backoff_seconds{error_class} (Histogram): Backoff durations
//   - lazyload_retry_exhausted_total{error_class} (Counter): Requests that exhausted retries
//
// Cache Metrics (pkg/cache):
//   - lazyload_cache_hits_total / lazyload_cache_misses_total (Counter)
//   - lazyload_cache_errors_total{operation} (Counter): Redis errors by operation
//   - lazyload_cache_invalidated_total (Counter): Entries removed by Invalidate
//
// Rate Limit Metrics (pkg/ratelimit):
//   - lazyload_ratelimit_remaining (Gauge): Requests remaining in the window
//   - lazyload_ratelimit_blocks_total (Counter): Requests blocked at critical budget
//   - lazyload_ratelimit_throttles_total (Counter): Requests delayed at low budget
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(lazyload_cache_hits_total[5m])) /
//   (sum(rate(lazyload_cache_hits_total[5m])) + sum(rate(lazyload_cache_misses_total[5m])))
//
//   # Suppressed advances (scroll storms)
//   rate(lazyload_advance_skipped_total{reason="suppressed"}[5m])
//
//   # P95 Page Load Latency
//   histogram_quantile(0.95, rate(lazyload_load_duration_seconds_bucket[5m]))
