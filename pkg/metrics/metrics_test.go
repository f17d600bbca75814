package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/Sternrassler/lazyload/pkg/cache"
	_ "github.com/Sternrassler/lazyload/pkg/loader"
	_ "github.com/Sternrassler/lazyload/pkg/pagination"
	_ "github.com/Sternrassler/lazyload/pkg/ratelimit"
	_ "github.com/Sternrassler/lazyload/pkg/search"
)

func TestRegistry(t *testing.T) {
	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
	if Gatherer != prometheus.DefaultGatherer {
		t.Error("Gatherer should be the default Prometheus gatherer")
	}
}

func TestNamesAreRegistered(t *testing.T) {
	families, err := Gatherer.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	gathered := make(map[string]bool, len(families))
	for _, mf := range families {
		gathered[mf.GetName()] = true
	}

	// Vectors only show up once a label set was used; the plain metrics
	// are exported from registration on.
	for _, name := range []string{
		"lazyload_pages_committed_total",
		"lazyload_load_duration_seconds",
		"lazyload_resets_total",
		"lazyload_search_edits_total",
		"lazyload_cache_hits_total",
		"lazyload_ratelimit_remaining",
	} {
		if !gathered[name] {
			t.Errorf("metric %s not registered", name)
		}
	}

	seen := make(map[string]bool)
	for _, name := range Names {
		if !strings.HasPrefix(name, "lazyload_") {
			t.Errorf("metric %s lacks the lazyload_ prefix", name)
		}
		if seen[name] {
			t.Errorf("metric %s listed twice", name)
		}
		seen[name] = true
	}
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lazyload_pages_committed_total") {
		t.Error("Expected exposition to contain lazyload_pages_committed_total")
	}
}
