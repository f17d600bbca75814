package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/lazyload/internal/catalog"
	"github.com/Sternrassler/lazyload/pkg/feed"
	"github.com/Sternrassler/lazyload/pkg/loader"
)

func newTestServer(items, perPage int) *server {
	return &server{
		catalog: catalog.New(catalog.Generate("item", items), perPage),
		logger:  zerolog.Nop(),
	}
}

func get(t *testing.T, h http.Handler, target string) *http.Response {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w.Result()
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestItemsEndpoint(t *testing.T) {
	mux := newTestServer(45, 20).routes()

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantTotal  string
		wantIDs    []int
	}{
		{"first page", "/items?page=1", http.StatusOK, "3", nil},
		{"last page", "/items?page=3", http.StatusOK, "3", []int{41, 42, 43, 44, 45}},
		{"past the end", "/items?page=9", http.StatusOK, "3", []int{}},
		{"search", "/items?page=1&search=item+4", http.StatusOK, "1", []int{4, 40, 41, 42, 43, 44, 45}},
		{"missing page", "/items", http.StatusBadRequest, "", nil},
		{"page zero", "/items?page=0", http.StatusBadRequest, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(t, mux, tt.target)
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if got := resp.Header.Get("X-Total-Pages"); got != tt.wantTotal {
				t.Errorf("Expected X-Total-Pages %q, got %q", tt.wantTotal, got)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var items []catalog.Item
			if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
				t.Fatalf("Failed to decode body: %v", err)
			}
			if tt.wantIDs == nil {
				if len(items) != 20 {
					t.Errorf("Expected a full page, got %d items", len(items))
				}
				return
			}
			if len(items) != len(tt.wantIDs) {
				t.Fatalf("Expected %d items, got %d", len(tt.wantIDs), len(items))
			}
			for i, id := range tt.wantIDs {
				if items[i].ID != id {
					t.Errorf("item %d: expected id %d, got %d", i, id, items[i].ID)
				}
			}
		})
	}
}

func TestItemsEndpoint_MethodNotAllowed(t *testing.T) {
	mux := newTestServer(5, 5).routes()
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/items?page=1", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestItemsEndpoint_RateLimit(t *testing.T) {
	srv := newTestServer(10, 5)
	srv.budget = newBudget(2, time.Minute)
	mux := srv.routes()

	for i, want := range []string{"1", "0"} {
		resp := get(t, mux, "/items?page=1")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, resp.StatusCode)
		}
		if got := resp.Header.Get("X-RateLimit-Remaining"); got != want {
			t.Errorf("request %d: expected remaining %s, got %s", i, want, got)
		}
	}

	resp := get(t, mux, "/items?page=1")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("Expected 429 after budget is used, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-RateLimit-Reset") == "" {
		t.Error("Expected X-RateLimit-Reset on 429")
	}
}

func TestBudget_WindowResets(t *testing.T) {
	b := newBudget(1, time.Second)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, _, ok := b.take(now); !ok {
		t.Fatal("first request should pass")
	}
	if _, reset, ok := b.take(now.Add(400 * time.Millisecond)); ok || reset != 600*time.Millisecond {
		t.Fatalf("second request should be blocked with 600ms to reset, got ok=%v reset=%v", ok, reset)
	}
	if remaining, _, ok := b.take(now.Add(time.Second)); !ok || remaining != 0 {
		t.Fatalf("request in the next window should pass, got ok=%v remaining=%d", ok, remaining)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := newTestServer(5, 5).routes()
	get(t, mux, "/items?page=1")

	resp := get(t, mux, "/metrics")
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	bodyStr := string(body)
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	if !strings.Contains(bodyStr, `pagesrv_requests_total{status="200"}`) {
		t.Error("Expected metrics output to contain pagesrv_requests_total")
	}
}

func TestFeedAgainstServer(t *testing.T) {
	ts := httptest.NewServer(newTestServer(45, 20).routes())
	defer ts.Close()

	src, err := loader.NewHTTPSource[catalog.Item](loader.DefaultConfig(ts.URL), nil)
	if err != nil {
		t.Fatalf("NewHTTPSource failed: %v", err)
	}
	f := feed.New[catalog.Item](src, feed.Options[catalog.Item]{})
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for range 4 {
		if _, err := f.NextPage(ctx); err != nil {
			t.Fatalf("NextPage failed: %v", err)
		}
	}

	snap := f.Snapshot()
	if snap.Page != 3 || snap.TotalPages != 3 {
		t.Errorf("Expected page 3 of 3, got %d of %d", snap.Page, snap.TotalPages)
	}
	if len(snap.DataList) != 45 {
		t.Errorf("Expected 45 items, got %d", len(snap.DataList))
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("PAGESRV_TEST_INT", "12")
	t.Setenv("PAGESRV_TEST_BAD", "twelve")
	t.Setenv("PAGESRV_TEST_DUR", "250ms")

	if got := getEnv("PAGESRV_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("getEnv fallback = %q", got)
	}
	if got := getEnvInt("PAGESRV_TEST_INT", 1); got != 12 {
		t.Errorf("getEnvInt = %d, want 12", got)
	}
	if got := getEnvInt("PAGESRV_TEST_BAD", 7); got != 7 {
		t.Errorf("getEnvInt with bad value = %d, want 7", got)
	}
	if got := getEnvDuration("PAGESRV_TEST_DUR", time.Second); got != 250*time.Millisecond {
		t.Errorf("getEnvDuration = %v, want 250ms", got)
	}
}
