// Package testutil provides test doubles for lazyload packages.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/lazyload/internal/catalog"
)

// MockResponse defines a canned response for the mock source.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSource is an httptest server serving a paged JSON listing at
// /items?page=N&search=q with an X-Total-Pages header.
type MockSource struct {
	server  *httptest.Server
	catalog *catalog.Catalog

	mu       sync.RWMutex
	queue    []MockResponse
	requests []url.Values
	header   http.Header
}

// NewMockSource serves c.
func NewMockSource(c *catalog.Catalog) *MockSource {
	m := &MockSource{catalog: c}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the server base URL.
func (m *MockSource) URL() string {
	return m.server.URL
}

// Close shuts down the server.
func (m *MockSource) Close() {
	m.server.Close()
}

// Enqueue makes the next requests return resp, in order, before falling
// back to the catalog.
func (m *MockSource) Enqueue(resp ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resp...)
}

// RequestCount returns the number of requests served.
func (m *MockSource) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Requests returns the query parameters of every request, in order.
func (m *MockSource) Requests() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]url.Values(nil), m.requests...)
}

// LastHeader returns the headers of the latest request.
func (m *MockSource) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.header
}

func (m *MockSource) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests = append(m.requests, r.URL.Query())
	m.header = r.Header.Clone()
	var canned *MockResponse
	if len(m.queue) > 0 {
		canned = &m.queue[0]
		m.queue = m.queue[1:]
	}
	m.mu.Unlock()

	if canned != nil {
		if canned.Delay > 0 {
			select {
			case <-time.After(canned.Delay):
			case <-r.Context().Done():
				return
			}
		}
		for k, v := range canned.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(canned.StatusCode)
		if canned.Body != "" {
			w.Write([]byte(canned.Body))
		}
		return
	}

	if r.URL.Path != "/items" {
		http.NotFound(w, r)
		return
	}

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		http.Error(w, "invalid page", http.StatusBadRequest)
		return
	}
	items, total := m.catalog.Page(page, r.URL.Query().Get("search"))

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Total-Pages", strconv.Itoa(total))
	w.Header().Set("X-RateLimit-Remaining", "100")
	w.Header().Set("X-RateLimit-Reset", "60")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(items)
}

// NewRateLimitResponse creates a 429 response with an exhausted budget.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "rate limit exceeded"}`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "1",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewMalformedResponse creates a 200 response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>not json</html>`,
		Headers: map[string]string{
			"X-Total-Pages": "3",
		},
	}
}
