package cache

import (
	"fmt"
	"net/url"
	"strings"
)

// KeyPrefix starts every cache key.
const KeyPrefix = "lazyload"

// Key identifies one cached page.
type Key struct {
	// Endpoint is the listing path (e.g. "/items")
	Endpoint string

	// Page is the 1-based page number
	Page int

	// Query is the search term ("" for the unfiltered listing)
	Query string
}

// String generates a deterministic cache key string.
// Format: lazyload:<endpoint>:page=<n>:q=<escaped query>
//
// Example:
//
//	lazyload:items:page=2:q=go+tools
func (k Key) String() string {
	return fmt.Sprintf("%spage=%d:q=%s", EndpointPrefix(k.Endpoint), k.Page, url.QueryEscape(k.Query))
}

// EndpointPrefix returns the key prefix shared by every page of endpoint.
func EndpointPrefix(endpoint string) string {
	parts := []string{KeyPrefix}
	if e := strings.Trim(endpoint, "/"); e != "" {
		parts = append(parts, e)
	}
	return strings.Join(parts, ":") + ":"
}
