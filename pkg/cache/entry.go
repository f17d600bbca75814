package cache

import (
	"encoding/json"
	"time"
)

// Entry is a cached page.
type Entry struct {
	// Data is the JSON encoded item list of the page
	Data json.RawMessage `json:"data"`

	// TotalPages is the page count reported with the page (0 if unknown)
	TotalPages int `json:"total_pages"`

	// CachedAt is when the page was stored
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry becomes stale
	Expires time.Time `json:"expires"`
}

// NewEntry creates an entry for data that expires after ttl.
func NewEntry(data []byte, totalPages int, ttl time.Duration) *Entry {
	now := time.Now()
	return &Entry{
		Data:       data,
		TotalPages: totalPages,
		CachedAt:   now,
		Expires:    now.Add(ttl),
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
