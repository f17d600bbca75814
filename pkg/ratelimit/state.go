// Package ratelimit tracks the request budget a page source reports and
// gates requests before the budget runs out.
//
// Sources announce the budget with the X-RateLimit-Remaining header (requests
// left in the window) and X-RateLimit-Reset (seconds until the window
// resets). The state can be kept in memory or shared across processes in
// Redis.
package ratelimit

import (
	"time"
)

// Headers read by the tracker.
const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Default thresholds for rate limit decisions.
const (
	// DefaultThresholdCritical blocks requests when the remaining budget falls below it.
	DefaultThresholdCritical = 5

	// DefaultThresholdWarning throttles requests when the remaining budget falls below it.
	DefaultThresholdWarning = 20

	// DefaultThresholdHealthy marks the budget healthy at or above it.
	DefaultThresholdHealthy = 50
)

// Thresholds holds the budget levels that change the tracker's behavior.
type Thresholds struct {
	Critical int
	Warning  int
	Healthy  int
}

// DefaultThresholds returns the default levels.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Critical: DefaultThresholdCritical,
		Warning:  DefaultThresholdWarning,
		Healthy:  DefaultThresholdHealthy,
	}
}

// State is the last known request budget of a source.
type State struct {
	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was last read from response headers.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= Thresholds.Healthy.
	IsHealthy bool `json:"is_healthy"`
}

// DefaultState is assumed until a response reports the budget.
func DefaultState() *State {
	now := time.Now()
	return &State{
		Remaining:  100,
		ResetAt:    now.Add(60 * time.Second),
		LastUpdate: now,
		IsHealthy:  true,
	}
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked. A window
// that already reset no longer blocks.
func (s *State) NeedsCriticalBlock(th Thresholds) bool {
	return s.Remaining < th.Critical && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling(th Thresholds) bool {
	return s.Remaining < th.Warning && s.Remaining >= th.Critical
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth updates IsHealthy from Remaining.
func (s *State) UpdateHealth(th Thresholds) {
	s.IsHealthy = s.Remaining >= th.Healthy
}
