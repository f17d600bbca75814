// Package clock abstracts timers so delayed work can be driven by tests.
package clock

import "time"

// Timer is a pending call scheduled by a Clock.
type Timer interface {
	// Stop prevents the call from running. It reports false if the call
	// already ran or the timer was already stopped.
	Stop() bool
}

// Clock schedules calls and tells the time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the wall clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
