package trigger

import (
	"sync"

	"github.com/rs/zerolog"
)

// Sentinel is a marker placed after the last rendered item.
type Sentinel interface {
	// Subscribe registers fn for visibility changes. Implementations call fn
	// with the current visibility right after registering and again on every
	// change. The returned function removes fn; once it returns, fn is not
	// called again.
	Subscribe(fn func(visible bool)) (unsubscribe func())
}

// Registration is one armed visibility watch.
type Registration struct {
	mu          sync.Mutex
	done        bool
	unsubscribe func()
}

// Observe watches sentinel and calls onReach once when it is visible,
// unless disabled. After firing, the watch is removed; a new registration
// is needed to fire again. A disabled registration never fires, even if it
// is left in place.
func Observe(sentinel Sentinel, onReach func(), disabled bool) *Registration {
	r := &Registration{}

	unsubscribe := sentinel.Subscribe(func(visible bool) {
		if !visible || disabled {
			return
		}
		r.mu.Lock()
		if r.done {
			r.mu.Unlock()
			return
		}
		r.done = true
		unsub := r.unsubscribe
		r.unsubscribe = nil
		r.mu.Unlock()

		if unsub != nil {
			unsub()
		}
		onReach()
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		// Fired before the handle was stored (sentinel already visible).
		unsubscribe()
		return r
	}
	r.unsubscribe = unsubscribe
	return r
}

// Stop cancels the watch. No callback runs after Stop returns.
func (r *Registration) Stop() {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	unsub := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Done reports whether the registration is spent (fired or stopped).
func (r *Registration) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// VisibilityTrigger keeps one live registration on a sentinel and replaces
// it whenever its inputs change.
type VisibilityTrigger struct {
	mu       sync.Mutex
	sentinel Sentinel
	reg      *Registration
	armed    uint64
	closed   bool
	logger   zerolog.Logger
}

// NewVisibilityTrigger creates an unarmed trigger for sentinel.
func NewVisibilityTrigger(sentinel Sentinel, logger zerolog.Logger) *VisibilityTrigger {
	return &VisibilityTrigger{
		sentinel: sentinel,
		logger:   logger.With().Str("component", "visibility-trigger").Logger(),
	}
}

// Arm tears down the current registration and registers onReach with the
// given disabled flag. Callers re-arm whenever onReach or disabled change.
// onReach may run before Arm returns when the sentinel is already visible.
func (t *VisibilityTrigger) Arm(onReach func(), disabled bool) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	prev := t.reg
	t.reg = nil
	t.armed++
	armed := t.armed
	t.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}

	t.logger.Debug().Bool("disabled", disabled).Msg("Sentinel watch armed")
	reg := Observe(t.sentinel, func() {
		t.logger.Debug().Msg("Sentinel reached")
		onReach()
	}, disabled)

	t.mu.Lock()
	if t.closed || t.armed != armed {
		// Closed or re-armed while registering.
		t.mu.Unlock()
		reg.Stop()
		return
	}
	t.reg = reg
	t.mu.Unlock()
}

// Close cancels the registration; the trigger cannot be re-armed.
func (t *VisibilityTrigger) Close() {
	t.mu.Lock()
	t.closed = true
	reg := t.reg
	t.reg = nil
	t.mu.Unlock()

	if reg != nil {
		reg.Stop()
	}
}
