package trigger

import (
	"sync"

	"github.com/rs/zerolog"
)

// DefaultTolerance is the distance from the bottom, in pixels or rows,
// below which a scroll trigger fires.
const DefaultTolerance = 25

// ScrollMetrics is the scroll geometry of a container at one scroll event.
type ScrollMetrics struct {
	ScrollHeight int
	ScrollTop    int
	ClientHeight int
}

// DistanceFromBottom returns how far the viewport's bottom edge is from the
// end of the content.
func (m ScrollMetrics) DistanceFromBottom() int {
	return m.ScrollHeight - (m.ScrollTop + m.ClientHeight)
}

// Container is a scrollable region.
type Container interface {
	// Subscribe registers fn for scroll events. The returned function
	// removes fn; once it returns, fn is not called again.
	Subscribe(fn func(ScrollMetrics)) (unsubscribe func())

	// ScrollTo moves the viewport so that its top edge is at top.
	ScrollTo(top int)
}

// ScrollOptions is the page snapshot an attachment works from.
type ScrollOptions struct {
	Page      int
	PageCount int
	Tolerance int // default DefaultTolerance
}

func (o ScrollOptions) withDefaults() ScrollOptions {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	return o
}

// Attachment is one scroll listener bound to a page snapshot.
//
// It fires at most once: the lock set on firing is only released by
// attaching again with a new snapshot.
type Attachment struct {
	mu          sync.Mutex
	opts        ScrollOptions
	onReach     func(nextPage int)
	locked      bool
	detached    bool
	unsubscribe func()
}

// Attach listens to container scroll events and calls onReach(Page+1) the
// first time the distance from the bottom drops below the tolerance while
// Page < PageCount. When Page is 1 the container is scrolled to the top.
func Attach(container Container, onReach func(nextPage int), opts ScrollOptions) *Attachment {
	a := &Attachment{
		opts:    opts.withDefaults(),
		onReach: onReach,
	}

	if a.opts.Page == 1 {
		container.ScrollTo(0)
	}

	unsubscribe := container.Subscribe(a.handle)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.detached {
		unsubscribe()
		return a
	}
	a.unsubscribe = unsubscribe
	return a
}

func (a *Attachment) handle(m ScrollMetrics) {
	a.mu.Lock()
	if a.detached || a.locked {
		a.mu.Unlock()
		return
	}
	if m.DistanceFromBottom() >= a.opts.Tolerance || a.opts.Page >= a.opts.PageCount {
		a.mu.Unlock()
		return
	}
	a.locked = true
	next := a.opts.Page + 1
	a.mu.Unlock()

	a.onReach(next)
}

// Locked reports whether the attachment has already fired.
func (a *Attachment) Locked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.locked
}

// Options returns the snapshot the attachment was created with.
func (a *Attachment) Options() ScrollOptions {
	return a.opts
}

// Detach removes the scroll listener.
func (a *Attachment) Detach() {
	a.mu.Lock()
	if a.detached {
		a.mu.Unlock()
		return
	}
	a.detached = true
	unsub := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// ScrollTrigger keeps one attachment on a container and replaces it when
// the page or page count changes.
type ScrollTrigger struct {
	mu        sync.Mutex
	container Container
	onReach   func(nextPage int)
	att       *Attachment
	armed     uint64
	closed    bool
	logger    zerolog.Logger
}

// NewScrollTrigger creates an unarmed trigger on container.
func NewScrollTrigger(container Container, onReach func(nextPage int), logger zerolog.Logger) *ScrollTrigger {
	return &ScrollTrigger{
		container: container,
		onReach:   onReach,
		logger:    logger.With().Str("component", "scroll-trigger").Logger(),
	}
}

// Arm attaches with opts unless the current attachment already covers the
// same Page and PageCount. It reports whether a new attachment was made.
func (t *ScrollTrigger) Arm(opts ScrollOptions) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	if t.att != nil {
		cur := t.att.Options()
		if cur.Page == opts.Page && cur.PageCount == opts.PageCount {
			t.mu.Unlock()
			return false
		}
	}
	prev := t.att
	t.att = nil
	t.armed++
	armed := t.armed
	t.mu.Unlock()

	if prev != nil {
		prev.Detach()
	}

	t.logger.Debug().
		Int("page", opts.Page).
		Int("page_count", opts.PageCount).
		Msg("Scroll trigger armed")

	att := Attach(t.container, func(nextPage int) {
		t.logger.Debug().Int("next_page", nextPage).Msg("Scroll threshold reached")
		t.onReach(nextPage)
	}, opts)

	t.mu.Lock()
	if t.closed || t.armed != armed {
		t.mu.Unlock()
		att.Detach()
		return false
	}
	t.att = att
	t.mu.Unlock()
	return true
}

// Locked reports whether the current attachment has fired.
func (t *ScrollTrigger) Locked() bool {
	t.mu.Lock()
	att := t.att
	t.mu.Unlock()
	return att != nil && att.Locked()
}

// Close detaches the listener; the trigger cannot be re-armed.
func (t *ScrollTrigger) Close() {
	t.mu.Lock()
	t.closed = true
	att := t.att
	t.att = nil
	t.mu.Unlock()

	if att != nil {
		att.Detach()
	}
}
