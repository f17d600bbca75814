package surface

import (
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/Sternrassler/lazyload/pkg/trigger"
)

// Style keys set by default.
const (
	StyleOverflow  = "overflow"
	StyleHeight    = "height"
	StyleMaxHeight = "max-height"
)

// Options configures a Region.
type Options struct {
	// MaxHeight caps the visible height (0 = uncapped).
	MaxHeight int

	// Styles override the default style map.
	Styles map[string]string

	// Attrs are passed through to the rendering layer untouched.
	Attrs map[string]string

	// SentinelMargin makes the sentinel count as visible this far before
	// the end of the content is reached.
	SentinelMargin int
}

// Region is a scrollable container. It implements trigger.Container and
// owns the Sentinel placed after its content.
type Region struct {
	opts Options

	mu       sync.Mutex
	metrics  trigger.ScrollMetrics
	handlers map[int]func(trigger.ScrollMetrics)
	nextID   int

	sentinel *Sentinel
}

// NewRegion creates an empty region.
func NewRegion(opts Options) *Region {
	opts.Styles = maps.Clone(opts.Styles)
	opts.Attrs = maps.Clone(opts.Attrs)
	r := &Region{
		opts:     opts,
		handlers: make(map[int]func(trigger.ScrollMetrics)),
	}
	r.sentinel = newSentinel()
	return r
}

// StyleMap returns the default styles with the configured overrides
// applied on top.
func (r *Region) StyleMap() map[string]string {
	styles := map[string]string{
		StyleOverflow: "auto",
		StyleHeight:   "100%",
	}
	if r.opts.MaxHeight > 0 {
		styles[StyleMaxHeight] = fmt.Sprintf("%dpx", r.opts.MaxHeight)
	}
	return lo.Assign(styles, r.opts.Styles)
}

// Attrs returns a copy of the pass-through attributes.
func (r *Region) Attrs() map[string]string {
	return maps.Clone(r.opts.Attrs)
}

// AttrKeys returns the pass-through attribute names in sorted order.
func (r *Region) AttrKeys() []string {
	keys := lo.Keys(r.opts.Attrs)
	sort.Strings(keys)
	return keys
}

// MaxHeight returns the configured height cap.
func (r *Region) MaxHeight() int {
	return r.opts.MaxHeight
}

// Sentinel returns the end-of-content marker of the region.
func (r *Region) Sentinel() *Sentinel {
	return r.sentinel
}

// Metrics returns the current scroll geometry.
func (r *Region) Metrics() trigger.ScrollMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

// Subscribe implements trigger.Container.
func (r *Region) Subscribe(fn func(trigger.ScrollMetrics)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.handlers[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.handlers, id)
		r.mu.Unlock()
	}
}

// ScrollTo implements trigger.Container. The position is clamped to the
// scrollable range; a scroll event is emitted when it changes.
func (r *Region) ScrollTo(top int) {
	r.mu.Lock()
	top = r.clampLocked(top)
	if top == r.metrics.ScrollTop {
		r.mu.Unlock()
		return
	}
	r.metrics.ScrollTop = top
	emit := r.changedLocked()
	r.mu.Unlock()
	emit()
}

// ScrollBy scrolls relative to the current position.
func (r *Region) ScrollBy(delta int) {
	r.mu.Lock()
	top := r.metrics.ScrollTop + delta
	r.mu.Unlock()
	r.ScrollTo(top)
}

// SetContentHeight records the height of the rendered content. It does not
// emit a scroll event, but it updates sentinel visibility.
func (r *Region) SetContentHeight(h int) {
	r.mu.Lock()
	r.metrics.ScrollHeight = max(h, 0)
	r.metrics.ScrollTop = r.clampLocked(r.metrics.ScrollTop)
	visible := r.sentinelVisibleLocked()
	r.mu.Unlock()
	r.sentinel.set(visible)
}

// SetViewportHeight records the available height; it is capped at MaxHeight.
func (r *Region) SetViewportHeight(h int) {
	if r.opts.MaxHeight > 0 {
		h = min(h, r.opts.MaxHeight)
	}
	r.mu.Lock()
	r.metrics.ClientHeight = max(h, 0)
	r.metrics.ScrollTop = r.clampLocked(r.metrics.ScrollTop)
	visible := r.sentinelVisibleLocked()
	r.mu.Unlock()
	r.sentinel.set(visible)
}

func (r *Region) clampLocked(top int) int {
	maxTop := max(r.metrics.ScrollHeight-r.metrics.ClientHeight, 0)
	return min(max(top, 0), maxTop)
}

func (r *Region) sentinelVisibleLocked() bool {
	return r.metrics.ClientHeight > 0 && r.metrics.DistanceFromBottom() <= r.opts.SentinelMargin
}

// changedLocked snapshots the geometry and returns the function that emits
// the scroll event and the sentinel update after the lock is released.
func (r *Region) changedLocked() func() {
	m := r.metrics
	visible := r.sentinelVisibleLocked()
	ids := lo.Keys(r.handlers)
	sort.Ints(ids)
	fns := make([]func(trigger.ScrollMetrics), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.handlers[id])
	}
	return func() {
		for _, fn := range fns {
			fn(m)
		}
		r.sentinel.set(visible)
	}
}
