package testutil

import (
	"sync"

	"github.com/Sternrassler/lazyload/pkg/trigger"
)

// FakeSentinel is a trigger.Sentinel whose visibility is set by the test.
type FakeSentinel struct {
	mu       sync.Mutex
	visible  bool
	handlers map[int]func(bool)
	nextID   int
}

// NewFakeSentinel creates a hidden sentinel.
func NewFakeSentinel() *FakeSentinel {
	return &FakeSentinel{handlers: make(map[int]func(bool))}
}

// Subscribe implements trigger.Sentinel.
func (s *FakeSentinel) Subscribe(fn func(visible bool)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.handlers[id] = fn
	visible := s.visible
	s.mu.Unlock()

	fn(visible)

	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

// SetVisible changes visibility and notifies subscribers when it changed.
func (s *FakeSentinel) SetVisible(visible bool) {
	s.mu.Lock()
	if s.visible == visible {
		s.mu.Unlock()
		return
	}
	s.visible = visible
	fns := make([]func(bool), 0, len(s.handlers))
	for _, fn := range s.handlers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(visible)
	}
}

// Subscribers returns the number of live subscriptions.
func (s *FakeSentinel) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

// FakeContainer is a trigger.Container driven by the test.
type FakeContainer struct {
	mu        sync.Mutex
	metrics   trigger.ScrollMetrics
	handlers  map[int]func(trigger.ScrollMetrics)
	nextID    int
	scrollTos []int
}

// NewFakeContainer creates a container with the given geometry.
func NewFakeContainer(scrollHeight, clientHeight int) *FakeContainer {
	return &FakeContainer{
		metrics:  trigger.ScrollMetrics{ScrollHeight: scrollHeight, ClientHeight: clientHeight},
		handlers: make(map[int]func(trigger.ScrollMetrics)),
	}
}

// Subscribe implements trigger.Container.
func (c *FakeContainer) Subscribe(fn func(trigger.ScrollMetrics)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.handlers[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

// ScrollTo implements trigger.Container. It records the call without
// emitting a scroll event.
func (c *FakeContainer) ScrollTo(top int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.ScrollTop = top
	c.scrollTos = append(c.scrollTos, top)
}

// Scroll sets ScrollTop and emits a scroll event.
func (c *FakeContainer) Scroll(top int) {
	c.mu.Lock()
	c.metrics.ScrollTop = top
	m := c.metrics
	fns := make([]func(trigger.ScrollMetrics), 0, len(c.handlers))
	for _, fn := range c.handlers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(m)
	}
}

// SetScrollHeight changes the content height without emitting an event.
func (c *FakeContainer) SetScrollHeight(h int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.ScrollHeight = h
}

// ScrollTos returns the positions passed to ScrollTo.
func (c *FakeContainer) ScrollTos() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.scrollTos...)
}

// Subscribers returns the number of live subscriptions.
func (c *FakeContainer) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}
