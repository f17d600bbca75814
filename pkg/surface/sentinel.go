package surface

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Sentinel marks the end of a region's content. It implements
// trigger.Sentinel.
type Sentinel struct {
	mu       sync.Mutex
	visible  bool
	handlers map[int]func(bool)
	nextID   int
}

func newSentinel() *Sentinel {
	return &Sentinel{handlers: make(map[int]func(bool))}
}

// Visible reports whether the sentinel is inside the viewport.
func (s *Sentinel) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Subscribe implements trigger.Sentinel. fn receives the current
// visibility before Subscribe returns.
func (s *Sentinel) Subscribe(fn func(visible bool)) func() {
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

func (s *Sentinel) set(visible bool) {
	s.mu.Lock()
	if s.visible == visible {
		s.mu.Unlock()
		return
	}
	s.visible = visible
	ids := lo.Keys(s.handlers)
	sort.Ints(ids)
	fns := make([]func(bool), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.handlers[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(visible)
	}
}
