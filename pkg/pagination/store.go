package pagination

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Prometheus metrics for store transitions.
var (
	pagesCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lazyload_pages_committed_total",
		Help: "Total number of pages committed to pagination stores",
	})

	advanceSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lazyload_advance_skipped_total",
		Help: "Advance calls that did not dispatch a load, by reason",
	}, []string{"reason"})

	loadFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lazyload_load_failures_total",
		Help: "Loader failures by kind (load, decode)",
	}, []string{"kind"})

	loadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lazyload_load_duration_seconds",
		Help:    "Duration of page loads dispatched by Advance",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	resetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lazyload_resets_total",
		Help: "Total number of store resets",
	})
)

// LoadFunc fetches the items of page nextPage.
type LoadFunc[T any] func(ctx context.Context, nextPage int) ([]T, error)

// PagedLoadFunc fetches the items of page nextPage along with the page
// count the source reports for the listing (0 if unknown).
type PagedLoadFunc[T any] func(ctx context.Context, nextPage int) (items []T, totalPages int, err error)

// Outcome describes what an Advance call did.
type Outcome int

const (
	// OutcomeCommitted means the next page was loaded and committed.
	OutcomeCommitted Outcome = iota
	// OutcomeOutOfRange means the store already holds the last page.
	OutcomeOutOfRange
	// OutcomeSuppressed means another load was in flight.
	OutcomeSuppressed
	// OutcomeFailed means the loader failed; state is unchanged.
	OutcomeFailed
	// OutcomeStale means the store was reset while the load was in flight.
	OutcomeStale
)

// String returns the metric label of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeOutOfRange:
		return "out_of_range"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeFailed:
		return "failed"
	case OutcomeStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Err maps the no-op outcomes to their sentinel errors.
// Committed and Failed return nil; the failure itself is returned by Advance.
func (o Outcome) Err() error {
	switch o {
	case OutcomeOutOfRange:
		return ErrOutOfRange
	case OutcomeSuppressed:
		return ErrLoadInFlight
	case OutcomeStale:
		return ErrStaleLoad
	default:
		return nil
	}
}

// Options configures a Store.
type Options[T any] struct {
	// InitialItems pre-commits page 1. Nil leaves the store empty at page 0.
	InitialItems []T

	// TotalPages is the initial page count (default 1).
	TotalPages int

	// Logger receives state transition logs (default: disabled).
	Logger *zerolog.Logger
}

// Store owns the pagination state of one paginated view.
//
// All transitions are serialized by the store mutex. The loader passed to
// Advance runs with the mutex released; the loading flag keeps a second
// load from being dispatched meanwhile.
type Store[T any] struct {
	mu         sync.Mutex
	pages      map[int]Page[T]
	current    int
	total      int
	loading    bool
	lastErr    error
	generation uint64
	version    uint64
	cancelLoad context.CancelFunc

	listeners  map[uint64]func(State[T])
	listenerID uint64

	logger zerolog.Logger
}

// NewStore creates a store from opts.
func NewStore[T any](opts Options[T]) *Store[T] {
	s := &Store[T]{
		pages:     make(map[int]Page[T]),
		total:     opts.TotalPages,
		listeners: make(map[uint64]func(State[T])),
		logger:    zerolog.Nop(),
	}
	if opts.Logger != nil {
		s.logger = opts.Logger.With().Str("component", "pagination").Logger()
	}
	if opts.InitialItems != nil {
		s.pages[1] = newPage(1, opts.InitialItems)
		s.current = 1
	}
	if s.total < 1 {
		s.total = 1
	}
	return s
}

// Advance loads and commits the page after the current one.
//
// It is a no-op when the next page exceeds the page count or when a load
// is already in flight. On failure the error is recorded as LastError and
// returned; pages and current page are left untouched. A page whose index
// no longer fits the page count once the load returns, because the count
// was lowered meanwhile, is discarded with OutcomeOutOfRange.
func (s *Store[T]) Advance(ctx context.Context, load LoadFunc[T]) (Outcome, error) {
	return s.AdvancePaged(ctx, func(ctx context.Context, nextPage int) ([]T, int, error) {
		items, err := load(ctx, nextPage)
		return items, 0, err
	})
}

// AdvancePaged is Advance for loaders that report the page count. The
// count is applied in the same transition that commits the page, clamped
// to at least the committed page.
func (s *Store[T]) AdvancePaged(ctx context.Context, load PagedLoadFunc[T]) (Outcome, error) {
	s.mu.Lock()
	next := s.current + 1
	if next > s.total {
		total := s.total
		s.mu.Unlock()
		advanceSkippedTotal.WithLabelValues(OutcomeOutOfRange.String()).Inc()
		s.logger.Debug().Int("next_page", next).Int("total_pages", total).Msg("Advance past last page ignored")
		return OutcomeOutOfRange, nil
	}
	if s.loading {
		s.mu.Unlock()
		advanceSkippedTotal.WithLabelValues(OutcomeSuppressed.String()).Inc()
		s.logger.Debug().Int("next_page", next).Msg("Advance suppressed, load in flight")
		return OutcomeSuppressed, nil
	}
	s.loading = true
	gen := s.generation
	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancelLoad = cancel
	notify := s.changedLocked()
	s.mu.Unlock()
	notify()

	start := time.Now()
	items, reported, err := load(loadCtx, next)
	loadDuration.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	if gen != s.generation {
		// Reset already cleared loading and replaced the pages.
		s.mu.Unlock()
		advanceSkippedTotal.WithLabelValues(OutcomeStale.String()).Inc()
		s.logger.Debug().Int("page", next).Msg("Discarding page loaded before reset")
		return OutcomeStale, nil
	}
	s.loading = false
	s.cancelLoad = nil

	if err != nil {
		err = asLoadError(next, err)
		s.lastErr = err
		kind := "load"
		if IsDecodeError(err) {
			kind = "decode"
		}
		loadFailuresTotal.WithLabelValues(kind).Inc()
		notify := s.changedLocked()
		s.mu.Unlock()
		notify()

		s.logger.Warn().Err(err).Int("page", next).Str("kind", kind).Msg("Page load failed")
		return OutcomeFailed, err
	}

	if next > s.total {
		notify := s.changedLocked()
		total := s.total
		s.mu.Unlock()
		notify()

		advanceSkippedTotal.WithLabelValues(OutcomeOutOfRange.String()).Inc()
		s.logger.Debug().Int("page", next).Int("total_pages", total).Msg("Discarding page beyond lowered page count")
		return OutcomeOutOfRange, nil
	}

	s.pages[next] = newPage(next, items)
	s.current = next
	s.lastErr = nil
	if reported > 0 {
		s.total = max(reported, next)
	}
	notify = s.changedLocked()
	s.mu.Unlock()
	notify()

	pagesCommittedTotal.Inc()
	s.logger.Info().
		Int("page", next).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Page committed")
	return OutcomeCommitted, nil
}

// Reset replaces all pages with a single page 1 holding items.
// A load still in flight is cancelled and its result discarded.
func (s *Store[T]) Reset(items []T) {
	s.ResetWithTotal(items, 0)
}

// ResetWithTotal is Reset that also sets the page count in the same
// transition. A totalPages of 0 or less keeps the current count.
func (s *Store[T]) ResetWithTotal(items []T, totalPages int) {
	s.mu.Lock()
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	s.pages = map[int]Page[T]{1: newPage(1, items)}
	s.current = 1
	s.loading = false
	s.lastErr = nil
	if totalPages > 0 {
		s.total = totalPages
	}
	s.generation++
	total := s.total
	notify := s.changedLocked()
	s.mu.Unlock()
	notify()

	resetsTotal.Inc()
	s.logger.Info().Int("items", len(items)).Int("total_pages", total).Msg("Store reset to page 1")
}

// SetTotalPages updates the page count, typically from a loader response.
// The count never drops below the current page.
func (s *Store[T]) SetTotalPages(n int) {
	s.mu.Lock()
	floor := s.current
	if floor < 1 {
		floor = 1
	}
	if n < floor {
		s.logger.Warn().Int("requested", n).Int("current_page", s.current).Msg("Page count below current page, clamping")
		n = floor
	}
	if n == s.total {
		s.mu.Unlock()
		return
	}
	s.total = n
	notify := s.changedLocked()
	s.mu.Unlock()
	notify()
}

// RecordFailure stores err as LastError without changing any page.
func (s *Store[T]) RecordFailure(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.lastErr = err
	notify := s.changedLocked()
	s.mu.Unlock()
	notify()
}

// State returns a snapshot of the store.
func (s *Store[T]) State() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Items returns the derived ordered item list.
func (s *Store[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsLocked()
}

// Page returns the current page number.
func (s *Store[T]) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// TotalPages returns the page count.
func (s *Store[T]) TotalPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Loading reports whether a load is in flight.
func (s *Store[T]) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastError returns the most recent load failure, or nil.
func (s *Store[T]) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Pages returns the committed pages in ascending index order.
func (s *Store[T]) Pages() []Page[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedPagesLocked()
}

// Subscribe registers fn to receive a snapshot after every transition.
// fn runs on the goroutine that caused the transition, after the store
// lock is released. The returned function removes the subscription.
func (s *Store[T]) Subscribe(fn func(State[T])) func() {
	s.mu.Lock()
	s.listenerID++
	id := s.listenerID
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// changedLocked records a transition and returns the function that
// delivers its snapshot. Callers invoke it after releasing the lock so
// listeners may call back into the store.
func (s *Store[T]) changedLocked() func() {
	s.version++
	if len(s.listeners) == 0 {
		return func() {}
	}
	state := s.stateLocked()
	ids := lo.Keys(s.listeners)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(State[T]), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	return func() {
		for _, fn := range fns {
			fn(state)
		}
	}
}

func (s *Store[T]) stateLocked() State[T] {
	return State[T]{
		Items:      s.itemsLocked(),
		Page:       s.current,
		TotalPages: s.total,
		Loading:    s.loading,
		LastError:  s.lastErr,
		Generation: s.generation,
		Version:    s.version,
	}
}

func (s *Store[T]) itemsLocked() []T {
	pages := s.sortedPagesLocked()
	return lo.Flatten(lo.Map(pages, func(p Page[T], _ int) []T { return p.Items }))
}

func (s *Store[T]) sortedPagesLocked() []Page[T] {
	keys := lo.Keys(s.pages)
	sort.Ints(keys)
	pages := make([]Page[T], 0, len(keys))
	for _, k := range keys {
		pages = append(pages, s.pages[k])
	}
	return pages
}
