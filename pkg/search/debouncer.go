package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/lazyload/pkg/clock"
	"github.com/Sternrassler/lazyload/pkg/pagination"
)

// DefaultQuietPeriod is the time without edits after which a search runs.
const DefaultQuietPeriod = 500 * time.Millisecond

var (
	editsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lazyload_search_edits_total",
		Help: "Search term edits received by debouncers",
	})

	loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lazyload_search_loads_total",
		Help: "Debounced search loads by result (committed, failed, stale)",
	}, []string{"result"})
)

// LoadFunc fetches page of the listing filtered by query. totalPages is 0
// when the source does not report a page count.
type LoadFunc[T any] func(ctx context.Context, page int, query string) (items []T, totalPages int, err error)

// Result is page 1 of a completed search.
type Result[T any] struct {
	// Term is the term the page was loaded for, which may already differ
	// from the latest edit.
	Term       string
	Items      []T
	TotalPages int // 0 if the source reported none
}

// Target receives the result of a debounced search. Commit must apply the
// items and page count in one transition.
type Target[T any] interface {
	Commit(r Result[T])
	RecordFailure(err error)
}

// StoreTarget resets store with each committed search.
func StoreTarget[T any](store *pagination.Store[T]) Target[T] {
	return storeTarget[T]{store}
}

type storeTarget[T any] struct {
	store *pagination.Store[T]
}

func (t storeTarget[T]) Commit(r Result[T]) {
	t.store.ResetWithTotal(r.Items, r.TotalPages)
}

func (t storeTarget[T]) RecordFailure(err error) {
	t.store.RecordFailure(err)
}

// Options configures a Debouncer.
type Options struct {
	// Quiet is the quiet period (default DefaultQuietPeriod).
	Quiet time.Duration

	// Clock schedules the quiet period timer (default clock.Real).
	Clock clock.Clock

	// Logger receives search logs (default: disabled).
	Logger *zerolog.Logger
}

// Debouncer turns a stream of search term edits into page-1 reloads of a
// target. Only the last term of a burst is loaded.
type Debouncer[T any] struct {
	target Target[T]
	load   LoadFunc[T]
	quiet  time.Duration
	clock  clock.Clock
	logger zerolog.Logger

	mu      sync.Mutex
	term    string
	timer   clock.Timer
	gen     uint64
	cancel  context.CancelFunc // load in flight
	closed  bool
	ctx     context.Context
	stopAll context.CancelFunc

	// commitMu makes Close wait for a commit that already passed its
	// staleness check.
	commitMu sync.Mutex
}

// NewDebouncer creates a debouncer that reloads target through load.
func NewDebouncer[T any](target Target[T], load LoadFunc[T], opts Options) *Debouncer[T] {
	if opts.Quiet <= 0 {
		opts.Quiet = DefaultQuietPeriod
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "search").Logger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer[T]{
		target:  target,
		load:    load,
		quiet:   opts.Quiet,
		clock:   opts.Clock,
		logger:  logger,
		ctx:     ctx,
		stopAll: cancel,
	}
}

// OnTermChange records term and restarts the quiet period. A pending timer
// is stopped and a load still running for an earlier term is cancelled.
func (d *Debouncer[T]) OnTermChange(term string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	d.term = term
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.timer = d.clock.AfterFunc(d.quiet, func() { d.fire(gen, term) })

	editsTotal.Inc()
	d.logger.Debug().Str("term", term).Dur("quiet", d.quiet).Msg("Search term changed")
}

// Term returns the latest term.
func (d *Debouncer[T]) Term() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.term
}

// Pending reports whether a quiet period is running or a load is in flight.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil || d.cancel != nil
}

// Close stops the timer and cancels any load. Nothing is committed to the
// target after Close returns. Close must not be called from a listener of
// the target.
func (d *Debouncer[T]) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.cancel = nil
	d.stopAll()
	d.mu.Unlock()

	d.commitMu.Lock()
	d.commitMu.Unlock()
	d.logger.Debug().Msg("Search debouncer closed")
}

func (d *Debouncer[T]) fire(gen uint64, term string) {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	ctx, cancel := context.WithCancel(d.ctx)
	d.cancel = cancel
	d.mu.Unlock()
	defer cancel()

	start := d.clock.Now()
	d.logger.Debug().Str("term", term).Msg("Running search")
	items, total, err := d.load(ctx, 1, term)

	d.commitMu.Lock()
	defer d.commitMu.Unlock()

	d.mu.Lock()
	stale := d.closed || gen != d.gen
	if !stale {
		d.cancel = nil
	}
	d.mu.Unlock()

	if stale {
		loadsTotal.WithLabelValues("stale").Inc()
		d.logger.Debug().Str("term", term).Msg("Discarding stale search result")
		return
	}

	if err != nil {
		var le *pagination.LoadError
		if !errors.As(err, &le) {
			err = &pagination.LoadError{Page: 1, Query: term, Err: err}
		}
		d.target.RecordFailure(err)
		loadsTotal.WithLabelValues("failed").Inc()
		d.logger.Warn().Err(err).Str("term", term).Msg("Search load failed")
		return
	}

	d.target.Commit(Result[T]{Term: term, Items: items, TotalPages: total})
	loadsTotal.WithLabelValues("committed").Inc()
	d.logger.Info().
		Str("term", term).
		Int("items", len(items)).
		Int("total_pages", total).
		Dur("duration", d.clock.Now().Sub(start)).
		Msg("Search results committed")
}
