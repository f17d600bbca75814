package feed

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/Sternrassler/lazyload/pkg/clock"
	"github.com/Sternrassler/lazyload/pkg/loader"
	"github.com/Sternrassler/lazyload/pkg/pagination"
	"github.com/Sternrassler/lazyload/pkg/search"
	"github.com/Sternrassler/lazyload/pkg/trigger"
)

// ErrClosed is returned by operations on a closed feed.
var ErrClosed = errors.New("feed closed")

// Options configures a Feed.
type Options[T any] struct {
	// InitialItems pre-commits page 1.
	InitialItems []T

	// Query is the query NextPage loads with until a search commits.
	Query string

	// TotalPages is the initial page count (default 1). Loaders that
	// report a page count update it.
	TotalPages int

	// Tolerance is the scroll trigger distance (default trigger.DefaultTolerance).
	Tolerance int

	// Quiet is the search quiet period (default search.DefaultQuietPeriod).
	Quiet time.Duration

	// Clock drives the search timer (default clock.Real).
	Clock clock.Clock

	// Prefetch is the number of pages loaded ahead of the current page
	// through the loader. Only useful with a cached loader. 0 disables it.
	Prefetch int

	// Warm configures the prefetch worker pool.
	Warm loader.WarmConfig

	// Logger receives feed logs (default: disabled).
	Logger *zerolog.Logger
}

// Snapshot is the observable state of a feed.
type Snapshot[T any] struct {
	DataList   []T
	Page       int
	TotalPages int
	IsLoading  bool
	Search     string
	LastError  error
}

// HasMore reports whether another page can be requested.
func (s Snapshot[T]) HasMore() bool {
	return s.Page < s.TotalPages
}

// Feed is an infinitely scrolling, searchable listing. It owns a pagination
// store, advances it from scroll and sentinel triggers and resets it from
// debounced search terms.
type Feed[T any] struct {
	loader    loader.Loader[T]
	store     *pagination.Store[T]
	debouncer *search.Debouncer[T]
	tolerance int
	prefetch  int
	warm      loader.WarmConfig
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	query      string // query of the committed listing
	scroll     *trigger.ScrollTrigger
	visibility *trigger.VisibilityTrigger
	closed     bool
	listeners  map[uint64]func(Snapshot[T])
	listenerID uint64

	// armMu serializes trigger re-arming across store notifications.
	armMu       sync.Mutex
	armedVer    uint64
	visKey      visibilityKey
	visKeyValid bool

	unsubStore func()
}

type visibilityKey struct {
	page, total int
	generation  uint64
	disabled    bool
}

// New creates a feed over l.
func New[T any](l loader.Loader[T], opts Options[T]) *Feed[T] {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "feed").Logger()
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = trigger.DefaultTolerance
	}
	if opts.Warm.MaxConcurrency <= 0 || opts.Warm.Timeout <= 0 {
		opts.Warm = loader.DefaultWarmConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &Feed[T]{
		loader:    l,
		tolerance: opts.Tolerance,
		prefetch:  opts.Prefetch,
		warm:      opts.Warm,
		logger:    logger,
		query:     opts.Query,
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[uint64]func(Snapshot[T])),
	}
	f.store = pagination.NewStore(pagination.Options[T]{
		InitialItems: opts.InitialItems,
		TotalPages:   opts.TotalPages,
		Logger:       opts.Logger,
	})
	f.debouncer = search.NewDebouncer[T](searchTarget[T]{f}, f.searchLoad, search.Options{
		Quiet:  opts.Quiet,
		Clock:  opts.Clock,
		Logger: opts.Logger,
	})
	f.unsubStore = f.store.Subscribe(f.changed)
	return f
}

// Start runs the initial search for term after the quiet period.
func (f *Feed[T]) Start(term string) {
	f.Search(term)
}

// Search records a search term edit. The listing is reset to page 1 of the
// term once no further edit arrives within the quiet period.
func (f *Feed[T]) Search(term string) {
	f.debouncer.OnTermChange(term)
}

// NextPage loads and commits the page after the current one for the
// current query. Out-of-range and in-flight calls are no-ops reported
// through the outcome.
func (f *Feed[T]) NextPage(ctx context.Context) (pagination.Outcome, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return pagination.OutcomeSuppressed, ErrClosed
	}
	query := f.query
	f.mu.Unlock()

	outcome, err := f.store.AdvancePaged(ctx, loader.PagedFunc(f.loader, query))
	if outcome != pagination.OutcomeCommitted {
		return outcome, err
	}

	f.prefetchAfter(query, f.store.Page())
	return outcome, nil
}

// Query returns the query of the committed listing.
func (f *Feed[T]) Query() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.query
}

// Snapshot returns the current state.
func (f *Feed[T]) Snapshot() Snapshot[T] {
	return f.snapshot(f.store.State())
}

// Store returns the underlying pagination store.
func (f *Feed[T]) Store() *pagination.Store[T] {
	return f.store
}

// Subscribe registers fn to receive a snapshot after every state change.
// Subscribers run before the triggers are re-armed, so a renderer that
// updates its geometry from fn is seen by the next trigger decision.
func (f *Feed[T]) Subscribe(fn func(Snapshot[T])) func() {
	f.mu.Lock()
	f.listenerID++
	id := f.listenerID
	f.listeners[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

// AttachScroll advances the feed when container is scrolled near its end.
// A previously attached container is detached.
func (f *Feed[T]) AttachScroll(container trigger.Container) error {
	t := trigger.NewScrollTrigger(container, func(next int) {
		f.advanceAsync("scroll", next)
	}, f.logger)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	prev := f.scroll
	f.scroll = t
	f.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	f.rearm(f.store.State())
	return nil
}

// ObserveSentinel advances the feed whenever sentinel becomes visible
// while more pages are available and no load is running. A previously
// observed sentinel is released.
func (f *Feed[T]) ObserveSentinel(sentinel trigger.Sentinel) error {
	t := trigger.NewVisibilityTrigger(sentinel, f.logger)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	prev := f.visibility
	f.visibility = t
	f.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	f.armMu.Lock()
	f.visKeyValid = false
	f.armMu.Unlock()
	f.rearm(f.store.State())
	return nil
}

// Close detaches all triggers, stops the search debouncer, cancels running
// loads and waits for background work to finish. It must not be called
// from a Subscribe callback.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	scroll, vis := f.scroll, f.visibility
	f.scroll, f.visibility = nil, nil
	f.mu.Unlock()

	if scroll != nil {
		scroll.Close()
	}
	if vis != nil {
		vis.Close()
	}
	f.unsubStore()
	f.debouncer.Close()
	f.cancel()
	f.wg.Wait()
	f.logger.Debug().Msg("Feed closed")
}

func (f *Feed[T]) snapshot(st pagination.State[T]) Snapshot[T] {
	return Snapshot[T]{
		DataList:   st.Items,
		Page:       st.Page,
		TotalPages: st.TotalPages,
		IsLoading:  st.Loading,
		Search:     f.debouncer.Term(),
		LastError:  st.LastError,
	}
}

func (f *Feed[T]) changed(st pagination.State[T]) {
	f.mu.Lock()
	ids := lo.Keys(f.listeners)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(Snapshot[T]), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, f.listeners[id])
	}
	f.mu.Unlock()

	if len(fns) > 0 {
		snap := f.snapshot(st)
		for _, fn := range fns {
			fn(snap)
		}
	}
	f.rearm(st)
}

// rearm refreshes the triggers from a store snapshot. Snapshots older than
// the last one applied are ignored.
func (f *Feed[T]) rearm(st pagination.State[T]) {
	f.armMu.Lock()
	defer f.armMu.Unlock()
	if st.Version < f.armedVer {
		return
	}
	f.armedVer = st.Version

	f.mu.Lock()
	scroll, vis, closed := f.scroll, f.visibility, f.closed
	f.mu.Unlock()
	if closed {
		return
	}

	if scroll != nil {
		scroll.Arm(trigger.ScrollOptions{Page: st.Page, PageCount: st.TotalPages, Tolerance: f.tolerance})
	}
	if vis != nil {
		// A failed load stays failed until NextPage or a search succeeds.
		key := visibilityKey{
			page:       st.Page,
			total:      st.TotalPages,
			generation: st.Generation,
			disabled:   st.Loading || !st.HasMore() || st.LastError != nil,
		}
		if f.visKeyValid && key == f.visKey {
			return
		}
		f.visKey, f.visKeyValid = key, true
		vis.Arm(func() { f.advanceAsync("sentinel", st.Page+1) }, key.disabled)
	}
}

// advanceAsync runs NextPage in the background for a trigger. Triggers
// fire from inside store notifications, so the load cannot run inline.
func (f *Feed[T]) advanceAsync(source string, next int) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		outcome, err := f.NextPage(f.ctx)
		ev := f.logger.Debug()
		if err != nil && !errors.Is(err, context.Canceled) {
			ev = f.logger.Warn().Err(err)
		}
		ev.Str("trigger", source).
			Int("next_page", next).
			Str("outcome", outcome.String()).
			Msg("Triggered advance finished")
	}()
}

func (f *Feed[T]) searchLoad(ctx context.Context, page int, query string) ([]T, int, error) {
	res, err := f.loader.Load(ctx, loader.Request{Page: page, Query: query})
	if err != nil {
		return nil, 0, err
	}
	return res.Items, res.TotalPages, nil
}

// prefetchAfter warms the pages following page in the background.
func (f *Feed[T]) prefetchAfter(query string, page int) {
	if f.prefetch <= 0 {
		return
	}
	total := f.store.TotalPages()
	from, to := page+1, min(page+f.prefetch, total)
	if from > to {
		return
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		results, err := loader.Warm(f.ctx, f.loader, query, from, to, f.warm, f.logger)
		if err != nil {
			f.logger.Debug().Err(err).Int("warmed", len(results)).Msg("Prefetch incomplete")
		}
	}()
}

// searchTarget applies debounced search results to the feed.
type searchTarget[T any] struct {
	f *Feed[T]
}

func (t searchTarget[T]) Commit(r search.Result[T]) {
	t.f.mu.Lock()
	t.f.query = r.Term
	t.f.mu.Unlock()
	t.f.store.ResetWithTotal(r.Items, r.TotalPages)
	t.f.prefetchAfter(r.Term, 1)
}

func (t searchTarget[T]) RecordFailure(err error) {
	t.f.store.RecordFailure(err)
}
