package main

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/lazyload/internal/catalog"
	"github.com/Sternrassler/lazyload/internal/config"
	"github.com/Sternrassler/lazyload/pkg/cache"
	"github.com/Sternrassler/lazyload/pkg/feed"
	"github.com/Sternrassler/lazyload/pkg/loader"
	"github.com/Sternrassler/lazyload/pkg/logging"
	"github.com/Sternrassler/lazyload/pkg/pagination"
	"github.com/Sternrassler/lazyload/pkg/ratelimit"
	"github.com/Sternrassler/lazyload/pkg/surface"
)

// app holds the feed and the resources behind it.
type app struct {
	feed      *feed.Feed[catalog.Item]
	cached    *loader.Cached[catalog.Item] // nil without cache
	redis     *redis.Client
	logger    zerolog.Logger
	logCloser io.Closer
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, closer, err := logging.Setup(cfg.LoggingConfig())
	if err != nil {
		return nil, err
	}
	a := &app{logger: logger, logCloser: closer}

	if cfg.Cache.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Cache.Addr, err)
		}
		logger.Info().Str("addr", cfg.Cache.Addr).Msg("Connected to Redis")
	}

	lc := cfg.LoaderConfig()
	lc.Logger = &a.logger
	if cfg.RateLimit.Enabled {
		var store ratelimit.StateStore = ratelimit.NewMemoryStore()
		if cfg.RateLimit.Shared {
			store = ratelimit.NewRedisStore(a.redis, sourceName(cfg.Source.BaseURL))
		}
		lc.RateLimiter = ratelimit.NewTracker(store, cfg.RateLimitTrackerConfig(), logger)
	}

	src, err := loader.NewHTTPSource[catalog.Item](lc, nil)
	if err != nil {
		a.Close()
		return nil, err
	}

	var l loader.Loader[catalog.Item] = src
	if a.redis != nil {
		a.cached = loader.NewCached[catalog.Item](src, cache.NewManager(a.redis), cfg.Source.Endpoint, cfg.Cache.TTL.Std(), logger)
		l = a.cached
	}

	a.feed = feed.New(l, feed.Options[catalog.Item]{
		Query:      cfg.Feed.InitialSearch,
		TotalPages: cfg.Feed.TotalPages,
		Tolerance:  cfg.Feed.Tolerance,
		Quiet:      cfg.Feed.Quiet.Std(),
		Prefetch:   cfg.Prefetch.Pages,
		Warm:       cfg.WarmConfig(),
		Logger:     &a.logger,
	})
	return a, nil
}

// attach connects the configured trigger to region.
func (a *app) attach(cfg *config.Config, region *surface.Region) error {
	if cfg.Feed.Trigger == config.TriggerScroll {
		return a.feed.AttachScroll(region)
	}
	return a.feed.ObserveSentinel(region.Sentinel())
}

// fetch loads up to pages pages of query (0 = all) and returns the items.
func (a *app) fetch(ctx context.Context, query string, pages int) ([]catalog.Item, error) {
	for pages <= 0 || a.feed.Snapshot().Page < pages {
		outcome, err := a.feed.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		if outcome == pagination.OutcomeOutOfRange {
			break
		}
	}
	snap := a.feed.Snapshot()
	a.logger.Info().
		Str("query", query).
		Int("pages", snap.Page).
		Int("items", len(snap.DataList)).
		Msg("Fetch finished")
	return snap.DataList, nil
}

func (a *app) Close() {
	if a.feed != nil {
		a.feed.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	a.logCloser.Close()
}

// sourceName keys the shared rate limit state by source host.
func sourceName(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	return u.Host
}
