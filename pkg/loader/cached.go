package loader

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/lazyload/pkg/cache"
)

// DefaultCacheTTL is how long cached pages stay valid.
const DefaultCacheTTL = 5 * time.Minute

// Cached is a read-through page cache in front of another loader.
type Cached[T any] struct {
	next     Loader[T]
	cache    *cache.Manager
	endpoint string
	ttl      time.Duration
	logger   zerolog.Logger
}

// NewCached wraps next. Pages are keyed by endpoint, page and query.
func NewCached[T any](next Loader[T], manager *cache.Manager, endpoint string, ttl time.Duration, logger zerolog.Logger) *Cached[T] {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached[T]{
		next:     next,
		cache:    manager,
		endpoint: endpoint,
		ttl:      ttl,
		logger:   logger.With().Str("component", "page-cache").Logger(),
	}
}

// Load returns the cached page when present and otherwise loads it through
// the wrapped loader and stores it. Cache failures never fail the load.
func (c *Cached[T]) Load(ctx context.Context, req Request) (Result[T], error) {
	key := cache.Key{Endpoint: c.endpoint, Page: req.Page, Query: req.Query}

	entry, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var items []T
		if err := json.Unmarshal(entry.Data, &items); err == nil {
			c.logger.Debug().Str("key", key.String()).Msg("Page cache hit")
			return Result[T]{Items: items, TotalPages: entry.TotalPages}, nil
		}
		c.logger.Warn().Str("key", key.String()).Msg("Dropping undecodable cache entry")
		_ = c.cache.Delete(ctx, key)
	case !errors.Is(err, cache.ErrCacheMiss):
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
	}

	res, err := c.next.Load(ctx, req)
	if err != nil {
		return Result[T]{}, err
	}

	data, err := json.Marshal(res.Items)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to encode page for cache")
		return res, nil
	}
	if err := c.cache.Set(ctx, key, cache.NewEntry(data, res.TotalPages, c.ttl)); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache page")
	} else {
		c.logger.Debug().Str("key", key.String()).Dur("ttl", c.ttl).Msg("Cached page")
	}
	return res, nil
}

// Invalidate drops every cached page of the endpoint.
func (c *Cached[T]) Invalidate(ctx context.Context) (int, error) {
	n, err := c.cache.Invalidate(ctx, c.endpoint)
	if err != nil {
		return 0, err
	}
	c.logger.Info().Int("entries", n).Msg("Page cache invalidated")
	return n, nil
}
