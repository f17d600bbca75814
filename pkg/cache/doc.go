// Package cache stores loaded pages in Redis so repeated page requests
// (scrolling back into a listing, re-running a search, prefetching) do not
// hit the source again.
//
// Entries are keyed by endpoint, page number and search query and expire
// after a fixed TTL.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{Endpoint: "/items", Page: 2, Query: "go"}
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// load the page, then
//		manager.Set(ctx, key, cache.NewEntry(data, totalPages, 5*time.Minute))
//	}
//
// Invalidate drops every cached page of an endpoint, e.g. after the source
// data changed:
//
//	n, err := manager.Invalidate(ctx, "/items")
//
// # Metrics
//
//   - lazyload_cache_hits_total - Cache hits
//   - lazyload_cache_misses_total - Cache misses (absent or expired)
//   - lazyload_cache_errors_total{operation} - Redis or decode errors
//   - lazyload_cache_invalidated_total - Entries removed by Invalidate
package cache
