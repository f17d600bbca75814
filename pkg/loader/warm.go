package loader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// WarmConfig holds prefetch worker pool configuration.
type WarmConfig struct {
	// MaxConcurrency is the maximum number of parallel page loads.
	MaxConcurrency int

	// Timeout per page load.
	Timeout time.Duration
}

// DefaultWarmConfig returns the default pool settings.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// PageResult is the outcome of loading one page during a warm-up.
type PageResult[T any] struct {
	Page   int
	Result Result[T]
	Err    error
}

// Warm loads pages from..to of query in parallel through l. It is meant
// for a cached loader, so that later Advance calls are served from cache.
//
// Successful pages are returned even when some pages fail; the error then
// reports how many pages were loaded.
func Warm[T any](ctx context.Context, l Loader[T], query string, from, to int, cfg WarmConfig, logger zerolog.Logger) (map[int]Result[T], error) {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if from < 1 {
		from = 1
	}
	results := make(map[int]Result[T])
	if to < from {
		return results, nil
	}

	start := time.Now()
	total := to - from + 1
	logger.Debug().
		Str("query", query).
		Int("from", from).
		Int("to", to).
		Msg("Starting page warm-up")

	pageQueue := make(chan int, total)
	pageResults := make(chan PageResult[T], total)
	for page := from; page <= to; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	workers := min(cfg.MaxConcurrency, total)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go warmWorker(ctx, l, query, cfg.Timeout, pageQueue, pageResults, &wg, i, logger)
	}

	go func() {
		wg.Wait()
		close(pageResults)
	}()

	var firstErr error
	failed := 0
	for r := range pageResults {
		if r.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = r.Err
			}
			logger.Warn().Err(r.Err).Int("page", r.Page).Msg("Warm-up page failed")
			continue
		}
		results[r.Page] = r.Result
	}

	if firstErr != nil {
		return results, fmt.Errorf("warm-up incomplete (%d/%d pages): %w", len(results), total, firstErr)
	}
	if err := ctx.Err(); err != nil && len(results) < total {
		return results, fmt.Errorf("warm-up cancelled (%d/%d pages): %w", len(results), total, err)
	}

	logger.Debug().
		Str("query", query).
		Int("pages", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Warm-up complete")
	return results, nil
}

func warmWorker[T any](ctx context.Context, l Loader[T], query string, timeout time.Duration, pageQueue <-chan int, results chan<- PageResult[T], wg *sync.WaitGroup, workerID int, logger zerolog.Logger) {
	defer wg.Done()
	pagesProcessed := 0

	for page := range pageQueue {
		select {
		case <-ctx.Done():
			logger.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		pageCtx, cancel := context.WithTimeout(ctx, timeout)
		res, err := l.Load(pageCtx, Request{Page: page, Query: query})
		cancel()

		results <- PageResult[T]{Page: page, Result: res, Err: err}
		pagesProcessed++
	}
}
