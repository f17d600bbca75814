package loader

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/lazyload/pkg/cache"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

type countingLoader struct {
	calls atomic.Int32
	err   error
}

func (c *countingLoader) Load(ctx context.Context, req Request) (Result[string], error) {
	c.calls.Add(1)
	if c.err != nil {
		return Result[string]{}, c.err
	}
	return Result[string]{Items: []string{req.Query, "x"}, TotalPages: 4}, nil
}

func TestCached_ReadThrough(t *testing.T) {
	manager := cache.NewManager(setupTestRedis(t))
	next := &countingLoader{}
	c := NewCached[string](next, manager, "/items", time.Minute, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := c.Load(ctx, Request{Page: 1, Query: "go"})
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(res.Items) != 2 || res.Items[0] != "go" || res.TotalPages != 4 {
			t.Fatalf("Load() = %+v", res)
		}
	}
	if got := next.calls.Load(); got != 1 {
		t.Errorf("underlying calls = %d, want 1", got)
	}

	// Different query is a different entry.
	if _, err := c.Load(ctx, Request{Page: 1, Query: "rust"}); err != nil {
		t.Fatal(err)
	}
	if got := next.calls.Load(); got != 2 {
		t.Errorf("underlying calls = %d, want 2", got)
	}
}

func TestCached_ErrorsNotCached(t *testing.T) {
	manager := cache.NewManager(setupTestRedis(t))
	next := &countingLoader{err: errors.New("down")}
	c := NewCached[string](next, manager, "/items", time.Minute, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, err := c.Load(context.Background(), Request{Page: 1}); err == nil {
			t.Fatal("expected error")
		}
	}
	if got := next.calls.Load(); got != 2 {
		t.Errorf("underlying calls = %d, want 2", got)
	}
}

func TestCached_Invalidate(t *testing.T) {
	manager := cache.NewManager(setupTestRedis(t))
	next := &countingLoader{}
	c := NewCached[string](next, manager, "/items", time.Minute, zerolog.Nop())
	ctx := context.Background()

	c.Load(ctx, Request{Page: 1})
	c.Load(ctx, Request{Page: 2})

	n, err := c.Invalidate(ctx)
	if err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Invalidate() = %d, want 2", n)
	}

	c.Load(ctx, Request{Page: 1})
	if got := next.calls.Load(); got != 3 {
		t.Errorf("underlying calls = %d, want 3 after invalidation", got)
	}
}

func TestCached_UndecodableEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := cache.NewManager(client)
	next := &countingLoader{}
	c := NewCached[string](next, manager, "/items", time.Minute, zerolog.Nop())
	ctx := context.Background()

	key := cache.Key{Endpoint: "/items", Page: 1}
	manager.Set(ctx, key, cache.NewEntry([]byte(`{"not":"a list"}`), 1, time.Minute))

	res, err := c.Load(ctx, Request{Page: 1})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(res.Items) != 2 {
		t.Errorf("Items = %v, want fresh load", res.Items)
	}
	if got := next.calls.Load(); got != 1 {
		t.Errorf("underlying calls = %d, want 1", got)
	}
}
