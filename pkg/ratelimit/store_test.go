package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
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

func testStores(t *testing.T) map[string]StateStore {
	stores := map[string]StateStore{"memory": NewMemoryStore()}
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	if err := client.Ping(context.Background()).Err(); err == nil {
		client.Close()
		stores["redis"] = NewRedisStore(setupTestRedis(t), "test")
	} else {
		client.Close()
	}
	return stores
}

func TestStateStore_RoundTrip(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got != nil {
				t.Fatalf("Load() on empty store = %+v, want nil", got)
			}

			want := &State{
				Remaining:  42,
				ResetAt:    time.Now().Add(time.Minute).Truncate(time.Second),
				LastUpdate: time.Now().UTC(),
			}
			if err := store.Save(ctx, want); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			got, err = store.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got.Remaining != want.Remaining {
				t.Errorf("Remaining = %d, want %d", got.Remaining, want.Remaining)
			}
			if !got.ResetAt.Equal(want.ResetAt) {
				t.Errorf("ResetAt = %v, want %v", got.ResetAt, want.ResetAt)
			}
			if !got.LastUpdate.Equal(want.LastUpdate) {
				t.Errorf("LastUpdate = %v, want %v", got.LastUpdate, want.LastUpdate)
			}
		})
	}
}

func TestRedisStore_SharedBetweenTrackers(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	a := NewTracker(NewRedisStore(client, "shared"), DefaultConfig(), zerolog.Nop())
	b := NewTracker(NewRedisStore(client, "shared"), DefaultConfig(), zerolog.Nop())

	headers := http.Header{}
	headers.Set(HeaderRemaining, "3")
	headers.Set(HeaderReset, "60")
	if err := a.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	state, err := b.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Remaining != 3 {
		t.Errorf("Remaining seen by second tracker = %d, want 3", state.Remaining)
	}
}
