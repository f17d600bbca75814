package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore persists the budget state.
type StateStore interface {
	// Load returns the stored state, or nil when nothing was stored yet.
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, s *State) error
}

// MemoryStore keeps the state in process.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements StateStore.
func (m *MemoryStore) Load(context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	s := *m.state
	return &s, nil
}

// Save implements StateStore.
func (m *MemoryStore) Save(_ context.Context, s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.state = &cp
	return nil
}

// Redis key suffixes for the state fields.
const (
	redisKeyRemaining  = "remaining"
	redisKeyResetAt    = "reset_timestamp"
	redisKeyLastUpdate = "last_update"
)

// RedisStore shares the state between processes that use the same source.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStore stores state under "lazyload:ratelimit:<source>:*".
func NewRedisStore(client *redis.Client, source string) *RedisStore {
	return &RedisStore{
		redis:  client,
		prefix: "lazyload:ratelimit:" + source + ":",
	}
}

// Load implements StateStore.
func (r *RedisStore) Load(ctx context.Context) (*State, error) {
	remaining, err := r.redis.Get(ctx, r.prefix+redisKeyRemaining).Int()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get remaining: %w", err)
	}

	resetTimestamp, err := r.redis.Get(ctx, r.prefix+redisKeyResetAt).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	lastUpdateStr, err := r.redis.Get(ctx, r.prefix+redisKeyLastUpdate).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	return &State{
		Remaining:  remaining,
		ResetAt:    time.Unix(resetTimestamp, 0),
		LastUpdate: lastUpdate,
	}, nil
}

// Save implements StateStore. The fields are written in one pipeline.
func (r *RedisStore) Save(ctx context.Context, s *State) error {
	lastUpdateJSON, err := json.Marshal(s.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	pipe := r.redis.Pipeline()
	pipe.Set(ctx, r.prefix+redisKeyRemaining, s.Remaining, 0)
	pipe.Set(ctx, r.prefix+redisKeyResetAt, s.ResetAt.Unix(), 0)
	pipe.Set(ctx, r.prefix+redisKeyLastUpdate, lastUpdateJSON, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}
