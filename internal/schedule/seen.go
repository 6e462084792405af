package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultSeenTTL = 30 * 24 * time.Hour
	seenPrefix     = "job-harvester:seen:"
)

// SeenSet remembers the identity keys of listings already reported to an owner.
// It satisfies filtering.History.
type SeenSet interface {
	Seen(ctx context.Context, keys []string) ([]string, error)
	Mark(ctx context.Context, keys []string) error
}

// SetStore is the part of a redis client the seen set needs.
type SetStore interface {
	SMIsMember(ctx context.Context, key string, members ...any) *redis.BoolSliceCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisSeen keeps one redis set per owner. The ttl is refreshed on every Mark,
// so an owner that stops searching is forgotten eventually.
type RedisSeen struct {
	store SetStore
	key   string
	ttl   time.Duration
}

func NewRedisSeen(store SetStore, owner string, ttl time.Duration) *RedisSeen {
	if ttl <= 0 {
		ttl = DefaultSeenTTL
	}
	if owner == "" {
		owner = "default"
	}
	return &RedisSeen{store: store, key: seenPrefix + owner, ttl: ttl}
}

func (r *RedisSeen) Seen(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	flags, err := r.store.SMIsMember(ctx, r.key, members(keys)...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading seen listings: %w", err)
	}

	var seen []string
	for i, ok := range flags {
		if ok && i < len(keys) {
			seen = append(seen, keys[i])
		}
	}
	return seen, nil
}

func (r *RedisSeen) Mark(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.SAdd(ctx, r.key, members(keys)...).Err(); err != nil {
		return fmt.Errorf("marking listings seen: %w", err)
	}
	if err := r.store.Expire(ctx, r.key, r.ttl).Err(); err != nil {
		return fmt.Errorf("refreshing seen ttl: %w", err)
	}
	return nil
}

func members(keys []string) []any {
	result := make([]any, len(keys))
	for i, key := range keys {
		result[i] = key
	}
	return result
}

// MemorySeen is a process-local SeenSet used when no redis is configured.
type MemorySeen struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewMemorySeen() *MemorySeen {
	return &MemorySeen{keys: make(map[string]struct{})}
}

func (m *MemorySeen) Seen(_ context.Context, keys []string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var seen []string
	for _, key := range keys {
		if _, ok := m.keys[key]; ok {
			seen = append(seen, key)
		}
	}
	return seen, nil
}

func (m *MemorySeen) Mark(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		m.keys[key] = struct{}{}
	}
	return nil
}
