package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/listing"
	"github.com/spigell/job-harvester/internal/logger"
)

const (
	DefaultCacheTTL = 6 * time.Hour
	cachePrefix     = "job-harvester:page:"
)

// Cache is the part of a redis client the page cache needs.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Cached keeps successfully fetched pages in redis. Failures are never cached
// and a broken cache only costs a fresh fetch.
type Cached struct {
	next   Fetcher
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCached(next Fetcher, cache Cache, ttl time.Duration, log *zap.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{next: next, cache: cache, ttl: ttl, logger: logger.ForStage(log, "fetch_cache")}
}

func (c *Cached) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	key := cacheKey(rawURL)

	if page, ok := c.lookup(ctx, key); ok {
		return page, nil
	}

	page, err := c.next.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(page)
	if err != nil {
		c.logger.Debug("page not cacheable", zap.String(logger.FieldURL, rawURL), zap.Error(err))
		return page, nil
	}
	if err := c.cache.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Debug("cache write failed", zap.String(logger.FieldURL, rawURL), zap.Error(err))
	}

	return page, nil
}

func (c *Cached) Text(ctx context.Context, rawURL string) string {
	return textOf(ctx, c, c.logger, rawURL)
}

func (c *Cached) lookup(ctx context.Context, key string) (*Page, bool) {
	raw, err := c.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var page Page
	if err := json.Unmarshal(raw, &page); err != nil || page.Text == "" {
		c.logger.Debug("cache entry ignored", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &page, true
}

func cacheKey(rawURL string) string {
	if normalized, ok := listing.NormalizeURL(rawURL); ok {
		return cachePrefix + normalized
	}
	return cachePrefix + rawURL
}
