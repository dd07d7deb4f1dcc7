package directory

import (
	"context"
	"errors"
	"time"

	"persona-nft/backend/pkg/cache"
	"persona-nft/backend/pkg/logger"
	"persona-nft/backend/shared/redis"
)

// Cache stores resolved records between reads
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// MemoryCache keeps entries in process
type MemoryCache struct {
	items *cache.Cache
}

// NewMemoryCache creates a process-local cache
func NewMemoryCache(ttl time.Duration, maxItems int, purgeEvery time.Duration) *MemoryCache {
	return &MemoryCache{items: cache.New(cache.Options{
		DefaultExpiration: ttl,
		CleanupInterval:   purgeEvery,
		MaxItems:          maxItems,
	})}
}

// Get implements Cache
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.items.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

// Set implements Cache
func (m *MemoryCache) Set(_ context.Context, key string, value []byte) {
	m.items.Set(key, value)
}

// Close stops the purge loop
func (m *MemoryCache) Close() {
	m.items.Close()
}

// RedisCache shares entries between replicas
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCache wraps a redis client
func NewRedisCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, log: log}
}

// Get implements Cache; redis errors count as misses
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.client.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.ErrMiss) {
			r.log.Warn("Redis cache read failed", "key", key, "error", err.Error())
		}
		return nil, false
	}
	return b, true
}

// Set implements Cache
func (r *RedisCache) Set(ctx context.Context, key string, value []byte) {
	if err := r.client.Set(ctx, key, value, r.ttl); err != nil {
		r.log.Warn("Redis cache write failed", "key", key, "error", err.Error())
	}
}
