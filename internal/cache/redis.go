package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache stores entities as JSON values in Redis so cache contents
// survive process restarts and are shared across replicas. Any Redis
// failure degrades to a miss; the backing store stays canonical.
type RedisCache[T any] struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisCache[T any](rdb *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisCache[T] {
	return &RedisCache[T]{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *RedisCache[T]) key(id string) string {
	return c.prefix + ":" + id
}

func (c *RedisCache[T]) Get(ctx context.Context, id string) (T, bool) {
	var zero T

	data, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Redis cache read failed",
				zap.String("key", c.key(id)),
				zap.Error(err),
			)
		}
		return zero, false
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		c.logger.Warn("Corrupt cache entry, evicting",
			zap.String("key", c.key(id)),
			zap.Error(err),
		)
		c.rdb.Del(ctx, c.key(id))
		return zero, false
	}
	return value, true
}

func (c *RedisCache[T]) Set(ctx context.Context, id string, value T) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Failed to marshal cache entry",
			zap.String("key", c.key(id)),
			zap.Error(err),
		)
		return
	}
	if err := c.rdb.Set(ctx, c.key(id), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Redis cache write failed",
			zap.String("key", c.key(id)),
			zap.Error(err),
		)
	}
}

func (c *RedisCache[T]) Evict(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, c.key(id)).Err(); err != nil {
		c.logger.Warn("Redis cache evict failed",
			zap.String("key", c.key(id)),
			zap.Error(err),
		)
	}
}
