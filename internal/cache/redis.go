// Package cache provides an optional redis-backed response cache. When
// redis is unreachable the cache disables itself and every operation
// becomes a no-op, so chat still works without it.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pingTimeout = 2 * time.Second

// Cache is a JSON key-value cache over redis.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	enabled bool
	logger  *zap.Logger
}

// New connects to redis at url. A parse or ping failure logs a warning and
// returns a disabled cache rather than an error.
func New(url string, ttl time.Duration, logger *zap.Logger) *Cache {
	c := &Cache{ttl: ttl, logger: logger}

	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn("invalid redis url, cache disabled", zap.Error(err))
		return c
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, cache disabled", zap.Error(err))
		client.Close()
		return c
	}

	c.client = client
	c.enabled = true
	logger.Info("redis cache connected", zap.Duration("ttl", ttl))
	return c
}

// Disabled returns a permanently disabled cache.
func Disabled() *Cache {
	return &Cache{logger: zap.NewNop()}
}

// Enabled reports whether the cache is live.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Get unmarshals the cached value for key into dest. Returns false on miss
// or when disabled.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if !c.enabled {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("cache entry corrupt, ignoring", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set stores value under key with the configured TTL. No-op when disabled;
// errors are logged and swallowed.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	if !c.enabled {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes a key. No-op when disabled.
func (c *Cache) Delete(ctx context.Context, key string) {
	if !c.enabled {
		return
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Close releases the redis connection.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
