/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for media snapshots.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/friendsincode/grimnir_signage/internal/content"
	"github.com/friendsincode/grimnir_signage/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultMediaItemTTL bounds how long a media snapshot may be served stale
// when an invalidation event is missed.
const DefaultMediaItemTTL = 15 * time.Minute

// Key prefixes for Redis cache
const (
	KeyPrefix    = "signage:cache:"
	KeyMediaItem = KeyPrefix + "media:" // + media_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MediaItemTTL time.Duration

	// If true, disable caching on Redis errors
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		MediaItemTTL:   DefaultMediaItemTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New creates a new cache instance. An unreachable Redis yields a disabled
// cache rather than an error.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	if cfg.MediaItemTTL <= 0 {
		cfg.MediaItemTTL = DefaultMediaItemTTL
	}
	logger = logger.With().Str("component", "cache").Logger()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{logger: logger, config: cfg, disabled: true}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")
	return &Cache{client: client, logger: logger, config: cfg}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	telemetry.CacheRequestsTotal.WithLabelValues("error").Inc()
	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

func (c *Cache) delete(ctx context.Context, keys ...string) error {
	if !c.IsAvailable() || len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}
	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// SCAN rather than KEYS so large keyspaces do not block Redis
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}
		if err := c.delete(ctx, keys...); err != nil {
			return err
		}
		cursor = nextCursor
		if cursor == 0 {
			return nil
		}
	}
}

// GetMediaItems returns cached snapshots for ids and the ids that missed.
func (c *Cache) GetMediaItems(ctx context.Context, ids []string) (map[string]content.MediaItem, []string) {
	found := make(map[string]content.MediaItem, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	if !c.IsAvailable() {
		return found, ids
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = KeyMediaItem + id
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.handleError(err, "mget")
		return found, ids
	}

	var missing []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var item content.MediaItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil || item.ID != ids[i] {
			c.logger.Debug().Str("key", keys[i]).Msg("discarding unreadable cached media item")
			missing = append(missing, ids[i])
			continue
		}
		found[item.ID] = item
	}

	telemetry.CacheRequestsTotal.WithLabelValues("hit").Add(float64(len(found)))
	telemetry.CacheRequestsTotal.WithLabelValues("miss").Add(float64(len(missing)))
	return found, missing
}

// SetMediaItems caches snapshots under their ids in one round trip.
func (c *Cache) SetMediaItems(ctx context.Context, items map[string]content.MediaItem) error {
	if !c.IsAvailable() || len(items) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for id, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal media %s: %w", id, err)
		}
		pipe.Set(ctx, KeyMediaItem+id, data, c.config.MediaItemTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.handleError(err, "set")
		return err
	}
	return nil
}

// InvalidateMediaItem removes a media snapshot.
func (c *Cache) InvalidateMediaItem(ctx context.Context, mediaID string) error {
	c.logger.Debug().Str("media_id", mediaID).Msg("invalidating media cache")
	return c.delete(ctx, KeyMediaItem+mediaID)
}

// Flush removes every key this cache owns.
func (c *Cache) Flush(ctx context.Context) error {
	return c.deletePattern(ctx, KeyPrefix+"*")
}
