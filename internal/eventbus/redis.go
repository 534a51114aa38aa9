/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_signage/internal/events"
)

const redisChannelPrefix = "signage:events:"

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxFailures consecutive publish or subscribe errors switch the bus to
	// local-only delivery.
	MaxFailures int
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxFailures:  5,
	}
}

// RedisBus mirrors content events between instances over Redis pub/sub, so
// an edit made through one instance nudges viewers attached to another.
type RedisBus struct {
	relay
	client *redis.Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	channels  map[events.EventType]*redis.PubSub
	localOnly bool
	failures  int
	maxFails  int
}

// NewRedisBus creates a Redis-backed event bus. When Redis is unreachable the
// bus still serves same-process subscribers.
func NewRedisBus(cfg RedisConfig, nodeID string, logger zerolog.Logger) (*RedisBus, error) {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	ctx, cancel := context.WithCancel(context.Background())
	rb := &RedisBus{
		relay: newRelay("redis", nodeID, logger),
		client: redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}),
		ctx:      ctx,
		cancel:   cancel,
		channels: make(map[events.EventType]*redis.PubSub),
		maxFails: cfg.MaxFailures,
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, cfg.DialTimeout+time.Second)
	defer pingCancel()
	if err := rb.client.Ping(pingCtx).Err(); err != nil {
		rb.logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unreachable, delivering events locally only")
		rb.localOnly = true
		return rb, nil
	}

	rb.logger.Info().Str("addr", cfg.Addr).Str("node_id", rb.nodeID).Msg("redis event bus ready")
	return rb, nil
}

// NodeID identifies this instance on the bus.
func (rb *RedisBus) NodeID() string { return rb.nodeID }

// Subscribe registers a local subscriber. The first subscriber of a type
// opens the matching Redis channel.
func (rb *RedisBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := rb.local.Subscribe(eventType)

	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.localOnly {
		return sub
	}
	if _, open := rb.channels[eventType]; open {
		return sub
	}

	pubsub := rb.client.Subscribe(rb.ctx, redisChannelPrefix+string(eventType))
	if _, err := pubsub.Receive(rb.ctx); err != nil {
		rb.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("redis subscribe failed")
		_ = pubsub.Close()
		rb.failedLocked()
		return sub
	}
	rb.channels[eventType] = pubsub

	rb.wg.Add(1)
	go rb.pump(eventType, pubsub)
	return sub
}

func (rb *RedisBus) pump(eventType events.EventType, pubsub *redis.PubSub) {
	defer rb.wg.Done()
	ch := pubsub.Channel()
	for {
		select {
		case <-rb.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			rb.deliver(eventType, []byte(msg.Payload))
		}
	}
}

// Publish delivers payload to local subscribers and, unless the bus has gone
// local-only, to every other node.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.local.Publish(eventType, payload)

	rb.mu.Lock()
	localOnly := rb.localOnly
	rb.mu.Unlock()
	if localOnly {
		return
	}

	data, ok := rb.encode(eventType, payload)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()
	err := rb.client.Publish(ctx, redisChannelPrefix+string(eventType), data).Err()

	rb.mu.Lock()
	defer rb.mu.Unlock()
	if err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("redis publish failed")
		rb.failedLocked()
		return
	}
	rb.failures = 0
	rb.sent()
}

// Unsubscribe removes a subscriber. The Redis channel closes with the last
// local subscriber of its type.
func (rb *RedisBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	rb.local.Unsubscribe(eventType, sub)

	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.local.Count(eventType) > 0 {
		return
	}
	if pubsub, open := rb.channels[eventType]; open {
		_ = pubsub.Close()
		delete(rb.channels, eventType)
	}
}

// Close stops every channel pump and the Redis client.
func (rb *RedisBus) Close() error {
	rb.cancel()

	rb.mu.Lock()
	for eventType, pubsub := range rb.channels {
		_ = pubsub.Close()
		delete(rb.channels, eventType)
	}
	rb.mu.Unlock()

	rb.wg.Wait()
	if err := rb.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

// failedLocked counts a failure and goes local-only after maxFails in a row.
func (rb *RedisBus) failedLocked() {
	rb.failures++
	if rb.failures >= rb.maxFails && !rb.localOnly {
		rb.localOnly = true
		rb.logger.Error().Int("failures", rb.failures).Msg("redis failing, delivering events locally only")
	}
}
