// Package cache implements the scanner's Hot Cache (component D): a thin
// TTL key-value layer over Redis holding candle windows and the latest
// snapshot and benchmark payloads. Grounded on the teacher's
// internal/store/redis/writer.go pipelined-write convention, simplified
// from stream/pubsub fan-out down to plain GET/SET since the cache here
// serves point reads, not a live tick feed.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Config configures the Redis connection backing the cache.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Cache implements model.Cache over a single go-redis client.
type Cache struct {
	client *goredis.Client
}

// New creates a Cache and pings the server, matching the teacher's
// connect-and-verify pattern in internal/store/redis/writer.go.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[cache] connected to %s", cfg.Addr)
	return &Cache{client: client}, nil
}

// Client returns the underlying client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// GetJSON fetches key and unmarshals it into out. Returns (false, nil) on
// a cache miss.
func (c *Cache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, ok, err := c.GetBytes(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("cache: unmarshal %s: %w", key, err)
	}
	return true, nil
}

// SetJSON marshals val and stores it under key with the given TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	return c.SetBytes(ctx, key, raw, ttl)
}

// GetBytes fetches the raw value at key. Returns (nil, false, nil) on miss.
func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	return raw, true, nil
}

// SetBytes stores val under key with the given TTL. A zero TTL means no
// expiry, matching go-redis's SET semantics.
func (c *Cache) SetBytes(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (c *Cache) Close() error { return c.client.Close() }
