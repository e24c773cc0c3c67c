// Package rds wraps go-redis with the small set of primitives the services share
package rds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config addresses a single Redis node
type Config struct {
	Addr     string
	DB       int
	Password string
}

// Open connects and verifies the server answers PING
func Open(ctx context.Context, cfg Config) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DB:           cfg.DB,
		Password:     cfg.Password,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return c, nil
}

// Claim sets key only if it is absent, expiring after ttl
// It reports whether this caller now holds the key
func Claim(ctx context.Context, c redis.Cmdable, key string, ttl time.Duration) (bool, error) {
	err := c.SetArgs(ctx, key, time.Now().UTC().Format(time.RFC3339Nano), redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}

// Release deletes a claimed key
func Release(ctx context.Context, c redis.Cmdable, key string) error {
	return c.Del(ctx, key).Err()
}

// Cache stores JSON values under a key prefix with a fixed TTL
type Cache[T any] struct {
	c      redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewCache returns a cache; a nil client yields a cache that always misses
func NewCache[T any](c redis.Cmdable, prefix string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{c: c, prefix: prefix, ttl: ttl}
}

// Get returns the cached value and whether it was present
func (k *Cache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if k == nil || k.c == nil {
		return zero, false, nil
	}
	raw, err := k.c.Get(ctx, k.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Set stores v for the cache TTL
func (k *Cache[T]) Set(ctx context.Context, key string, v T) error {
	if k == nil || k.c == nil || k.ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return k.c.Set(ctx, k.prefix+key, raw, k.ttl).Err()
}

// Delete drops a cached value
func (k *Cache[T]) Delete(ctx context.Context, key string) error {
	if k == nil || k.c == nil {
		return nil
	}
	return k.c.Del(ctx, k.prefix+key).Err()
}
