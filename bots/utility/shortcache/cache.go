// Package shortcache keeps shortened links in redis so repeated requests skip the remote API.
package shortcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/utilitybot/core/logger"
)

const keyPrefix = "utilitybot:short:"

type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Options configures the redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Cache maps long URLs to short ones.
type Cache struct {
	client client
	ttl    time.Duration
}

// Connect dials redis and verifies it answers.
func Connect(ctx context.Context, opts Options) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	start := time.Now()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	logger.Info(ctx, "cache", "connect",
		slog.String("status", "ok"),
		slog.String("addr", opts.Addr),
		slog.Duration("ttl", opts.TTL),
		slog.Duration("duration", logger.Took(start)),
	)
	return newCache(rdb, opts.TTL), nil
}

func newCache(c client, ttl time.Duration) *Cache {
	return &Cache{client: c, ttl: ttl}
}

// Get returns the cached short link; a miss is not an error.
func (c *Cache) Get(ctx context.Context, longURL string) (string, bool, error) {
	v, err := c.client.Get(ctx, key(longURL)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("cache get: %w", err)
	}
	return v, true, nil
}

// Set stores a short link for the configured TTL.
func (c *Cache) Set(ctx context.Context, longURL, shortURL string) error {
	if err := c.client.Set(ctx, key(longURL), shortURL, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Ping reports whether redis answers.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// long URLs make poor keys; hash them
func key(longURL string) string {
	sum := sha256.Sum256([]byte(longURL))
	return keyPrefix + hex.EncodeToString(sum[:])
}
