// Package redis is a cache.Cache backed by go-redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/NIMOLA/hermeos-backend-sub002/cache"
)

var _ cache.Cache = (*Cache)(nil)

// Cache wraps a go-redis client.
type Cache struct {
	rdb *goredis.Client
}

// New connects to url (redis://...) and verifies the connection.
func New(ctx context.Context, url string) (*Cache, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache/redis: invalid url: %w", err)
	}

	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache/redis: connect: %w", err)
	}

	return &Cache{rdb: rdb}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(rdb *goredis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", cache.ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("cache/redis: get %s: %w", key, err)
	}
	return v, nil
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache/redis: set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache/redis: setnx %s: %w", key, err)
	}
	return ok, nil
}

// swapScript sets KEYS[1] to ARGV[2] only while it holds ARGV[1]. ARGV[3] is
// the TTL in milliseconds; zero keeps the key forever.
var swapScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`)

func (c *Cache) Swap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	n, err := swapScript.Run(ctx, c.rdb, []string{key}, old, value, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("cache/redis: swap %s: %w", key, err)
	}
	return n == 1, nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache/redis: del: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
