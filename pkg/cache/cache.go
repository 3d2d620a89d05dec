package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/grayforge/keyward/pkg/iamerr"
)

// Cache wraps a redis client with the idempotent set/get/hset/hget/del/
// expire surface the kernel packages build their typed views on.
type Cache struct {
	rdb *redis.Client
}

// New wraps rdb for use by the IAM kernel packages.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// ErrMiss is returned by Get/HGet when the key (or field) is absent.
var ErrMiss = errors.New("cache: miss")

// Set stores value at key with the given TTL. ttl <= 0 means no expiry.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "cache", "set", "writing key", err)
	}
	return nil
}

// Get fetches key's value, returning ErrMiss on cache miss.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", iamerr.Wrap(iamerr.KindInternal, "cache", "get", "reading key", err)
	}
	return v, nil
}

// Del removes key (a no-op, not an error, if already absent).
func (c *Cache) Del(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "cache", "del", "deleting key", err)
	}
	return nil
}

// Expire resets key's TTL.
func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "cache", "expire", "resetting ttl", err)
	}
	return nil
}

// HSet sets field within the hash at key.
func (c *Cache) HSet(ctx context.Context, key, field, value string) error {
	if err := c.rdb.HSet(ctx, key, field, value).Err(); err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "cache", "hset", "writing hash field", err)
	}
	return nil
}

// HGet fetches field from the hash at key, returning ErrMiss on miss.
func (c *Cache) HGet(ctx context.Context, key, field string) (string, error) {
	v, err := c.rdb.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", iamerr.Wrap(iamerr.KindInternal, "cache", "hget", "reading hash field", err)
	}
	return v, nil
}

// HGetAll returns every field/value pair in the hash at key.
func (c *Cache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "cache", "hgetall", "reading hash", err)
	}
	return m, nil
}

// HDel removes field from the hash at key.
func (c *Cache) HDel(ctx context.Context, key, field string) error {
	if err := c.rdb.HDel(ctx, key, field).Err(); err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "cache", "hdel", "deleting hash field", err)
	}
	return nil
}

// ScanKeys walks the keyspace for keys matching pattern (glob syntax),
// using cursor-based SCAN so large keyspaces never block the server the
// way KEYS would. Used by the tenant/app session-teardown walk.
func (c *Cache) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var out []string
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, iamerr.Wrap(iamerr.KindInternal, "cache", "scan", "scanning keys", err)
	}
	return out, nil
}

// Incr atomically increments the integer at key and returns its new value.
// Used by the credential engine's per-ak failure counter.
func (c *Cache) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, iamerr.Wrap(iamerr.KindInternal, "cache", "incr", "incrementing counter", err)
	}
	return n, nil
}
