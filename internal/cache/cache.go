// Package cache implements a tag-versioned response cache on Redis.
//
// Entries are stored under cache:<tag>:v<version>:<key>. Revalidating a tag bumps its
// version, which makes every older entry unreachable; those entries then expire on
// their own TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const TagProducts = "products"

type TagCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *TagCache {
	return &TagCache{client: client, ttl: ttl}
}

func VersionKey(tag string) string {
	return "cache:tag:" + tag
}

func EntryKey(tag string, version int64, key string) string {
	return fmt.Sprintf("cache:%s:v%d:%s", tag, version, key)
}

// Get decodes the cached value into dest. A miss, a Redis failure or a corrupt entry all
// report false so callers fall back to the datastore.
func (c *TagCache) Get(ctx context.Context, tag, key string, dest any) bool {
	if c == nil || c.client == nil {
		return false
	}
	version, err := c.version(ctx, tag)
	if err != nil {
		return false
	}
	raw, err := c.client.Get(ctx, EntryKey(tag, version, key)).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (c *TagCache) Set(ctx context.Context, tag, key string, value any) error {
	if c == nil || c.client == nil {
		return nil
	}
	version, err := c.version(ctx, tag)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return c.client.Set(ctx, EntryKey(tag, version, key), raw, c.ttl).Err()
}

// Revalidate invalidates every entry under tag and returns the new version.
func (c *TagCache) Revalidate(ctx context.Context, tag string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	version, err := c.client.Incr(ctx, VersionKey(tag)).Result()
	if err != nil {
		return 0, fmt.Errorf("revalidate %s: %w", tag, err)
	}
	return version, nil
}

func (c *TagCache) version(ctx context.Context, tag string) (int64, error) {
	v, err := c.client.Get(ctx, VersionKey(tag)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}
