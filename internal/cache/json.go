// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// json.go provides a small Valkey-backed cache of JSON documents under a
// key prefix. Cache errors are logged and treated as misses so a Valkey
// outage never fails a request.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a document stays cached when no TTL is given.
const DefaultTTL = 5 * time.Minute

// JSONCache stores JSON-encoded values in Valkey. A nil *JSONCache is
// valid and never hits.
type JSONCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewJSONCache creates a cache whose keys start with prefix. A nil
// client yields a nil cache.
func NewJSONCache(client *redis.Client, prefix string, ttl time.Duration) *JSONCache {
	if client == nil {
		return nil
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &JSONCache{client: client, prefix: prefix, ttl: ttl}
}

// TTL returns the expiry applied by Set.
func (c *JSONCache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

// Get decodes the cached value for key into dst. Reports whether it hit.
func (c *JSONCache) Get(ctx context.Context, key string, dst any) bool {
	if c == nil {
		return false
	}
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		slog.Warn("cache get error", "key", c.prefix+key, "error", err)
		return false
	}
	if err := json.Unmarshal(val, dst); err != nil {
		slog.Warn("cache decode error", "key", c.prefix+key, "error", err)
		return false
	}
	slog.Debug("cache hit", "key", c.prefix+key)
	return true
}

// Set stores v under key with the configured TTL.
func (c *JSONCache) Set(ctx context.Context, key string, v any) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Warn("cache encode error", "key", c.prefix+key, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, payload, c.ttl).Err(); err != nil {
		slog.Warn("cache set error", "key", c.prefix+key, "error", err)
	}
}

// Delete removes key.
func (c *JSONCache) Delete(ctx context.Context, key string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		slog.Warn("cache delete error", "key", c.prefix+key, "error", err)
	}
}

// Clear removes every key under the prefix.
func (c *JSONCache) Clear(ctx context.Context) {
	if c == nil {
		return
	}
	var cursor uint64
	var deleted int
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 100).Result()
		if err != nil {
			slog.Warn("cache scan error", "prefix", c.prefix, "error", err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("cache bulk delete error", "prefix", c.prefix, "error", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Info("cache cleared", "prefix", c.prefix, "deleted", deleted)
	}
}
