package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"eventcraft/internal/models"
	"eventcraft/internal/store"
)

const (
	// apiKeyPrefix namespaces resolved API keys in Valkey.
	apiKeyPrefix = "apikey:"

	// KeyTTL is how long a key resolution is trusted.
	KeyTTL = 5 * time.Minute
)

// KeyResolver maps a raw API key to its owner, or nil when the key is
// unknown or revoked.
type KeyResolver interface {
	Resolve(ctx context.Context, raw string) (*models.User, error)
}

// KeyCache caches KeyResolver lookups by key hash. The cached user's
// Credits may be stale; read the balance from the database when it
// matters.
type KeyCache struct {
	next  KeyResolver
	cache *JSONCache
}

// NewKeyCache wraps next with a Valkey cache. With a nil client every
// call goes straight to next.
func NewKeyCache(client *redis.Client, next KeyResolver) *KeyCache {
	return &KeyCache{next: next, cache: NewJSONCache(client, apiKeyPrefix, KeyTTL)}
}

// Resolve returns the cached owner of raw, falling back to next. Misses
// are not cached so a newly created key works immediately.
func (k *KeyCache) Resolve(ctx context.Context, raw string) (*models.User, error) {
	hash := store.HashKey(raw)

	var u models.User
	if k.cache.Get(ctx, hash, &u) {
		return &u, nil
	}

	user, err := k.next.Resolve(ctx, raw)
	if err != nil || user == nil {
		return user, err
	}
	k.cache.Set(ctx, hash, user)
	return user, nil
}

// Evict drops the cached resolutions for the given key hashes, after a
// key is revoked or its owner's plan or role changes.
func (k *KeyCache) Evict(ctx context.Context, hashes ...string) {
	for _, h := range hashes {
		k.cache.Delete(ctx, h)
	}
}

