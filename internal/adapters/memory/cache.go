// Package memory holds in-process stores used when Valkey is unavailable.
package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/samirrijal/poiguide/internal/core/domain"
)

// Cache implements ports.CacheService on go-cache.
type Cache struct {
	store *gocache.Cache
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{store: gocache.New(5*time.Minute, 10*time.Minute)}
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, domain.ErrNotFound
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

// Set stores a value with a TTL in seconds. Zero keeps the default expiry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	ttl := gocache.DefaultExpiration
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	c.store.Set(key, value, ttl)
	return nil
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.store.Delete(key)
	return nil
}

// Ping always succeeds; the cache lives in-process.
func (c *Cache) Ping(ctx context.Context) error { return nil }

// Len reports the number of live entries.
func (c *Cache) Len() int { return c.store.ItemCount() }

// AudioStore implements ports.AudioStore on a Cache.
type AudioStore struct {
	cache *Cache
	ttl   int
}

// NewAudioStore keeps audio in cache for ttlSeconds.
func NewAudioStore(cache *Cache, ttlSeconds int) *AudioStore {
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}
	return &AudioStore{cache: cache, ttl: ttlSeconds}
}

// Put stores audio under id.
func (s *AudioStore) Put(ctx context.Context, id string, audio []byte) error {
	return s.cache.Set(ctx, "audio:"+id, audio, s.ttl)
}

// Get returns the audio stored under id.
func (s *AudioStore) Get(ctx context.Context, id string) ([]byte, error) {
	return s.cache.Get(ctx, "audio:"+id)
}
