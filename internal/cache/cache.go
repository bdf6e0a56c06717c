// Package cache is the server-state layer between screens and the API
// client: identical concurrent reads collapse into one upstream fetch, and
// mutations invalidate by key or prefix to force a refetch.
package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"droffers.app/internal/obs"
)

const defaultTTL = 30 * time.Second

// Fetcher loads the value for a key from the upstream.
type Fetcher func(ctx context.Context) (any, error)

type entry struct {
	value   any
	expires time.Time
}

// Cache is a TTL'd read-through cache with single-flight deduplication.
type Cache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry
}

// Option configures the Cache.
type Option func(*Cache)

// WithTTL overrides the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(fn func() time.Time) Option {
	return func(c *Cache) {
		if fn != nil {
			c.now = fn
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:     defaultTTL,
		now:     time.Now,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds a composite cache key from a resource name and its
// filter/pagination parameters. Encode sorts keys, so equivalent filter sets
// always produce the same key and distinct ones never collide.
func Key(resource string, params url.Values) string {
	if len(params) == 0 {
		return resource
	}
	return resource + "?" + params.Encode()
}

// Get returns the cached value for key, or runs fetch. Concurrent calls for
// the same key while a fetch is in flight share its single result.
func (c *Cache) Get(ctx context.Context, key string, fetch Fetcher) (any, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		obs.CountCacheLookup("hit")
		return e.value, nil
	}

	value, err, shared := c.group.Do(key, func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = entry{value: v, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		obs.CountCacheLookup("shared")
	} else {
		obs.CountCacheLookup("miss")
	}
	return value, nil
}

// Invalidate drops the given keys.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
		c.group.Forget(key)
	}
	c.mu.Unlock()
}

// InvalidatePrefix drops every key for a resource family, e.g. "offers".
func (c *Cache) InvalidatePrefix(prefix string) {
	c.InvalidateMatch(func(key string) bool {
		return key == prefix || strings.HasPrefix(key, prefix+"?") || strings.HasPrefix(key, prefix+"/")
	})
}

// InvalidateMatch drops every key the predicate accepts.
func (c *Cache) InvalidateMatch(match func(key string) bool) {
	c.mu.Lock()
	for key := range c.entries {
		if match(key) {
			delete(c.entries, key)
			c.group.Forget(key)
		}
	}
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ErrWrongType means a key holds a value of a different type: two resources
// are sharing one key.
var ErrWrongType = errors.New("cache: wrong value type for key")

// GetAs is a typed wrapper over Cache.Get.
func GetAs[T any](ctx context.Context, c *Cache, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Get(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T", ErrWrongType, key, v)
	}
	return typed, nil
}
