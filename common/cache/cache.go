package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/burakmert236/volei-list/common/logger"
)

const DefaultCleanupInterval = 30 * time.Minute

// Cache is a typed in-process cache. A zero or negative ttl on construction
// disables it: Get always misses and Set is a no-op.
type Cache[V any] struct {
	name    string
	ttl     time.Duration
	store   *gocache.Cache
	logger  *logger.Logger
	enabled bool
}

func New[V any](name string, ttl time.Duration, log *logger.Logger) *Cache[V] {
	if log == nil {
		log = logger.Nop()
	}

	cleanup := DefaultCleanupInterval
	if ttl > 0 && ttl*2 < cleanup {
		cleanup = ttl * 2
	}

	return &Cache[V]{
		name:    name,
		ttl:     ttl,
		store:   gocache.New(ttl, cleanup),
		logger:  log,
		enabled: ttl > 0,
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if !c.enabled {
		return zero, false
	}

	value, found := c.store.Get(key)
	if !found {
		return zero, false
	}

	v, ok := value.(V)
	if !ok {
		c.logger.Error("wrong type in cache", "cache", c.name, "key", key)
		return zero, false
	}

	return v, true
}

func (c *Cache[V]) Set(key string, value V) {
	if !c.enabled {
		return
	}
	c.store.Set(key, value, c.ttl)
}

func (c *Cache[V]) Delete(keys ...string) {
	for _, key := range keys {
		c.store.Delete(key)
	}
}

func (c *Cache[V]) Flush() {
	c.store.Flush()
}

func (c *Cache[V]) Enabled() bool {
	return c.enabled
}
