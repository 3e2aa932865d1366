package application

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CacheStats is a snapshot of cache usage.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// CacheService is a bounded LRU whose entries expire after a TTL. The LRU
// locks internally; mu only guards the counters.
type CacheService[K comparable, V any] struct {
	lru *expirable.LRU[K, V]

	mu     sync.Mutex
	hits   uint64
	misses uint64
}

func NewCacheService[K comparable, V any](size int, ttl time.Duration) *CacheService[K, V] {
	return &CacheService[K, V]{lru: expirable.NewLRU[K, V](size, nil, ttl)}
}

func (c *CacheService[K, V]) Get(key K) (V, bool) {
	v, ok := c.lru.Get(key)
	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
	return v, ok
}

func (c *CacheService[K, V]) Set(key K, value V) {
	c.lru.Add(key, value)
}

func (c *CacheService[K, V]) Invalidate(key K) {
	c.lru.Remove(key)
}

func (c *CacheService[K, V]) Purge() {
	c.lru.Purge()
}

func (c *CacheService[K, V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: c.lru.Len()}
}
