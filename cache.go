package backline

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache configuration defaults.
const (
	DefaultCacheTTL  = 30 * time.Second
	DefaultCacheSize = 500
)

// CacheConfig configures one Cache instance.
type CacheConfig struct {
	// TTL is the lifetime of every entry; DefaultCacheTTL when zero.
	TTL time.Duration
	// MaxSize bounds the number of entries; DefaultCacheSize when zero.
	MaxSize int
	// Name labels the cache in stats and metrics.
	Name string
	// Metrics optionally mirrors hit/miss/eviction counters to
	// Prometheus. Instrumentation is best-effort and never affects the
	// cached operation.
	Metrics *MetricsCollector
}

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
	createdAt time.Time
	hits      int64
}

// Cache is a generic TTL + LRU value cache used to layer over client
// lookups (case lookups, permission snapshots). Recency is the LRU's
// access order; expired entries are reclaimed lazily on Get, so Len
// can transiently include expired-but-unaccessed entries. Safe for
// concurrent use.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries *lru.Cache[K, *cacheEntry[V]]

	ttl     time.Duration
	maxSize int
	name    string
	metrics *MetricsCollector

	hits      int64
	misses    int64
	evictions int64
}

// CacheStats is a snapshot of one cache, cumulative since the last
// Clear.
type CacheStats struct {
	Name      string        `json:"name"`
	Size      int           `json:"size"`
	MaxSize   int           `json:"maxSize"`
	TTL       time.Duration `json:"ttl"`
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Evictions int64         `json:"evictions"`
}

// NewCache creates a cache from cfg, applying defaults for zero
// values.
func NewCache[K comparable, V any](cfg CacheConfig) (*Cache[K, V], error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultCacheSize
	}

	entries, err := lru.New[K, *cacheEntry[V]](cfg.MaxSize)
	if err != nil {
		return nil, err
	}

	return &Cache[K, V]{
		entries: entries,
		ttl:     cfg.TTL,
		maxSize: cfg.MaxSize,
		name:    cfg.Name,
		metrics: cfg.Metrics,
	}, nil
}

// Get returns the value for key if present and unexpired, marking the
// entry most-recently-used. Expired entries are removed and counted as
// misses.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.entries.Get(key)
	if !ok {
		c.misses++
		c.metrics.RecordCacheMiss(c.name)
		return zero, false
	}

	if time.Now().After(entry.expiresAt) {
		c.entries.Remove(key)
		c.misses++
		c.metrics.RecordCacheMiss(c.name)
		return zero, false
	}

	entry.hits++
	c.hits++
	c.metrics.RecordCacheHit(c.name)
	return entry.value, true
}

// Set stores value under key with the cache-wide TTL, evicting the
// least-recently-used entry when at capacity.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	evicted := c.entries.Add(key, &cacheEntry[V]{
		value:     value,
		expiresAt: now.Add(c.ttl),
		createdAt: now,
	})
	if evicted {
		c.evictions++
		c.metrics.RecordCacheEviction(c.name)
	}
	c.metrics.RecordCacheSize(c.name, c.entries.Len())
}

// Delete removes key, reporting whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	present := c.entries.Remove(key)
	c.metrics.RecordCacheSize(c.name, c.entries.Len())
	return present
}

// Clear removes every entry and resets the counters.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Purge()
	c.hits = 0
	c.misses = 0
	c.evictions = 0
	c.metrics.RecordCacheSize(c.name, 0)
}

// Len reports the number of stored entries, including expired ones
// not yet reclaimed.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Name:      c.name,
		Size:      c.entries.Len(),
		MaxSize:   c.maxSize,
		TTL:       c.ttl,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// CacheKey joins the non-empty parts with ":" to build a stable cache
// key from multi-field lookups (for example a case ID plus flags).
func CacheKey(parts ...string) string {
	kept := parts[:0:0]
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, ":")
}
