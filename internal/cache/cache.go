package cache

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

type entry struct {
	value     any
	createdAt time.Time
}

// Cache is an in-process TTL cache for computed ETA payloads. Entries
// expire lazily on Get and are bulk-evicted by Sweep. Safe for
// concurrent use; there is no single-flight guard, so concurrent
// misses for the same key may recompute redundantly.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	ttl    time.Duration
	logger *slog.Logger
}

func New(ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		logger:  logger.With("component", "eta_cache"),
	}
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached value for key, or false if the key is absent
// or its entry has outlived the TTL. An expired entry is evicted as a
// side effect.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Since(e.createdAt) < c.ttl {
		return e.value, true
	}

	// Expired: evict under the write lock, re-checking in case a
	// concurrent Put refreshed the entry in the meantime.
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && time.Since(e.createdAt) >= c.ttl {
		delete(c.entries, key)
		c.logger.Debug("evicted expired entry", "key", key)
	}
	c.mu.Unlock()
	return nil, false
}

// Put stores value under key, unconditionally overwriting any existing
// entry and stamping the current time.
func (c *Cache) Put(key string, value any) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, createdAt: time.Now()}
	c.mu.Unlock()
}

// Sweep evicts every entry past the TTL and returns the number removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.createdAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear removes all entries and returns the number removed.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := len(c.entries)
	c.entries = make(map[string]entry)
	return removed
}

// ClearPrefix removes all entries whose key starts with prefix. Used
// both for kind-wide invalidation ("eta:") and per-bus invalidation
// after a new location fix is recorded.
func (c *Cache) ClearPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats describes the cache contents for the introspection endpoint.
type Stats struct {
	Entries      map[string]int `json:"entries"`
	TotalEntries int            `json:"total_entries"`
	TTLSeconds   float64        `json:"ttl_seconds"`
}

// Stats counts live entries grouped by key kind (the segment before
// the first ':'). Expired-but-unswept entries are not counted.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	counts := make(map[string]int)
	total := 0
	for key, e := range c.entries {
		if now.Sub(e.createdAt) >= c.ttl {
			continue
		}
		kind, _, _ := strings.Cut(key, ":")
		counts[kind]++
		total++
	}

	return Stats{
		Entries:      counts,
		TotalEntries: total,
		TTLSeconds:   c.ttl.Seconds(),
	}
}
