package positions

import (
	"sync"
	"time"

	"liquidityPortal/internal/model"
)

// Cache holds validated position sets per address with a TTL. It is an
// explicit service object passed by reference; invalidation hooks replace
// any reload-the-world behavior on account or chain changes.
type Cache struct {
	ttl time.Duration

	mu   sync.RWMutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	positions []model.ValidatedPosition
	storedAt  time.Time
}

// NewCache builds a cache with the given TTL. A non-positive TTL disables
// caching entirely.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, data: make(map[string]cacheEntry)}
}

// Get returns the cached validated set for an address if fresh. The
// returned slice is a copy; callers may mutate it without corrupting
// later reads.
func (c *Cache) Get(address string) ([]model.ValidatedPosition, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.RLock()
	entry, ok := c.data[address]
	c.mu.RUnlock()
	if !ok || time.Since(entry.storedAt) > c.ttl {
		return nil, false
	}
	out := make([]model.ValidatedPosition, len(entry.positions))
	copy(out, entry.positions)
	return out, true
}

// Set stores the validated set for an address.
func (c *Cache) Set(address string, positions []model.ValidatedPosition) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.data[address] = cacheEntry{positions: positions, storedAt: time.Now()}
	c.mu.Unlock()
}

// Invalidate drops one address, or everything when address is empty.
// Wired to confirmed writes and account/chain-change events.
func (c *Cache) Invalidate(address string) {
	c.mu.Lock()
	if address == "" {
		c.data = make(map[string]cacheEntry)
	} else {
		delete(c.data, address)
	}
	c.mu.Unlock()
}
