package resolution

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// Cache stores successful ResolutionRecords keyed by raw identifier.  It is
// the only mutable state shared by concurrent batches; implementations must
// support concurrent Get and PutIfAbsent without lost updates.
type Cache interface {
	// Get returns the cached record for id.  A miss is (zero, false, nil).
	Get(ctx context.Context, id string) (mapping.ResolutionRecord, bool, error)

	// PutIfAbsent stores rec under id with ttl unless a live entry exists.
	// It reports whether rec was stored.
	PutIfAbsent(ctx context.Context, id string, rec mapping.ResolutionRecord, ttl time.Duration) (bool, error)

	// Invalidate removes the given ids.
	Invalidate(ctx context.Context, ids ...string) error
}

// ─────────────────────────────────────────────────────────────────────────────
// MemoryCache
// ─────────────────────────────────────────────────────────────────────────────

type memoryEntry struct {
	rec       mapping.ResolutionRecord
	expiresAt time.Time
}

// MemoryCache is a process-local TTL cache.  Expired entries are dropped
// lazily on access and by Purge.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, id string) (mapping.ResolutionRecord, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return mapping.ResolutionRecord{}, false, nil
	}
	if c.expired(e) {
		c.mu.Lock()
		if cur, still := c.entries[id]; still && c.expired(cur) {
			delete(c.entries, id)
		}
		c.mu.Unlock()
		return mapping.ResolutionRecord{}, false, nil
	}
	return e.rec.Clone(), true, nil
}

func (c *MemoryCache) PutIfAbsent(_ context.Context, id string, rec mapping.ResolutionRecord, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok && !c.expired(e) {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.entries[id] = memoryEntry{rec: rec.Clone(), expiresAt: exp}
	return true, nil
}

func (c *MemoryCache) Invalidate(_ context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.entries, id)
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops every expired entry and returns how many were removed.
func (c *MemoryCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, id)
			n++
		}
	}
	return n
}

func (c *MemoryCache) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)
}

var _ Cache = (*MemoryCache)(nil)

//Personal.AI order the ending
