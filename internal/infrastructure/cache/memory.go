package cache

import (
	"context"
	"sync"
	"time"

	"github.com/esunday5/staff-portal/internal/application/port"
)

type memoryEntry struct {
	userID    int64
	expiresAt time.Time
}

// MemoryApproverCache is a process local port.ApproverCache
type MemoryApproverCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryApproverCache creates an empty in-memory cache
func NewMemoryApproverCache() *MemoryApproverCache {
	return &MemoryApproverCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// WithClock replaces the time source; used by tests
func (c *MemoryApproverCache) WithClock(now func() time.Time) *MemoryApproverCache {
	c.now = now
	return c
}

// Get returns a live entry. Expired entries are evicted lazily.
func (c *MemoryApproverCache) Get(ctx context.Context, key string) (int64, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return 0, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		if current, still := c.entries[key]; still && current.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return 0, false, nil
	}
	return entry.userID, true, nil
}

// Set stores userID for ttl
func (c *MemoryApproverCache) Set(ctx context.Context, key string, userID int64, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[key] = memoryEntry{userID: userID, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included
func (c *MemoryApproverCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ port.ApproverCache = (*MemoryApproverCache)(nil)
