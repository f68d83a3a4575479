package replay

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultCleanupInterval is how often expired in-memory entries are purged.
const DefaultCleanupInterval = time.Minute

// Memory is an in-process replay cache.
type Memory struct {
	c *gocache.Cache
}

// NewMemory returns an empty in-process cache. A non-positive cleanup
// interval uses DefaultCleanupInterval.
func NewMemory(cleanupInterval time.Duration) *Memory {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	return &Memory{c: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Remember stores key for ttl and reports whether it was not already present.
func (m *Memory) Remember(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}

	if err := m.c.Add(key, struct{}{}, ttl); err != nil {
		return false, nil
	}

	return true, nil
}

// Len returns the number of stored entries, including expired entries not
// yet purged.
func (m *Memory) Len() int {
	return m.c.ItemCount()
}
