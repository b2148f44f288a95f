package scoring

import (
	"context"
	"sync"
	"time"
)

// MemoryCache keeps the leaderboard in process for ttl.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu         sync.Mutex
	standings  []Standing
	expires    time.Time
	generation uint64
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now}
}

func (c *MemoryCache) GetLeaderboard(_ context.Context) ([]Standing, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.standings == nil || !c.now().Before(c.expires) {
		return nil, false
	}
	return append([]Standing(nil), c.standings...), true
}

func (c *MemoryCache) Generation(_ context.Context) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *MemoryCache) SetLeaderboard(_ context.Context, generation uint64, standings []Standing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return
	}
	c.standings = append([]Standing(nil), standings...)
	c.expires = c.now().Add(c.ttl)
}

func (c *MemoryCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.standings = nil
	c.generation++
}
