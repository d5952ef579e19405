// Package throttle reduces redundant RPC traffic toward the chain node.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/taskwatcher/internal/infra/chain"
)

// DefaultHeadCacheTTL is how long a fetched chain head is reused.
const DefaultHeadCacheTTL = 3 * time.Second

// HeadCache caches the result of CurrentHeight to reduce redundant API calls.
// A cycle asks for the head once in the scheduler and again in every boundary
// resolution; within the TTL they all see the same value.
type HeadCache struct {
	chain.Client
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	cached   uint64
	cachedAt time.Time
	valid    bool
}

var _ chain.Client = (*HeadCache)(nil)

// NewHeadCache wraps client with a head cache. A ttl of 0 selects
// DefaultHeadCacheTTL.
func NewHeadCache(client chain.Client, ttl time.Duration) *HeadCache {
	if ttl <= 0 {
		ttl = DefaultHeadCacheTTL
	}
	return &HeadCache{
		Client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// CurrentHeight returns the cached chain head if within TTL, otherwise fetches fresh.
func (c *HeadCache) CurrentHeight(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	if c.valid && c.now().Sub(c.cachedAt) < c.ttl {
		cached := c.cached
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	head, err := c.Client.CurrentHeight(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	// Never serve a lower head than one already observed.
	if !c.valid || head >= c.cached {
		c.cached = head
	}
	c.cachedAt = c.now()
	c.valid = true
	head = c.cached
	c.mu.Unlock()

	return head, nil
}
