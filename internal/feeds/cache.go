package feeds

import (
	"context"
	"sync"
	"time"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

// DefaultTTL is how long a feed snapshot is reused.
const DefaultTTL = 10 * time.Minute

// Fetcher produces a full feed snapshot.
type Fetcher interface {
	FetchAll(ctx context.Context) []model.RawNewsItem
}

// Cache holds the latest feed snapshot. A refresh replaces the snapshot as a
// whole; readers see either the old or the new one.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time

	refreshMu sync.Mutex

	mu        sync.RWMutex
	items     []model.RawNewsItem
	fetchedAt time.Time
}

// NewCache creates an empty cache. A non-positive ttl uses DefaultTTL.
func NewCache(f Fetcher, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{fetcher: f, ttl: ttl, now: time.Now}
}

// SetClock replaces the time source.
func (c *Cache) SetClock(now func() time.Time) { c.now = now }

func (c *Cache) stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt.IsZero() || c.now().Sub(c.fetchedAt) >= c.ttl
}

// RefreshIfStale fetches a new snapshot when the current one is missing or
// older than the TTL. Concurrent callers share a single fetch. It reports
// whether a fetch happened.
func (c *Cache) RefreshIfStale(ctx context.Context) bool {
	if !c.stale() {
		return false
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	if !c.stale() {
		return false
	}

	items := c.fetcher.FetchAll(ctx)
	fetchedAt := c.now()

	c.mu.Lock()
	c.items = items
	c.fetchedAt = fetchedAt
	c.mu.Unlock()
	return true
}

// Items refreshes if stale and returns the current snapshot.
func (c *Cache) Items(ctx context.Context) []model.RawNewsItem {
	c.RefreshIfStale(ctx)
	items, _ := c.Snapshot()
	return items
}

// Snapshot returns a copy of the cached items and when they were fetched.
func (c *Cache) Snapshot() ([]model.RawNewsItem, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.RawNewsItem, len(c.items))
	copy(out, c.items)
	return out, c.fetchedAt
}

// Invalidate forces the next read to refetch.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}
