package feeds

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

type countingFetcher struct {
	calls atomic.Int32
}

func (f *countingFetcher) FetchAll(ctx context.Context) []model.RawNewsItem {
	n := f.calls.Add(1)
	return []model.RawNewsItem{{Title: "item", Link: "https://example.com", Source: "src", PublishedAt: time.Unix(int64(n), 0).UTC()}}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestCache_ReusesSnapshotWithinTTL(t *testing.T) {
	f := &countingFetcher{}
	clock := &fakeClock{t: time.Date(2026, 1, 29, 20, 0, 0, 0, time.UTC)}
	c := NewCache(f, 10*time.Minute)
	c.SetClock(clock.Now)

	first := c.Items(context.Background())
	clock.Advance(9 * time.Minute)
	second := c.Items(context.Background())

	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, first, second)

	clock.Advance(time.Minute)
	assert.True(t, c.RefreshIfStale(context.Background()))
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestCache_Invalidate(t *testing.T) {
	f := &countingFetcher{}
	c := NewCache(f, time.Hour)

	c.Items(context.Background())
	c.Invalidate()
	c.Items(context.Background())

	assert.Equal(t, int32(2), f.calls.Load())
}

func TestCache_ConcurrentReadersShareOneFetch(t *testing.T) {
	f := &countingFetcher{}
	c := NewCache(f, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, c.Items(context.Background()), 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
}

func TestCache_SnapshotIsCopy(t *testing.T) {
	c := NewCache(&countingFetcher{}, time.Hour)
	items := c.Items(context.Background())
	items[0].Title = "mutated"

	again, fetchedAt := c.Snapshot()
	assert.Equal(t, "item", again[0].Title)
	assert.False(t, fetchedAt.IsZero())
}

func TestNewCache_DefaultTTL(t *testing.T) {
	c := NewCache(&countingFetcher{}, 0)
	assert.Equal(t, DefaultTTL, c.ttl)
}
