package application

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(ttl time.Duration, maxEntries int) (*ListingCache, *manualClock) {
	clock := &manualClock{now: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	return NewListingCache(ttl, maxEntries, clock.Now), clock
}

func TestListingCacheDisabled(t *testing.T) {
	t.Parallel()

	cache := NewListingCache(0, 10, nil)
	assert.Nil(t, cache)

	cache.Store("room", "k", cache.Generation("room"), []BookingView{{ID: "a"}})
	cache.InvalidateRoom("room")
	_, ok := cache.Get("room", "k")
	assert.False(t, ok)
}

func TestListingCacheStoreAndExpire(t *testing.T) {
	t.Parallel()

	cache, clock := newTestCache(time.Second, 10)
	cache.Store("room", "k", cache.Generation("room"), []BookingView{{ID: "a"}})

	got, ok := cache.Get("room", "k")
	require.True(t, ok)
	assert.Equal(t, []BookingView{{ID: "a"}}, got)

	got[0].ID = "mutated"
	again, _ := cache.Get("room", "k")
	assert.Equal(t, "a", again[0].ID)

	clock.Advance(2 * time.Second)
	_, ok = cache.Get("room", "k")
	assert.False(t, ok)
}

func TestListingCacheDiscardsStaleGeneration(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(time.Minute, 10)
	generation := cache.Generation("room")

	// A writer commits between the reader's query and its Store call.
	cache.InvalidateRoom("room")
	cache.Store("room", "k", generation, []BookingView{{ID: "stale"}})

	_, ok := cache.Get("room", "k")
	assert.False(t, ok)
}

func TestListingCacheInvalidateIsPerRoom(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(time.Minute, 10)
	cache.Store("a", "k", cache.Generation("a"), []BookingView{{ID: "1"}})
	cache.Store("b", "k", cache.Generation("b"), []BookingView{{ID: "2"}})

	cache.InvalidateRoom("a")

	_, ok := cache.Get("a", "k")
	assert.False(t, ok)
	_, ok = cache.Get("b", "k")
	assert.True(t, ok)
}

func TestListingCacheBoundsEntries(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(time.Minute, 2)
	for _, key := range []string{"k1", "k2", "k3"} {
		cache.Store("room", key, cache.Generation("room"), nil)
	}

	hits := 0
	for _, key := range []string{"k1", "k2", "k3"} {
		if _, ok := cache.Get("room", key); ok {
			hits++
		}
	}
	assert.Equal(t, 2, hits)
}
