package application

import (
	"fmt"
	"sync"
	"time"
)

// ListingCache keeps recent ListRoomBookings results per room within one
// process. Writers call InvalidateRoom while they still hold the room lock, so
// a reader never sees a listing older than the last change committed through
// this process. Writes from other processes are not observed until the entry
// expires.
//
// Each room carries a generation counter. Readers capture it before querying
// the store and Store discards results computed against an older generation.
type ListingCache struct {
	mu         sync.Mutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	size       int
	rooms      map[string]*roomListings
}

type roomListings struct {
	generation uint64
	entries    map[string]listingCacheEntry
}

type listingCacheEntry struct {
	bookings  []BookingView
	expiresAt time.Time
}

// NewListingCache builds a cache. A non-positive ttl disables caching.
func NewListingCache(ttl time.Duration, maxEntries int, now func() time.Time) *ListingCache {
	if ttl <= 0 {
		return nil
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &ListingCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		rooms:      make(map[string]*roomListings),
	}
}

// Generation returns the current generation of the room's listings.
func (c *ListingCache) Generation(roomID string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomLocked(roomID).generation
}

// Get returns a copy of the cached listing for key.
func (c *ListingCache) Get(roomID, key string) ([]BookingView, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	room, ok := c.rooms[roomID]
	if !ok {
		return nil, false
	}
	entry, ok := room.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(room.entries, key)
		c.size--
		return nil, false
	}
	return cloneBookings(entry.bookings), true
}

// Store caches bookings under key unless the room changed since generation.
func (c *ListingCache) Store(roomID, key string, generation uint64, bookings []BookingView) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	room := c.roomLocked(roomID)
	if room.generation != generation {
		return
	}
	if _, exists := room.entries[key]; !exists {
		if c.size >= c.maxEntries {
			c.evictLocked()
		}
		c.size++
	}
	room.entries[key] = listingCacheEntry{bookings: cloneBookings(bookings), expiresAt: c.now().Add(c.ttl)}
}

// InvalidateRoom drops every cached listing of the room.
func (c *ListingCache) InvalidateRoom(roomID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	room := c.roomLocked(roomID)
	c.size -= len(room.entries)
	room.entries = make(map[string]listingCacheEntry)
	room.generation++
}

func (c *ListingCache) roomLocked(roomID string) *roomListings {
	room, ok := c.rooms[roomID]
	if !ok {
		room = &roomListings{entries: make(map[string]listingCacheEntry)}
		c.rooms[roomID] = room
	}
	return room
}

// evictLocked drops expired entries, or an arbitrary one when none expired.
func (c *ListingCache) evictLocked() {
	now := c.now()
	evicted := false
	for _, room := range c.rooms {
		for key, entry := range room.entries {
			if now.After(entry.expiresAt) {
				delete(room.entries, key)
				c.size--
				evicted = true
			}
		}
	}
	if evicted {
		return
	}
	for _, room := range c.rooms {
		for key := range room.entries {
			delete(room.entries, key)
			c.size--
			return
		}
	}
}

func cloneBookings(bookings []BookingView) []BookingView {
	if bookings == nil {
		return nil
	}
	out := make([]BookingView, len(bookings))
	copy(out, bookings)
	return out
}

func listingCacheKey(params ListRoomBookingsParams) string {
	return fmt.Sprintf("%d|%d|%t", params.From.UTC().UnixNano(), params.To.UTC().UnixNano(), params.IncludeCancelled)
}
