// Package roomlock provides per-room mutual exclusion for booking writes.
// Locks for different rooms never contend.
package roomlock

import (
	"context"
	"sync"
)

// Locker grants exclusive access to one room at a time. Acquire blocks until
// the lock is held or ctx is done, in which case ctx.Err() is returned.
type Locker interface {
	Acquire(ctx context.Context, roomID string) (release func(), err error)
}

// Local is an in-process Locker backed by one single-slot channel per room.
// Idle rooms are dropped from the table once nobody holds or waits for them.
type Local struct {
	mu    sync.Mutex
	rooms map[string]*roomSlot
}

type roomSlot struct {
	sem  chan struct{}
	refs int
}

var _ Locker = (*Local)(nil)

// NewLocal returns an empty in-process locker.
func NewLocal() *Local {
	return &Local{rooms: make(map[string]*roomSlot)}
}

// Acquire implements Locker. The returned release function is idempotent.
func (l *Local) Acquire(ctx context.Context, roomID string) (func(), error) {
	slot := l.ref(roomID)

	select {
	case slot.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(roomID, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.sem
			l.unref(roomID, slot)
		})
	}, nil
}

// Rooms reports how many rooms currently have holders or waiters.
func (l *Local) Rooms() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms)
}

func (l *Local) ref(roomID string) *roomSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.rooms[roomID]
	if !ok {
		slot = &roomSlot{sem: make(chan struct{}, 1)}
		l.rooms[roomID] = slot
	}
	slot.refs++
	return slot
}

func (l *Local) unref(roomID string, slot *roomSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot.refs--
	if slot.refs == 0 {
		delete(l.rooms, roomID)
	}
}
