package roomlock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestLocalSerializesSameRoom(t *testing.T) {
	t.Parallel()

	locker := NewLocal()
	var inside, maxInside int32

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			release, err := locker.Acquire(context.Background(), "room-1")
			if err != nil {
				return err
			}
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				seen := atomic.LoadInt32(&maxInside)
				if n <= seen || atomic.CompareAndSwapInt32(&maxInside, seen, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), maxInside)
	assert.Zero(t, locker.Rooms(), "idle rooms must be dropped")
}

func TestLocalDifferentRoomsDoNotContend(t *testing.T) {
	t.Parallel()

	locker := NewLocal()
	releaseA, err := locker.Acquire(context.Background(), "room-a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := locker.Acquire(ctx, "room-b")
	require.NoError(t, err)
	releaseB()
}

func TestLocalAcquireHonoursDeadline(t *testing.T) {
	t.Parallel()

	locker := NewLocal()
	release, err := locker.Acquire(context.Background(), "room-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "room-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, locker.Rooms())

	release()
	release() // idempotent
	assert.Zero(t, locker.Rooms())

	again, err := locker.Acquire(context.Background(), "room-1")
	require.NoError(t, err)
	again()
}
