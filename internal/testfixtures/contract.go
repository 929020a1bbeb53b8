package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/persistence"
)

// RunStoreContract exercises the behaviour every persistence backend must
// share. newBackend must return an empty, ready store per call.
func RunStoreContract(t *testing.T, newBackend func(t *testing.T) Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("catalog", func(t *testing.T) {
		store := newBackend(t)

		branch := NewBranchFixture()
		require.NoError(t, store.CreateBranch(ctx, branch))
		assert.ErrorIs(t, store.CreateBranch(ctx, branch), persistence.ErrDuplicate)

		got, err := store.GetBranch(ctx, branch.ID)
		require.NoError(t, err)
		assert.Equal(t, branch.Name, got.Name)
		_, err = store.GetBranch(ctx, "missing")
		assert.ErrorIs(t, err, persistence.ErrNotFound)

		orphan := NewRoomFixture("missing-branch")
		assert.ErrorIs(t, store.CreateRoom(ctx, orphan), persistence.ErrForeignKeyViolation)

		beta := NewRoomFixture(branch.ID, WithRoomName("Beta"))
		alpha := NewRoomFixture(branch.ID, WithRoomName("Alpha"), WithRoomInactive())
		require.NoError(t, store.CreateRoom(ctx, beta))
		require.NoError(t, store.CreateRoom(ctx, alpha))

		rooms, err := store.ListRooms(ctx, persistence.RoomFilter{BranchID: branch.ID})
		require.NoError(t, err)
		require.Len(t, rooms, 2)
		assert.Equal(t, []string{"Alpha", "Beta"}, []string{rooms[0].Name, rooms[1].Name})

		active, err := store.ListRooms(ctx, persistence.RoomFilter{BranchID: branch.ID, ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, beta.ID, active[0].ID)

		alpha.Active = true
		alpha.UpdatedAt = referenceTime.Add(time.Hour)
		require.NoError(t, store.UpdateRoom(ctx, alpha))
		reloaded, err := store.GetRoom(ctx, alpha.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.Active)
		assert.True(t, reloaded.UpdatedAt.Equal(alpha.UpdatedAt))

		assert.ErrorIs(t, store.UpdateRoom(ctx, NewRoomFixture(branch.ID)), persistence.ErrNotFound)
	})

	t.Run("insert rejects overlap but admits adjacency", func(t *testing.T) {
		store := newBackend(t)
		room := SeedRoom(t, store)

		first := SeedSchedule(t, store, NewScheduleFixture(room.ID))
		start, end := Slot(30*time.Minute, time.Hour)
		_, err := store.InsertSchedule(ctx, NewScheduleFixture(room.ID, WithScheduleWindow(start, end)))
		assert.ErrorIs(t, err, persistence.ErrOverlap)

		before := NewScheduleFixture(room.ID, WithScheduleWindow(first.Start.Add(-time.Hour), first.Start))
		after := NewScheduleFixture(room.ID, WithScheduleWindow(first.End, first.End.Add(time.Hour)))
		SeedSchedule(t, store, after)
		SeedSchedule(t, store, before)

		active, err := store.LoadActiveSchedules(ctx, room.ID)
		require.NoError(t, err)
		require.Len(t, active, 3)
		assert.Equal(t, []string{before.ID, first.ID, after.ID}, scheduleIDs(active))
	})

	t.Run("rooms do not share schedules", func(t *testing.T) {
		store := newBackend(t)
		roomA := SeedRoom(t, store)
		roomB := SeedRoom(t, store)

		SeedSchedule(t, store, NewScheduleFixture(roomA.ID))
		SeedSchedule(t, store, NewScheduleFixture(roomB.ID))

		_, err := store.InsertSchedule(ctx, NewScheduleFixture("missing-room"))
		assert.ErrorIs(t, err, persistence.ErrForeignKeyViolation)
	})

	t.Run("insert enforces constraints", func(t *testing.T) {
		store := newBackend(t)
		room := SeedRoom(t, store)

		start, _ := Slot(0, 0)
		_, err := store.InsertSchedule(ctx, NewScheduleFixture(room.ID, WithScheduleWindow(start, start)))
		assert.ErrorIs(t, err, persistence.ErrConstraintViolation)

		// Instants beyond int64 nanoseconds cannot be stored faithfully.
		farStart := time.Date(2300, time.January, 1, 10, 0, 0, 0, time.UTC)
		_, err = store.InsertSchedule(ctx, NewScheduleFixture(room.ID, WithScheduleWindow(farStart, farStart.Add(time.Hour))))
		assert.ErrorIs(t, err, persistence.ErrConstraintViolation)

		stored := SeedSchedule(t, store, NewScheduleFixture(room.ID))
		_, err = store.ReplaceSchedule(ctx, stored.ID, referenceTime, NewScheduleFixture(room.ID, WithScheduleWindow(farStart, farStart.Add(time.Hour))))
		assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
		kept, err := store.GetSchedule(ctx, stored.ID)
		require.NoError(t, err)
		assert.Nil(t, kept.CancelledAt)

		laterStart, laterEnd := Slot(4*time.Hour, time.Hour)
		_, err = store.InsertSchedule(ctx, NewScheduleFixture(room.ID, WithScheduleID(stored.ID), WithScheduleWindow(laterStart, laterEnd)))
		assert.ErrorIs(t, err, persistence.ErrDuplicate)
	})

	t.Run("cancel frees the slot and is idempotent", func(t *testing.T) {
		store := newBackend(t)
		room := SeedRoom(t, store)
		schedule := SeedSchedule(t, store, NewScheduleFixture(room.ID))

		firstCancel := referenceTime.Add(time.Minute)
		require.NoError(t, store.CancelSchedule(ctx, schedule.ID, firstCancel))
		require.NoError(t, store.CancelSchedule(ctx, schedule.ID, firstCancel.Add(time.Hour)))

		got, err := store.GetSchedule(ctx, schedule.ID)
		require.NoError(t, err)
		require.NotNil(t, got.CancelledAt)
		assert.True(t, got.CancelledAt.Equal(firstCancel))

		SeedSchedule(t, store, NewScheduleFixture(room.ID))
		assert.ErrorIs(t, store.CancelSchedule(ctx, "missing", firstCancel), persistence.ErrNotFound)
	})

	t.Run("list intersects half-open window", func(t *testing.T) {
		store := newBackend(t)
		room := SeedRoom(t, store)

		morningStart, morningEnd := Slot(0, time.Hour)
		noonStart, noonEnd := Slot(3*time.Hour, time.Hour)
		eveningStart, eveningEnd := Slot(8*time.Hour, time.Hour)
		morning := SeedSchedule(t, store, NewScheduleFixture(room.ID, WithScheduleWindow(morningStart, morningEnd)))
		noon := SeedSchedule(t, store, NewScheduleFixture(room.ID, WithScheduleWindow(noonStart, noonEnd)))
		SeedSchedule(t, store, NewScheduleFixture(room.ID, WithScheduleWindow(eveningStart, eveningEnd)))
		require.NoError(t, store.CancelSchedule(ctx, morning.ID, referenceTime))

		filter := persistence.ScheduleFilter{
			RoomID: room.ID,
			From:   morningStart.Add(30 * time.Minute),
			To:     eveningStart,
		}
		listed, err := store.ListSchedules(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, []string{noon.ID}, scheduleIDs(listed))

		filter.IncludeCancelled = true
		listed, err = store.ListSchedules(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, []string{morning.ID, noon.ID}, scheduleIDs(listed))
	})

	t.Run("replace moves a schedule atomically", func(t *testing.T) {
		store := newBackend(t)
		room := SeedRoom(t, store)
		original := SeedSchedule(t, store, NewScheduleFixture(room.ID))

		// Shifting by half an hour overlaps only the schedule being replaced.
		shiftedStart, shiftedEnd := Slot(30*time.Minute, time.Hour)
		moved := NewScheduleFixture(room.ID, WithScheduleWindow(shiftedStart, shiftedEnd))
		stored, err := store.ReplaceSchedule(ctx, original.ID, referenceTime, moved)
		require.NoError(t, err)
		assert.Equal(t, moved.ID, stored.ID)
		assert.Nil(t, stored.CancelledAt)

		old, err := store.GetSchedule(ctx, original.ID)
		require.NoError(t, err)
		assert.NotNil(t, old.CancelledAt)

		_, err = store.ReplaceSchedule(ctx, original.ID, referenceTime, NewScheduleFixture(room.ID))
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("replace rolls back on overlap", func(t *testing.T) {
		store := newBackend(t)
		room := SeedRoom(t, store)
		original := SeedSchedule(t, store, NewScheduleFixture(room.ID))
		blockerStart, blockerEnd := Slot(2*time.Hour, time.Hour)
		blocker := SeedSchedule(t, store, NewScheduleFixture(room.ID, WithScheduleWindow(blockerStart, blockerEnd)))

		target := NewScheduleFixture(room.ID, WithScheduleWindow(blockerStart.Add(30*time.Minute), blockerEnd.Add(30*time.Minute)))
		_, err := store.ReplaceSchedule(ctx, original.ID, referenceTime, target)
		assert.ErrorIs(t, err, persistence.ErrOverlap)

		active, err := store.LoadActiveSchedules(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{original.ID, blocker.ID}, scheduleIDs(active))
		_, err = store.GetSchedule(ctx, target.ID)
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})
}

func scheduleIDs(schedules []persistence.RoomSchedule) []string {
	ids := make([]string, 0, len(schedules))
	for _, schedule := range schedules {
		ids = append(ids, schedule.ID)
	}
	return ids
}
