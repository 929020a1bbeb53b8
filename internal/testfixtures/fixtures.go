package testfixtures

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

var (
	branchCounter   uint64
	roomCounter     uint64
	scheduleCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Slot returns [day 09:00 + offset, +length) on the day after ReferenceTime,
// which keeps booking fixtures away from clock-derived timestamps.
func Slot(offset, length time.Duration) (time.Time, time.Time) {
	day := time.Date(2024, time.January, 3, 9, 0, 0, 0, time.UTC)
	start := day.Add(offset)
	return start, start.Add(length)
}

// ---------------------------- Branch fixtures ----------------------------

// BranchOption configures the generated branch fixture.
type BranchOption func(*persistence.Branch)

// NewBranchFixture returns a deterministic branch with optional overrides.
func NewBranchFixture(opts ...BranchOption) persistence.Branch {
	idx := atomic.AddUint64(&branchCounter, 1)
	branch := persistence.Branch{
		ID:        fmt.Sprintf("branch-%03d", idx),
		Name:      fmt.Sprintf("Branch %03d", idx),
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&branch)
	}
	return branch
}

// WithBranchID overrides the generated branch ID.
func WithBranchID(id string) BranchOption {
	return func(b *persistence.Branch) {
		b.ID = id
	}
}

// ----------------------------- Room fixtures -----------------------------

// RoomOption configures the generated room fixture.
type RoomOption func(*persistence.Room)

// NewRoomFixture returns a deterministic active room with optional overrides.
func NewRoomFixture(branchID string, opts ...RoomOption) persistence.Room {
	idx := atomic.AddUint64(&roomCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	room := persistence.Room{
		ID:        fmt.Sprintf("room-%03d", idx),
		BranchID:  branchID,
		Name:      fmt.Sprintf("Room %03d", idx),
		Detail:    "Projector, whiteboard",
		Active:    true,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&room)
	}
	return room
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(r *persistence.Room) {
		r.ID = id
	}
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(r *persistence.Room) {
		r.Name = name
	}
}

// WithRoomInactive marks the room as deactivated.
func WithRoomInactive() RoomOption {
	return func(r *persistence.Room) {
		r.Active = false
	}
}

// --------------------------- Schedule fixtures ---------------------------

// ScheduleOption configures the generated schedule fixture.
type ScheduleOption func(*persistence.RoomSchedule)

// NewScheduleFixture returns an active one-hour schedule in roomID starting at
// the first Slot, with optional overrides.
func NewScheduleFixture(roomID string, opts ...ScheduleOption) persistence.RoomSchedule {
	idx := atomic.AddUint64(&scheduleCounter, 1)
	start, end := Slot(0, time.Hour)
	schedule := persistence.RoomSchedule{
		ID:          fmt.Sprintf("schedule-%03d", idx),
		RoomID:      roomID,
		RequesterID: "requester-1",
		Start:       start,
		End:         end,
		CreatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&schedule)
	}
	return schedule
}

// WithScheduleID overrides the generated schedule ID.
func WithScheduleID(id string) ScheduleOption {
	return func(s *persistence.RoomSchedule) {
		s.ID = id
	}
}

// WithScheduleWindow sets the schedule interval.
func WithScheduleWindow(start, end time.Time) ScheduleOption {
	return func(s *persistence.RoomSchedule) {
		s.Start = start
		s.End = end
	}
}

// WithScheduleRequester overrides the requester.
func WithScheduleRequester(requesterID string) ScheduleOption {
	return func(s *persistence.RoomSchedule) {
		s.RequesterID = requesterID
	}
}

// WithScheduleCancelledAt marks the schedule as cancelled.
func WithScheduleCancelledAt(at time.Time) ScheduleOption {
	return func(s *persistence.RoomSchedule) {
		s.CancelledAt = &at
	}
}

// ------------------------------- Seeding ---------------------------------

// CatalogStore is the catalog side of a persistence backend.
type CatalogStore interface {
	persistence.BranchRepository
	persistence.RoomRepository
}

// SeedRoom stores a fresh branch and a room in it and returns the room.
func SeedRoom(tb testing.TB, store CatalogStore, opts ...RoomOption) persistence.Room {
	tb.Helper()
	ctx := context.Background()

	branch := NewBranchFixture()
	if err := store.CreateBranch(ctx, branch); err != nil {
		tb.Fatalf("failed to seed branch: %v", err)
	}
	room := NewRoomFixture(branch.ID, opts...)
	if err := store.CreateRoom(ctx, room); err != nil {
		tb.Fatalf("failed to seed room: %v", err)
	}
	return room
}

// SeedSchedule inserts schedule and fails the test on any error.
func SeedSchedule(tb testing.TB, store persistence.ScheduleStore, schedule persistence.RoomSchedule) persistence.RoomSchedule {
	tb.Helper()
	stored, err := store.InsertSchedule(context.Background(), schedule)
	if err != nil {
		tb.Fatalf("failed to seed schedule %s: %v", schedule.ID, err)
	}
	return stored
}
