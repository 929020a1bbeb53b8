package persistence

import (
	"context"
	"time"
)

// BranchRepository stores branches.
type BranchRepository interface {
	CreateBranch(ctx context.Context, branch Branch) error
	GetBranch(ctx context.Context, id string) (Branch, error)
	ListBranches(ctx context.Context) ([]Branch, error)
}

// RoomFilter narrows room listings.
type RoomFilter struct {
	BranchID   string
	ActiveOnly bool
}

// RoomRepository exposes catalog operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context, filter RoomFilter) ([]Room, error)
}

// ScheduleFilter narrows schedule listings. From and To bound a half-open
// window; a schedule matches when it intersects [From, To).
type ScheduleFilter struct {
	RoomID           string
	From             time.Time
	To               time.Time
	IncludeCancelled bool
}

// ScheduleStore persists room schedules. InsertSchedule and ReplaceSchedule
// re-check overlap at commit, so callers that lost a race get ErrOverlap
// rather than a double booking.
type ScheduleStore interface {
	// LoadActiveSchedules returns the room's active schedules ordered by Start.
	LoadActiveSchedules(ctx context.Context, roomID string) ([]RoomSchedule, error)
	InsertSchedule(ctx context.Context, schedule RoomSchedule) (RoomSchedule, error)
	// CancelSchedule marks the schedule cancelled at the given instant. Cancelling
	// an already-cancelled schedule succeeds without changing it.
	CancelSchedule(ctx context.Context, id string, at time.Time) error
	GetSchedule(ctx context.Context, id string) (RoomSchedule, error)
	ListSchedules(ctx context.Context, filter ScheduleFilter) ([]RoomSchedule, error)
	// ReplaceSchedule cancels cancelID and inserts next in one transaction.
	// The cancelled row does not count against next. On ErrOverlap nothing changes.
	ReplaceSchedule(ctx context.Context, cancelID string, at time.Time, next RoomSchedule) (RoomSchedule, error)
}
