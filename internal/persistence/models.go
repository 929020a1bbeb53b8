package persistence

import (
	"math"
	"time"
)

var (
	minStorable = time.Unix(0, math.MinInt64)
	maxStorable = time.Unix(0, math.MaxInt64)
)

// Branch is an office location that owns rooms.
type Branch struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Room represents a bookable room catalog entry.
type Room struct {
	ID        string
	BranchID  string
	Name      string
	Detail    string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomSchedule is a reservation of a room for the half-open range [Start, End).
// A nil CancelledAt means the reservation is active.
type RoomSchedule struct {
	ID          string
	RoomID      string
	RequesterID string
	Start       time.Time
	End         time.Time
	CreatedAt   time.Time
	CancelledAt *time.Time
}

// Active reports whether the schedule still holds its slot.
func (s RoomSchedule) Active() bool {
	return s.CancelledAt == nil
}

// Storable reports whether Start and End fit in int64 nanoseconds since the
// Unix epoch, the representation the stores persist.
func (s RoomSchedule) Storable() bool {
	return !s.Start.Before(minStorable) && !s.End.After(maxStorable)
}
