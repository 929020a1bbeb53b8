package application

import (
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// Principal identifies the requester acting on a booking. Identity is
// established upstream; IsAdmin grants override authority over other
// requesters' bookings and the room catalog.
type Principal struct {
	RequesterID string
	IsAdmin     bool
}

// Branch is an office location that owns rooms.
type Branch struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Room is a bookable room. Inactive rooms keep their bookings but admit no new ones.
type Room struct {
	ID        string
	BranchID  string
	Name      string
	Detail    string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BookingView is the read model of a room schedule.
type BookingView struct {
	ID          string
	RoomID      string
	RequesterID string
	Start       time.Time
	End         time.Time
	CreatedAt   time.Time
	CancelledAt *time.Time
}

// Active reports whether the booking still holds its slot.
func (b BookingView) Active() bool {
	return b.CancelledAt == nil
}

// CreateBookingParams wraps the data required to create a booking.
type CreateBookingParams struct {
	Principal Principal
	RoomID    string
	Start     time.Time
	End       time.Time
}

// CancelBookingParams identifies the booking to cancel.
type CancelBookingParams struct {
	Principal  Principal
	ScheduleID string
}

// RescheduleBookingParams moves an existing booking to a new interval in the same room.
type RescheduleBookingParams struct {
	Principal  Principal
	ScheduleID string
	Start      time.Time
	End        time.Time
}

// ListRoomBookingsParams selects the bookings of one room intersecting [From, To).
type ListRoomBookingsParams struct {
	RoomID           string
	From             time.Time
	To               time.Time
	IncludeCancelled bool
}

// BookingResult is the outcome of CreateBooking and RescheduleBooking.
// Exactly one of Booking and Rejection is set.
type BookingResult struct {
	Booking   *BookingView
	Rejection *Rejection
	// Previous is the booking replaced by a successful reschedule.
	Previous *BookingView
}

// Admitted reports whether the booking was stored.
func (r BookingResult) Admitted() bool {
	return r.Booking != nil && r.Rejection == nil
}

// Err returns the rejection as an error, or nil when admitted.
func (r BookingResult) Err() error {
	if r.Rejection == nil {
		return nil
	}
	return r.Rejection
}

// CancelStatus labels the outcome of CancelBooking.
type CancelStatus string

const (
	CancelStatusCancelled CancelStatus = "cancelled"
	CancelStatusNotFound  CancelStatus = "not_found"
	CancelStatusForbidden CancelStatus = "forbidden"
)

// CancelResult is the outcome of CancelBooking.
type CancelResult struct {
	Status  CancelStatus
	Booking *BookingView
	// AlreadyCancelled is set when the booking was cancelled before this call.
	AlreadyCancelled bool
	Rejection        *Rejection
}

// Err returns the rejection as an error, or nil when cancelled.
func (r CancelResult) Err() error {
	if r.Rejection == nil {
		return nil
	}
	return r.Rejection
}

// CreateBranchParams wraps the data required to create a branch.
type CreateBranchParams struct {
	Principal Principal
	Name      string
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	BranchID  string
	Name      string
	Detail    string
}

// ListRoomsParams filters room listings.
type ListRoomsParams struct {
	BranchID   string
	ActiveOnly bool
}

// SetRoomStatusParams activates or deactivates a room.
type SetRoomStatusParams struct {
	Principal Principal
	RoomID    string
	Active    bool
}

func toBookingView(schedule persistence.RoomSchedule) BookingView {
	view := BookingView{
		ID:          schedule.ID,
		RoomID:      schedule.RoomID,
		RequesterID: schedule.RequesterID,
		Start:       schedule.Start.UTC(),
		End:         schedule.End.UTC(),
		CreatedAt:   schedule.CreatedAt.UTC(),
	}
	if schedule.CancelledAt != nil {
		cancelled := schedule.CancelledAt.UTC()
		view.CancelledAt = &cancelled
	}
	return view
}

func toBookingViews(schedules []persistence.RoomSchedule) []BookingView {
	views := make([]BookingView, 0, len(schedules))
	for _, schedule := range schedules {
		views = append(views, toBookingView(schedule))
	}
	return views
}

func toRoom(room persistence.Room) Room {
	return Room{
		ID:        room.ID,
		BranchID:  room.BranchID,
		Name:      room.Name,
		Detail:    room.Detail,
		Active:    room.Active,
		CreatedAt: room.CreatedAt,
		UpdatedAt: room.UpdatedAt,
	}
}

func toBranch(branch persistence.Branch) Branch {
	return Branch{ID: branch.ID, Name: branch.Name, CreatedAt: branch.CreatedAt}
}
