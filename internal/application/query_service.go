package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// ScheduleReader is the read side of the schedule store.
type ScheduleReader interface {
	LoadActiveSchedules(ctx context.Context, roomID string) ([]persistence.RoomSchedule, error)
	ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]persistence.RoomSchedule, error)
}

// QueryService answers availability and listing questions without taking
// room locks. Answers reflect committed state at read time.
type QueryService struct {
	rooms     RoomLookup
	schedules ScheduleReader
	cache     *ListingCache
	logger    *slog.Logger
}

// NewQueryService constructs a query service. cache may be nil.
func NewQueryService(rooms RoomLookup, schedules ScheduleReader, cache *ListingCache, logger *slog.Logger) *QueryService {
	return &QueryService{rooms: rooms, schedules: schedules, cache: cache, logger: defaultLogger(logger)}
}

func (s *QueryService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "QueryService", operation, attrs...)
}

// IsRoomFree reports whether [start, end) overlaps no active booking of the
// room. It answers false exactly when CreateBooking would reject the same
// interval with an overlap. Invalid intervals and unavailable rooms are
// returned as a *Rejection error.
func (s *QueryService) IsRoomFree(ctx context.Context, roomID string, start, end time.Time) (free bool, err error) {
	if s == nil {
		return false, fmt.Errorf("QueryService is nil")
	}

	interval, ivErr := scheduler.NewInterval(start, end)
	if ivErr != nil {
		return false, reject(ReasonInvalidInterval, ivErr.Error())
	}

	room, err := s.rooms.GetRoom(ctx, roomID)
	if errors.Is(err, persistence.ErrNotFound) {
		return false, reject(ReasonRoomUnavailable, "room "+roomID+" does not exist")
	}
	if err != nil {
		return false, s.fail(ctx, "IsRoomFree", roomID, err)
	}
	if !room.Active {
		return false, reject(ReasonRoomUnavailable, "room "+roomID+" is inactive")
	}

	active, err := s.schedules.LoadActiveSchedules(ctx, roomID)
	if err != nil {
		return false, s.fail(ctx, "IsRoomFree", roomID, err)
	}
	return findConflict(active, interval, "") == nil, nil
}

// ListRoomBookings returns the room's bookings intersecting [From, To)
// ordered by start then ID. Bookings that only partially overlap the window
// are included. Cancelled bookings are included only on request.
func (s *QueryService) ListRoomBookings(ctx context.Context, params ListRoomBookingsParams) ([]BookingView, error) {
	if s == nil {
		return nil, fmt.Errorf("QueryService is nil")
	}
	if _, err := scheduler.NewInterval(params.From, params.To); err != nil {
		return nil, reject(ReasonInvalidInterval, "listing window: "+err.Error())
	}

	if _, err := s.rooms.GetRoom(ctx, params.RoomID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, reject(ReasonNotFound, "room "+params.RoomID+" does not exist")
		}
		return nil, s.fail(ctx, "ListRoomBookings", params.RoomID, err)
	}

	key := listingCacheKey(params)
	if cached, ok := s.cache.Get(params.RoomID, key); ok {
		return cached, nil
	}
	generation := s.cache.Generation(params.RoomID)

	schedules, err := s.schedules.ListSchedules(ctx, persistence.ScheduleFilter{
		RoomID:           params.RoomID,
		From:             params.From.UTC(),
		To:               params.To.UTC(),
		IncludeCancelled: params.IncludeCancelled,
	})
	if err != nil {
		return nil, s.fail(ctx, "ListRoomBookings", params.RoomID, err)
	}

	views := toBookingViews(schedules)
	s.cache.Store(params.RoomID, key, generation, views)
	s.loggerWith(ctx, "ListRoomBookings", "room_id", params.RoomID).
		DebugContext(ctx, "bookings listed", "count", len(views))
	return views, nil
}

func (s *QueryService) fail(ctx context.Context, operation, roomID string, err error) error {
	failure := storeFailure(operation, err)
	s.loggerWith(ctx, operation, "room_id", roomID).
		ErrorContext(ctx, "query failed", "error", failure, "error_kind", ErrorKind(failure))
	return failure
}
