package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/room-booking/internal/events"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// DefaultLockTimeout bounds the wait for a room lock when none is configured.
const DefaultLockTimeout = 5 * time.Second

// RoomLookup resolves rooms for admission checks.
type RoomLookup interface {
	GetRoom(ctx context.Context, id string) (persistence.Room, error)
}

// RoomLocker serializes admission per room. Acquire blocks until the room's
// lock is held or ctx is done; the returned function releases it.
type RoomLocker interface {
	Acquire(ctx context.Context, roomID string) (release func(), err error)
}

// Metrics records booking outcomes. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ObserveOperation(operation, outcome string, elapsed time.Duration)
	ObserveLockWait(elapsed time.Duration, acquired bool)
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, string, time.Duration) {}
func (nopMetrics) ObserveLockWait(time.Duration, bool)            {}

// BookingServiceDeps captures the collaborators of a BookingService.
type BookingServiceDeps struct {
	Rooms       RoomLookup
	Schedules   persistence.ScheduleStore
	Locks       RoomLocker
	Events      events.Publisher
	Cache       *ListingCache
	Metrics     Metrics
	IDGenerator func() string
	Now         func() time.Time
	LockTimeout time.Duration
	Logger      *slog.Logger
}

// BookingService admits, cancels and reschedules room bookings. Writes to one
// room are serialized through the room lock; the store re-checks overlap at
// commit so a booking that lost a race is rejected rather than doubled.
type BookingService struct {
	rooms       RoomLookup
	schedules   persistence.ScheduleStore
	locks       RoomLocker
	events      events.Publisher
	cache       *ListingCache
	metrics     Metrics
	idGenerator func() string
	now         func() time.Time
	lockTimeout time.Duration
	logger      *slog.Logger
}

// NewBookingService constructs a booking service from deps.
func NewBookingService(deps BookingServiceDeps) *BookingService {
	svc := &BookingService{
		rooms:       deps.Rooms,
		schedules:   deps.Schedules,
		locks:       deps.Locks,
		events:      deps.Events,
		cache:       deps.Cache,
		metrics:     deps.Metrics,
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		lockTimeout: deps.LockTimeout,
		logger:      defaultLogger(deps.Logger),
	}
	if svc.events == nil {
		svc.events = events.Nop{}
	}
	if svc.metrics == nil {
		svc.metrics = nopMetrics{}
	}
	if svc.idGenerator == nil {
		svc.idGenerator = uuid.NewString
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.lockTimeout <= 0 {
		svc.lockTimeout = DefaultLockTimeout
	}
	return svc
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// CreateBooking reserves [params.Start, params.End) in the room. Business
// refusals are reported in the result with a nil error; the error is non-nil
// only for infrastructure faults, as a *StoreFailure.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (result BookingResult, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	started := time.Now()
	logger := s.loggerWith(ctx, "CreateBooking",
		"requester_id", params.Principal.RequesterID,
		"room_id", params.RoomID,
	)
	defer func() {
		s.finish(ctx, logger, "create", started, result.Rejection, err)
		if result.Booking != nil {
			logger.InfoContext(ctx, "booking admitted", "schedule_id", result.Booking.ID)
		}
	}()

	interval, ivErr := scheduler.NewInterval(params.Start, params.End)
	if ivErr != nil {
		result.Rejection = reject(ReasonInvalidInterval, ivErr.Error())
		return
	}

	if rejection, lookupErr := s.admissibleRoom(ctx, params.RoomID); lookupErr != nil || rejection != nil {
		result.Rejection, err = rejection, lookupErr
		return
	}

	release, lockErr := s.acquire(ctx, params.RoomID)
	if lockErr != nil {
		err = storeFailure("CreateBooking", lockErr)
		return
	}
	defer release()

	active, loadErr := s.schedules.LoadActiveSchedules(ctx, params.RoomID)
	if loadErr != nil {
		err = storeFailure("CreateBooking", loadErr)
		return
	}
	if conflict := findConflict(active, interval, ""); conflict != nil {
		result.Rejection = overlapRejection(conflict)
		return
	}

	candidate := persistence.RoomSchedule{
		ID:          s.idGenerator(),
		RoomID:      params.RoomID,
		RequesterID: params.Principal.RequesterID,
		Start:       interval.Start,
		End:         interval.End,
		CreatedAt:   s.now().UTC(),
	}
	stored, insertErr := s.schedules.InsertSchedule(ctx, candidate)
	if insertErr != nil {
		result.Rejection, err = s.classifyWriteError(ctx, "CreateBooking", insertErr, params.RoomID, interval, "")
		return
	}

	s.cache.InvalidateRoom(params.RoomID)
	view := toBookingView(stored)
	result.Booking = &view
	s.publish(ctx, logger, events.BookingCreated, params.Principal, view, "")
	return
}

// CancelBooking cancels a booking on behalf of its requester or an
// administrator. Cancelling an already-cancelled booking succeeds without
// changing it and without emitting an event.
func (s *BookingService) CancelBooking(ctx context.Context, params CancelBookingParams) (result CancelResult, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	started := time.Now()
	logger := s.loggerWith(ctx, "CancelBooking",
		"requester_id", params.Principal.RequesterID,
		"schedule_id", params.ScheduleID,
	)
	defer func() {
		s.finish(ctx, logger, "cancel", started, result.Rejection, err)
		if result.Status == CancelStatusCancelled {
			logger.InfoContext(ctx, "booking cancelled", "already_cancelled", result.AlreadyCancelled)
		}
	}()

	existing, getErr := s.schedules.GetSchedule(ctx, params.ScheduleID)
	if errors.Is(getErr, persistence.ErrNotFound) {
		result = cancelRejected(CancelStatusNotFound, ReasonNotFound)
		return
	}
	if getErr != nil {
		err = storeFailure("CancelBooking", getErr)
		return
	}
	if !mayModify(params.Principal, existing) {
		result = cancelRejected(CancelStatusForbidden, ReasonForbidden)
		return
	}
	if existing.CancelledAt != nil {
		view := toBookingView(existing)
		result = CancelResult{Status: CancelStatusCancelled, Booking: &view, AlreadyCancelled: true}
		return
	}

	release, lockErr := s.acquire(ctx, existing.RoomID)
	if lockErr != nil {
		err = storeFailure("CancelBooking", lockErr)
		return
	}
	defer release()

	// Another caller may have cancelled it while this one waited for the lock.
	current, getErr := s.schedules.GetSchedule(ctx, params.ScheduleID)
	if getErr != nil {
		err = storeFailure("CancelBooking", getErr)
		return
	}
	if current.CancelledAt != nil {
		view := toBookingView(current)
		result = CancelResult{Status: CancelStatusCancelled, Booking: &view, AlreadyCancelled: true}
		return
	}

	at := s.now().UTC()
	if cancelErr := s.schedules.CancelSchedule(ctx, params.ScheduleID, at); cancelErr != nil {
		if errors.Is(cancelErr, persistence.ErrNotFound) {
			result = cancelRejected(CancelStatusNotFound, ReasonNotFound)
			return
		}
		err = storeFailure("CancelBooking", cancelErr)
		return
	}

	s.cache.InvalidateRoom(current.RoomID)
	current.CancelledAt = &at
	view := toBookingView(current)
	result = CancelResult{Status: CancelStatusCancelled, Booking: &view}
	s.publish(ctx, logger, events.BookingCancelled, params.Principal, view, "")
	return
}

// RescheduleBooking moves a booking to a new interval in the same room. The
// booking being moved does not conflict with itself. The old booking is
// cancelled and the new one inserted in a single store transaction; on any
// rejection both stay as they were.
func (s *BookingService) RescheduleBooking(ctx context.Context, params RescheduleBookingParams) (result BookingResult, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	started := time.Now()
	logger := s.loggerWith(ctx, "RescheduleBooking",
		"requester_id", params.Principal.RequesterID,
		"schedule_id", params.ScheduleID,
	)
	defer func() {
		s.finish(ctx, logger, "reschedule", started, result.Rejection, err)
		if result.Booking != nil {
			logger.InfoContext(ctx, "booking rescheduled", "new_schedule_id", result.Booking.ID)
		}
	}()

	interval, ivErr := scheduler.NewInterval(params.Start, params.End)
	if ivErr != nil {
		result.Rejection = reject(ReasonInvalidInterval, ivErr.Error())
		return
	}

	existing, getErr := s.schedules.GetSchedule(ctx, params.ScheduleID)
	if errors.Is(getErr, persistence.ErrNotFound) || (getErr == nil && existing.CancelledAt != nil) {
		result.Rejection = reject(ReasonNotFound, "no active booking "+params.ScheduleID)
		return
	}
	if getErr != nil {
		err = storeFailure("RescheduleBooking", getErr)
		return
	}
	if !mayModify(params.Principal, existing) {
		result.Rejection = reject(ReasonForbidden, "")
		return
	}

	if rejection, lookupErr := s.admissibleRoom(ctx, existing.RoomID); lookupErr != nil || rejection != nil {
		result.Rejection, err = rejection, lookupErr
		return
	}

	release, lockErr := s.acquire(ctx, existing.RoomID)
	if lockErr != nil {
		err = storeFailure("RescheduleBooking", lockErr)
		return
	}
	defer release()

	active, loadErr := s.schedules.LoadActiveSchedules(ctx, existing.RoomID)
	if loadErr != nil {
		err = storeFailure("RescheduleBooking", loadErr)
		return
	}
	if !containsSchedule(active, existing.ID) {
		result.Rejection = reject(ReasonNotFound, "no active booking "+params.ScheduleID)
		return
	}
	if conflict := findConflict(active, interval, existing.ID); conflict != nil {
		result.Rejection = overlapRejection(conflict)
		return
	}

	now := s.now().UTC()
	next := persistence.RoomSchedule{
		ID:          s.idGenerator(),
		RoomID:      existing.RoomID,
		RequesterID: existing.RequesterID,
		Start:       interval.Start,
		End:         interval.End,
		CreatedAt:   now,
	}
	stored, replaceErr := s.schedules.ReplaceSchedule(ctx, existing.ID, now, next)
	if replaceErr != nil {
		result.Rejection, err = s.classifyWriteError(ctx, "RescheduleBooking", replaceErr, existing.RoomID, interval, existing.ID)
		return
	}

	s.cache.InvalidateRoom(existing.RoomID)
	view := toBookingView(stored)
	previous := toBookingView(existing)
	previous.CancelledAt = &now
	result.Booking = &view
	result.Previous = &previous
	s.publish(ctx, logger, events.BookingRescheduled, params.Principal, view, existing.ID)
	return
}

// admissibleRoom returns a RoomUnavailable rejection for missing or inactive rooms.
func (s *BookingService) admissibleRoom(ctx context.Context, roomID string) (*Rejection, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if errors.Is(err, persistence.ErrNotFound) {
		return reject(ReasonRoomUnavailable, "room "+roomID+" does not exist"), nil
	}
	if err != nil {
		return nil, storeFailure("GetRoom", err)
	}
	if !room.Active {
		return reject(ReasonRoomUnavailable, "room "+roomID+" is inactive"), nil
	}
	return nil, nil
}

func (s *BookingService) acquire(ctx context.Context, roomID string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	waitStarted := time.Now()
	release, err := s.locks.Acquire(lockCtx, roomID)
	s.metrics.ObserveLockWait(time.Since(waitStarted), err == nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("room %s: %w", roomID, ErrTimeout)
		}
		return nil, fmt.Errorf("room %s: %w", roomID, err)
	}
	return release, nil
}

// classifyWriteError turns store write errors into rejections where the
// store reported a business conflict, and into store failures otherwise.
func (s *BookingService) classifyWriteError(ctx context.Context, op string, writeErr error, roomID string, interval scheduler.Interval, ignoreID string) (*Rejection, error) {
	switch {
	case errors.Is(writeErr, persistence.ErrOverlap):
		// Lost a race the lock did not cover; report the committed winner.
		active, err := s.schedules.LoadActiveSchedules(ctx, roomID)
		if err != nil {
			return &Rejection{Reason: ReasonOverlap}, nil
		}
		return overlapRejection(findConflict(active, interval, ignoreID)), nil
	case errors.Is(writeErr, persistence.ErrNotFound):
		return reject(ReasonNotFound, ""), nil
	case errors.Is(writeErr, persistence.ErrForeignKeyViolation):
		return reject(ReasonRoomUnavailable, "room "+roomID+" does not exist"), nil
	case errors.Is(writeErr, persistence.ErrConstraintViolation):
		return reject(ReasonInvalidInterval, writeErr.Error()), nil
	}
	return nil, storeFailure(op, writeErr)
}

func (s *BookingService) publish(ctx context.Context, logger *slog.Logger, eventType events.Type, actor Principal, booking BookingView, previousID string) {
	event := events.BookingEvent{
		ID:                 s.idGenerator(),
		Type:               eventType,
		ScheduleID:         booking.ID,
		PreviousScheduleID: previousID,
		RoomID:             booking.RoomID,
		RequesterID:        booking.RequesterID,
		ActorID:            actor.RequesterID,
		Start:              booking.Start,
		End:                booking.End,
		OccurredAt:         s.now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish booking event", "event_type", eventType, "error", err)
	}
}

func (s *BookingService) finish(ctx context.Context, logger *slog.Logger, operation string, started time.Time, rejection *Rejection, err error) {
	outcome := "admitted"
	switch {
	case err != nil:
		outcome = "failed"
		logger.ErrorContext(ctx, "booking operation failed", "error", err, "error_kind", ErrorKind(err))
	case rejection != nil:
		outcome = string(rejection.Reason)
		attrs := []any{"reason", rejection.Reason}
		if rejection.Conflict != nil {
			attrs = append(attrs, "conflict_id", rejection.Conflict.ID)
		}
		logger.InfoContext(ctx, "booking rejected", attrs...)
	}
	s.metrics.ObserveOperation(operation, outcome, time.Since(started))
}

// findConflict returns the earliest active schedule overlapping interval,
// skipping ignoreID.
func findConflict(active []persistence.RoomSchedule, interval scheduler.Interval, ignoreID string) *persistence.RoomSchedule {
	candidates := make([]persistence.RoomSchedule, 0, len(active))
	intervals := make([]scheduler.Interval, 0, len(active))
	for _, schedule := range active {
		if schedule.ID == ignoreID {
			continue
		}
		candidates = append(candidates, schedule)
		intervals = append(intervals, scheduler.Interval{Start: schedule.Start, End: schedule.End})
	}
	decision := scheduler.Check(intervals, interval)
	if decision.Admit {
		return nil
	}
	return &candidates[decision.Index]
}

func overlapRejection(conflict *persistence.RoomSchedule) *Rejection {
	rejection := &Rejection{Reason: ReasonOverlap}
	if conflict != nil {
		view := toBookingView(*conflict)
		rejection.Conflict = &view
	}
	return rejection
}

func cancelRejected(status CancelStatus, reason RejectionReason) CancelResult {
	return CancelResult{Status: status, Rejection: reject(reason, "")}
}

func mayModify(principal Principal, schedule persistence.RoomSchedule) bool {
	return principal.IsAdmin || (principal.RequesterID != "" && principal.RequesterID == schedule.RequesterID)
}

func containsSchedule(schedules []persistence.RoomSchedule, id string) bool {
	for _, schedule := range schedules {
		if schedule.ID == id {
			return true
		}
	}
	return false
}
