package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/example/room-booking/internal/application"
)

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.BookingResult, error)
	CancelBooking(ctx context.Context, params application.CancelBookingParams) (application.CancelResult, error)
	RescheduleBooking(ctx context.Context, params application.RescheduleBookingParams) (application.BookingResult, error)
}

type bookingQueries interface {
	IsRoomFree(ctx context.Context, roomID string, start, end time.Time) (bool, error)
	ListRoomBookings(ctx context.Context, params application.ListRoomBookingsParams) ([]application.BookingView, error)
}

// BookingHandler serves booking writes and room availability queries.
type BookingHandler struct {
	bookings  bookingService
	queries   bookingQueries
	validator *requestValidator
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(bookings bookingService, queries bookingQueries, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{
		bookings:  bookings,
		queries:   queries,
		validator: newRequestValidator(),
		responder: newResponder(base),
		logger:    base,
	}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

// Create handles POST /rooms/:roomID/bookings.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	roomID := ps.ByName("roomID")

	principal, ok := requirePrincipal(ctx, w, h.responder)
	if !ok {
		return
	}

	var req intervalRequest
	if !h.decode(w, r, "Create", &req) {
		return
	}

	logger := h.log(ctx, "Create", "room_id", roomID)
	result, err := h.bookings.CreateBooking(ctx, application.CreateBookingParams{
		Principal: principal,
		RoomID:    roomID,
		Start:     *req.Start,
		End:       *req.End,
	})
	if err != nil {
		logger.ErrorContext(ctx, "booking creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	if result.Rejection != nil {
		logger.InfoContext(ctx, "booking rejected", "reason", result.Rejection.Reason)
		h.responder.writeRejection(ctx, w, result.Rejection)
		return
	}

	logger.With("schedule_id", result.Booking.ID).InfoContext(ctx, "booking created")
	h.responder.writeJSON(ctx, w, http.StatusCreated, bookingResponse{Booking: toBookingDTO(*result.Booking)})
}

// Reschedule handles PUT /bookings/:scheduleID.
func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	scheduleID := ps.ByName("scheduleID")

	principal, ok := requirePrincipal(ctx, w, h.responder)
	if !ok {
		return
	}

	var req intervalRequest
	if !h.decode(w, r, "Reschedule", &req) {
		return
	}

	logger := h.log(ctx, "Reschedule", "schedule_id", scheduleID)
	result, err := h.bookings.RescheduleBooking(ctx, application.RescheduleBookingParams{
		Principal:  principal,
		ScheduleID: scheduleID,
		Start:      *req.Start,
		End:        *req.End,
	})
	if err != nil {
		logger.ErrorContext(ctx, "booking reschedule failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	if result.Rejection != nil {
		logger.InfoContext(ctx, "reschedule rejected", "reason", result.Rejection.Reason)
		h.responder.writeRejection(ctx, w, result.Rejection)
		return
	}

	resp := bookingResponse{Booking: toBookingDTO(*result.Booking)}
	if result.Previous != nil {
		previous := toBookingDTO(*result.Previous)
		resp.Previous = &previous
	}
	logger.With("new_schedule_id", result.Booking.ID).InfoContext(ctx, "booking rescheduled")
	h.responder.writeJSON(ctx, w, http.StatusOK, resp)
}

// Cancel handles DELETE /bookings/:scheduleID.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	scheduleID := ps.ByName("scheduleID")

	principal, ok := requirePrincipal(ctx, w, h.responder)
	if !ok {
		return
	}

	logger := h.log(ctx, "Cancel", "schedule_id", scheduleID)
	result, err := h.bookings.CancelBooking(ctx, application.CancelBookingParams{
		Principal:  principal,
		ScheduleID: scheduleID,
	})
	if err != nil {
		logger.ErrorContext(ctx, "booking cancel failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	switch result.Status {
	case application.CancelStatusCancelled:
		logger.InfoContext(ctx, "booking cancelled", "already_cancelled", result.AlreadyCancelled)
		h.responder.writeJSON(ctx, w, http.StatusNoContent, nil)
	default:
		logger.InfoContext(ctx, "cancel rejected", "status", result.Status)
		h.responder.writeRejection(ctx, w, result.Rejection)
	}
}

// List handles GET /rooms/:roomID/bookings?from=&to=&include_cancelled=.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	roomID := ps.ByName("roomID")
	query := r.URL.Query()

	from, to, err := parseWindow(query.Get("from"), query.Get("to"))
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}
	includeCancelled := false
	if raw := strings.TrimSpace(query.Get("include_cancelled")); raw != "" {
		if includeCancelled, err = strconv.ParseBool(raw); err != nil {
			h.responder.writeError(ctx, w, http.StatusBadRequest, errInvalidBoolQuery)
			return
		}
	}

	logger := h.log(ctx, "List", "room_id", roomID)
	bookings, err := h.queries.ListRoomBookings(ctx, application.ListRoomBookingsParams{
		RoomID:           roomID,
		From:             from,
		To:               to,
		IncludeCancelled: includeCancelled,
	})
	if err != nil {
		logger.WarnContext(ctx, "booking list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	logger.With("result_count", len(bookings)).DebugContext(ctx, "bookings listed")
	h.responder.writeJSON(ctx, w, http.StatusOK, listBookingsResponse{Bookings: toBookingDTOs(bookings)})
}

// Availability handles GET /rooms/:roomID/availability?start=&end=.
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	roomID := ps.ByName("roomID")
	query := r.URL.Query()

	start, end, err := parseWindow(query.Get("start"), query.Get("end"))
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}

	free, err := h.queries.IsRoomFree(ctx, roomID, start, end)
	if err != nil {
		h.log(ctx, "Availability", "room_id", roomID).
			WarnContext(ctx, "availability check failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusOK, availabilityResponse{
		RoomID: roomID,
		Start:  formatTime(start),
		End:    formatTime(end),
		Free:   free,
	})
}

func (h *BookingHandler) decode(w http.ResponseWriter, r *http.Request, operation string, req any) bool {
	return decodeRequest(w, r, req, h.validator, h.responder, h.log(r.Context(), operation))
}

func requirePrincipal(ctx context.Context, w http.ResponseWriter, resp responder) (application.Principal, bool) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok || strings.TrimSpace(principal.RequesterID) == "" {
		resp.writeError(ctx, w, http.StatusUnauthorized, errMissingRequester)
		return application.Principal{}, false
	}
	return principal, true
}

func parseWindow(rawStart, rawEnd string) (time.Time, time.Time, error) {
	rawStart, rawEnd = strings.TrimSpace(rawStart), strings.TrimSpace(rawEnd)
	if rawStart == "" || rawEnd == "" {
		return time.Time{}, time.Time{}, errMissingTimeQuery
	}
	start, err := time.Parse(time.RFC3339, rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, errInvalidTimeQuery
	}
	end, err := time.Parse(time.RFC3339, rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, errInvalidTimeQuery
	}
	return start, end, nil
}

type intervalRequest struct {
	Start *time.Time `json:"start" validate:"required"`
	End   *time.Time `json:"end" validate:"required"`
}

type bookingResponse struct {
	Booking  bookingDTO  `json:"booking"`
	Previous *bookingDTO `json:"previous,omitempty"`
}

type listBookingsResponse struct {
	Bookings []bookingDTO `json:"bookings"`
}

type availabilityResponse struct {
	RoomID string `json:"room_id"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Free   bool   `json:"free"`
}

type bookingDTO struct {
	ID          string  `json:"id"`
	RoomID      string  `json:"room_id"`
	RequesterID string  `json:"requester_id"`
	Start       string  `json:"start"`
	End         string  `json:"end"`
	CreatedAt   string  `json:"created_at"`
	CancelledAt *string `json:"cancelled_at,omitempty"`
}

func toBookingDTO(booking application.BookingView) bookingDTO {
	dto := bookingDTO{
		ID:          booking.ID,
		RoomID:      booking.RoomID,
		RequesterID: booking.RequesterID,
		Start:       formatTime(booking.Start),
		End:         formatTime(booking.End),
		CreatedAt:   formatTime(booking.CreatedAt),
	}
	if booking.CancelledAt != nil {
		cancelled := formatTime(*booking.CancelledAt)
		dto.CancelledAt = &cancelled
	}
	return dto
}

func toBookingDTOs(bookings []application.BookingView) []bookingDTO {
	out := make([]bookingDTO, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, toBookingDTO(booking))
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
