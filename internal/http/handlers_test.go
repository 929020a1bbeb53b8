package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/metrics"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/roomlock"
	"github.com/example/room-booking/internal/testfixtures"
)

type apiFixture struct {
	handler  http.Handler
	services *testfixtures.Services
	locks    *roomlock.Local
	room     persistence.Room
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	locks := roomlock.NewLocal()
	services := testfixtures.NewServiceFactory().NewServices(testfixtures.ServicesConfig{
		Locks:       locks,
		LockTimeout: 20 * time.Millisecond,
		Logger:      logger,
	})
	recorder := metrics.New()

	handler := NewRouter(RouterConfig{
		Rooms:      NewRoomHandler(services.Rooms, logger),
		Bookings:   NewBookingHandler(services.Bookings, services.Queries, logger),
		Health:     NewHealthHandler(services.Store.(Pinger), logger),
		Metrics:    recorder.Handler(),
		Observer:   recorder,
		Middleware: []func(http.Handler) http.Handler{RequestLogger(logger), Requester()},
	})
	return &apiFixture{handler: handler, services: services, locks: locks, room: testfixtures.SeedRoom(t, services.Store)}
}

func (f *apiFixture) do(t *testing.T, method, target, requester string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	if requester != "" {
		req.Header.Set(headerRequesterID, requester)
	}
	if requester == "ops" {
		req.Header.Set(headerRequesterOverride, "true")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func interval(start, end time.Time) map[string]string {
	return map[string]string{"start": start.Format(time.RFC3339), "end": end.Format(time.RFC3339)}
}

func TestBookingHandlers(t *testing.T) {
	t.Parallel()

	t.Run("create requires a requester", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		start, end := testfixtures.Slot(0, time.Hour)

		rec := f.do(t, http.MethodPost, "/rooms/"+f.room.ID+"/bookings", "", interval(start, end))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("create then overlap returns conflict", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		start, end := testfixtures.Slot(0, time.Hour)

		created := f.do(t, http.MethodPost, "/rooms/"+f.room.ID+"/bookings", "alice", interval(start, end))
		require.Equal(t, http.StatusCreated, created.Code)
		booking := decodeBody[bookingResponse](t, created).Booking
		assert.Equal(t, "alice", booking.RequesterID)
		assert.Equal(t, start.Format(time.RFC3339Nano), booking.Start)

		conflict := f.do(t, http.MethodPost, "/rooms/"+f.room.ID+"/bookings", "bob", interval(start.Add(30*time.Minute), end.Add(30*time.Minute)))
		require.Equal(t, http.StatusConflict, conflict.Code)
		resp := decodeBody[errorResponse](t, conflict)
		assert.Equal(t, "BOOKING_OVERLAP", resp.ErrorCode)
		require.NotNil(t, resp.Conflict)
		assert.Equal(t, booking.ID, resp.Conflict.ID)

		adjacent := f.do(t, http.MethodPost, "/rooms/"+f.room.ID+"/bookings", "bob", interval(end, end.Add(time.Hour)))
		assert.Equal(t, http.StatusCreated, adjacent.Code)
	})

	t.Run("invalid payloads", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		start, end := testfixtures.Slot(0, time.Hour)
		path := "/rooms/" + f.room.ID + "/bookings"

		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, path, "alice", "{not json").Code)

		missing := f.do(t, http.MethodPost, path, "alice", map[string]string{"start": start.Format(time.RFC3339)})
		require.Equal(t, http.StatusUnprocessableEntity, missing.Code)
		assert.Equal(t, "終了日時は必須です。", decodeBody[errorResponse](t, missing).Errors["end"])

		inverted := f.do(t, http.MethodPost, path, "alice", interval(end, start))
		require.Equal(t, http.StatusUnprocessableEntity, inverted.Code)
		assert.Equal(t, "INVALID_INTERVAL", decodeBody[errorResponse](t, inverted).ErrorCode)

		unknownRoom := f.do(t, http.MethodPost, "/rooms/missing/bookings", "alice", interval(start, end))
		assert.Equal(t, http.StatusConflict, unknownRoom.Code)
		assert.Equal(t, "ROOM_UNAVAILABLE", decodeBody[errorResponse](t, unknownRoom).ErrorCode)
	})

	t.Run("lock timeout maps to 503 with Retry-After", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		release, err := f.locks.Acquire(context.Background(), f.room.ID)
		require.NoError(t, err)
		defer release()

		start, end := testfixtures.Slot(0, time.Hour)
		rec := f.do(t, http.MethodPost, "/rooms/"+f.room.ID+"/bookings", "alice", interval(start, end))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, retryAfterSeconds, rec.Header().Get("Retry-After"))
		assert.Equal(t, "LOCK_TIMEOUT", decodeBody[errorResponse](t, rec).ErrorCode)
	})

	t.Run("cancel maps outcomes to status codes", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		start, end := testfixtures.Slot(0, time.Hour)
		created := f.do(t, http.MethodPost, "/rooms/"+f.room.ID+"/bookings", "alice", interval(start, end))
		id := decodeBody[bookingResponse](t, created).Booking.ID

		assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, "/bookings/"+id, "bob", nil).Code)
		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/bookings/missing", "alice", nil).Code)
		assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/bookings/"+id, "alice", nil).Code)
		assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/bookings/"+id, "alice", nil).Code)
	})

	t.Run("reschedule returns new and previous booking", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		start, end := testfixtures.Slot(0, time.Hour)
		created := f.do(t, http.MethodPost, "/rooms/"+f.room.ID+"/bookings", "alice", interval(start, end))
		id := decodeBody[bookingResponse](t, created).Booking.ID

		rec := f.do(t, http.MethodPut, "/bookings/"+id, "alice", interval(start.Add(15*time.Minute), end.Add(15*time.Minute)))
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[bookingResponse](t, rec)
		require.NotNil(t, resp.Previous)
		assert.Equal(t, id, resp.Previous.ID)
		assert.NotNil(t, resp.Previous.CancelledAt)
	})

	t.Run("availability and listing", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		start, end := testfixtures.Slot(0, time.Hour)
		f.do(t, http.MethodPost, "/rooms/"+f.room.ID+"/bookings", "alice", interval(start, end))

		query := url.Values{"start": {start.Format(time.RFC3339)}, "end": {end.Format(time.RFC3339)}}
		rec := f.do(t, http.MethodGet, "/rooms/"+f.room.ID+"/availability?"+query.Encode(), "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decodeBody[availabilityResponse](t, rec).Free)

		query = url.Values{"from": {start.Add(-time.Hour).Format(time.RFC3339)}, "to": {end.Format(time.RFC3339)}}
		rec = f.do(t, http.MethodGet, "/rooms/"+f.room.ID+"/bookings?"+query.Encode(), "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[listBookingsResponse](t, rec).Bookings, 1)

		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/rooms/"+f.room.ID+"/bookings", "", nil).Code)
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/rooms/"+f.room.ID+"/bookings?from=yesterday&to=today", "", nil).Code)
	})
}

func TestRoomHandlers(t *testing.T) {
	t.Parallel()

	t.Run("mutations require override authority", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)

		rec := f.do(t, http.MethodPost, "/branches", "alice", map[string]string{"name": "Osaka"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "AUTH_FORBIDDEN", decodeBody[errorResponse](t, rec).ErrorCode)
	})

	t.Run("admin manages the catalog", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)

		branchRec := f.do(t, http.MethodPost, "/branches", "ops", map[string]string{"name": "Osaka"})
		require.Equal(t, http.StatusCreated, branchRec.Code)
		branch := decodeBody[branchResponse](t, branchRec).Branch

		roomRec := f.do(t, http.MethodPost, "/branches/"+branch.ID+"/rooms", "ops", map[string]string{"name": "Umeda", "detail": "8 seats"})
		require.Equal(t, http.StatusCreated, roomRec.Code)
		room := decodeBody[roomResponse](t, roomRec).Room
		assert.True(t, room.Active)

		statusRec := f.do(t, http.MethodPatch, "/rooms/"+room.ID+"/status", "ops", map[string]bool{"active": false})
		require.Equal(t, http.StatusOK, statusRec.Code)
		assert.False(t, decodeBody[roomResponse](t, statusRec).Room.Active)

		listRec := f.do(t, http.MethodGet, "/rooms?branch_id="+branch.ID, "", nil)
		require.Equal(t, http.StatusOK, listRec.Code)
		assert.Len(t, decodeBody[listRoomsResponse](t, listRec).Rooms, 1)

		activeRec := f.do(t, http.MethodGet, "/rooms?active=true&branch_id="+branch.ID, "", nil)
		assert.Empty(t, decodeBody[listRoomsResponse](t, activeRec).Rooms)
	})

	t.Run("localized validation errors", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)

		rec := f.do(t, http.MethodPost, "/branches", "ops", map[string]string{"name": ""})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "名称は必須です。", decodeBody[errorResponse](t, rec).Errors["name"])

		missingStatus := f.do(t, http.MethodPatch, "/rooms/"+f.room.ID+"/status", "ops", map[string]string{})
		require.Equal(t, http.StatusUnprocessableEntity, missingStatus.Code)
		assert.Equal(t, "有効フラグは必須です。", decodeBody[errorResponse](t, missingStatus).Errors["active"])
	})

	t.Run("unknown room is 404", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/rooms/missing", "", nil).Code)
	})
}

func TestOperationalEndpoints(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	health := f.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, health.Code)
	assert.Equal(t, "ok", decodeBody[healthResponse](t, health).Status)

	start, end := testfixtures.Slot(0, time.Hour)
	f.do(t, http.MethodPost, "/rooms/"+f.room.ID+"/bookings", "alice", interval(start, end))

	metricsRec := f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, metricsRec.Code)
	assert.Contains(t, metricsRec.Body.String(), `route="/rooms/:roomID/bookings"`)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/nowhere", "", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodPatch, "/branches", "ops", nil).Code)
}
