package http

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type RouterConfig struct {
	Rooms    *RoomHandler
	Bookings *BookingHandler
	Health   *HealthHandler
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Observer records per-route latency when set.
	Observer   RequestObserver
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	router := httprouter.New()
	resp := newResponder(nil)

	handle := func(method, path string, h httprouter.Handle) {
		router.Handle(method, path, instrument(cfg.Observer, method, path, h))
	}

	if cfg.Health != nil {
		router.GET("/healthz", cfg.Health.Health)
	}
	if cfg.Metrics != nil {
		router.Handler(http.MethodGet, "/metrics", cfg.Metrics)
	}

	if cfg.Rooms != nil {
		handle(http.MethodPost, "/branches", cfg.Rooms.CreateBranch)
		handle(http.MethodGet, "/branches", cfg.Rooms.ListBranches)
		handle(http.MethodPost, "/branches/:branchID/rooms", cfg.Rooms.CreateRoom)
		handle(http.MethodGet, "/rooms", cfg.Rooms.ListRooms)
		handle(http.MethodGet, "/rooms/:roomID", cfg.Rooms.GetRoom)
		handle(http.MethodPatch, "/rooms/:roomID/status", cfg.Rooms.SetStatus)
	}

	if cfg.Bookings != nil {
		handle(http.MethodPost, "/rooms/:roomID/bookings", cfg.Bookings.Create)
		handle(http.MethodGet, "/rooms/:roomID/bookings", cfg.Bookings.List)
		handle(http.MethodGet, "/rooms/:roomID/availability", cfg.Bookings.Availability)
		handle(http.MethodPut, "/bookings/:scheduleID", cfg.Bookings.Reschedule)
		handle(http.MethodDelete, "/bookings/:scheduleID", cfg.Bookings.Cancel)
	}

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp.writeError(r.Context(), w, http.StatusNotFound, nil)
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp.writeError(r.Context(), w, http.StatusMethodNotAllowed, nil)
	})
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, recovered any) {
		resp.loggerFor(r.Context()).ErrorContext(r.Context(), "panic while serving request", "panic", recovered)
		resp.writeError(r.Context(), w, http.StatusInternalServerError, nil)
	}

	var handler http.Handler = router
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
