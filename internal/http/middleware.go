package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/example/room-booking/internal/application"
)

const (
	headerRequestID         = "X-Request-ID"
	headerRequesterID       = "X-Requester-ID"
	headerRequesterOverride = "X-Requester-Override"
)

// RequestObserver records per-route request latency.
type RequestObserver interface {
	ObserveHTTPRequest(method, route string, status int, elapsed time.Duration)
}

// Requester attaches the principal forwarded by the gateway. Identity is not
// re-validated here; requests without X-Requester-ID carry no principal.
func Requester() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requesterID := strings.TrimSpace(r.Header.Get(headerRequesterID))
			if requesterID == "" {
				next.ServeHTTP(w, r)
				return
			}
			override, _ := strconv.ParseBool(strings.TrimSpace(r.Header.Get(headerRequesterOverride)))
			ctx := ContextWithPrincipal(r.Context(), application.Principal{RequesterID: requesterID, IsAdmin: override})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger assigns a request id, echoes it in X-Request-ID and logs the
// start and completion of every request.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(headerRequestID))
			if id == "" {
				id = uuid.NewString()
			}
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(ContextWithRequestID(r.Context(), id), logger)
			w.Header().Set(headerRequestID, id)
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(recorder, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", recorder.status, "duration", time.Since(start))
		})
	}
}

// instrument wraps a route handle with latency observation labelled by route pattern.
func instrument(observer RequestObserver, method, route string, handle httprouter.Handle) httprouter.Handle {
	if observer == nil {
		return handle
	}
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		handle(recorder, r, ps)
		observer.ObserveHTTPRequest(method, route, recorder.status, time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}
