package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCountsOutcomes(t *testing.T) {
	t.Parallel()

	recorder := New()
	recorder.ObserveOperation("create", "admitted", 10*time.Millisecond)
	recorder.ObserveOperation("create", "overlap", time.Millisecond)
	recorder.ObserveOperation("create", "overlap", time.Millisecond)

	rec := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `roombooking_operations_total{operation="create",outcome="admitted"} 1`)
	assert.Contains(t, body, `roombooking_operations_total{operation="create",outcome="overlap"} 2`)
}

func TestRecorderHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	recorder := New()
	recorder.ObserveLockWait(time.Millisecond, true)
	recorder.ObserveHTTPRequest(http.MethodPost, "/rooms/:roomID/bookings", http.StatusCreated, time.Millisecond)

	rec := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "roombooking_room_lock_wait_seconds")
	assert.Contains(t, body, `route="/rooms/:roomID/bookings"`)
}

func TestNilRecorderIsSafe(t *testing.T) {
	t.Parallel()

	var recorder *Recorder
	recorder.ObserveOperation("create", "admitted", time.Second)
	recorder.ObserveLockWait(time.Second, false)
	recorder.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Second)
	assert.Nil(t, recorder.Registry())

	rec := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
