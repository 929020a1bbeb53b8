package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/application"
)

func TestRequesterMiddleware(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		headers  map[string]string
		want     application.Principal
		wantSeen bool
	}{
		{name: "no requester", wantSeen: false},
		{
			name:     "plain requester",
			headers:  map[string]string{headerRequesterID: " alice "},
			want:     application.Principal{RequesterID: "alice"},
			wantSeen: true,
		},
		{
			name:     "override authority",
			headers:  map[string]string{headerRequesterID: "ops", headerRequesterOverride: "true"},
			want:     application.Principal{RequesterID: "ops", IsAdmin: true},
			wantSeen: true,
		},
		{
			name:     "malformed override is ignored",
			headers:  map[string]string{headerRequesterID: "bob", headerRequesterOverride: "yes please"},
			want:     application.Principal{RequesterID: "bob"},
			wantSeen: true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var got application.Principal
			var seen bool
			handler := Requester()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, seen = PrincipalFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tc.wantSeen, seen)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRequestLoggerAssignsRequestID(t *testing.T) {
	t.Parallel()

	var seenID string
	handler := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID, _ = RequestIDFromContext(r.Context())
		assert.NotNil(t, LoggerFromContext(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seenID)
	assert.Equal(t, seenID, rec.Header().Get(headerRequestID))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerRequestID, "upstream-42")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-42", rec.Header().Get(headerRequestID))
}
