package request

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"certify/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	t.Run("keeps inbound id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-123")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, "req-123", seen)
		assert.Equal(t, "req-123", rr.Header().Get("X-Request-ID"))
	})

	t.Run("assigns one when missing", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rr.Header().Get("X-Request-ID"))
	})
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "boom")
}

type observation struct {
	route  string
	status int
}

type recordingObserver struct {
	seen []observation
}

func (o *recordingObserver) ObserveRequest(route, _ string, status int, _ time.Time) {
	o.seen = append(o.seen, observation{route, status})
}

func TestLatencyUsesRoutePattern(t *testing.T) {
	observer := &recordingObserver{}
	r := chi.NewRouter()
	r.Use(Latency(observer))
	r.Get("/certificates/{identifier}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/certificates/abc", nil))
	assert.Equal(t, []observation{{"/certificates/{identifier}", http.StatusTeapot}}, observer.seen)
}
