package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireAdminToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })

	cases := []struct {
		name     string
		expected string
		sent     string
		want     int
	}{
		{"matching token", "s3cret", "s3cret", http.StatusAccepted},
		{"wrong token", "s3cret", "guess", http.StatusUnauthorized},
		{"disabled when unset", "", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/sweep", nil)
			req.Header.Set("X-Admin-Token", tc.sent)
			rr := httptest.NewRecorder()
			RequireAdminToken(tc.expected, logger)(ok).ServeHTTP(rr, req)
			assert.Equal(t, tc.want, rr.Code)
		})
	}
}
