package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"certify/pkg/requestcontext"
)

type stubValidator struct {
	claims *Claims
	err    error
}

func (s stubValidator) ValidateToken(string) (*Claims, error) {
	return s.claims, s.err
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var seen requestcontext.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = requestcontext.PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("missing header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		RequireAuth(stubValidator{}, logger)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rr := httptest.NewRecorder()
		RequireAuth(stubValidator{err: errors.New("bad signature")}, logger)(next).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), `"error":"unauthorized"`)
	})

	t.Run("valid token sets the principal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		rr := httptest.NewRecorder()
		validator := stubValidator{claims: &Claims{AccountID: "acc-1", Role: "issuer"}}
		RequireAuth(validator, logger)(next).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, requestcontext.Principal{AccountID: "acc-1", Role: "issuer"}, seen)
	})
}
