// Package auth authenticates bearer tokens and records the caller in the
// request context.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "certify/pkg/domain-errors"
	"certify/pkg/platform/httputil"
	"certify/pkg/requestcontext"
)

// TokenValidator validates a raw bearer token.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims is what the middleware needs from a validated token.
type Claims struct {
	AccountID string
	Role      string
	JTI       string
}

// RequireAuth rejects requests without a valid bearer token and stores the
// principal for downstream handlers.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			ctx = requestcontext.WithPrincipal(ctx, requestcontext.Principal{
				AccountID: claims.AccountID,
				Role:      claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
