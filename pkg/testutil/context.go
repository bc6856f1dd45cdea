package testutil

import (
	"context"
	"net/http"

	"certify/pkg/requestcontext"
)

// WithPrincipal adds an authenticated principal to the request context.
// This simulates what the auth middleware does for a validated bearer token.
func WithPrincipal(req *http.Request, accountID, role string) *http.Request {
	ctx := requestcontext.WithPrincipal(req.Context(), requestcontext.Principal{
		AccountID: accountID,
		Role:      role,
	})
	return req.WithContext(ctx)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), key, value))
}
