// Package metadata records client IP, User-Agent and a short device label in
// the request context for audit events.
package metadata

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"certify/pkg/requestcontext"
)

// ClientMetadata should run early in the chain, before anything that audits.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(),
			ClientIPFromRequest(r),
			userAgent,
			DeviceLabel(userAgent),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceLabel renders a User-Agent as "browser/os", "bot/<name>" or "" when
// nothing useful can be parsed.
func DeviceLabel(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	if ua.Bot() {
		return "bot/" + browser
	}
	os := ua.OS()
	switch {
	case browser == "" && os == "":
		return ""
	case os == "":
		return browser
	case ua.Mobile():
		return browser + "/" + os + " (mobile)"
	default:
		return browser + "/" + os
	}
}

// ClientIPFromRequest prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the connection address.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
