// Package httpserver builds the process HTTP server.
package httpserver

import (
	"net/http"
	"time"

	"certify/internal/platform/config"
)

// writeSlack covers response encoding after a handler hits its timeout.
const writeSlack = 15 * time.Second

// New builds the server. The write timeout outlives the per-request timeout
// so a handler that times out can still answer.
func New(cfg config.Server, handler http.Handler) *http.Server {
	writeTimeout := 90 * time.Second
	if cfg.RequestTimeout > 0 {
		writeTimeout = cfg.RequestTimeout + writeSlack
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}
}
