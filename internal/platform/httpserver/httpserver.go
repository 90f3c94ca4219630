// Package httpserver builds the API's http.Server from configuration.
package httpserver

import (
	"net/http"
	"time"

	"fasela/internal/platform/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	maxHeaderBytes    = 1 << 20
)

// New returns a server for handler. Zero timeouts in cfg fall back to the
// defaults below.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       orDefault(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      orDefault(cfg.WriteTimeout, 45*time.Second),
		IdleTimeout:       orDefault(cfg.IdleTimeout, time.Minute),
		MaxHeaderBytes:    maxHeaderBytes,
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
