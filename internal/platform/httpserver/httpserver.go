// Package httpserver builds the engine's HTTP server with gavel's timeout
// profile.
package httpserver

import (
	"net/http"
	"time"
)

// Settlement requests can sit on the external conversion leg, so the write
// timeout stays above the router's 30s per-request deadline: slow settles
// are cut off by the handler context, not by dropping the connection.
const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 45 * time.Second
	idleTimeout       = 90 * time.Second
)

// New builds the server for the given address and handler.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
