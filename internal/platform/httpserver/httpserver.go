// Package httpserver builds the process's HTTP listener.
package httpserver

import (
	"net/http"
	"time"
)

const (
	headerTimeout = 5 * time.Second
	idleTimeout   = 2 * time.Minute

	// slack covers response serialization after the handler chain's own
	// deadline has fired, so the listener never cuts off an error reply.
	slack = 5 * time.Second

	defaultRequestTimeout = 30 * time.Second
)

// New builds the server. requestTimeout is the per-request deadline the
// router's middleware enforces; the listener's read and write limits are
// derived from it so document uploads get the full window to stream in.
func New(addr string, handler http.Handler, requestTimeout time.Duration) *http.Server {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: headerTimeout,
		ReadTimeout:       requestTimeout + slack,
		WriteTimeout:      requestTimeout + slack,
		IdleTimeout:       idleTimeout,
	}
}
