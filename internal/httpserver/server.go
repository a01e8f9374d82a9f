package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Options overrides the server timeouts. Zero values keep the defaults.
type Options struct {
	ReadHeaderTimeout time.Duration
	// ReadTimeout and WriteTimeout bound whole requests and must leave room for large uploads.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server wraps the http.Server with sensible defaults.
type Server struct {
	inner *http.Server
}

// New constructs a server listening on the provided port.
func New(port int, handler http.Handler, opts Options) *Server {
	return &Server{
		inner: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: orDefault(opts.ReadHeaderTimeout, 5*time.Second),
			ReadTimeout:       orDefault(opts.ReadTimeout, 15*time.Minute),
			WriteTimeout:      orDefault(opts.WriteTimeout, 15*time.Minute),
			IdleTimeout:       orDefault(opts.IdleTimeout, 2*time.Minute),
		},
	}
}

// Addr reports the configured listen address.
func (s *Server) Addr() string { return s.inner.Addr }

// Start begins serving HTTP traffic. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	if err := s.inner.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve accepts connections on l until shutdown.
func (s *Server) Serve(l net.Listener) error {
	if err := s.inner.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully terminates the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
