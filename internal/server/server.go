// Package server exposes the library over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/lepinkainen/librarian/internal/ratelimit"
	"github.com/lepinkainen/librarian/internal/session"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
	sweepInterval     = time.Minute
)

// Server runs the HTTP API and expires idle search sessions and download limiters.
type Server struct {
	httpServer *http.Server
	sessions   *session.Table
	downloads  *ratelimit.Keyed
}

// New creates a server listening on addr.
func New(addr string, h *Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		sessions:  h.sessions,
		downloads: h.downloads,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case err, ok := <-errCh:
			if ok {
				return err
			}
			return nil
		case <-ticker.C:
			s.sweep(time.Now())
		case <-ctx.Done():
			slog.Info("Shutting down HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return s.httpServer.Shutdown(shutdownCtx)
		}
	}
}

func (s *Server) sweep(now time.Time) {
	if n := s.sessions.Sweep(); n > 0 {
		slog.Debug("Expired search sessions", "count", n)
	}
	if n := s.downloads.Sweep(now); n > 0 {
		slog.Debug("Dropped idle download limiters", "count", n)
	}
}
