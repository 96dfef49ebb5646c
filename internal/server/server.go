// Package server exposes the slice manager over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/h3ow3d/slicemgr/internal/log"
	"github.com/h3ow3d/slicemgr/internal/metrics"
	"github.com/h3ow3d/slicemgr/internal/slice"
)

const (
	defaultMaxUpload  = 10 << 20
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	// MaxUploadBytes caps request bodies on POST /slices. Defaults to 10 MiB.
	MaxUploadBytes int64
}

// Server serves the slice API. Backend runs can take minutes, so no write
// timeout is set; each request's context is cancelled when its client leaves.
type Server struct {
	mgr       *slice.Manager
	maxUpload int64
	mux       *http.ServeMux
}

// New returns a Server backed by mgr.
func New(mgr *slice.Manager, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	s := &Server{mgr: mgr, maxUpload: opts.MaxUploadBytes, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /flavors", s.handleFlavors)
	s.mux.HandleFunc("GET /slices", s.handleList)
	s.mux.HandleFunc("POST /slices", s.handleCreate)
	s.mux.HandleFunc("GET /slices/{name}", s.handleShow)
	s.mux.HandleFunc("DELETE /slices/{name}", s.handleDelete)
	s.mux.Handle("GET /metrics", metrics.Handler())
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debug(fmt.Sprintf("%s %s", r.Method, r.URL.Path))
		s.mux.ServeHTTP(w, r)
	})
}

// ListenAndServe listens on addr and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends, then shuts down gracefully, letting
// in-flight requests finish for up to ten seconds.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	log.Info(fmt.Sprintf("Serving slice API on %s", ln.Addr()))
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		<-serveErr
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}
