// Package core provides the API chassis for the Gatherly notification
// service: a chi router with the cross-cutting middleware (request IDs,
// logging, panic recovery, identity) applied before requests reach the
// domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatherly/internal/config"
)

// Server bundles the router with its cross-cutting dependencies so tests can
// construct it with fakes.
type Server struct {
	Config *config.Config
	Logger *slog.Logger

	router *chi.Mux
}

// NewServer initializes the router and middleware chain. Routes are mounted
// by the caller afterwards, which lets tests register only what they need.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}

	s.router.Use(s.Recoverer)
	s.router.Use(s.RequestID)
	s.router.Use(s.RequestLogger)

	return s, nil
}

// Handler returns the router as an http.Handler for http.ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown flushes server-held resources. Database pools are owned and
// closed by the process entry point, not here.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	return nil
}
