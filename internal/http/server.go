package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Server serves the API router
type Server struct {
	logger *slog.Logger
	server *http.Server
}

// NewServer creates an HTTP server listening on port
func NewServer(logger *slog.Logger, port string, handler http.Handler) *Server {
	return &Server{
		logger: logger,
		server: &http.Server{
			Addr:    ":" + port,
			Handler: handler,
			// Add bookmark waits on the extraction pipeline
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 45 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.logger.Info("Starting API server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the API server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}
