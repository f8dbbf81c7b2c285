// Package server provides HTTP server lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rescindhq/rescind/internal/core/api"
	"github.com/rescindhq/rescind/internal/core/config"
)

// shutdownGrace bounds how long in-flight requests may run during shutdown.
const shutdownGrace = 30 * time.Second

// HTTPServer manages the decisioning API server lifecycle.
type HTTPServer struct {
	server *http.Server
	config *config.ServiceConfig
}

// NewHTTPServer creates the server with the service's routes registered.
func NewHTTPServer(cfg *config.ServiceConfig, service *api.Service) (*HTTPServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      service.Router(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	return &HTTPServer{server: srv, config: cfg}, nil
}

// Start serves HTTP requests. Blocks until Shutdown is called or the
// listener fails; a clean shutdown returns nil.
func (s *HTTPServer) Start(ctx context.Context) error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests, forcing closure after the grace period.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	graceCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()

	if err := s.server.Shutdown(graceCtx); err != nil {
		s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
