// Package api exposes the bridge over HTTP: the Postmark webhook, health
// probes and a read-only view of the suppression list for operators.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/postmark-bridge/internal/config"
	"github.com/ignite/postmark-bridge/internal/webhook"
)

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	router  *chi.Mux
	server  *http.Server
}

// Deps are the handlers the server routes to. Suppressions and Health may be nil.
type Deps struct {
	Webhook      *webhook.Handler
	Suppressions SuppressionReader
	Health       *HealthChecker
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	router := SetupRoutes(cfg, deps)
	return &Server{config: cfg, handler: router, router: router}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
