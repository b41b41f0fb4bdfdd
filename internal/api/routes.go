package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ignite/postmark-bridge/internal/config"
)

// SetupRoutes configures all routes. The webhook is server-to-server and
// sits outside the CORS-enabled /api group.
func SetupRoutes(cfg config.ServerConfig, deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Server-Identity", "postmark-bridge")
			next.ServeHTTP(w, req)
		})
	})

	if deps.Health != nil {
		r.Get("/health", deps.Health.HandleHealth)
		r.Get("/health/live", deps.Health.HandleLiveness)
		r.Get("/health/ready", deps.Health.HandleReadiness)
	}

	if deps.Webhook != nil {
		deps.Webhook.Register(r)
	}

	if deps.Suppressions != nil {
		h := &SuppressionHandlers{svc: deps.Suppressions}
		r.Route("/api", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: cfg.AllowedOrigins,
				AllowedMethods: []string{"GET", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
				MaxAge:         300,
			}))
			r.Get("/suppressions", h.List)
			r.Get("/suppressions/stats", h.Stats)
			r.Get("/suppressions/check", h.Check)
		})
	}

	return r
}
