package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/feedwatch/internal/api/alerts"
	"github.com/good-yellow-bee/feedwatch/internal/api/middleware"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	ipLimiter := middleware.NewRateLimiter(s.config.RateLimitPerIP)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.PrometheusMiddleware)
	r.Use(middleware.Recoverer)

	alertHandler := alerts.NewHandler(s.engine)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ipLimiter))

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", alertHandler.List)
			r.Post("/", alertHandler.Create)
			r.Get("/stats", alertHandler.Stats)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", alertHandler.GetByID)
				r.Put("/", alertHandler.Update)
				r.Delete("/", alertHandler.Delete)
				r.Post("/toggle", alertHandler.Toggle)
				r.Post("/snooze", alertHandler.Snooze)
				r.Get("/history", alertHandler.History)
				r.Delete("/history", alertHandler.ClearHistory)
			})
		})

		r.Route("/triggers", func(r chi.Router) {
			r.Get("/", alertHandler.History)
			r.Delete("/", alertHandler.ClearHistory)
			r.Post("/{id}/ack", alertHandler.Acknowledge)
		})

		r.Post("/check", alertHandler.Check)

		r.Route("/monitoring", func(r chi.Router) {
			r.Get("/", alertHandler.Monitoring)
			r.Post("/start", alertHandler.StartMonitoring)
			r.Post("/stop", alertHandler.StopMonitoring)
		})
	})

	// Health check (public, no rate limit)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	return r
}
