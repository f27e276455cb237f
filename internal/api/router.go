package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-traveltime/internal/bridges/waze"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.withRequestID, s.accessLog, s.recoverPanics, s.cors, limitBody)

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/sensors", func(r chi.Router) {
			r.Get("/", s.handleListSensors)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSensor)
				r.Get("/history", s.handleGetSensorHistory)
				r.Post("/refresh", s.handleRefreshSensor)
			})
		})

		r.Get("/entities", s.handleListEntities)
	})

	return r
}

// handleHealth reports the bridge health. A degraded bridge answers 503 so
// load balancers and health checkers notice.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.bridge.Health()

	status := http.StatusOK
	if health.Status == waze.HealthDegraded {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status":          health.Status,
		"reason":          health.Reason,
		"version":         s.version,
		"uptime_seconds":  health.UptimeSeconds,
		"sensors_managed": health.SensorsManaged,
		"statistics":      health.Statistics,
	})
}
