package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Health and metrics (no auth, scrape-friendly)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Pairing: device allocates a code, wizard binds config to it,
		// device polls until bound. The code itself is the capability.
		r.Post("/pair", s.handleCreatePairing)
		r.Get("/pair/{code}", s.handlePollPairing)
		r.Post("/pair/{code}/config", s.handleSubmitConfig)

		// Zone content
		r.Get("/zonedata", s.handleZoneData)
		r.Get("/zones", s.handleChangedZones)

		// Device telemetry
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/checkin", s.handleCheckin)
			r.Get("/{key}", s.handleGetDevice)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
