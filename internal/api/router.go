package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 3 * time.Second

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/medications", func(r chi.Router) {
				r.Get("/", s.handleListMedications)
				r.Route("/{entry}/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetMedication)
					r.Post("/dose", s.handleRecordDose)
					r.Put("/inventory", s.handleUpdateInventory)
					r.Get("/history", s.handleDoseHistory)
				})
			})

			r.Route("/services", func(r chi.Router) {
				r.Post("/record_dose", s.handleServiceRecordDose)
				r.Post("/update_inventory", s.handleServiceUpdateInventory)
			})

			r.Route("/tags", func(r chi.Router) {
				r.Post("/{tag}/scan", s.handleTagScan)
				r.Post("/learn", s.handleStartLearn)
				r.Get("/learn/{id}", s.handleGetLearn)
				r.Delete("/learn/{id}", s.handleCancelLearn)
			})

			r.Get("/diagnostics", s.handleDiagnostics)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth runs every registered check. Any failure turns the
// response into a 503 with status "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Version: s.version}
	status := http.StatusOK

	if len(s.checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		names := make([]string, 0, len(s.checks))
		for name := range s.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		resp.Components = make(map[string]string, len(names))
		for _, name := range names {
			if err := s.checks[name](ctx); err != nil {
				resp.Components[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Components[name] = "ok"
		}
	}
	writeJSON(w, status, resp)
}
