package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/climate-control/internal/auth"
)

// healthCheckTimeout bounds each component check of GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, r.Method+" not allowed on "+r.URL.Path)
	})

	if s.metricsHandler != nil && s.metricsCfg.Enabled {
		path := s.metricsCfg.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, s.metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via ticket, validated in handler)
		r.Get(s.wsPath(), s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.With(s.requirePermission(auth.PermStateRead)).Get("/system", s.handleSystemMetrics)

			r.Route("/states", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermStateRead))
				r.Get("/", s.handleListStates)
				r.Get("/{entity_id}", s.handleGetState)
			})

			r.Route("/services", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermStateRead)).Get("/", s.handleListServices)
				r.With(s.requirePermission(auth.PermServiceCall)).Post("/{domain}/{service}", s.handleCallService)
			})

			r.With(s.requirePermission(auth.PermHistoryRead)).Get("/history/{entity_id}", s.handleGetHistory)

			r.Route("/automations", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermAutomationRead))
				r.Get("/", s.handleListAutomations)
				r.Get("/runs", s.handleListAutomationRuns)
			})

			r.Route("/config", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermConfigManage))

				r.Route("/flows", func(r chi.Router) {
					r.Get("/", s.handleListFlows)
					r.Post("/", s.handleStartFlow)
					r.Post("/{flow_id}", s.handleConfigureFlow)
					r.Delete("/{flow_id}", s.handleAbortFlow)
				})

				r.Route("/entries", func(r chi.Router) {
					r.Get("/", s.handleListEntries)
					r.Get("/{entry_id}", s.handleGetEntry)
					r.Delete("/{entry_id}", s.handleDeleteEntry)
					r.Post("/{entry_id}/options", s.handleStartOptionsFlow)
				})

				r.Post("/options/{flow_id}", s.handleConfigureOptionsFlow)
			})

			r.With(s.requirePermission(auth.PermConfigManage)).Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth runs every registered health check and reports the
// overall status. Any failing component makes the response 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.healthChecks))
	for name := range s.healthChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	components := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.healthChecks[name](ctx)
		cancel()

		if err != nil {
			components[name] = err.Error()
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}
