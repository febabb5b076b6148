package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/climate-control/internal/audit"
	"github.com/nerrad567/climate-control/internal/platform"
)

// handleListStates returns every entity state sorted by entity id.
func (s *Server) handleListStates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.host.States().All())
}

// handleGetState returns one entity state.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entity_id")
	state := s.host.States().Get(entityID)
	if state == nil {
		writeNotFound(w, "entity not found: "+entityID)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleListServices returns registered services grouped by domain.
func (s *Server) handleListServices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.host.Services().List())
}

// handleCallService invokes domain.service with the JSON body as service
// data. An empty body is an empty data map.
func (s *Server) handleCallService(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	service := chi.URLParam(r, "service")

	data, ok := decodeObject(w, r)
	if !ok {
		return
	}

	err := s.host.Services().Call(r.Context(), domain, service, data)
	switch {
	case err == nil:
	case errors.Is(err, platform.ErrServiceNotFound):
		writeNotFound(w, err.Error())
		return
	case errors.Is(err, platform.ErrInvalidServiceData), errors.Is(err, platform.ErrInvalidEntityID):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	default:
		s.logger.Error("service call failed", "domain", domain, "service", service, "error", err)
		writeInternalError(w, "service call failed")
		return
	}

	s.auditLog(r, audit.ActionServiceCall, domain+"."+service, data)

	writeJSON(w, http.StatusOK, map[string]any{
		"domain":  domain,
		"service": service,
		"status":  "called",
	})
}

// decodeObject reads an optional JSON object body. On failure it writes
// a 400 response and returns false.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	data := map[string]any{}
	if r.Body == nil {
		return data, true
	}

	err := json.NewDecoder(r.Body).Decode(&data)
	if err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return nil, false
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, true
}
