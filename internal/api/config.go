package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/climate-control/internal/audit"
	"github.com/nerrad567/climate-control/internal/configentry"
	"github.com/nerrad567/climate-control/internal/configflow"
)

// handleListFlows returns the IDs of flows in progress.
func (s *Server) handleListFlows(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"flow_ids": s.flows.InProgress(),
	})
}

// handleStartFlow starts a config flow and returns its first form.
// Body: {"handler": "climate_control"}.
func (s *Server) handleStartFlow(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeObject(w, r)
	if !ok {
		return
	}
	handler, _ := body["handler"].(string)
	if handler == "" {
		writeBadRequest(w, "handler is required")
		return
	}

	result, err := s.flows.Init(r.Context(), handler)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleConfigureFlow submits the current step of a config flow.
func (s *Server) handleConfigureFlow(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeObject(w, r)
	if !ok {
		return
	}

	result, err := s.flows.Configure(r.Context(), chi.URLParam(r, "flow_id"), input)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	if result.Type == configflow.ResultCreateEntry && result.Entry != nil {
		s.auditLog(r, audit.ActionEntryCreate, result.Entry.ID, map[string]any{
			"domain": result.Entry.Domain,
			"title":  result.Entry.Title,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAbortFlow discards a flow in progress.
func (s *Server) handleAbortFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.flows.Abort(chi.URLParam(r, "flow_id")); err != nil {
		s.writeFlowError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStartOptionsFlow starts an options flow for an entry.
func (s *Server) handleStartOptionsFlow(w http.ResponseWriter, r *http.Request) {
	result, err := s.flows.InitOptions(r.Context(), chi.URLParam(r, "entry_id"))
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleConfigureOptionsFlow submits an options flow.
func (s *Server) handleConfigureOptionsFlow(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeObject(w, r)
	if !ok {
		return
	}

	result, err := s.flows.ConfigureOptions(r.Context(), chi.URLParam(r, "flow_id"), input)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	if result.Type == configflow.ResultCreateEntry && result.Entry != nil {
		s.auditLog(r, audit.ActionOptionsUpdate, result.Entry.ID, result.Data)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, configflow.ErrFlowNotFound), errors.Is(err, configentry.ErrEntryNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, configflow.ErrUnknownHandler):
		writeBadRequest(w, err.Error())
	case errors.Is(err, configflow.ErrFlowInProgress):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		s.logger.Error("config flow failed", "error", err)
		writeInternalError(w, "config flow failed")
	}
}

// handleListEntries lists config entries, optionally filtered by ?domain=.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries := s.entries.List(r.Context(), r.URL.Query().Get("domain"))
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleGetEntry returns one config entry.
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.entries.Get(r.Context(), chi.URLParam(r, "entry_id"))
	if err != nil {
		if errors.Is(err, configentry.ErrEntryNotFound) {
			writeNotFound(w, "config entry not found")
			return
		}
		writeInternalError(w, "failed to load config entry")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleDeleteEntry unloads and removes a config entry.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entry_id")
	if err := s.entries.Delete(r.Context(), id); err != nil {
		if errors.Is(err, configentry.ErrEntryNotFound) {
			writeNotFound(w, "config entry not found")
			return
		}
		s.logger.Error("deleting config entry failed", "entry_id", id, "error", err)
		writeInternalError(w, "failed to delete config entry")
		return
	}
	s.auditLog(r, audit.ActionEntryDelete, id, nil)
	w.WriteHeader(http.StatusNoContent)
}
