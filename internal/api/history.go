package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/climate-control/internal/history"
)

// handleGetHistory returns recent recorded states of an entity.
// Query parameters: limit (default 50, max 200).
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "state history is disabled")
		return
	}

	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	entityID := chi.URLParam(r, "entity_id")
	entries, err := s.history.GetHistory(r.Context(), entityID, limit)
	if err != nil {
		if errors.Is(err, history.ErrEntityIDRequired) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("loading state history failed", "entity_id", entityID, "error", err)
		writeInternalError(w, "failed to load state history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": entityID,
		"history":   entries,
		"count":     len(entries),
	})
}

// queryLimit parses ?limit=. A missing value is 0 (repository default).
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeBadRequest(w, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}
