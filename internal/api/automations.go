package api

import (
	"net/http"

	"github.com/nerrad567/climate-control/internal/automation"
)

// handleListAutomations returns the configured mirror rules.
func (s *Server) handleListAutomations(w http.ResponseWriter, _ *http.Request) {
	rules := []automation.Rule{}
	if s.rules != nil {
		rules = s.rules.List()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"automations": rules,
		"count":       len(rules),
	})
}

// handleListAutomationRuns returns recent runs, newest first.
// Query parameters: automation_id (optional), limit (default 10, max 100).
func (s *Server) handleListAutomationRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "automation run log is disabled")
		return
	}

	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	runs, err := s.runs.ListRuns(r.Context(), r.URL.Query().Get("automation_id"), limit)
	if err != nil {
		s.logger.Error("loading automation runs failed", "error", err)
		writeInternalError(w, "failed to load automation runs")
		return
	}
	if runs == nil {
		runs = []automation.Run{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}
