package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/climate-control/internal/audit"
)

// auditChanSize is the buffer size for the async audit channel.
const auditChanSize = 256

// auditLog enqueues an audit record for the caller of r (best-effort).
// A full channel drops the record with a warning.
func (s *Server) auditLog(r *http.Request, action, target string, details map[string]any) {
	if s.auditRepo == nil || s.auditCh == nil {
		return
	}

	rec := &audit.Record{
		Action:  action,
		Target:  target,
		Source:  audit.SourceAPI,
		Details: details,
	}
	if claims := claimsFromContext(r.Context()); claims != nil {
		rec.Subject = claims.Subject
		rec.Role = string(claims.Role)
	}

	select {
	case s.auditCh <- rec:
	default:
		s.logger.Warn("audit channel full, dropping record", "action", action, "target", target)
	}
}

// drainAuditLog writes queued records serially until ctx is cancelled,
// then flushes what is left.
func (s *Server) drainAuditLog(ctx context.Context) {
	for {
		select {
		case rec := <-s.auditCh:
			s.writeAudit(rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-s.auditCh:
					s.writeAudit(rec)
				default:
					return
				}
			}
		}
	}
}

func (s *Server) writeAudit(rec *audit.Record) {
	if err := s.auditRepo.Create(context.Background(), rec); err != nil {
		s.logger.Error("audit write failed", "action", rec.Action, "target", rec.Target, "error", err)
	}
}

// handleListAuditLogs returns audit records, newest first.
//
// Query parameters:
//   - action: service_call, entry_create, entry_delete, options_update
//   - target: e.g. "switch.turn_on" or an entry ID
//   - subject: token subject
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit logging is disabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:  q.Get("action"),
		Target:  q.Get("target"),
		Subject: q.Get("subject"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	page, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit records failed", "error", err)
		writeInternalError(w, "failed to list audit records")
		return
	}
	writeJSON(w, http.StatusOK, page)
}
