package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/cuelogic-core/internal/audit"
)

// auditTimeout bounds audit writes made outside a request context.
const auditTimeout = 5 * time.Second

// recordAudit stores an audit entry for r. Failures are logged only.
func (s *Server) recordAudit(r *http.Request, action, entityType, entityID string, details map[string]any) {
	requestID, _ := r.Context().Value(ctxKeyRequestID).(string) //nolint:errcheck // Absent outside the middleware
	actor := ""
	if c := claimsFrom(r); c != nil {
		actor = c.Username
	}
	s.writeAuditContext(r.Context(), &audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Source:     audit.SourceAPI,
		Actor:      actor,
		RequestID:  requestID,
		Details:    details,
	})
}

// writeAudit stores e from a WebSocket command.
func (s *Server) writeAudit(e *audit.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	s.writeAuditContext(ctx, e)
}

func (s *Server) writeAuditContext(ctx context.Context, e *audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Create(ctx, e); err != nil {
		s.logger.Warn("recording audit entry failed",
			"action", e.Action,
			"entity_type", e.EntityType,
			"source", e.Source,
			"error", err,
		)
	}
}

// handleListAudit returns audit entries, newest first.
//
// Query parameters: action, entity_type, entity_id, actor, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeServiceUnavailable(w, "audit log is not available")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Actor:      q.Get("actor"),
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &filter.Limit},
		{"offset", &filter.Offset},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, p.name+" must be a non-negative integer")
			return
		}
		*p.dst = n
	}

	res, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit entries failed", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
