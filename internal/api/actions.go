package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/cuelogic-core/internal/action"
	"github.com/nerrad567/cuelogic-core/internal/audit"
	"github.com/nerrad567/cuelogic-core/internal/container"
)

// changes lists the fields present in the request for the audit log.
func (req UpdateActionRequest) changes() map[string]any {
	out := map[string]any{}
	if req.Name != nil {
		out["name"] = *req.Name
	}
	if req.Enabled != nil {
		out["enabled"] = *req.Enabled
	}
	if req.Role != nil {
		out["role"] = *req.Role
	}
	if req.ValidationTime != nil {
		out["validation_time"] = *req.ValidationTime
	}
	return out
}

// ActionResponse describes one action.
type ActionResponse struct {
	Address        string  `json:"address"`
	ShortName      string  `json:"short_name"`
	NiceName       string  `json:"nice_name"`
	Enabled        bool    `json:"enabled"`
	Role           string  `json:"role"`
	ValidationTime float64 `json:"validation_time"`
	State          string  `json:"state"`
	Valid          *bool   `json:"valid,omitempty"`
	Progress       float64 `json:"progress"`
	Conditions     int     `json:"conditions"`
	OnTrue         int     `json:"on_true"`
	OnFalse        int     `json:"on_false"`
}

// CreateActionRequest creates an action, optionally from a snapshot.
type CreateActionRequest struct {
	Name     string              `json:"name"`
	Snapshot *container.Snapshot `json:"snapshot,omitempty"`
}

// UpdateActionRequest changes the fields that are set.
type UpdateActionRequest struct {
	Name           *string  `json:"name,omitempty"`
	Enabled        *bool    `json:"enabled,omitempty"`
	Role           *string  `json:"role,omitempty"`
	ValidationTime *float64 `json:"validation_time,omitempty"`
}

func actionResponse(a *action.Action) ActionResponse {
	resp := ActionResponse{
		Address:        a.Address(),
		ShortName:      a.ShortName(),
		NiceName:       a.NiceName(),
		Enabled:        a.Enabled(),
		Role:           string(a.Role()),
		ValidationTime: a.ValidationTime().Seconds(),
		State:          a.State().String(),
		Progress:       a.ValidationProgress(),
		Conditions:     a.Conditions().Len(),
		OnTrue:         a.OnTrue().Len(),
		OnFalse:        a.OnFalse().Len(),
	}
	if valid, ok := a.LastValid(); ok {
		resp.Valid = &valid
	}
	return resp
}

// actionFromURL resolves {name} or writes a 404.
func (s *Server) actionFromURL(w http.ResponseWriter, r *http.Request) (*action.Action, bool) {
	a, err := s.engine.Project().Actions().ActionByName(chi.URLParam(r, "name"))
	if err != nil {
		s.writeDomainError(w, err, "looking up action failed")
		return nil, false
	}
	return a, true
}

// handleListActions returns every action in order.
func (s *Server) handleListActions(w http.ResponseWriter, _ *http.Request) {
	items := s.engine.Project().Actions().Items()
	out := make([]ActionResponse, 0, len(items))
	for _, a := range items {
		out = append(out, actionResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"actions": out,
		"count":   len(out),
	})
}

// handleCreateAction appends an action.
func (s *Server) handleCreateAction(w http.ResponseWriter, r *http.Request) {
	var req CreateActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	init := req.Snapshot
	if init == nil {
		init = &container.Snapshot{}
	}
	if req.Name != "" {
		init.NiceName = req.Name
	}

	a, err := s.engine.Project().Actions().AddItem(init)
	if err != nil {
		s.logger.Error("creating action failed", "error", err)
		writeInternalError(w, "failed to create action")
		return
	}
	a.Check()
	s.recordAudit(r, audit.ActionCreate, audit.EntityAction, a.Address(), map[string]any{"name": a.NiceName()})
	writeJSON(w, http.StatusCreated, actionResponse(a))
}

// handleGetAction returns one action with its full snapshot.
func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	a, ok := s.actionFromURL(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"action":   actionResponse(a),
		"snapshot": a.Export(),
	})
}

// handleUpdateAction applies the fields present in the body.
func (s *Server) handleUpdateAction(w http.ResponseWriter, r *http.Request) {
	a, ok := s.actionFromURL(w, r)
	if !ok {
		return
	}

	var req UpdateActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var role action.Role
	if req.Role != nil {
		parsed, err := action.ParseRole(*req.Role)
		if err != nil {
			s.writeDomainError(w, err, "updating action failed")
			return
		}
		role = parsed
	}
	if req.ValidationTime != nil && *req.ValidationTime < 0 {
		writeValidationError(w, "validation_time must not be negative")
		return
	}
	if req.Name != nil && *req.Name == "" {
		writeValidationError(w, "name must not be empty")
		return
	}

	if req.Name != nil {
		a.SetNiceName(*req.Name)
	}
	if req.Role != nil {
		if err := a.SetRole(role); err != nil {
			s.writeDomainError(w, err, "updating action failed")
			return
		}
	}
	if req.ValidationTime != nil {
		d := time.Duration(*req.ValidationTime * float64(time.Second))
		if err := a.SetValidationTime(d); err != nil {
			s.writeDomainError(w, err, "updating action failed")
			return
		}
	}
	if req.Enabled != nil {
		a.SetEnabled(*req.Enabled)
	}

	s.recordAudit(r, audit.ActionUpdate, audit.EntityAction, a.Address(), req.changes())
	writeJSON(w, http.StatusOK, actionResponse(a))
}

// handleDeleteAction removes an action.
func (s *Server) handleDeleteAction(w http.ResponseWriter, r *http.Request) {
	a, ok := s.actionFromURL(w, r)
	if !ok {
		return
	}
	addr := a.Address()
	if !s.engine.Project().Actions().TryRemoveItem(a) {
		s.writeDomainError(w, fmt.Errorf("%w: %q", action.ErrActionNotFound, a.ShortName()), "removing action failed")
		return
	}
	s.recordAudit(r, audit.ActionDelete, audit.EntityAction, addr, nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleTriggerAction fires onTrue (valid=true, the default) or onFalse
// without touching the validation state.
func (s *Server) handleTriggerAction(w http.ResponseWriter, r *http.Request) {
	a, ok := s.actionFromURL(w, r)
	if !ok {
		return
	}

	valid := true
	if v := r.URL.Query().Get("valid"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "valid must be true or false")
			return
		}
		valid = parsed
	}

	a.Fire(valid)
	s.recordAudit(r, audit.ActionTrigger, audit.EntityAction, a.Address(), map[string]any{"valid": valid})
	writeJSON(w, http.StatusAccepted, map[string]any{
		"action": a.Address(),
		"valid":  valid,
	})
}

// handleListExecutions returns the execution history of an action.
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	a, ok := s.actionFromURL(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	recs, err := s.engine.Executions(r.Context(), a.Address(), limit)
	if err != nil {
		s.writeDomainError(w, err, "failed to list executions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"executions": recs,
		"count":      len(recs),
	})
}

// handleTriggerRole fires every enabled action tagged with the role.
func (s *Server) handleTriggerRole(w http.ResponseWriter, r *http.Request) {
	role, err := action.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	n := s.engine.Project().Actions().TriggerRole(role)
	s.recordAudit(r, audit.ActionTrigger, audit.EntityRole, string(role), map[string]any{"triggered": n})
	writeJSON(w, http.StatusAccepted, map[string]any{
		"role":      role,
		"triggered": n,
	})
}
