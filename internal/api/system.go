package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/cuelogic-core/internal/audit"
)

// resetConfirmation must be sent verbatim to reset the project.
const resetConfirmation = "RESET PROJECT"

// ResetRequest confirms a project reset.
type ResetRequest struct {
	Confirm string `json:"confirm"`
	// Save stores the emptied project right away.
	Save bool `json:"save"`
}

// ResetResponse reports what was removed.
type ResetResponse struct {
	Status  string         `json:"status"`
	Removed map[string]int `json:"removed"`
}

// handleResetProject removes every action and module of the running
// project. The stored project is only overwritten when Save is set.
//
// This is a destructive operation, so the request must include an exact
// confirmation string.
func (s *Server) handleResetProject(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Confirm != resetConfirmation {
		writeBadRequest(w, `confirm field must be exactly "`+resetConfirmation+`"`)
		return
	}

	p := s.engine.Project()
	removed := map[string]int{
		"actions": p.Actions().Len(),
		"modules": p.Modules().Len(),
	}
	p.Clear()
	s.logger.Warn("project reset", "project", p.Name(), "actions", removed["actions"], "modules", removed["modules"])

	if req.Save {
		if err := s.engine.Save(r.Context()); err != nil {
			s.logger.Error("saving reset project failed", "error", err)
			writeInternalError(w, "project reset but not saved")
			return
		}
	}
	s.recordAudit(r, audit.ActionReset, audit.EntityProject, p.Name(), map[string]any{
		"actions": removed["actions"],
		"modules": removed["modules"],
		"saved":   req.Save,
	})
	writeJSON(w, http.StatusOK, ResetResponse{Status: "reset", Removed: removed})
}
