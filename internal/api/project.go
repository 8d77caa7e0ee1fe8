package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/nerrad567/cuelogic-core/internal/audit"
	"github.com/nerrad567/cuelogic-core/internal/project"
)

// snapshotFormat picks json or yaml from the format query parameter, then
// from the given content type.
func snapshotFormat(r *http.Request, contentType string) string {
	if f := r.URL.Query().Get("format"); f != "" {
		return strings.ToLower(f)
	}
	if strings.Contains(contentType, "yaml") {
		return project.FormatYAML
	}
	return project.FormatJSON
}

func contentTypeOf(format string) string {
	if format == project.FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// handleGetProject exports the running project as JSON or YAML.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	format := snapshotFormat(r, r.Header.Get("Accept"))
	data, err := project.EncodeSnapshot(s.engine.Project().Snapshot(), format)
	if err != nil {
		s.writeDomainError(w, err, "failed to encode project")
		return
	}

	w.Header().Set("Content-Type", contentTypeOf(format))
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // Best-effort write to response
}

// handleReplaceProject replaces the running project with the uploaded
// snapshot. Items that cannot be restored are skipped and reported. The
// restored actions are evaluated once against the running modules.
func (s *Server) handleReplaceProject(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read body")
		return
	}
	snap, err := project.DecodeSnapshot(data, snapshotFormat(r, r.Header.Get("Content-Type")))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	p := s.engine.Project()
	resp := map[string]any{
		"status": "restored",
	}
	if err := p.Restore(snap); err != nil {
		resp["warnings"] = strings.Split(err.Error(), "\n")
	}
	p.Actions().CheckAll()
	resp["modules"] = p.Modules().Len()
	resp["actions"] = p.Actions().Len()
	s.recordAudit(r, audit.ActionReplace, audit.EntityProject, p.Name(), map[string]any{
		"modules": resp["modules"],
		"actions": resp["actions"],
	})
	writeJSON(w, http.StatusOK, resp)
}

// handleSaveProject writes the running project to the store.
func (s *Server) handleSaveProject(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Save(r.Context()); err != nil {
		s.logger.Error("saving project failed", "error", err)
		writeInternalError(w, "failed to save project")
		return
	}
	s.recordAudit(r, audit.ActionSave, audit.EntityProject, s.engine.Project().Name(), nil)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "saved",
		"project": s.engine.Project().Name(),
	})
}
