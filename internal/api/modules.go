package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/cuelogic-core/internal/audit"
	"github.com/nerrad567/cuelogic-core/internal/consequence"
	"github.com/nerrad567/cuelogic-core/internal/module"
)

// ModuleResponse describes one module.
type ModuleResponse struct {
	Address   string                   `json:"address"`
	ShortName string                   `json:"short_name"`
	NiceName  string                   `json:"nice_name"`
	Type      string                   `json:"type"`
	Enabled   bool                     `json:"enabled"`
	Running   bool                     `json:"running"`
	Values    map[string]any           `json:"values"`
	Commands  []consequence.Definition `json:"commands"`
}

// CreateModuleRequest creates a module of a registered type.
type CreateModuleRequest struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

func moduleResponse(m *module.Module) ModuleResponse {
	values := make(map[string]any)
	for _, p := range m.Values().Parameters() {
		values[p.ShortName()] = p.Value()
	}
	return ModuleResponse{
		Address:   m.Address(),
		ShortName: m.ShortName(),
		NiceName:  m.NiceName(),
		Type:      m.TypeName(),
		Enabled:   m.Enabled(),
		Running:   m.Running(),
		Values:    values,
		Commands:  m.Definitions(),
	}
}

// handleListModules returns every module with its values and commands.
func (s *Server) handleListModules(w http.ResponseWriter, _ *http.Request) {
	items := s.engine.Project().Modules().Items()
	out := make([]ModuleResponse, 0, len(items))
	for _, m := range items {
		out = append(out, moduleResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"modules": out,
		"count":   len(out),
	})
}

// handleModuleTypes returns the creatable module types by menu path.
func (s *Server) handleModuleTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"groups": s.engine.Project().Modules().Factory().Types(),
	})
}

// handleCreateModule appends a module.
func (s *Server) handleCreateModule(w http.ResponseWriter, r *http.Request) {
	var req CreateModuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Type == "" {
		writeValidationError(w, "type is required")
		return
	}

	m, err := s.engine.Project().Modules().AddModule(req.Type, req.Name)
	if err != nil {
		s.writeDomainError(w, err, "failed to create module")
		return
	}
	s.recordAudit(r, audit.ActionCreate, audit.EntityModule, m.Address(), map[string]any{"type": req.Type})
	writeJSON(w, http.StatusCreated, moduleResponse(m))
}

// handleDeleteModule removes a module. Consequences pointing at it fail
// from then on.
func (s *Server) handleDeleteModule(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.Project().Modules().ModuleByName(chi.URLParam(r, "name"))
	if err != nil {
		s.writeDomainError(w, err, "looking up module failed")
		return
	}
	addr := m.Address()
	if !s.engine.Project().Modules().TryRemoveItem(m) {
		s.writeDomainError(w, fmt.Errorf("%w: %q", module.ErrModuleNotFound, m.ShortName()), "removing module failed")
		return
	}
	s.recordAudit(r, audit.ActionDelete, audit.EntityModule, addr, nil)
	w.WriteHeader(http.StatusNoContent)
}
