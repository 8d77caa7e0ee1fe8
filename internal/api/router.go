package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/cuelogic-core/internal/auth"
	"github.com/nerrad567/cuelogic-core/internal/console"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Use(s.requestID, s.observe, s.recoverer, s.cors)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	if s.prometheus != nil && s.metricsCfg.Enabled {
		path := s.metricsCfg.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, s.prometheus.Handler())
	}

	if s.cfg.Console.Enabled {
		r.Get("/console", http.RedirectHandler("/console/", http.StatusMovedPermanently).ServeHTTP)
		r.Handle("/console/*", http.StripPrefix("/console", console.Handler(s.cfg.Console.Dir)))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			read := r.With(s.require(auth.PermProjectRead))
			run := r.With(s.require(auth.PermActionRun))
			edit := r.With(s.require(auth.PermProjectEdit))
			manage := r.With(s.require(auth.PermModuleManage))
			admin := r.With(s.require(auth.PermSystemAdmin))

			r.Get("/auth/me", s.handleMe)
			read.Get("/system", s.handleSystemMetrics)

			read.Get("/project", s.handleGetProject)
			edit.Put("/project", s.handleReplaceProject)
			edit.Post("/project/save", s.handleSaveProject)
			admin.Post("/project/reset", s.handleResetProject)

			read.Get("/actions", s.handleListActions)
			edit.Post("/actions", s.handleCreateAction)
			read.Get("/actions/{name}", s.handleGetAction)
			edit.Patch("/actions/{name}", s.handleUpdateAction)
			edit.Delete("/actions/{name}", s.handleDeleteAction)
			run.Post("/actions/{name}/trigger", s.handleTriggerAction)
			read.Get("/actions/{name}/executions", s.handleListExecutions)

			run.Post("/roles/{role}", s.handleTriggerRole)

			read.Get("/modules", s.handleListModules)
			read.Get("/modules/types", s.handleModuleTypes)
			manage.Post("/modules", s.handleCreateModule)
			manage.Delete("/modules/{name}", s.handleDeleteModule)

			r.With(s.require(auth.PermAuditRead)).Get("/audit", s.handleListAudit)

			admin.Get("/users", s.handleListUsers)
			admin.Post("/users", s.handleCreateUser)
			admin.Delete("/users/{id}", s.handleDeleteUser)
			admin.Put("/users/{id}/password", s.handleSetPassword)

			read.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if !s.engine.Running() {
		status = "stopped"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"project": s.engine.Project().Name(),
		"version": s.version,
	})
}
