package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/cuelogic-core/internal/action"
	"github.com/nerrad567/cuelogic-core/internal/auth"
	"github.com/nerrad567/cuelogic-core/internal/container"
	"github.com/nerrad567/cuelogic-core/internal/engine"
	"github.com/nerrad567/cuelogic-core/internal/module"
	"github.com/nerrad567/cuelogic-core/internal/project"
)

// Error is the body of every non-2xx JSON response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeConflict         = "conflict"
	ErrCodeValidation       = "validation_error"
	ErrCodeUnavailable      = "unavailable"
	ErrCodeInternal         = "internal_error"
)

// domainErrors maps sentinel errors of the engine packages to responses.
// The first match wins.
var domainErrors = []struct {
	err    error
	status int
	code   string
}{
	{action.ErrActionNotFound, http.StatusNotFound, ErrCodeNotFound},
	{module.ErrModuleNotFound, http.StatusNotFound, ErrCodeNotFound},
	{project.ErrProjectNotFound, http.StatusNotFound, ErrCodeNotFound},
	{auth.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound},

	{auth.ErrUsernameExists, http.StatusConflict, ErrCodeConflict},

	{action.ErrInvalidRole, http.StatusUnprocessableEntity, ErrCodeValidation},
	{container.ErrInvalidValue, http.StatusUnprocessableEntity, ErrCodeValidation},
	{module.ErrUnknownType, http.StatusUnprocessableEntity, ErrCodeValidation},
	{module.ErrInvalidArgument, http.StatusUnprocessableEntity, ErrCodeValidation},
	{project.ErrInvalidName, http.StatusUnprocessableEntity, ErrCodeValidation},
	{auth.ErrInvalidUser, http.StatusUnprocessableEntity, ErrCodeValidation},

	{project.ErrUnknownFormat, http.StatusBadRequest, ErrCodeBadRequest},

	{engine.ErrNoExecutionLog, http.StatusServiceUnavailable, ErrCodeUnavailable},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v) //nolint:errcheck // Client may be gone
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

// writeDomainError answers with the mapped status of err. Unmapped errors
// become a 500 carrying fallback, never err's text.
func (s *Server) writeDomainError(w http.ResponseWriter, err error, fallback string) {
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			writeError(w, d.status, d.code, err.Error())
			return
		}
	}
	s.logger.Error(fallback, "error", err)
	writeInternalError(w, fallback)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized also sets the bearer challenge.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="cuelogic"`)
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeValidationError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

func writeServiceUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// handleNotFound and handleMethodNotAllowed keep router misses in JSON.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeNotFound(w, "no route for "+r.URL.Path)
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, r.Method+" is not allowed on "+r.URL.Path)
}
