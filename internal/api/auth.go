package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/cuelogic-core/internal/audit"
	"github.com/nerrad567/cuelogic-core/internal/auth"
)

// ctxKeyClaims holds the *auth.Claims of an authenticated request.
const ctxKeyClaims contextKey = "claims"

// tokenQueryParam carries the token on WebSocket upgrades, where browsers
// cannot set headers.
const tokenQueryParam = "access_token"

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Username string    `json:"username"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role"`
}

// SetPasswordRequest is the body of PUT /users/{id}/password.
type SetPasswordRequest struct {
	Password string `json:"password"`
}

// claimsFrom returns the claims of r, nil when auth is off.
func claimsFrom(r *http.Request) *auth.Claims {
	c, _ := r.Context().Value(ctxKeyClaims).(*auth.Claims) //nolint:errcheck // nil when unauthenticated
	return c
}

// bearerToken extracts the token from the Authorization header or, for
// WebSocket upgrades, the access_token query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get(tokenQueryParam)
}

// authMiddleware rejects requests without a valid token. It passes
// everything through when auth is off.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			next.ServeHTTP(w, r)
			return
		}
		token := bearerToken(r)
		if token == "" {
			writeUnauthorized(w, "missing access token")
			return
		}
		claims, err := s.auth.Authenticate(token)
		if err != nil {
			s.logger.Debug("rejected access token", "error", err, "path", r.URL.Path)
			writeUnauthorized(w, "invalid or expired access token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// require rejects authenticated requests whose role lacks perm.
func (s *Server) require(perm auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.auth != nil {
				c := claimsFrom(r)
				if c == nil || !auth.HasPermission(c.Role, perm) {
					writeForbidden(w, "role does not allow "+string(perm))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// handleLogin exchanges credentials for an access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "authentication is disabled")
		return
	}
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	session, err := s.auth.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUserInactive):
		s.logger.Warn("login failed", "username", req.Username, "remote", r.RemoteAddr)
		writeUnauthorized(w, "invalid credentials")
		return
	case err != nil:
		s.logger.Error("login failed", "error", err)
		writeInternalError(w, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleMe describes the caller.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r)
	if s.auth == nil || c == nil {
		writeJSON(w, http.StatusOK, map[string]any{"auth_enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"auth_enabled": true,
		"user_id":      c.Subject,
		"username":     c.Username,
		"role":         c.Role,
		"permissions":  auth.PermissionsForRole(c.Role),
		"expires_at":   c.ExpiresAt.Time,
	})
}

// usersAvailable answers 404 when auth is off.
func (s *Server) usersAvailable(w http.ResponseWriter) bool {
	if s.auth == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "authentication is disabled")
		return false
	}
	return true
}

// handleListUsers returns every operator account.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if !s.usersAvailable(w) {
		return
	}
	users, err := s.auth.Users().List(r.Context())
	if err != nil {
		s.logger.Error("listing users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}

// handleCreateUser adds an operator account.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !s.usersAvailable(w) {
		return
	}
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.auth.CreateUser(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		s.writeDomainError(w, err, "failed to create user")
		return
	}
	s.recordAudit(r, audit.ActionCreate, audit.EntityUser, user.ID, map[string]any{
		"username": user.Username,
		"role":     user.Role,
	})
	writeJSON(w, http.StatusCreated, user)
}

// handleDeleteUser removes an account. Callers cannot delete themselves.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !s.usersAvailable(w) {
		return
	}
	id := chi.URLParam(r, "id")
	if c := claimsFrom(r); c != nil && c.Subject == id {
		writeError(w, http.StatusConflict, ErrCodeConflict, "cannot delete your own account")
		return
	}
	if err := s.auth.Users().Delete(r.Context(), id); err != nil {
		s.writeDomainError(w, err, "failed to delete user")
		return
	}
	s.recordAudit(r, audit.ActionDelete, audit.EntityUser, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleSetPassword replaces the password of an account.
func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	if !s.usersAvailable(w) {
		return
	}
	var req SetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.auth.SetPassword(r.Context(), id, req.Password); err != nil {
		s.writeDomainError(w, err, "failed to set password")
		return
	}
	s.recordAudit(r, audit.ActionUpdate, audit.EntityUser, id, map[string]any{"password": "changed"})
	w.WriteHeader(http.StatusNoContent)
}
