package server

import (
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
	"shopflow/internal/repository/sqlite"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

// handleLogin exchanges email and password for a bearer token
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "log in", err)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		s.writeError(w, r, "log in", domain.NewValidationError("email", "is required"))
		return
	}

	user, err := s.repos.Users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, r, "log in", err)
		return
	}
	if user == nil || !sqlite.CheckPassword(req.Password, user.PasswordHash) {
		log.WithField("email", req.Email).Warn("Failed login attempt")
		s.writeError(w, r, "log in", domain.ErrUnauthenticated)
		return
	}

	token, expiresAt, err := s.generateToken(user)
	if err != nil {
		s.writeError(w, r, "log in", err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

// handleMe returns the authenticated user
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := getUserClaims(r)
	user, err := s.repos.Users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		s.writeError(w, r, "load current user", err)
		return
	}
	if user == nil {
		s.writeError(w, r, "load current user", domain.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleListUsers lists accounts, e.g. ?role=technician when assigning work
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role != "" && !domain.IsValidRole(role) {
		s.writeError(w, r, "list users", domain.NewValidationError("role", "unknown role %q", role))
		return
	}
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		s.writeError(w, r, "list users", err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, r, "list users", err)
		return
	}
	users, err := s.repos.Users.List(r.Context(), role, limit, offset)
	if err != nil {
		s.writeError(w, r, "list users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
