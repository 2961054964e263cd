package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/claude/workoutpal/internal/auth"
	"github.com/claude/workoutpal/internal/models"
)

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Preferences.Preferences(r.Context()))
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var p models.Preferences
	if err := decodeJSON(r, &p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if err := p.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.Preferences.SavePreferences(r.Context(), p); err != nil {
		s.log.Error("saving preferences", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, s.Auth.SignUp, http.StatusCreated)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, s.Auth.SignIn, http.StatusOK)
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, email, password string) (models.User, string, error), status int) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	u, token, err := fn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeJSON(w, authStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, status, authResponse{User: u, Token: token})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.Auth.SignOut(r.Context()); err != nil {
		s.log.Warn("sign out", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	User    *models.User `json:"user"`
	Tailnet UserInfo     `json:"tailnet"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	resp := meResponse{Tailnet: userInfoFromContext(r)}
	if s.Auth != nil {
		resp.User = s.Auth.CurrentUser()
	}
	writeJSON(w, http.StatusOK, resp)
}

func authStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrEmailInUse):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
