package api

import (
	"net/http"

	"github.com/jmgilman/go/errors"
	"go.uber.org/zap"
)

type loginRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		s.writeError(w, r, errors.New(errors.CodeNotImplemented, "authentication is not enabled"))
		return
	}

	var req loginRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	token, exp, err := s.auth.Login(req.Password)
	if err != nil {
		s.log.Warn("login failed", zap.String("request_id", RequestIDFromContext(r.Context())))
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, s.auth.SessionCookie(token, exp))
	s.writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": exp.UnixMilli(),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.auth != nil {
		http.SetCookie(w, s.auth.ClearCookie())
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"loggedOut": true})
}

func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"authenticated": true})
		return
	}
	id, err := s.auth.Authenticate(r)
	if err != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"method":        id.Method,
	})
}
