package server

import (
	"net/http"
	"strings"

	"github.com/ksyq12/tsm/internal/auth"
	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/logger"
	"github.com/ksyq12/tsm/internal/models"
	"github.com/ksyq12/tsm/internal/store"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type sessionResponse struct {
	Token       string       `json:"token"`
	User        *models.User `json:"user"`
	LandingPage string       `json:"landingPage"`
}

func (s *Server) landingPage(u *models.User) string {
	return s.evaluator.FirstAccessiblePage(u.IsAdmin, u.AccessPages)
}

// startSession issues a token for u, sets the cookie and writes the session
// response.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, status int, u *models.User) {
	token, expires, err := s.tokens.Issue(u.PublicID, u.TokenVersion)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.auth.SetSession(w, token, expires)
	writeJSON(w, status, sessionResponse{Token: token, User: u, LandingPage: s.landingPage(u)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, errors.Validation("email and password are required"))
		return
	}

	hash, err := auth.HashPassword(req.Password, s.cfg.Auth.MinPasswordLength)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.store.CreateUser(r.Context(), store.NewUser{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.InfoFields("User registered", map[string]interface{}{
		"user":  user.PublicID,
		"admin": user.IsAdmin,
	})
	s.startSession(w, r, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, errors.Validation("email and password are required"))
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			writeError(w, r, errors.Unauthorized("invalid email or password"))
			return
		}
		writeError(w, r, err)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, r, errors.Unauthorized("invalid email or password"))
		return
	}

	s.startSession(w, r, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.ClearSession(w)
	writeMessage(w, http.StatusOK, "Logged out")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":        user,
		"landingPage": s.landingPage(user),
	})
}

// handleRequestPasswordReset always answers 200 so the endpoint cannot be
// used to probe for registered emails.
func (s *Server) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, r, errors.Validation("email is required"))
		return
	}

	const msg = "If that email is registered, a reset link has been sent"
	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			logger.LogError(err, "Failed to look up reset email")
		}
		writeMessage(w, http.StatusOK, msg)
		return
	}

	raw, hash, err := auth.NewResetToken()
	if err != nil {
		writeError(w, r, err)
		return
	}
	expires := s.now().Add(s.cfg.Auth.ResetTokenTTL)
	if err := s.store.CreateResetToken(r.Context(), user.ID, hash, expires); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.notifier.SendPasswordReset(r.Context(), user, raw); err != nil {
		logger.WarnFields("Failed to deliver password reset", map[string]interface{}{
			"user":  user.PublicID,
			"error": err.Error(),
		})
	}
	writeMessage(w, http.StatusOK, msg)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		writeError(w, r, errors.Validation("token and newPassword are required"))
		return
	}

	hash, err := auth.HashPassword(req.NewPassword, s.cfg.Auth.MinPasswordLength)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := s.store.ConsumeResetToken(r.Context(), auth.HashResetToken(req.Token))
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.UpdatePassword(r.Context(), user.PublicID, hash); err != nil {
		writeError(w, r, err)
		return
	}

	logger.InfoFields("Password reset", map[string]interface{}{"user": user.PublicID})
	writeMessage(w, http.StatusOK, "Password has been reset")
}
