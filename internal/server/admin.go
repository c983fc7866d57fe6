package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ksyq12/tsm/internal/auth"
	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/logger"
)

func (s *Server) handleAccessCheck(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		writeError(w, r, errors.Validation("path query parameter is required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"path":                path,
		"hasAccess":           s.evaluator.HasAccess(path, user.IsAdmin, user.AccessPages),
		"firstAccessiblePage": s.landingPage(user),
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	policy := s.evaluator.Policy()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"defaultPages":    policy.DefaultPages,
		"controlledPages": policy.ControlledPages,
	})
}

func (s *Server) handleUpdateAccessPages(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessPages []string `json:"accessPagesArray"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	pages, err := s.evaluator.NormalizePages(req.AccessPages)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := s.store.UpdateUserPages(r.Context(), chi.URLParam(r, "id"), pages)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.InfoFields("Updated page access", map[string]interface{}{
		"user":  user.PublicID,
		"pages": pages,
		"by":    auth.UserFromContext(r.Context()).PublicID,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (s *Server) handleUpdateAccessServers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessServers []string `json:"accessServersArray"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	servers := make([]string, 0, len(req.AccessServers))
	seen := make(map[string]struct{}, len(req.AccessServers))
	for _, id := range req.AccessServers {
		if _, dup := seen[id]; dup {
			continue
		}
		if _, err := s.store.GetMachine(r.Context(), id); err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				writeError(w, r, errors.Validation("unknown machine "+id))
				return
			}
			writeError(w, r, err)
			return
		}
		seen[id] = struct{}{}
		servers = append(servers, id)
	}

	user, err := s.store.UpdateUserServers(r.Context(), chi.URLParam(r, "id"), servers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.InfoFields("Updated server access", map[string]interface{}{
		"user":    user.PublicID,
		"servers": servers,
		"by":      auth.UserFromContext(r.Context()).PublicID,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}
