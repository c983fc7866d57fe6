package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ksyq12/tsm/internal/auth"
	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/logger"
	"github.com/ksyq12/tsm/internal/models"
)

func (s *Server) handleListMachines(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	machines, err := s.store.ListMachines(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	visible := make([]*models.Machine, 0, len(machines))
	for _, m := range machines {
		if s.evaluator.HasServerAccess(user.IsAdmin, user.AccessServers, m.PublicID) {
			visible = append(visible, m)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"machines": visible})
}

func (s *Server) handleCreateMachine(w http.ResponseWriter, r *http.Request) {
	var req models.Machine
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.MachineName = strings.TrimSpace(req.MachineName)
	if req.MachineName == "" {
		writeError(w, r, errors.Validation("machineName is required"))
		return
	}

	m, err := s.store.CreateMachine(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.InfoFields("Machine created", map[string]interface{}{
		"machine": m.PublicID,
		"name":    m.MachineName,
	})
	writeJSON(w, http.StatusCreated, map[string]interface{}{"machine": m})
}

func (s *Server) handleDeleteMachine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteMachine(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	logger.InfoFields("Machine deleted", map[string]interface{}{"machine": id})
	writeMessage(w, http.StatusOK, "Machine deleted")
}
