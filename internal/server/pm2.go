package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ksyq12/tsm/internal/pm2"
)

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	apps, err := s.pm2.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"managedAppsArray": apps})
}

func (s *Server) handleAppAction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	action, err := pm2.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.pm2.Action(r.Context(), name, action); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "pm2 "+string(action)+" "+name+" succeeded")
}
