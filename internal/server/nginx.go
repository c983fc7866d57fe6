package server

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ksyq12/tsm/internal/auth"
	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/logger"
	"github.com/ksyq12/tsm/internal/models"
	"github.com/ksyq12/tsm/internal/template"
)

type createConfigRequest struct {
	TemplateFileName string   `json:"templateFileName"`
	ServerNames      []string `json:"serverNamesArray"`
	LocalIPAddress   string   `json:"localIpAddress"`
	PortNumber       int      `json:"portNumber"`
	MachinePublicID  string   `json:"machinePublicId"`
	SaveDestination  string   `json:"saveDestination"`
	OutputFileName   string   `json:"outputFileName"`
	Enable           bool     `json:"enable"`
}

type configFileResponse struct {
	Content    string `json:"content"`
	FilePath   string `json:"filePath"`
	ServerName string `json:"serverName"`
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	names, err := s.templates.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templatesDir": s.templates.Dir(),
		"templates":    names,
	})
}

// allowedDestinations returns the directories a config for m may be saved
// to. The driver's available directory is always allowed.
func (s *Server) allowedDestinations(m *models.Machine) []string {
	dirs := []string{filepath.Clean(s.driver.Paths().Available)}
	if m != nil {
		for _, p := range m.NginxStoragePathOptions {
			dirs = append(dirs, filepath.Clean(p))
		}
	}
	return dirs
}

func (s *Server) resolveDestination(req createConfigRequest, m *models.Machine) (string, error) {
	if req.SaveDestination == "" {
		return filepath.Clean(s.driver.Paths().Available), nil
	}
	dest := filepath.Clean(req.SaveDestination)
	for _, allowed := range s.allowedDestinations(m) {
		if dest == allowed {
			return dest, nil
		}
	}
	return "", errors.Forbidden("saving to " + req.SaveDestination + " is not allowed")
}

// checkFileAccess loads a recorded file and makes sure the current user may
// see the machine it belongs to.
func (s *Server) checkFileAccess(r *http.Request) (*models.NginxFile, error) {
	f, err := s.store.GetNginxFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	user := auth.UserFromContext(r.Context())
	if !s.evaluator.HasServerAccess(user.IsAdmin, user.AccessServers, f.MachinePublicID) {
		return nil, errors.Forbidden("no access to machine " + f.MachinePublicID)
	}
	return f, nil
}

// checkOverwrite refuses to let user replace target when its record belongs
// to a machine outside their grants. Files on disk with no record may only
// be replaced by admins.
func (s *Server) checkOverwrite(ctx context.Context, user *models.User, target string, onDisk bool) error {
	owner, err := s.store.GetNginxFileByPath(ctx, target)
	switch {
	case err == nil:
		if !s.evaluator.HasServerAccess(user.IsAdmin, user.AccessServers, owner.MachinePublicID) {
			return errors.Forbidden("no access to machine " + owner.MachinePublicID)
		}
	case errors.Is(err, errors.ErrNotFound):
		if onDisk && !user.IsAdmin {
			return errors.Forbidden(target + " is not managed by tsm")
		}
	default:
		return err
	}
	return nil
}

// applyNginx tests the running configuration and reloads nginx. A failed
// test is reported as a validation error so the caller can roll back.
func (s *Server) applyNginx(ctx context.Context) error {
	if err := s.driver.Test(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeValidation, "nginx rejected the configuration", err)
	}
	return s.driver.Reload(ctx)
}

func (s *Server) handleCreateConfigFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	names := make([]string, 0, len(req.ServerNames))
	for _, n := range req.ServerNames {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		writeError(w, r, errors.New(errors.ErrCodeInvalidRequest, "at least one server name is required"))
		return
	}
	if req.PortNumber < 1 || req.PortNumber > 65535 {
		writeError(w, r, errors.Validation("portNumber must be between 1 and 65535"))
		return
	}

	check := s.templates.VerifyExists(req.TemplateFileName)
	if !check.Exists {
		if check.Reason == template.ReasonFileNotFound {
			writeError(w, r, errors.NotFound("template", req.TemplateFileName))
			return
		}
		writeError(w, r, errors.Validation(check.Error))
		return
	}

	user := auth.UserFromContext(ctx)
	if req.MachinePublicID == "" && !user.IsAdmin {
		writeError(w, r, errors.Forbidden("machinePublicId is required unless you are an admin"))
		return
	}
	var machine *models.Machine
	if req.MachinePublicID != "" {
		if !s.evaluator.HasServerAccess(user.IsAdmin, user.AccessServers, req.MachinePublicID) {
			writeError(w, r, errors.Forbidden("no access to machine "+req.MachinePublicID))
			return
		}
		m, err := s.store.GetMachine(ctx, req.MachinePublicID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		machine = m
	}

	dest, err := s.resolveDestination(req, machine)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if req.Enable && dest != filepath.Clean(s.driver.Paths().Available) {
		writeError(w, r, errors.Validation("only files saved to "+s.driver.Paths().Available+" can be enabled"))
		return
	}

	fileName := req.OutputFileName
	if fileName == "" {
		fileName = names[0]
	}
	if err := template.ValidateFileName(fileName); err != nil {
		writeError(w, r, err)
		return
	}
	target := filepath.Join(dest, fileName)
	previous, readErr := s.driver.ReadPath(target)
	existed := readErr == nil
	if err := s.checkOverwrite(ctx, user, target, existed); err != nil {
		writeError(w, r, err)
		return
	}

	path, err := template.Render(template.Request{
		TemplatePath:   check.FullPath,
		ServerNames:    names,
		LocalAddress:   req.LocalIPAddress,
		Port:           req.PortNumber,
		DestinationDir: dest,
		OutputFileName: req.OutputFileName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	enabledNow := false
	rollback := func(cause error) {
		var rbErr error
		if enabledNow && existed && s.driver.Paths().Split() {
			if err := s.driver.Disable(filepath.Base(path)); err != nil {
				logger.Warn("Failed to disable %s during rollback: %v", path, err)
			}
		}
		if existed {
			rbErr = s.driver.WritePath(path, previous)
		} else {
			rbErr = s.driver.RemovePath(path)
		}
		if rbErr != nil {
			logger.ErrorFields("Rollback failed", map[string]interface{}{
				"path":  path,
				"cause": cause.Error(),
				"error": rbErr.Error(),
			})
		}
	}

	if req.Enable {
		err := s.driver.Enable(filepath.Base(path))
		switch {
		case err == nil:
			enabledNow = true
		case !errors.Is(err, errors.ErrAlreadyExists):
			rollback(err)
			writeError(w, r, err)
			return
		}
	}
	if req.Enable || s.cfg.Nginx.ReloadAfterWrite {
		if err := s.applyNginx(ctx); err != nil {
			rollback(err)
			writeError(w, r, err)
			return
		}
	}

	record, err := s.store.SaveNginxFile(ctx, &models.NginxFile{
		ServerNames:     names,
		PortNumber:      req.PortNumber,
		LocalIPAddress:  req.LocalIPAddress,
		MachinePublicID: req.MachinePublicID,
		TemplateFile:    req.TemplateFileName,
		FilePath:        path,
	})
	if err != nil {
		rollback(err)
		writeError(w, r, err)
		return
	}

	logger.InfoFields("Created nginx config", map[string]interface{}{
		"path":     path,
		"template": req.TemplateFileName,
		"user":     user.PublicID,
		"replaced": existed,
	})
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Nginx config file created",
		"filePath":  path,
		"nginxFile": record,
	})
}

func (s *Server) handleListConfigFiles(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	files, err := s.store.ListNginxFiles(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	visible := make([]*models.NginxFile, 0, len(files))
	for _, f := range files {
		if s.evaluator.HasServerAccess(user.IsAdmin, user.AccessServers, f.MachinePublicID) {
			visible = append(visible, f)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"nginxFiles": visible})
}

func (s *Server) handleGetConfigFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.checkFileAccess(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	content, err := s.driver.ReadPath(f.FilePath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, configFileResponse{
		Content:    content,
		FilePath:   f.FilePath,
		ServerName: f.PrimaryServerName(),
	})
}

func (s *Server) handleUpdateConfigFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Content *string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Content == nil {
		writeError(w, r, errors.Validation("content is required"))
		return
	}

	f, err := s.checkFileAccess(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	current, err := s.driver.ReadPath(f.FilePath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if current == *req.Content {
		writeMessage(w, http.StatusOK, "No changes detected")
		return
	}

	if err := s.driver.WritePath(f.FilePath, *req.Content); err != nil {
		writeError(w, r, err)
		return
	}
	if s.cfg.Nginx.ReloadAfterWrite {
		if err := s.applyNginx(ctx); err != nil {
			if rbErr := s.driver.WritePath(f.FilePath, current); rbErr != nil {
				logger.ErrorFields("Rollback failed", map[string]interface{}{
					"path":  f.FilePath,
					"error": rbErr.Error(),
				})
			}
			writeError(w, r, err)
			return
		}
	}
	if err := s.store.TouchNginxFile(ctx, f.PublicID); err != nil {
		writeError(w, r, err)
		return
	}

	logger.InfoFields("Updated nginx config", map[string]interface{}{
		"path": f.FilePath,
		"user": auth.UserFromContext(ctx).PublicID,
	})
	writeMessage(w, http.StatusOK, "Config file updated")
}

func (s *Server) handleDeleteConfigFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.checkFileAccess(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.driver.RemovePath(f.FilePath); err != nil && !errors.Is(err, errors.ErrNotFound) {
		writeError(w, r, err)
		return
	}
	if err := s.store.DeleteNginxFile(r.Context(), f.PublicID); err != nil {
		writeError(w, r, err)
		return
	}

	logger.InfoFields("Deleted nginx config", map[string]interface{}{
		"path": f.FilePath,
		"user": auth.UserFromContext(r.Context()).PublicID,
	})
	writeMessage(w, http.StatusOK, "Config file deleted")
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.applyNginx(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Nginx reloaded")
}
