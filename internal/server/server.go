// Package server exposes tsm over a JSON HTTP API.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/ksyq12/tsm/internal/access"
	"github.com/ksyq12/tsm/internal/auth"
	"github.com/ksyq12/tsm/internal/config"
	"github.com/ksyq12/tsm/internal/driver"
	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/logger"
	"github.com/ksyq12/tsm/internal/models"
	"github.com/ksyq12/tsm/internal/pm2"
	"github.com/ksyq12/tsm/internal/store"
	"github.com/ksyq12/tsm/internal/template"
)

const shutdownTimeout = 10 * time.Second

// ResetNotifier delivers password reset tokens to users.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, user *models.User, token string) error
}

// LogNotifier writes reset tokens to the log for the operator to pass on.
type LogNotifier struct{}

// SendPasswordReset logs the token at info level.
func (LogNotifier) SendPasswordReset(ctx context.Context, user *models.User, token string) error {
	logger.InfoFields("Password reset requested", map[string]interface{}{
		"email": user.Email,
		"token": token,
	})
	return nil
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Config    *config.Config
	Store     *store.Store
	Driver    driver.Driver
	PM2       *pm2.Client
	Evaluator *access.Evaluator
	Templates *template.Validator
	Notifier  ResetNotifier
}

// Server serves the tsm API.
type Server struct {
	cfg       *config.Config
	store     *store.Store
	driver    driver.Driver
	pm2       *pm2.Client
	evaluator *access.Evaluator
	templates *template.Validator
	notifier  ResetNotifier
	tokens    *auth.Tokens
	auth      *auth.Authenticator
	now       func() time.Time
}

// New creates a Server. The config must already be validated.
func New(d Deps) (*Server, error) {
	if d.Config == nil || d.Store == nil || d.Driver == nil || d.PM2 == nil {
		return nil, errors.New(errors.ErrCodeConfig, "server requires config, store, driver and pm2")
	}
	if d.Evaluator == nil {
		mode, err := d.Config.MatchMode()
		if err != nil {
			return nil, err
		}
		policy := access.DefaultPolicy()
		policy.Match = mode
		d.Evaluator = access.NewEvaluator(policy)
	}
	if d.Templates == nil {
		d.Templates = template.NewValidator(d.Config.TemplatesPath())
	}
	if d.Notifier == nil {
		d.Notifier = LogNotifier{}
	}

	tokens := auth.NewTokens(d.Config.Auth.JWTSecret, d.Config.Auth.TokenTTL)
	s := &Server{
		cfg:       d.Config,
		store:     d.Store,
		driver:    d.Driver,
		pm2:       d.PM2,
		evaluator: d.Evaluator,
		templates: d.Templates,
		notifier:  d.Notifier,
		tokens:    tokens,
		now:       time.Now,
	}
	s.auth = &auth.Authenticator{
		Tokens:       tokens,
		Users:        d.Store,
		Evaluator:    d.Evaluator,
		CookieName:   d.Config.Auth.CookieName,
		SecureCookie: d.Config.Auth.SecureCookie,
		WriteError:   writeError,
	}
	return s, nil
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORS.Origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errors.NotFound("route", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errors.Validation("method "+r.Method+" not allowed on "+r.URL.Path))
	})

	r.Get("/health", s.handleHealth)

	r.Route("/users", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Post("/request-password-reset", s.handleRequestPasswordReset)
		r.Post("/reset-password-with-new-password", s.handleResetPassword)
		r.With(s.auth.Authenticate).Get("/me", s.handleMe)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Authenticate)

		r.Get("/access/check", s.handleAccessCheck)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.auth.RequireAdmin)
			r.Get("/users", s.handleListUsers)
			r.Patch("/users/{id}/access-pages", s.handleUpdateAccessPages)
			r.Patch("/users/{id}/access-servers", s.handleUpdateAccessServers)
			r.Get("/pages", s.handleListPages)
		})

		r.Route("/machines", func(r chi.Router) {
			r.Use(s.auth.RequirePage)
			r.Get("/", s.handleListMachines)
			r.With(s.auth.RequireAdmin).Post("/", s.handleCreateMachine)
			r.With(s.auth.RequireAdmin).Delete("/{id}", s.handleDeleteMachine)
		})

		r.Route("/pm2", func(r chi.Router) {
			r.Use(s.auth.RequirePage)
			r.Get("/apps", s.handleListApps)
			r.Post("/apps/{name}/{action}", s.handleAppAction)
		})

		r.Route("/nginx", func(r chi.Router) {
			r.Use(s.auth.RequirePage)
			r.Get("/templates", s.handleListTemplates)
			r.Post("/create-config-file", s.handleCreateConfigFile)
			r.Get("/config-files", s.handleListConfigFiles)
			r.Get("/config-file/{id}", s.handleGetConfigFile)
			r.Post("/config-file/{id}", s.handleUpdateConfigFile)
			r.Delete("/config-file/{id}", s.handleDeleteConfigFile)
			r.Post("/reload", s.handleReload)
		})
	})

	return r
}

// Run serves on the configured listen address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfig, "failed to listen on "+s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "graceful shutdown failed", err)
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
