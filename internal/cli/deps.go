package cli

import (
	"context"
	"io"
	"os"

	"github.com/ksyq12/tsm/internal/config"
	"github.com/ksyq12/tsm/internal/driver"
	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/executor"
	"github.com/ksyq12/tsm/internal/input"
	"github.com/ksyq12/tsm/internal/store"
)

// Dependencies aggregates all CLI external dependencies for testability
type Dependencies struct {
	ConfigLoader  ConfigLoader
	DriverFactory DriverFactory
	StoreOpener   StoreOpener
	Executor      executor.CommandExecutor
	RootChecker   RootChecker
	StdinReader   input.Reader
	Prompt        io.Writer
}

// ConfigLoader handles configuration loading and saving
type ConfigLoader interface {
	Load(path string) (*config.Config, error)
	Save(cfg *config.Config) error
}

// DriverFactory creates the nginx driver
type DriverFactory interface {
	Create(paths driver.Paths, exec executor.CommandExecutor) (driver.Driver, error)
}

// StoreOpener opens the SQLite store
type StoreOpener interface {
	Open(ctx context.Context, path string) (*store.Store, error)
}

// RootChecker checks root privileges
type RootChecker interface {
	RequireRoot() error
}

// Package-level dependencies (can be overridden for testing)
var deps = defaultDeps()

func defaultDeps() *Dependencies {
	return &Dependencies{
		ConfigLoader:  &realConfigLoader{},
		DriverFactory: &realDriverFactory{},
		StoreOpener:   &realStoreOpener{},
		Executor:      executor.NewSystemExecutor(),
		RootChecker:   &realRootChecker{},
		StdinReader:   input.NewStdinReader(),
		Prompt:        os.Stderr,
	}
}

// SetDeps replaces the package dependencies (for testing)
func SetDeps(d *Dependencies) {
	deps = d
}

// GetDeps returns the current dependencies (for testing)
func GetDeps() *Dependencies {
	return deps
}

type realConfigLoader struct{}

func (r *realConfigLoader) Load(path string) (*config.Config, error) {
	return config.Load(path)
}

func (r *realConfigLoader) Save(cfg *config.Config) error {
	return cfg.Save()
}

type realDriverFactory struct{}

func (r *realDriverFactory) Create(paths driver.Paths, exec executor.CommandExecutor) (driver.Driver, error) {
	return driver.NewNginxWithExecutor(paths.Available, paths.Enabled, exec), nil
}

type realStoreOpener struct{}

func (r *realStoreOpener) Open(ctx context.Context, path string) (*store.Store, error) {
	return store.Open(ctx, path)
}

type realRootChecker struct{}

func (r *realRootChecker) RequireRoot() error {
	if os.Geteuid() != 0 {
		return errRootRequired
	}
	return nil
}

// errRootRequired is returned by commands that change system nginx files
var errRootRequired = errors.New(errors.ErrCodePermission, "this operation requires root privileges, run with sudo")
