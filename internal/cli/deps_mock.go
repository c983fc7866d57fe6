package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ksyq12/tsm/internal/config"
	"github.com/ksyq12/tsm/internal/driver"
	"github.com/ksyq12/tsm/internal/executor"
	"github.com/ksyq12/tsm/internal/input"
	"github.com/ksyq12/tsm/internal/output"
	"github.com/ksyq12/tsm/internal/store"
)

// MockConfigLoader is a test double for ConfigLoader
type MockConfigLoader struct {
	Cfg       *config.Config
	LoadErr   error
	SaveErr   error
	SaveCalls int
	LoadPaths []string
}

func (m *MockConfigLoader) Load(path string) (*config.Config, error) {
	m.LoadPaths = append(m.LoadPaths, path)
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.Cfg == nil {
		m.Cfg = config.New()
	}
	return m.Cfg, nil
}

func (m *MockConfigLoader) Save(cfg *config.Config) error {
	m.SaveCalls++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Cfg = cfg
	return nil
}

// MockDriverFactory is a test double for DriverFactory
type MockDriverFactory struct {
	Driver driver.Driver
	Err    error
}

func (m *MockDriverFactory) Create(paths driver.Paths, exec executor.CommandExecutor) (driver.Driver, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Driver != nil {
		return m.Driver, nil
	}
	return driver.NewMockDriver("nginx", paths.Available, paths.Enabled), nil
}

// MockStoreOpener opens a real store at the requested path unless Err is
// set.
type MockStoreOpener struct {
	Err   error
	Paths []string
}

func (m *MockStoreOpener) Open(ctx context.Context, path string) (*store.Store, error) {
	m.Paths = append(m.Paths, path)
	if m.Err != nil {
		return nil, m.Err
	}
	return store.Open(ctx, path)
}

// MockRootChecker is a test double for RootChecker
type MockRootChecker struct {
	IsRoot bool
	Calls  int
}

func (m *MockRootChecker) RequireRoot() error {
	m.Calls++
	if !m.IsRoot {
		return errRootRequired
	}
	return nil
}

// MockDependenciesBuilder helps create mock dependencies for tests
type MockDependenciesBuilder struct {
	deps *Dependencies
}

// NewMockDeps creates a new MockDependenciesBuilder with sensible defaults
func NewMockDeps() *MockDependenciesBuilder {
	return &MockDependenciesBuilder{
		deps: &Dependencies{
			ConfigLoader:  &MockConfigLoader{Cfg: config.New()},
			DriverFactory: &MockDriverFactory{},
			StoreOpener:   &MockStoreOpener{},
			Executor:      &executor.MockExecutor{},
			RootChecker:   &MockRootChecker{IsRoot: true},
			StdinReader:   input.NewStringReader("y\n"),
			Prompt:        io.Discard,
		},
	}
}

// WithConfig sets the config for the mock
func (b *MockDependenciesBuilder) WithConfig(cfg *config.Config) *MockDependenciesBuilder {
	b.deps.ConfigLoader = &MockConfigLoader{Cfg: cfg}
	return b
}

// WithDriver sets the driver for the mock
func (b *MockDependenciesBuilder) WithDriver(drv driver.Driver) *MockDependenciesBuilder {
	b.deps.DriverFactory = &MockDriverFactory{Driver: drv}
	return b
}

// WithStoreError makes every store open fail with err
func (b *MockDependenciesBuilder) WithStoreError(err error) *MockDependenciesBuilder {
	b.deps.StoreOpener = &MockStoreOpener{Err: err}
	return b
}

// WithExecutor sets the command executor
func (b *MockDependenciesBuilder) WithExecutor(exec executor.CommandExecutor) *MockDependenciesBuilder {
	b.deps.Executor = exec
	return b
}

// WithRootAccess sets whether root access is available
func (b *MockDependenciesBuilder) WithRootAccess(isRoot bool) *MockDependenciesBuilder {
	b.deps.RootChecker = &MockRootChecker{IsRoot: isRoot}
	return b
}

// WithStdinInput sets the lines returned by stdin, each including its
// newline
func (b *MockDependenciesBuilder) WithStdinInput(lines ...string) *MockDependenciesBuilder {
	b.deps.StdinReader = input.NewStringReader(lines...)
	return b
}

// Build returns the configured Dependencies
func (b *MockDependenciesBuilder) Build() *Dependencies {
	return b.deps
}

// TB is the subset of testing.TB the helper needs.
type TB interface {
	Helper()
	Cleanup(func())
	TempDir() string
	Fatalf(format string, args ...interface{})
}

// TestHelper wires mock dependencies, a temporary store and captured output
// for one test. Store is a separate handle on the database commands open.
type TestHelper struct {
	OldDeps    *Dependencies
	Deps       *Dependencies
	Config     *config.Config
	MockDriver *driver.MockDriver
	MockConfig *MockConfigLoader
	Exec       *executor.MockExecutor
	Store      *store.Store
	Out        *bytes.Buffer
}

// NewTestHelper installs mock dependencies rooted in a temp directory and
// restores the previous ones when the test ends.
func NewTestHelper(t TB) *TestHelper {
	t.Helper()

	dir := t.TempDir()
	cfg := config.New()
	cfg.DataDir = dir
	cfg.Auth.JWTSecret = "cli-test-secret-0123456"
	cfg.Nginx.Available = filepath.Join(dir, "sites-available")
	cfg.Nginx.Enabled = filepath.Join(dir, "sites-enabled")

	st, err := store.Open(context.Background(), cfg.DatabasePath())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	h := &TestHelper{
		OldDeps:    deps,
		Config:     cfg,
		MockDriver: driver.NewMockDriver("nginx", cfg.Nginx.Available, cfg.Nginx.Enabled),
		MockConfig: &MockConfigLoader{Cfg: cfg},
		Exec:       &executor.MockExecutor{},
		Store:      st,
		Out:        &bytes.Buffer{},
	}
	h.Deps = NewMockDeps().
		WithDriver(h.MockDriver).
		WithExecutor(h.Exec).
		Build()
	h.Deps.ConfigLoader = h.MockConfig

	deps = h.Deps
	output.SetWriter(h.Out)
	oldJSON := jsonOutput

	t.Cleanup(func() {
		deps = h.OldDeps
		jsonOutput = oldJSON
		output.SetWriter(nil)
		_ = st.Close()
	})
	return h
}

// Cmd returns a command carrying a background context, for calling run
// functions directly.
func (h *TestHelper) Cmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

// SetStdinInput replaces the stdin lines
func (h *TestHelper) SetStdinInput(lines ...string) {
	h.Deps.StdinReader = input.NewStringReader(lines...)
}

// SetRootAccess sets whether root access is available
func (h *TestHelper) SetRootAccess(isRoot bool) {
	h.Deps.RootChecker = &MockRootChecker{IsRoot: isRoot}
}
