package driver

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ksyq12/tsm/internal/errors"
)

// MockDriver is a test double for Driver interface. Files live in memory,
// keyed by absolute path.
type MockDriver struct {
	name  string
	paths Paths

	// Files holds config file contents by path
	Files map[string]string
	// EnabledSites holds enabled site names
	EnabledSites map[string]bool

	// Function mocks - set these to customize behavior
	WritePathFunc func(path, content string) error
	EnableFunc    func(name string) error
	TestFunc      func() error
	ReloadFunc    func() error

	// Call tracking - check these to verify interactions
	WriteCalls   []WriteCall
	RemoveCalls  []string
	EnableCalls  []string
	DisableCalls []string
	TestCalls    int
	ReloadCalls  int

	mu sync.Mutex
}

// WriteCall records arguments passed to Write or WritePath
type WriteCall struct {
	Path    string
	Content string
}

// NewMockDriver creates a new MockDriver with default in-memory behavior
func NewMockDriver(name, availableDir, enabledDir string) *MockDriver {
	return &MockDriver{
		name: name,
		paths: Paths{
			Available: availableDir,
			Enabled:   enabledDir,
		},
		Files:        make(map[string]string),
		EnabledSites: make(map[string]bool),
	}
}

// Name returns the driver name
func (m *MockDriver) Name() string {
	return m.name
}

// Paths returns the configured paths
func (m *MockDriver) Paths() Paths {
	return m.paths
}

// List returns the files stored under the available directory
func (m *MockDriver) List() ([]Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sites := make([]Site, 0, len(m.Files))
	for path := range m.Files {
		if filepath.Dir(path) != filepath.Clean(m.paths.Available) {
			continue
		}
		name := filepath.Base(path)
		sites = append(sites, Site{Name: name, Path: path, Enabled: m.EnabledSites[name]})
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].Name < sites[j].Name })
	return sites, nil
}

// Read returns a stored site file
func (m *MockDriver) Read(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return m.ReadPath(filepath.Join(m.paths.Available, name))
}

// Write stores a site file
func (m *MockDriver) Write(name, content string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return m.WritePath(filepath.Join(m.paths.Available, name), content)
}

// ReadPath returns a stored file
func (m *MockDriver) ReadPath(path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	content, ok := m.Files[path]
	if !ok {
		return "", errors.NotFound("config file", path)
	}
	return content, nil
}

// WritePath records the call and stores the file unless WritePathFunc fails
func (m *MockDriver) WritePath(path, content string) error {
	m.mu.Lock()
	m.WriteCalls = append(m.WriteCalls, WriteCall{Path: path, Content: content})
	fn := m.WritePathFunc
	m.mu.Unlock()

	if fn != nil {
		if err := fn(path, content); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.Files[path] = content
	m.mu.Unlock()
	return nil
}

// Remove records the call and deletes the stored file
func (m *MockDriver) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RemoveCalls = append(m.RemoveCalls, name)
	path := filepath.Join(m.paths.Available, name)
	if _, ok := m.Files[path]; !ok {
		return errors.NotFound("site", name)
	}
	delete(m.Files, path)
	delete(m.EnabledSites, name)
	return nil
}

// RemovePath records the call and deletes the stored file
func (m *MockDriver) RemovePath(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RemoveCalls = append(m.RemoveCalls, path)
	if _, ok := m.Files[path]; !ok {
		return errors.NotFound("config file", path)
	}
	delete(m.Files, path)
	if filepath.Dir(path) == filepath.Clean(m.paths.Available) {
		delete(m.EnabledSites, filepath.Base(path))
	}
	return nil
}

// Enable records the call and marks the site enabled
func (m *MockDriver) Enable(name string) error {
	m.mu.Lock()
	m.EnableCalls = append(m.EnableCalls, name)
	fn := m.EnableFunc
	m.mu.Unlock()

	if fn != nil {
		if err := fn(name); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.EnabledSites[name] = true
	m.mu.Unlock()
	return nil
}

// Disable records the call and marks the site disabled
func (m *MockDriver) Disable(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DisableCalls = append(m.DisableCalls, name)
	if !m.EnabledSites[name] {
		return errors.NotFound("enabled site", name)
	}
	delete(m.EnabledSites, name)
	return nil
}

// IsEnabled reports whether Enable was called for name
func (m *MockDriver) IsEnabled(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.EnabledSites[name], nil
}

// Test records the call and invokes the mock function if set
func (m *MockDriver) Test(ctx context.Context) error {
	m.mu.Lock()
	m.TestCalls++
	fn := m.TestFunc
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return nil
}

// Reload records the call and invokes the mock function if set
func (m *MockDriver) Reload(ctx context.Context) error {
	m.mu.Lock()
	m.ReloadCalls++
	fn := m.ReloadFunc
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return nil
}

// Reset clears all call tracking
func (m *MockDriver) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteCalls = nil
	m.RemoveCalls = nil
	m.EnableCalls = nil
	m.DisableCalls = nil
	m.TestCalls = 0
	m.ReloadCalls = 0
}
