package driver

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ksyq12/tsm/internal/errors"
)

// Driver is the interface the nginx site manager implements
type Driver interface {
	// Name returns the driver name
	Name() string

	// Paths returns the driver's config paths
	Paths() Paths

	// List returns the site file names in the available directory
	List() ([]Site, error)

	// Read returns the content of a site file
	Read(name string) (string, error)

	// Write creates or replaces a site file atomically
	Write(name, content string) error

	// ReadPath returns the content of a config file anywhere on disk
	ReadPath(path string) (string, error)

	// WritePath replaces a config file anywhere on disk atomically
	WritePath(path, content string) error

	// Remove deletes a site file, disabling it first
	Remove(name string) error

	// RemovePath deletes a config file anywhere on disk
	RemovePath(path string) error

	// Enable activates a site
	Enable(name string) error

	// Disable deactivates a site
	Disable(name string) error

	// IsEnabled checks if a site is enabled
	IsEnabled(name string) (bool, error)

	// Test validates the nginx config syntax
	Test(ctx context.Context) error

	// Reload reloads nginx
	Reload(ctx context.Context) error
}

// Paths contains the nginx config directory paths
type Paths struct {
	Available string // site files
	Enabled   string // symlinks to active sites, may equal Available
}

// Split reports whether sites are activated by symlink.
func (p Paths) Split() bool {
	return p.Enabled != "" && filepath.Clean(p.Enabled) != filepath.Clean(p.Available)
}

// Site describes one file in the available directory.
type Site struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Enabled bool   `json:"enabled"`
}

// ValidateName rejects site names that would escape the site directories.
func ValidateName(name string) error {
	switch {
	case name == "":
		return errors.Validation("site name is required")
	case name == "." || name == "..":
		return errors.Validation("invalid site name " + name)
	case strings.ContainsAny(name, `/\`):
		return errors.Validation("site name must not contain a path separator: " + name)
	case strings.HasPrefix(name, "."):
		return errors.Validation("site name must not start with a dot: " + name)
	}
	return nil
}
