package driver

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/executor"
	"github.com/ksyq12/tsm/internal/logger"
)

// NginxDriver implements the Driver interface for Nginx
type NginxDriver struct {
	paths Paths
	exec  executor.CommandExecutor
}

// NewNginxWithPaths creates a new Nginx driver with custom paths
func NewNginxWithPaths(available, enabled string) *NginxDriver {
	return NewNginxWithExecutor(available, enabled, executor.NewSystemExecutor())
}

// NewNginxWithExecutor creates a new Nginx driver with custom paths and executor (for testing)
func NewNginxWithExecutor(available, enabled string, exec executor.CommandExecutor) *NginxDriver {
	if enabled == "" {
		enabled = available
	}
	return &NginxDriver{
		paths: Paths{
			Available: available,
			Enabled:   enabled,
		},
		exec: exec,
	}
}

// Name returns the driver name
func (n *NginxDriver) Name() string {
	return "nginx"
}

// Paths returns the config paths
func (n *NginxDriver) Paths() Paths {
	return n.paths
}

func (n *NginxDriver) sitePath(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(n.paths.Available, name), nil
}

// List returns all site files from the available directory
func (n *NginxDriver) List() ([]Site, error) {
	entries, err := os.ReadDir(n.paths.Available)
	if err != nil {
		if os.IsNotExist(err) {
			return []Site{}, nil
		}
		return nil, errors.Wrap(errors.ErrCodeDriver, "failed to read sites directory", err)
	}

	sites := make([]Site, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		enabled, err := n.IsEnabled(entry.Name())
		if err != nil {
			return nil, err
		}
		sites = append(sites, Site{
			Name:    entry.Name(),
			Path:    filepath.Join(n.paths.Available, entry.Name()),
			Enabled: enabled,
		})
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].Name < sites[j].Name })

	return sites, nil
}

// Read returns a site file's content
func (n *NginxDriver) Read(name string) (string, error) {
	path, err := n.sitePath(name)
	if err != nil {
		return "", err
	}
	return n.ReadPath(path)
}

// Write creates or replaces a site file
func (n *NginxDriver) Write(name, content string) error {
	path, err := n.sitePath(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(n.paths.Available, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeDriver, "failed to create sites directory", err)
	}
	return n.WritePath(path, content)
}

// ReadPath returns the content of the config file at path
func (n *NginxDriver) ReadPath(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NotFound("config file", path)
		}
		return "", errors.WrapResource(errors.ErrCodeDriver, path, err)
	}
	return string(data), nil
}

// WritePath replaces the config file at path. The parent directory must
// already exist. New files are created 0644; replaced files keep their mode.
func (n *NginxDriver) WritePath(path, content string) error {
	if !filepath.IsAbs(path) {
		return errors.Validation("config file path must be absolute: " + path)
	}
	_, statErr := os.Stat(path)
	if err := atomic.WriteFile(path, bytes.NewReader([]byte(content))); err != nil {
		return errors.WrapResource(errors.ErrCodeDriver, path, err)
	}
	if os.IsNotExist(statErr) {
		if err := os.Chmod(path, 0644); err != nil {
			return errors.WrapResource(errors.ErrCodeDriver, path, err)
		}
	}
	logger.Debug("Wrote nginx config %s (%d bytes)", path, len(content))
	return nil
}

// Remove deletes a site file
func (n *NginxDriver) Remove(name string) error {
	path, err := n.sitePath(name)
	if err != nil {
		return err
	}

	// First disable the site
	if n.paths.Split() {
		if enabled, _ := n.IsEnabled(name); enabled {
			if err := n.Disable(name); err != nil {
				return err
			}
		}
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.NotFound("site", name)
		}
		return errors.Wrap(errors.ErrCodeDriver, "failed to remove config file", err)
	}

	return nil
}

// RemovePath deletes the config file at path. Site files inside the
// available directory are disabled first; any other file there, such as a
// dotfile, is removed directly.
func (n *NginxDriver) RemovePath(path string) error {
	name := filepath.Base(path)
	if filepath.Dir(filepath.Clean(path)) == filepath.Clean(n.paths.Available) && ValidateName(name) == nil {
		return n.Remove(name)
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.NotFound("config file", path)
		}
		return errors.WrapResource(errors.ErrCodeDriver, path, err)
	}
	return nil
}

// Enable activates a site by creating a symlink. On layouts without a
// separate enabled directory every file is already active.
func (n *NginxDriver) Enable(name string) error {
	source, err := n.sitePath(name)
	if err != nil {
		return err
	}

	if _, err := os.Stat(source); os.IsNotExist(err) {
		return errors.NotFound("site", name)
	}
	if !n.paths.Split() {
		return nil
	}

	target := filepath.Join(n.paths.Enabled, name)
	if _, err := os.Lstat(target); err == nil {
		return errors.AlreadyExists("enabled site", name)
	}

	if err := os.MkdirAll(n.paths.Enabled, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeDriver, "failed to create sites-enabled directory", err)
	}
	if err := os.Symlink(source, target); err != nil {
		return errors.Wrap(errors.ErrCodeDriver, "failed to enable site", err)
	}

	return nil
}

// Disable deactivates a site by removing the symlink
func (n *NginxDriver) Disable(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if !n.paths.Split() {
		return errors.Validation("sites in " + n.paths.Available + " cannot be disabled without removing them")
	}

	target := filepath.Join(n.paths.Enabled, name)

	info, err := os.Lstat(target)
	if os.IsNotExist(err) {
		return errors.NotFound("enabled site", name)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeDriver, "failed to check site status", err)
	}

	// Verify it's a symlink
	if info.Mode()&os.ModeSymlink == 0 {
		return errors.New(errors.ErrCodeDriver, fmt.Sprintf("%s is not a symlink, refusing to remove", target))
	}

	if err := os.Remove(target); err != nil {
		return errors.Wrap(errors.ErrCodeDriver, "failed to disable site", err)
	}

	return nil
}

// IsEnabled checks if a site is enabled
func (n *NginxDriver) IsEnabled(name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}

	target := filepath.Join(n.paths.Enabled, name)
	_, err := os.Lstat(target)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeDriver, "failed to check site status", err)
	}
	return true, nil
}

// Test validates the nginx config syntax
func (n *NginxDriver) Test(ctx context.Context) error {
	output, err := n.exec.Execute(ctx, "nginx", "-t")
	if err != nil {
		return errors.Wrap(errors.ErrCodeDriver, "nginx config test failed",
			fmt.Errorf("%s", strings.TrimSpace(string(output))))
	}
	return nil
}

// Reload reloads nginx to apply changes
func (n *NginxDriver) Reload(ctx context.Context) error {
	output, err := n.exec.Execute(ctx, "systemctl", "reload", "nginx")
	if err != nil {
		logger.Debug("systemctl reload failed, falling back to nginx -s reload: %s", strings.TrimSpace(string(output)))
		output, err = n.exec.Execute(ctx, "nginx", "-s", "reload")
		if err != nil {
			return errors.Wrap(errors.ErrCodeDriver, "failed to reload nginx",
				fmt.Errorf("%s", strings.TrimSpace(string(output))))
		}
	}
	return nil
}
