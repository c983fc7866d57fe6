// Package platform provides platform-specific path detection for nginx.
package platform

import (
	"fmt"
	"os"
	"runtime"
)

// PathConfig contains the nginx site directories. On layouts without a
// separate enabled directory both fields hold the same path.
type PathConfig struct {
	Available string
	Enabled   string
}

// DetectNginxPaths returns the nginx site directories for this machine.
// It checks for common installation locations based on the OS.
func DetectNginxPaths() (PathConfig, error) {
	return detect(runtime.GOOS, pathExists)
}

func detect(goos string, exists func(string) bool) (PathConfig, error) {
	switch goos {
	case "darwin":
		return detectDarwinPaths(exists)
	case "linux":
		return detectLinuxPaths(exists)
	default:
		return PathConfig{}, fmt.Errorf("unsupported platform: %s", goos)
	}
}

// detectDarwinPaths detects paths for macOS (Homebrew installations).
func detectDarwinPaths(exists func(string) bool) (PathConfig, error) {
	// Apple Silicon first, then Intel
	for _, prefix := range []string{"/opt/homebrew", "/usr/local"} {
		if exists(prefix + "/etc/nginx") {
			servers := prefix + "/etc/nginx/servers"
			return PathConfig{Available: servers, Enabled: servers}, nil
		}
	}
	return PathConfig{}, fmt.Errorf("homebrew nginx not found (checked /opt/homebrew and /usr/local)")
}

// detectLinuxPaths detects paths for Linux distributions.
func detectLinuxPaths(exists func(string) bool) (PathConfig, error) {
	// Debian/Ubuntu layout
	if exists("/etc/nginx/sites-available") {
		return PathConfig{
			Available: "/etc/nginx/sites-available",
			Enabled:   "/etc/nginx/sites-enabled",
		}, nil
	}

	// RHEL/CentOS/Alpine layout
	if exists("/etc/nginx/conf.d") {
		return PathConfig{
			Available: "/etc/nginx/conf.d",
			Enabled:   "/etc/nginx/conf.d",
		}, nil
	}

	return PathConfig{}, fmt.Errorf("nginx configuration paths not found (checked /etc/nginx/sites-available, /etc/nginx/conf.d)")
}

// pathExists checks if a path exists on the filesystem.
func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Platform returns a string describing the current platform.
func Platform() string {
	return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
}
