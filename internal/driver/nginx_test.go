package driver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/executor"
)

func setupDirs(t *testing.T) (string, string) {
	t.Helper()
	tempDir := t.TempDir()
	availableDir := filepath.Join(tempDir, "sites-available")
	enabledDir := filepath.Join(tempDir, "sites-enabled")

	if err := os.MkdirAll(availableDir, 0755); err != nil {
		t.Fatalf("failed to create sites-available: %v", err)
	}
	if err := os.MkdirAll(enabledDir, 0755); err != nil {
		t.Fatalf("failed to create sites-enabled: %v", err)
	}
	return availableDir, enabledDir
}

func TestNginxDriver(t *testing.T) {
	availableDir, enabledDir := setupDirs(t)
	drv := NewNginxWithExecutor(availableDir, enabledDir, &executor.MockExecutor{})
	const site = "test.example.com"

	t.Run("Name", func(t *testing.T) {
		if drv.Name() != "nginx" {
			t.Errorf("expected nginx, got %s", drv.Name())
		}
	})

	t.Run("Paths", func(t *testing.T) {
		paths := drv.Paths()
		if paths.Available != availableDir {
			t.Errorf("expected %s, got %s", availableDir, paths.Available)
		}
		if paths.Enabled != enabledDir {
			t.Errorf("expected %s, got %s", enabledDir, paths.Enabled)
		}
		if !paths.Split() {
			t.Error("expected split layout")
		}
	})

	t.Run("Write", func(t *testing.T) {
		content := "server { listen 80; server_name test.example.com; }"
		if err := drv.Write(site, content); err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(availableDir, site))
		if err != nil {
			t.Fatalf("failed to read config: %v", err)
		}
		if string(data) != content {
			t.Errorf("config content mismatch")
		}
	})

	t.Run("Read", func(t *testing.T) {
		content, err := drv.Read(site)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if content != "server { listen 80; server_name test.example.com; }" {
			t.Errorf("unexpected content %q", content)
		}

		if _, err := drv.Read("missing.example.com"); !apperrors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		sites, err := drv.List()
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(sites) != 1 {
			t.Fatalf("expected 1 site, got %d", len(sites))
		}
		if sites[0].Name != site || sites[0].Enabled {
			t.Errorf("unexpected site %+v", sites[0])
		}
	})

	t.Run("Enable", func(t *testing.T) {
		if err := drv.Enable(site); err != nil {
			t.Fatalf("Enable failed: %v", err)
		}

		info, err := os.Lstat(filepath.Join(enabledDir, site))
		if err != nil {
			t.Fatalf("symlink not found: %v", err)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			t.Error("expected symlink, got regular file")
		}
	})

	t.Run("IsEnabled", func(t *testing.T) {
		enabled, err := drv.IsEnabled(site)
		if err != nil {
			t.Fatalf("IsEnabled failed: %v", err)
		}
		if !enabled {
			t.Error("expected enabled to be true")
		}

		enabled, err = drv.IsEnabled("nonexistent.example.com")
		if err != nil {
			t.Fatalf("IsEnabled failed: %v", err)
		}
		if enabled {
			t.Error("expected enabled to be false for nonexistent site")
		}
	})

	t.Run("Disable", func(t *testing.T) {
		if err := drv.Disable(site); err != nil {
			t.Fatalf("Disable failed: %v", err)
		}
		if _, err := os.Lstat(filepath.Join(enabledDir, site)); !os.IsNotExist(err) {
			t.Error("symlink should have been removed")
		}
	})

	t.Run("RemoveDisablesFirst", func(t *testing.T) {
		if err := drv.Enable(site); err != nil {
			t.Fatalf("Enable failed: %v", err)
		}
		if err := drv.Remove(site); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(availableDir, site)); !os.IsNotExist(err) {
			t.Error("config file should have been removed")
		}
		if _, err := os.Lstat(filepath.Join(enabledDir, site)); !os.IsNotExist(err) {
			t.Error("symlink should have been removed")
		}
	})

	t.Run("RemoveNonexistent", func(t *testing.T) {
		err := drv.Remove("nonexistent.example.com")
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestNginxDriver_PathAccess(t *testing.T) {
	availableDir, enabledDir := setupDirs(t)
	drv := NewNginxWithPaths(availableDir, enabledDir)

	other := t.TempDir()
	path := filepath.Join(other, "api.example.com")

	t.Run("WritePath", func(t *testing.T) {
		if err := drv.WritePath(path, "first"); err != nil {
			t.Fatalf("WritePath failed: %v", err)
		}
		if err := drv.WritePath(path, "second"); err != nil {
			t.Fatalf("WritePath overwrite failed: %v", err)
		}
		content, err := drv.ReadPath(path)
		if err != nil {
			t.Fatalf("ReadPath failed: %v", err)
		}
		if content != "second" {
			t.Errorf("expected second, got %q", content)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat failed: %v", err)
		}
		if info.Mode().Perm() != 0644 {
			t.Errorf("expected mode 0644, got %v", info.Mode().Perm())
		}
	})

	t.Run("WritePathKeepsMode", func(t *testing.T) {
		private := filepath.Join(other, "private.example.com")
		if err := os.WriteFile(private, []byte("old"), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		if err := drv.WritePath(private, "new"); err != nil {
			t.Fatalf("WritePath failed: %v", err)
		}
		info, err := os.Stat(private)
		if err != nil {
			t.Fatalf("stat failed: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("expected mode 0600 kept, got %v", info.Mode().Perm())
		}
	})

	t.Run("WritePathRelative", func(t *testing.T) {
		err := drv.WritePath("relative/site", "x")
		if !apperrors.Is(err, apperrors.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("WritePathMissingParent", func(t *testing.T) {
		err := drv.WritePath(filepath.Join(other, "missing", "site"), "x")
		if !apperrors.Is(err, apperrors.ErrDriver) {
			t.Errorf("expected driver error, got %v", err)
		}
	})

	t.Run("RemovePath", func(t *testing.T) {
		if err := drv.RemovePath(path); err != nil {
			t.Fatalf("RemovePath failed: %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("file should have been removed")
		}
		if err := drv.RemovePath(path); !apperrors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("RemovePathInAvailable", func(t *testing.T) {
		if err := drv.Write("site.example.com", "x"); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if err := drv.Enable("site.example.com"); err != nil {
			t.Fatalf("Enable failed: %v", err)
		}
		if err := drv.RemovePath(filepath.Join(availableDir, "site.example.com")); err != nil {
			t.Fatalf("RemovePath failed: %v", err)
		}
		if _, err := os.Lstat(filepath.Join(enabledDir, "site.example.com")); !os.IsNotExist(err) {
			t.Error("symlink should have been removed")
		}
	})

	t.Run("RemovePathDotfileInAvailable", func(t *testing.T) {
		hidden := filepath.Join(availableDir, ".hidden.example.com")
		if err := os.WriteFile(hidden, []byte("x"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		if err := drv.RemovePath(hidden); err != nil {
			t.Fatalf("RemovePath failed: %v", err)
		}
		if _, err := os.Stat(hidden); !os.IsNotExist(err) {
			t.Error("dotfile should have been removed")
		}
	})

	t.Run("ReadPathMissing", func(t *testing.T) {
		_, err := drv.ReadPath(filepath.Join(other, "nope"))
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestNginxDriver_InvalidNames(t *testing.T) {
	availableDir, enabledDir := setupDirs(t)
	drv := NewNginxWithPaths(availableDir, enabledDir)

	for _, name := range []string{"", ".", "..", "../etc/passwd", "a/b", `a\b`, ".hidden"} {
		t.Run(name, func(t *testing.T) {
			if err := drv.Write(name, "x"); !apperrors.Is(err, apperrors.ErrValidation) {
				t.Errorf("Write(%q) expected validation error, got %v", name, err)
			}
			if _, err := drv.Read(name); !apperrors.Is(err, apperrors.ErrValidation) {
				t.Errorf("Read(%q) expected validation error, got %v", name, err)
			}
			if err := drv.Enable(name); !apperrors.Is(err, apperrors.ErrValidation) {
				t.Errorf("Enable(%q) expected validation error, got %v", name, err)
			}
		})
	}
}

func TestNginxDriver_SharedDirectory(t *testing.T) {
	dir := t.TempDir()
	drv := NewNginxWithPaths(dir, "")

	if drv.Paths().Split() {
		t.Fatal("conf.d layout should not be split")
	}
	if err := drv.Write("app.conf", "server {}"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := drv.Enable("app.conf"); err != nil {
		t.Errorf("Enable should be a no-op: %v", err)
	}
	enabled, err := drv.IsEnabled("app.conf")
	if err != nil || !enabled {
		t.Errorf("file in conf.d should be enabled, got %v (%v)", enabled, err)
	}
	if err := drv.Disable("app.conf"); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if err := drv.Remove("app.conf"); err != nil {
		t.Errorf("Remove failed: %v", err)
	}
}

func TestNginxDriver_WithExecutor(t *testing.T) {
	availableDir, enabledDir := setupDirs(t)
	ctx := context.Background()

	t.Run("Test_success", func(t *testing.T) {
		mock := &executor.MockExecutor{
			ExecuteFunc: func(name string, args ...string) ([]byte, error) {
				if name == "nginx" && len(args) > 0 && args[0] == "-t" {
					return []byte("nginx: configuration file test is successful"), nil
				}
				return nil, errors.New("unexpected command")
			},
		}

		drv := NewNginxWithExecutor(availableDir, enabledDir, mock)
		if err := drv.Test(ctx); err != nil {
			t.Errorf("Test should succeed: %v", err)
		}

		calls := mock.CallLog()
		if len(calls) != 1 {
			t.Fatalf("expected 1 call, got %d", len(calls))
		}
		if calls[0].String() != "nginx -t" {
			t.Errorf("expected nginx -t, got %s", calls[0])
		}
	})

	t.Run("Test_failure", func(t *testing.T) {
		mock := &executor.MockExecutor{
			ExecuteFunc: func(name string, args ...string) ([]byte, error) {
				return []byte("nginx: [emerg] invalid config"), errors.New("exit status 1")
			},
		}

		drv := NewNginxWithExecutor(availableDir, enabledDir, mock)
		err := drv.Test(ctx)
		if !apperrors.Is(err, apperrors.ErrDriver) {
			t.Fatalf("expected driver error, got %v", err)
		}
		if !strings.Contains(err.Error(), "[emerg] invalid config") {
			t.Errorf("expected nginx output in error, got %v", err)
		}
	})

	t.Run("Reload_systemctl_success", func(t *testing.T) {
		mock := &executor.MockExecutor{
			ExecuteFunc: func(name string, args ...string) ([]byte, error) {
				if name == "systemctl" && len(args) >= 2 && args[0] == "reload" && args[1] == "nginx" {
					return []byte(""), nil
				}
				return nil, errors.New("unexpected command")
			},
		}

		drv := NewNginxWithExecutor(availableDir, enabledDir, mock)
		if err := drv.Reload(ctx); err != nil {
			t.Errorf("Reload should succeed: %v", err)
		}
	})

	t.Run("Reload_fallback_success", func(t *testing.T) {
		callCount := 0
		mock := &executor.MockExecutor{
			ExecuteFunc: func(name string, args ...string) ([]byte, error) {
				callCount++
				if callCount == 1 {
					return []byte("systemctl not available"), errors.New("systemctl not found")
				}
				if name == "nginx" && len(args) >= 2 && args[0] == "-s" && args[1] == "reload" {
					return []byte(""), nil
				}
				return nil, errors.New("unexpected command")
			},
		}

		drv := NewNginxWithExecutor(availableDir, enabledDir, mock)
		if err := drv.Reload(ctx); err != nil {
			t.Errorf("Reload should succeed with fallback: %v", err)
		}
		if callCount != 2 {
			t.Errorf("expected 2 calls, got %d", callCount)
		}
	})

	t.Run("Reload_both_fail", func(t *testing.T) {
		mock := &executor.MockExecutor{
			ExecuteFunc: func(name string, args ...string) ([]byte, error) {
				return []byte("error"), errors.New("command failed")
			},
		}

		drv := NewNginxWithExecutor(availableDir, enabledDir, mock)
		if err := drv.Reload(ctx); err == nil {
			t.Error("Reload should fail when both methods fail")
		}
	})
}

func TestNginxDriver_EdgeCases(t *testing.T) {
	t.Run("EnableAlreadyEnabled", func(t *testing.T) {
		availableDir, enabledDir := setupDirs(t)
		drv := NewNginxWithPaths(availableDir, enabledDir)
		site := "test.com"

		if err := drv.Write(site, "config"); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if err := drv.Enable(site); err != nil {
			t.Fatalf("first Enable failed: %v", err)
		}

		err := drv.Enable(site)
		if !apperrors.Is(err, apperrors.ErrAlreadyExists) {
			t.Errorf("expected already exists, got %v", err)
		}
	})

	t.Run("DisableNotEnabled", func(t *testing.T) {
		availableDir, enabledDir := setupDirs(t)
		drv := NewNginxWithPaths(availableDir, enabledDir)

		if err := drv.Disable("nonexistent.com"); !apperrors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("DisableNonSymlink", func(t *testing.T) {
		availableDir, enabledDir := setupDirs(t)
		site := "test.com"
		if err := os.WriteFile(filepath.Join(enabledDir, site), []byte("config"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		drv := NewNginxWithPaths(availableDir, enabledDir)
		if err := drv.Disable(site); err == nil {
			t.Error("expected error when trying to disable non-symlink")
		}
	})

	t.Run("EnableNonexistentSource", func(t *testing.T) {
		availableDir, enabledDir := setupDirs(t)
		drv := NewNginxWithPaths(availableDir, enabledDir)

		if err := drv.Enable("nonexistent.com"); !apperrors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("ListNonexistentDirectory", func(t *testing.T) {
		tempDir := t.TempDir()
		drv := NewNginxWithPaths(filepath.Join(tempDir, "nonexistent"), filepath.Join(tempDir, "sites-enabled"))

		sites, err := drv.List()
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(sites) != 0 {
			t.Errorf("expected 0 sites, got %d", len(sites))
		}
	})

	t.Run("ListSkipsHiddenFilesAndDirs", func(t *testing.T) {
		availableDir, enabledDir := setupDirs(t)
		_ = os.WriteFile(filepath.Join(availableDir, "b.com"), []byte("config"), 0644)
		_ = os.WriteFile(filepath.Join(availableDir, "a.com"), []byte("config"), 0644)
		_ = os.WriteFile(filepath.Join(availableDir, ".hidden"), []byte("config"), 0644)
		_ = os.Mkdir(filepath.Join(availableDir, "snippets"), 0755)

		drv := NewNginxWithPaths(availableDir, enabledDir)
		sites, err := drv.List()
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(sites) != 2 || sites[0].Name != "a.com" || sites[1].Name != "b.com" {
			t.Errorf("unexpected sites %+v", sites)
		}
	})
}
