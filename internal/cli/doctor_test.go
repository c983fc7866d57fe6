package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ksyq12/tsm/internal/config"
	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/executor"
	"github.com/ksyq12/tsm/internal/models"
)

func TestCheckSystemRequirements(t *testing.T) {
	tests := []struct {
		name         string
		exec         *executor.MockExecutor
		checkResults func(*testing.T, []CheckResult)
	}{
		{
			name: "all requirements satisfied",
			exec: &executor.MockExecutor{
				ExecuteFunc: func(name string, args ...string) ([]byte, error) {
					switch name {
					case "nginx":
						return []byte("nginx version: nginx/1.24.0"), nil
					case "pm2":
						return []byte("5.3.1\n"), nil
					}
					return nil, nil
				},
			},
			checkResults: func(t *testing.T, results []CheckResult) {
				if len(results) != 2 {
					t.Fatalf("expected 2 results, got %d", len(results))
				}
				if results[0].Status != statusSuccess || !strings.Contains(results[0].Message, "1.24.0") {
					t.Errorf("unexpected nginx check %+v", results[0])
				}
				if results[1].Status != statusSuccess || !strings.Contains(results[1].Message, "5.3.1") {
					t.Errorf("unexpected pm2 check %+v", results[1])
				}
			},
		},
		{
			name: "pm2 missing",
			exec: &executor.MockExecutor{
				LookPathFunc: func(file string) (string, error) {
					if file == "pm2" {
						return "", fmt.Errorf("not found")
					}
					return "/usr/sbin/" + file, nil
				},
			},
			checkResults: func(t *testing.T, results []CheckResult) {
				if results[1].Status != statusError || !strings.Contains(results[1].Message, "not installed") {
					t.Errorf("expected pm2 error, got %+v", results[1])
				}
			},
		},
		{
			name: "version unreadable",
			exec: &executor.MockExecutor{
				ExecuteFunc: func(name string, args ...string) ([]byte, error) {
					return nil, fmt.Errorf("exit status 1")
				},
			},
			checkResults: func(t *testing.T, results []CheckResult) {
				for _, r := range results {
					if r.Status != statusSuccess || !strings.Contains(r.Message, "unknown") {
						t.Errorf("expected unknown version, got %+v", r)
					}
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			results := checkSystemRequirements(context.Background(), tt.exec, cfg)
			tt.checkResults(t, results)
		})
	}
}

func findCheck(results []CheckResult, substr string) (CheckResult, bool) {
	for _, r := range results {
		if strings.Contains(r.Message, substr) {
			return r, true
		}
	}
	return CheckResult{}, false
}

func TestCheckConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*testing.T, *TestHelper)
		substr string
		status string
	}{
		{
			name:   "missing sites directory",
			substr: "nginx sites directory missing",
			status: statusError,
		},
		{
			name: "sites directory present",
			setup: func(t *testing.T, h *TestHelper) {
				mustMkdir(t, h.Config.Nginx.Available)
			},
			substr: "nginx sites directory exists",
			status: statusSuccess,
		},
		{
			name:   "no templates",
			substr: "No templates",
			status: statusWarning,
		},
		{
			name: "templates installed",
			setup: func(t *testing.T, h *TestHelper) {
				mustMkdir(t, h.Config.TemplatesPath())
				writeFile(t, filepath.Join(h.Config.TemplatesPath(), "proxy.txt"), "server {}")
			},
			substr: "1 template(s)",
			status: statusSuccess,
		},
		{
			name: "invalid for serve",
			setup: func(t *testing.T, h *TestHelper) {
				h.Config.Auth.JWTSecret = ""
			},
			substr: "Config invalid",
			status: statusError,
		},
		{
			name:   "valid for serve",
			substr: "Config valid",
			status: statusSuccess,
		},
		{
			name: "syntax error",
			setup: func(t *testing.T, h *TestHelper) {
				h.MockDriver.TestFunc = func() error { return fmt.Errorf("emerg") }
			},
			substr: "syntax error",
			status: statusError,
		},
		{
			name:   "syntax ok",
			substr: "syntax OK",
			status: statusSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTestHelper(t)
			if tt.setup != nil {
				tt.setup(t, h)
			}
			results := checkConfiguration(context.Background(), h.MockDriver, h.Config)
			got, ok := findCheck(results, tt.substr)
			if !ok {
				t.Fatalf("no check containing %q in %+v", tt.substr, results)
			}
			if got.Status != tt.status {
				t.Errorf("status = %s, want %s (%s)", got.Status, tt.status, got.Message)
			}
		})
	}
}

func TestCheckFiles(t *testing.T) {
	h := NewTestHelper(t)
	ctx := context.Background()
	present := filepath.Join(h.Config.Nginx.Available, "a.example.com")
	missing := filepath.Join(h.Config.Nginx.Available, "b.example.com")
	h.MockDriver.Files[present] = "server {}"

	for _, p := range []string{present, missing} {
		_, err := h.Store.SaveNginxFile(ctx, &models.NginxFile{
			ServerNames:  []string{filepath.Base(p)},
			PortNumber:   80,
			TemplateFile: "proxy.txt",
			FilePath:     p,
		})
		if err != nil {
			t.Fatalf("SaveNginxFile failed: %v", err)
		}
	}

	statuses := checkFiles(ctx, h.MockDriver, h.Store)
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	byPath := map[string]FileStatus{}
	for _, s := range statuses {
		byPath[s.Path] = s
	}
	if byPath[present].Check.Status != statusSuccess {
		t.Errorf("expected present file ok, got %+v", byPath[present])
	}
	if byPath[missing].Check.Status != statusWarning {
		t.Errorf("expected missing file warning, got %+v", byPath[missing])
	}
	if byPath[missing].ServerName != "b.example.com" {
		t.Errorf("unexpected server name %q", byPath[missing].ServerName)
	}
}

func TestRunDoctor(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := NewTestHelper(t)
		mustMkdir(t, h.Config.Nginx.Available)
		mustMkdir(t, h.Config.Nginx.Enabled)
		mustMkdir(t, h.Config.TemplatesPath())
		writeFile(t, filepath.Join(h.Config.TemplatesPath(), "proxy.txt"), "server {}")
		jsonOutput = true

		if err := runDoctor(h.Cmd(), nil); err != nil {
			t.Fatalf("runDoctor failed: %v\n%s", err, h.Out.String())
		}
		var report DoctorReport
		if err := json.Unmarshal(h.Out.Bytes(), &report); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if report.Platform == "" {
			t.Error("expected platform in report")
		}
		if len(report.SystemRequirements) != 2 {
			t.Errorf("expected 2 requirement checks, got %d", len(report.SystemRequirements))
		}
		if _, ok := findCheck(report.Configuration, "Database ready"); !ok {
			t.Errorf("expected database check in %+v", report.Configuration)
		}
	})

	t.Run("problems reported", func(t *testing.T) {
		h := NewTestHelper(t)
		h.Deps.StoreOpener = &MockStoreOpener{Err: fmt.Errorf("locked")}

		err := runDoctor(h.Cmd(), nil)
		if !errors.Is(err, errors.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		out := h.Out.String()
		for _, want := range []string{"Checking system requirements", "Database unavailable", "No recorded nginx files"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})
}

func mustMkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create %s: %v", dir, err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
