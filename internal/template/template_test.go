package template

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ksyq12/tsm/internal/errors"
)

func writeTemplate(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}
	return path
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRender(t *testing.T) {
	tmplDir := t.TempDir()
	destDir := t.TempDir()

	tmpl := writeTemplate(t, tmplDir, "site.txt",
		"server_name <ReplaceMe: server name>; listen <ReplaceMe: local ip>:<ReplaceMe: port number>;")

	path, err := Render(Request{
		TemplatePath:   tmpl,
		ServerNames:    []string{"a.example.com", "b.example.com"},
		LocalAddress:   "10.0.0.5",
		Port:           8080,
		DestinationDir: destDir,
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if path != filepath.Join(destDir, "a.example.com") {
		t.Errorf("unexpected output path: %s", path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	want := "server_name a.example.com b.example.com; listen 10.0.0.5:8080;"
	if string(got) != want {
		t.Errorf("output = %q, want %q", got, want)
	}

	original, _ := os.ReadFile(tmpl)
	if !strings.Contains(string(original), PlaceholderServerName) {
		t.Error("template file must not be modified")
	}
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "no placeholders",
			content: "server { listen 80; }\n",
			want:    "server { listen 80; }\n",
		},
		{
			name:    "repeated placeholders",
			content: "<ReplaceMe: port number> <ReplaceMe: port number> <ReplaceMe: local ip>",
			want:    "3000 3000 127.0.0.1",
		},
		{
			name:    "only server name",
			content: "server_name <ReplaceMe: server name>;",
			want:    "server_name x.test;",
		},
		{
			name:    "case sensitive tokens are not matched",
			content: "<replaceme: local ip> <ReplaceMe: Local IP>",
			want:    "<replaceme: local ip> <ReplaceMe: Local IP>",
		},
		{
			name:    "unknown placeholder left alone",
			content: "<ReplaceMe: ssl cert> <ReplaceMe: local ip>",
			want:    "<ReplaceMe: ssl cert> 127.0.0.1",
		},
		{
			name:    "surrounding bytes preserved",
			content: "\t# $host\r\n<ReplaceMe: server name>é\n",
			want:    "\t# $host\r\nx.testé\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Substitute(tt.content, []string{"x.test"}, "127.0.0.1", 3000)
			if got != tt.want {
				t.Errorf("Substitute() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubstituteDoesNotRescanValues(t *testing.T) {
	got := Substitute("<ReplaceMe: server name>", []string{"<ReplaceMe: local ip>"}, "10.0.0.1", 80)
	if got != "<ReplaceMe: local ip>" {
		t.Errorf("substituted value was rescanned: %q", got)
	}
}

func TestRenderOutputFileName(t *testing.T) {
	tmplDir := t.TempDir()
	destDir := t.TempDir()
	tmpl := writeTemplate(t, tmplDir, "site.txt", "x")

	path, err := Render(Request{
		TemplatePath:   tmpl,
		ServerNames:    []string{"a.example.com"},
		DestinationDir: destDir,
		OutputFileName: "custom.conf",
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if filepath.Base(path) != "custom.conf" {
		t.Errorf("expected custom.conf, got %s", path)
	}
}

func TestRenderOverwritesExisting(t *testing.T) {
	tmplDir := t.TempDir()
	destDir := t.TempDir()
	tmpl := writeTemplate(t, tmplDir, "site.txt", "new <ReplaceMe: port number>")
	existing := writeTemplate(t, destDir, "a.example.com", "old content that is longer")

	if _, err := Render(Request{
		TemplatePath:   tmpl,
		ServerNames:    []string{"a.example.com"},
		Port:           9000,
		DestinationDir: destDir,
	}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got, _ := os.ReadFile(existing)
	if string(got) != "new 9000" {
		t.Errorf("existing file not overwritten: %q", got)
	}
	if entries := dirEntries(t, destDir); len(entries) != 1 {
		t.Errorf("expected a single file in destination, got %v", entries)
	}
}

func TestRenderFileMode(t *testing.T) {
	tmplDir := t.TempDir()
	destDir := t.TempDir()
	tmpl := writeTemplate(t, tmplDir, "site.txt", "x")

	path, err := Render(Request{TemplatePath: tmpl, ServerNames: []string{"new.example.com"}, DestinationDir: destDir})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("new file mode = %v, want 0644", info.Mode().Perm())
	}

	private := writeTemplate(t, destDir, "private.example.com", "old")
	if err := os.Chmod(private, 0600); err != nil {
		t.Fatalf("chmod failed: %v", err)
	}
	if _, err := Render(Request{TemplatePath: tmpl, ServerNames: []string{"private.example.com"}, DestinationDir: destDir}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	info, err = os.Stat(private)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("existing file mode = %v, want 0600 kept", info.Mode().Perm())
	}
}

func TestRenderErrors(t *testing.T) {
	tmplDir := t.TempDir()
	good := writeTemplate(t, tmplDir, "site.txt", "server_name <ReplaceMe: server name>;")
	binary := filepath.Join(tmplDir, "binary.txt")
	if err := os.WriteFile(binary, []byte{0xff, 0xfe, 0x00, 0x80}, 0644); err != nil {
		t.Fatalf("failed to write binary template: %v", err)
	}

	tests := []struct {
		name  string
		req   func(dest string) Request
		code  errors.ErrorCode
		setup func(t *testing.T, dest string)
	}{
		{
			name: "missing template",
			req: func(dest string) Request {
				return Request{TemplatePath: filepath.Join(tmplDir, "nope.txt"), ServerNames: []string{"a"}, DestinationDir: dest}
			},
			code: errors.ErrCodeRead,
		},
		{
			name: "template is not text",
			req: func(dest string) Request {
				return Request{TemplatePath: binary, ServerNames: []string{"a"}, DestinationDir: dest}
			},
			code: errors.ErrCodeRead,
		},
		{
			name: "template path is a directory",
			req: func(dest string) Request {
				return Request{TemplatePath: tmplDir, ServerNames: []string{"a"}, DestinationDir: dest}
			},
			code: errors.ErrCodeRead,
		},
		{
			name: "empty server names",
			req: func(dest string) Request {
				return Request{TemplatePath: good, ServerNames: nil, DestinationDir: dest}
			},
			code: errors.ErrCodeInvalidRequest,
		},
		{
			name: "output name with separator",
			req: func(dest string) Request {
				return Request{TemplatePath: good, ServerNames: []string{"a"}, DestinationDir: dest, OutputFileName: "../escape"}
			},
			code: errors.ErrCodeInvalidRequest,
		},
		{
			name: "primary name is dot-dot",
			req: func(dest string) Request {
				return Request{TemplatePath: good, ServerNames: []string{".."}, DestinationDir: dest}
			},
			code: errors.ErrCodeInvalidRequest,
		},
		{
			name: "output name starts with a dot",
			req: func(dest string) Request {
				return Request{TemplatePath: good, ServerNames: []string{"a"}, DestinationDir: dest, OutputFileName: ".hidden.example.com"}
			},
			code: errors.ErrCodeInvalidRequest,
		},
		{
			name: "primary name starts with a dot",
			req: func(dest string) Request {
				return Request{TemplatePath: good, ServerNames: []string{".hidden.example.com"}, DestinationDir: dest}
			},
			code: errors.ErrCodeInvalidRequest,
		},
		{
			name: "destination missing",
			req: func(dest string) Request {
				return Request{TemplatePath: good, ServerNames: []string{"a"}, DestinationDir: filepath.Join(dest, "missing")}
			},
			code: errors.ErrCodeDestinationMissing,
		},
		{
			name: "destination is a file",
			req: func(dest string) Request {
				return Request{TemplatePath: good, ServerNames: []string{"a"}, DestinationDir: filepath.Join(dest, "plain")}
			},
			setup: func(t *testing.T, dest string) {
				writeTemplate(t, dest, "plain", "x")
			},
			code: errors.ErrCodeDestinationMissing,
		},
		{
			name: "output path is a directory",
			req: func(dest string) Request {
				return Request{TemplatePath: good, ServerNames: []string{"taken"}, DestinationDir: dest}
			},
			setup: func(t *testing.T, dest string) {
				if err := os.Mkdir(filepath.Join(dest, "taken"), 0755); err != nil {
					t.Fatalf("failed to create dir: %v", err)
				}
			},
			code: errors.ErrCodeWrite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := t.TempDir()
			if tt.setup != nil {
				tt.setup(t, dest)
			}
			before := dirEntries(t, dest)

			path, err := Render(tt.req(dest))
			if err == nil {
				t.Fatalf("expected error, got path %s", path)
			}
			if path != "" {
				t.Errorf("expected empty path on failure, got %s", path)
			}

			var appErr *errors.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *errors.AppError, got %T", err)
			}
			if appErr.Code != tt.code {
				t.Errorf("code = %s, want %s (%v)", appErr.Code, tt.code, err)
			}

			after := dirEntries(t, dest)
			if len(after) != len(before) {
				t.Errorf("failed render must not write: before %v, after %v", before, after)
			}
		})
	}
}

func TestValidator(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "proxy.txt", "x")
	writeTemplate(t, dir, "notes.md", "x")
	if err := os.Mkdir(filepath.Join(dir, "folder.txt"), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	v := NewValidator(dir)

	tests := []struct {
		name   string
		file   string
		reason Reason
	}{
		{"valid template", "proxy.txt", ReasonNone},
		{"wrong extension", "notes.md", ReasonWrongExtension},
		{"no extension", "proxy", ReasonWrongExtension},
		{"missing file", "missing.txt", ReasonFileNotFound},
		{"directory", "folder.txt", ReasonNotRegularFile},
		{"traversal", "../proxy.txt", ReasonInvalidName},
		{"bare extension", ".txt", ReasonInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.VerifyExists(tt.file)
			if got.Reason != tt.reason {
				t.Errorf("reason = %q, want %q (%s)", got.Reason, tt.reason, got.Error)
			}
			if got.Exists != (tt.reason == ReasonNone) {
				t.Errorf("exists = %v", got.Exists)
			}
			if got.Exists {
				if !filepath.IsAbs(got.FullPath) || filepath.Base(got.FullPath) != tt.file {
					t.Errorf("unexpected full path %q", got.FullPath)
				}
			} else if got.Error == "" {
				t.Error("failure must carry a message")
			}
		})
	}
}

func TestValidatorMissingDirectory(t *testing.T) {
	v := NewValidator(filepath.Join(t.TempDir(), "absent"))

	got := v.VerifyExists("proxy.txt")
	if got.Exists || got.Reason != ReasonDirectoryMissing {
		t.Errorf("expected directory_missing, got %+v", got)
	}

	names, err := v.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no templates, got %v", names)
	}
}

func TestValidatorList(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "b.txt", "x")
	writeTemplate(t, dir, "a.txt", "x")
	writeTemplate(t, dir, ".hidden.txt", "x")
	writeTemplate(t, dir, "readme.md", "x")

	names, err := NewValidator(dir).List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if strings.Join(names, ",") != "a.txt,b.txt" {
		t.Errorf("unexpected templates: %v", names)
	}
}

func TestInstallDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "templates", "nginxConfigFiles")

	written, err := InstallDefaults(dir)
	if err != nil {
		t.Fatalf("InstallDefaults failed: %v", err)
	}
	if len(written) != len(Defaults()) || len(written) == 0 {
		t.Fatalf("expected all defaults written, got %v", written)
	}

	for _, name := range written {
		check := NewValidator(dir).VerifyExists(name)
		if !check.Exists {
			t.Errorf("installed template %s not valid: %s", name, check.Error)
		}
		data, _ := os.ReadFile(check.FullPath)
		for _, token := range []string{PlaceholderServerName, PlaceholderLocalIP, PlaceholderPort} {
			if !strings.Contains(string(data), token) {
				t.Errorf("%s missing token %s", name, token)
			}
		}
	}

	if info, err := os.Stat(filepath.Join(dir, written[0])); err != nil || info.Mode().Perm() != 0644 {
		t.Errorf("installed template should be 0644: %v %v", info, err)
	}

	custom := filepath.Join(dir, written[0])
	if err := os.WriteFile(custom, []byte("edited"), 0644); err != nil {
		t.Fatalf("failed to edit template: %v", err)
	}

	again, err := InstallDefaults(dir)
	if err != nil {
		t.Fatalf("second InstallDefaults failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("existing templates must be skipped, wrote %v", again)
	}
	data, _ := os.ReadFile(custom)
	if string(data) != "edited" {
		t.Error("existing template was overwritten")
	}
}
