package template

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

//go:embed defaults/*.txt
var defaultTemplates embed.FS

// Defaults returns the names of the bundled templates.
func Defaults() []string {
	entries, err := fs.ReadDir(defaultTemplates, "defaults")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// InstallDefaults copies the bundled templates into dir, creating dir when
// needed. Existing files are left untouched. It returns the names written.
func InstallDefaults(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create templates directory: %w", err)
	}

	var written []string
	for _, name := range Defaults() {
		target := filepath.Join(dir, name)
		if _, err := os.Stat(target); err == nil {
			continue
		}

		data, err := defaultTemplates.ReadFile("defaults/" + name)
		if err != nil {
			return written, fmt.Errorf("failed to read bundled template %s: %w", name, err)
		}
		if err := writeFile(target, data); err != nil {
			return written, fmt.Errorf("failed to install template %s: %w", name, err)
		}
		written = append(written, name)
	}
	return written, nil
}
