package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// TemplateExtension is the extension every nginx template must carry.
const TemplateExtension = ".txt"

// Reason explains why a template could not be verified.
type Reason string

// Verification failure reasons.
const (
	ReasonNone             Reason = ""
	ReasonDirectoryMissing Reason = "directory_missing"
	ReasonWrongExtension   Reason = "wrong_extension"
	ReasonInvalidName      Reason = "invalid_name"
	ReasonFileNotFound     Reason = "file_not_found"
	ReasonNotRegularFile   Reason = "not_a_regular_file"
)

// Verification is the outcome of VerifyExists.
type Verification struct {
	Exists   bool   `json:"exists"`
	Reason   Reason `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
	FullPath string `json:"fullPath,omitempty"`
}

// Validator checks template names against a templates directory. It never
// modifies the filesystem.
type Validator struct {
	dir string
}

// NewValidator creates a Validator for dir.
func NewValidator(dir string) *Validator {
	return &Validator{dir: dir}
}

// Dir returns the templates directory.
func (v *Validator) Dir() string {
	return v.dir
}

func fail(reason Reason, format string, args ...interface{}) Verification {
	return Verification{Exists: false, Reason: reason, Error: fmt.Sprintf(format, args...)}
}

// VerifyExists resolves fileName inside the templates directory and reports
// whether it names a usable template.
func (v *Validator) VerifyExists(fileName string) Verification {
	info, err := os.Stat(v.dir)
	if err != nil || !info.IsDir() {
		return fail(ReasonDirectoryMissing, "Template directory does not exist: %s", v.dir)
	}

	if !strings.HasSuffix(fileName, TemplateExtension) {
		return fail(ReasonWrongExtension, "Template file must have %s extension", TemplateExtension)
	}

	if strings.ContainsAny(fileName, `/\`) || fileName == TemplateExtension {
		return fail(ReasonInvalidName, "Template file name is invalid: %s", fileName)
	}

	fullPath, err := filepath.Abs(filepath.Join(v.dir, fileName))
	if err != nil {
		return fail(ReasonInvalidName, "Template file name is invalid: %s", fileName)
	}

	stat, err := os.Stat(fullPath)
	if err != nil {
		return fail(ReasonFileNotFound, "Template file not found: %s", fileName)
	}
	if !stat.Mode().IsRegular() {
		return fail(ReasonNotRegularFile, "Template path is not a file: %s", fileName)
	}

	return Verification{Exists: true, FullPath: fullPath}
}

// List returns the template file names in the directory, sorted.
func (v *Validator) List() ([]string, error) {
	entries, err := os.ReadDir(v.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), TemplateExtension) && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
