package template

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/natefinch/atomic"

	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/logger"
)

// Placeholder tokens recognised in nginx templates. Matching is literal and
// case-sensitive.
const (
	PlaceholderServerName = "<ReplaceMe: server name>"
	PlaceholderLocalIP    = "<ReplaceMe: local ip>"
	PlaceholderPort       = "<ReplaceMe: port number>"
)

// Request describes one render of a template into a config file.
type Request struct {
	TemplatePath   string
	ServerNames    []string // first entry is the primary name
	LocalAddress   string
	Port           int
	DestinationDir string
	OutputFileName string // defaults to ServerNames[0]
}

// Substitute replaces every placeholder in content. Each token is replaced
// in the original text only, so a substituted value that happens to contain
// another token is left as written.
func Substitute(content string, serverNames []string, localAddress string, port int) string {
	r := strings.NewReplacer(
		PlaceholderServerName, strings.Join(serverNames, " "),
		PlaceholderLocalIP, localAddress,
		PlaceholderPort, strconv.Itoa(port),
	)
	return r.Replace(content)
}

// Render reads req.TemplatePath, substitutes the placeholders and writes the
// result to DestinationDir/OutputFileName, replacing any existing file. It
// returns the written path.
//
// Errors are always *errors.AppError with one of ErrCodeRead,
// ErrCodeInvalidRequest, ErrCodeDestinationMissing, ErrCodeWrite or
// ErrCodeUnexpected. Nothing is written unless every earlier step succeeded.
func Render(req Request) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			path = ""
			err = &errors.AppError{
				Code:    errors.ErrCodeUnexpected,
				Message: "unexpected error",
				Err:     fmt.Errorf("%v", r),
			}
		}
	}()

	raw, err := os.ReadFile(req.TemplatePath)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeRead, "failed to read template file", err)
	}
	if !utf8.Valid(raw) {
		return "", errors.Wrap(errors.ErrCodeRead, "failed to read template file",
			fmt.Errorf("%s is not valid UTF-8 text", req.TemplatePath))
	}

	if len(req.ServerNames) == 0 {
		return "", errors.New(errors.ErrCodeInvalidRequest, "at least one server name is required")
	}

	content := Substitute(string(raw), req.ServerNames, req.LocalAddress, req.Port)

	fileName := req.OutputFileName
	if fileName == "" {
		fileName = req.ServerNames[0]
	}
	if err := ValidateFileName(fileName); err != nil {
		return "", err
	}
	outputPath := filepath.Join(req.DestinationDir, fileName)

	info, err := os.Stat(req.DestinationDir)
	if err != nil || !info.IsDir() {
		return "", &errors.AppError{
			Code:     errors.ErrCodeDestinationMissing,
			Message:  "target directory does not exist",
			Resource: req.DestinationDir,
		}
	}

	if err := writeFile(outputPath, []byte(content)); err != nil {
		return "", errors.Wrap(errors.ErrCodeWrite, "failed to write nginx config file", err)
	}

	logger.DebugFields("Rendered nginx config", map[string]interface{}{
		"template": req.TemplatePath,
		"output":   outputPath,
		"names":    len(req.ServerNames),
	})

	return outputPath, nil
}

// ValidateFileName keeps the output inside the destination directory and
// visible to the nginx driver, which skips dotfiles.
func ValidateFileName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return errors.New(errors.ErrCodeInvalidRequest, fmt.Sprintf("invalid output file name %q", name))
	case strings.ContainsAny(name, `/\`):
		return errors.New(errors.ErrCodeInvalidRequest, fmt.Sprintf("output file name %q must not contain a path separator", name))
	case strings.HasPrefix(name, "."):
		return errors.New(errors.ErrCodeInvalidRequest, fmt.Sprintf("output file name %q must not start with a dot", name))
	}
	return nil
}

// writeFile replaces path atomically. New files get mode 0644 so nginx
// workers can read them; existing files keep their mode.
func writeFile(path string, data []byte) error {
	_, statErr := os.Stat(path)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return err
	}
	if os.IsNotExist(statErr) {
		return os.Chmod(path, 0644)
	}
	return nil
}
