package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ksyq12/tsm/internal/config"
	"github.com/ksyq12/tsm/internal/driver"
	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/executor"
	"github.com/ksyq12/tsm/internal/output"
	"github.com/ksyq12/tsm/internal/platform"
	"github.com/ksyq12/tsm/internal/store"
	"github.com/ksyq12/tsm/internal/template"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system status and diagnose issues",
	Long: `Run diagnostic checks on the system and tsm configuration.

Checks:
  - nginx and pm2 installation
  - Config file, JWT secret and nginx directories
  - Templates directory
  - Database
  - nginx config syntax
  - Recorded nginx files still present on disk

Examples:
  tsm doctor
  tsm doctor --json`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// Check statuses
const (
	statusSuccess = "success"
	statusWarning = "warning"
	statusError   = "error"
)

// CheckResult represents a single diagnostic check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// FileStatus reports one recorded nginx file
type FileStatus struct {
	Path       string      `json:"path"`
	ServerName string      `json:"serverName"`
	Check      CheckResult `json:"check"`
}

// DoctorReport contains all diagnostic results
type DoctorReport struct {
	Platform           string        `json:"platform"`
	SystemRequirements []CheckResult `json:"system_requirements"`
	Configuration      []CheckResult `json:"configuration"`
	Files              []FileStatus  `json:"files"`
}

func (r *DoctorReport) failed() bool {
	all := append(append([]CheckResult(nil), r.SystemRequirements...), r.Configuration...)
	for _, f := range r.Files {
		all = append(all, f.Check)
	}
	for _, c := range all {
		if c.Status == statusError {
			return true
		}
	}
	return false
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, drv, err := loadConfigAndDriver()
	if err != nil {
		return err
	}

	report := &DoctorReport{Platform: platform.Platform()}
	report.SystemRequirements = checkSystemRequirements(ctx, deps.Executor, cfg)
	report.Configuration = checkConfiguration(ctx, drv, cfg)

	st, err := openStore(ctx, cfg)
	if err != nil {
		report.Configuration = append(report.Configuration, CheckResult{
			Status:  statusError,
			Message: fmt.Sprintf("Database unavailable (%v)", err),
		})
	} else {
		defer st.Close()
		report.Configuration = append(report.Configuration, checkDatabase(ctx, st, cfg))
		report.Files = checkFiles(ctx, drv, st)
	}

	if jsonOutput {
		if err := output.JSON(report); err != nil {
			return err
		}
	} else {
		displayDoctorResults(report)
	}
	if report.failed() {
		return errors.New(errors.ErrCodeValidation, "doctor found problems")
	}
	return nil
}

var versionPatterns = map[string]*regexp.Regexp{
	"nginx": regexp.MustCompile(`nginx/(\d+\.\d+\.\d+)`),
	"pm2":   regexp.MustCompile(`(\d+\.\d+\.\d+)`),
}

func checkSystemRequirements(ctx context.Context, exec executor.CommandExecutor, cfg *config.Config) []CheckResult {
	tools := []struct {
		name        string
		binary      string
		versionFlag string
	}{
		{"nginx", "nginx", "-v"},
		{"pm2", cfg.PM2.Binary, "-v"},
	}

	results := []CheckResult{}
	for _, tool := range tools {
		if _, err := exec.LookPath(tool.binary); err != nil {
			results = append(results, CheckResult{
				Status:  statusError,
				Message: fmt.Sprintf("%s not installed", tool.name),
			})
			continue
		}

		version := "unknown"
		if out, err := exec.Execute(ctx, tool.binary, tool.versionFlag); err == nil {
			if matches := versionPatterns[tool.name].FindStringSubmatch(string(out)); len(matches) >= 2 {
				version = matches[1]
			}
		}
		results = append(results, CheckResult{
			Status:  statusSuccess,
			Message: fmt.Sprintf("%s installed (%s)", tool.name, version),
		})
	}
	return results
}

func checkConfiguration(ctx context.Context, drv driver.Driver, cfg *config.Config) []CheckResult {
	results := []CheckResult{}

	if path := cfg.Path(); path != "" {
		if _, err := os.Stat(path); err == nil {
			displayPath := strings.Replace(path, os.Getenv("HOME"), "~", 1)
			results = append(results, CheckResult{statusSuccess, fmt.Sprintf("Config file exists (%s)", displayPath)})
		} else {
			results = append(results, CheckResult{statusWarning, "Config file not found, using defaults"})
		}
	}

	if err := cfg.Validate(); err != nil {
		results = append(results, CheckResult{statusError, fmt.Sprintf("Config invalid for serve: %v", err)})
	} else {
		results = append(results, CheckResult{statusSuccess, "Config valid for serve"})
	}

	paths := drv.Paths()
	results = append(results, checkDir("nginx sites directory", paths.Available, statusError))
	if paths.Split() {
		results = append(results, checkDir("nginx enabled directory", paths.Enabled, statusError))
	}

	names, err := template.NewValidator(cfg.TemplatesPath()).List()
	switch {
	case err != nil:
		results = append(results, CheckResult{statusError, fmt.Sprintf("Templates unreadable: %v", err)})
	case len(names) == 0:
		results = append(results, CheckResult{statusWarning, fmt.Sprintf("No templates in %s (run 'tsm templates install')", cfg.TemplatesPath())})
	default:
		results = append(results, CheckResult{statusSuccess, fmt.Sprintf("%d template(s) in %s", len(names), cfg.TemplatesPath())})
	}

	if err := drv.Test(ctx); err == nil {
		results = append(results, CheckResult{statusSuccess, "nginx config syntax OK"})
	} else {
		results = append(results, CheckResult{statusError, "nginx config syntax error"})
	}

	return results
}

func checkDir(label, dir, missingStatus string) CheckResult {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return CheckResult{missingStatus, fmt.Sprintf("%s missing (%s)", label, dir)}
	}
	return CheckResult{statusSuccess, fmt.Sprintf("%s exists (%s)", label, dir)}
}

func checkDatabase(ctx context.Context, st *store.Store, cfg *config.Config) CheckResult {
	if err := st.Ping(ctx); err != nil {
		return CheckResult{statusError, fmt.Sprintf("Database unreachable: %v", err)}
	}
	n, err := st.CountUsers(ctx)
	if err != nil {
		return CheckResult{statusError, fmt.Sprintf("Database unreadable: %v", err)}
	}
	if n == 0 {
		return CheckResult{statusWarning, fmt.Sprintf("Database ready (%s), no users yet", filepath.Base(cfg.DatabasePath()))}
	}
	return CheckResult{statusSuccess, fmt.Sprintf("Database ready (%d users)", n)}
}

func checkFiles(ctx context.Context, drv driver.Driver, st *store.Store) []FileStatus {
	files, err := st.ListNginxFiles(ctx)
	if err != nil {
		return []FileStatus{{Check: CheckResult{statusError, fmt.Sprintf("Could not list recorded files: %v", err)}}}
	}

	statuses := make([]FileStatus, 0, len(files))
	for _, f := range files {
		fs := FileStatus{Path: f.FilePath, ServerName: f.PrimaryServerName()}
		if _, err := drv.ReadPath(f.FilePath); err != nil {
			fs.Check = CheckResult{statusWarning, "file missing on disk"}
		} else {
			fs.Check = CheckResult{statusSuccess, "present"}
		}
		statuses = append(statuses, fs)
	}
	return statuses
}

func displayDoctorResults(report *DoctorReport) {
	output.Print("Platform: %s", report.Platform)
	output.Print("Checking system requirements...")
	for _, check := range report.SystemRequirements {
		displayCheck(check)
	}
	output.Print("")

	output.Print("Checking configuration...")
	for _, check := range report.Configuration {
		displayCheck(check)
	}
	output.Print("")

	if len(report.Files) == 0 {
		output.Print("No recorded nginx files")
		return
	}
	output.Print("Checking recorded nginx files...")
	for _, f := range report.Files {
		displayCheck(CheckResult{f.Check.Status, fmt.Sprintf("%s - %s", f.Path, f.Check.Message)})
	}
}

func displayCheck(check CheckResult) {
	switch check.Status {
	case statusSuccess:
		output.Success("%s", check.Message)
	case statusWarning:
		output.Warn("%s", check.Message)
	case statusError:
		output.Error("%s", check.Message)
	}
}
