package cli

import (
	"github.com/spf13/cobra"

	"github.com/ksyq12/tsm/internal/output"
	"github.com/ksyq12/tsm/internal/template"
)

var templatesCmd = &cobra.Command{
	Use:     "templates",
	Aliases: []string{"tpl"},
	Short:   "Manage nginx templates",
}

var templatesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List templates in the templates directory",
	Args:    cobra.NoArgs,
	RunE:    runTemplatesList,
}

var templatesInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the bundled templates",
	Long: `Copy the templates bundled with tsm into the templates directory.
Existing files are never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runTemplatesInstall,
}

func init() {
	templatesCmd.AddCommand(templatesListCmd, templatesInstallCmd)
	rootCmd.AddCommand(templatesCmd)
}

func runTemplatesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	v := template.NewValidator(cfg.TemplatesPath())
	names, err := v.List()
	if err != nil {
		return err
	}

	if jsonOutput {
		return output.JSON(map[string]interface{}{
			"directory": v.Dir(),
			"templates": names,
		})
	}
	if len(names) == 0 {
		output.Info("No templates in %s (run 'tsm templates install')", v.Dir())
		return nil
	}
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name})
	}
	output.Table([]string{"TEMPLATE"}, rows)
	return nil
}

func runTemplatesInstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir := cfg.TemplatesPath()
	written, err := template.InstallDefaults(dir)
	if err != nil {
		return err
	}
	if written == nil {
		written = []string{}
	}

	return outputResult(
		map[string]interface{}{
			"directory": dir,
			"installed": written,
		},
		"Installed %d template(s) into %s", len(written), dir,
	)
}
