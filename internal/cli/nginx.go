package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ksyq12/tsm/internal/driver"
	"github.com/ksyq12/tsm/internal/output"
)

var noReload bool

var nginxCmd = &cobra.Command{
	Use:   "nginx",
	Short: "Inspect and control nginx sites",
}

var nginxListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List site files",
	Long: `List the files in the nginx sites directory, whether each is enabled,
and whether tsm has a record of generating it.`,
	Args: cobra.NoArgs,
	RunE: runNginxList,
}

var nginxShowCmd = &cobra.Command{
	Use:   "show <site>",
	Short: "Print a site file",
	Args:  cobra.ExactArgs(1),
	RunE:  runNginxShow,
}

var nginxTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Run nginx -t",
	Args:  cobra.NoArgs,
	RunE:  runNginxTest,
}

var nginxReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Test the configuration and reload nginx",
	Args:  cobra.NoArgs,
	RunE:  runNginxReload,
}

var nginxEnableCmd = &cobra.Command{
	Use:   "enable <site>",
	Short: "Enable a site",
	Long: `Enable a site by linking it into the enabled directory, then test and
reload nginx. The link is removed again if the test fails.

Examples:
  sudo tsm nginx enable app.example.com`,
	Args: cobra.ExactArgs(1),
	RunE: runNginxEnable,
}

var nginxDisableCmd = &cobra.Command{
	Use:   "disable <site>",
	Short: "Disable a site",
	Args:  cobra.ExactArgs(1),
	RunE:  runNginxDisable,
}

func init() {
	for _, c := range []*cobra.Command{nginxEnableCmd, nginxDisableCmd} {
		c.Flags().BoolVar(&noReload, "no-reload", false, "Don't reload nginx")
	}
	nginxCmd.AddCommand(nginxListCmd, nginxShowCmd, nginxTestCmd, nginxReloadCmd, nginxEnableCmd, nginxDisableCmd)
	rootCmd.AddCommand(nginxCmd)
}

type siteListItem struct {
	driver.Site
	Recorded bool `json:"recorded"`
}

func runNginxList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, drv, err := loadConfigAndDriver()
	if err != nil {
		return err
	}

	sites, err := drv.List()
	if err != nil {
		return err
	}

	recorded := map[string]bool{}
	if st, err := openStore(ctx, cfg); err != nil {
		output.Warn("Could not open database: %v", err)
	} else {
		defer st.Close()
		files, err := st.ListNginxFiles(ctx)
		if err != nil {
			output.Warn("Could not read recorded files: %v", err)
		}
		for _, f := range files {
			recorded[f.FilePath] = true
		}
	}

	items := make([]siteListItem, 0, len(sites))
	for _, s := range sites {
		items = append(items, siteListItem{Site: s, Recorded: recorded[s.Path]})
	}

	if jsonOutput {
		return output.JSON(items)
	}
	if len(items) == 0 {
		output.Info("No sites in %s", drv.Paths().Available)
		return nil
	}

	rows := make([][]string, 0, len(items))
	for _, it := range items {
		status := "disabled"
		if it.Enabled {
			status = "enabled"
		}
		rows = append(rows, []string{it.Name, status, strconv.FormatBool(it.Recorded)})
	}
	output.Table([]string{"SITE", "STATUS", "RECORDED"}, rows)
	return nil
}

func runNginxShow(cmd *cobra.Command, args []string) error {
	_, drv, err := loadConfigAndDriver()
	if err != nil {
		return err
	}

	content, err := drv.Read(args[0])
	if err != nil {
		return err
	}
	enabled, _ := drv.IsEnabled(args[0])

	if jsonOutput {
		return output.JSON(map[string]interface{}{
			"name":    args[0],
			"enabled": enabled,
			"content": content,
		})
	}
	output.Print("%s", content)
	return nil
}

func runNginxTest(cmd *cobra.Command, args []string) error {
	_, drv, err := loadConfigAndDriver()
	if err != nil {
		return err
	}
	if err := drv.Test(cmd.Context()); err != nil {
		return err
	}
	return outputResult(map[string]interface{}{"success": true}, "nginx configuration is valid")
}

func runNginxReload(cmd *cobra.Command, args []string) error {
	if err := deps.RootChecker.RequireRoot(); err != nil {
		return err
	}
	_, drv, err := loadConfigAndDriver()
	if err != nil {
		return err
	}
	if err := testAndReload(cmd.Context(), drv, true, nil); err != nil {
		return err
	}
	return outputResult(map[string]interface{}{"success": true, "reloaded": true}, "nginx reloaded")
}

func runNginxEnable(cmd *cobra.Command, args []string) error {
	site := args[0]
	if err := driver.ValidateName(site); err != nil {
		return err
	}
	if err := deps.RootChecker.RequireRoot(); err != nil {
		return err
	}

	_, drv, err := loadConfigAndDriver()
	if err != nil {
		return err
	}

	output.Info("Enabling %s...", site)
	if err := drv.Enable(site); err != nil {
		return err
	}

	rollback := func() error {
		if !drv.Paths().Split() {
			return nil
		}
		return drv.Disable(site)
	}
	if err := testAndReload(cmd.Context(), drv, !noReload, rollback); err != nil {
		return err
	}

	return outputResult(
		map[string]interface{}{
			"success": true,
			"site":    site,
			"enabled": true,
		},
		"Site %s enabled", site,
	)
}

func runNginxDisable(cmd *cobra.Command, args []string) error {
	site := args[0]
	if err := driver.ValidateName(site); err != nil {
		return err
	}
	if err := deps.RootChecker.RequireRoot(); err != nil {
		return err
	}

	_, drv, err := loadConfigAndDriver()
	if err != nil {
		return err
	}

	output.Info("Disabling %s...", site)
	if err := drv.Disable(site); err != nil {
		return err
	}

	rollback := func() error {
		return drv.Enable(site)
	}
	if err := testAndReload(cmd.Context(), drv, !noReload, rollback); err != nil {
		return err
	}

	return outputResult(
		map[string]interface{}{
			"success": true,
			"site":    site,
			"enabled": false,
		},
		"Site %s disabled", site,
	)
}
