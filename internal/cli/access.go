package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ksyq12/tsm/internal/output"
)

var (
	accessAdmin bool
	accessPages []string
)

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Evaluate dashboard page access",
	Long: `Answer page access questions the way the HTTP API does, without a
database. Pass the user's grants with --page and --admin.`,
}

var accessCheckCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Check whether a user may open a page",
	Long: `Check whether a user with the given grants may open path.

Examples:
  tsm access check /dns/nginx --page /dns/nginx
  tsm access check /admin/users --admin`,
	Args: cobra.ExactArgs(1),
	RunE: runAccessCheck,
}

var accessLandingCmd = &cobra.Command{
	Use:   "landing",
	Short: "Show where a user lands after login",
	Args:  cobra.NoArgs,
	RunE:  runAccessLanding,
}

func init() {
	for _, c := range []*cobra.Command{accessCheckCmd, accessLandingCmd} {
		c.Flags().BoolVar(&accessAdmin, "admin", false, "Evaluate as an admin")
		c.Flags().StringArrayVar(&accessPages, "page", nil, "Granted page (repeatable, first is the landing page)")
	}
	accessCmd.AddCommand(accessCheckCmd, accessLandingCmd)
	rootCmd.AddCommand(accessCmd)
}

type accessResult struct {
	Path                string `json:"path"`
	HasAccess           bool   `json:"hasAccess"`
	FirstAccessiblePage string `json:"firstAccessiblePage"`
}

func runAccessCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ev, err := newEvaluator(cfg)
	if err != nil {
		return err
	}

	res := accessResult{
		Path:                args[0],
		HasAccess:           ev.HasAccess(args[0], accessAdmin, accessPages),
		FirstAccessiblePage: ev.FirstAccessiblePage(accessAdmin, accessPages),
	}
	if jsonOutput {
		return output.JSON(res)
	}
	output.KeyValue([][2]string{
		{"Path", res.Path},
		{"Match", string(ev.Policy().Match)},
		{"Has access", strconv.FormatBool(res.HasAccess)},
		{"Landing page", res.FirstAccessiblePage},
	})
	return nil
}

func runAccessLanding(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ev, err := newEvaluator(cfg)
	if err != nil {
		return err
	}

	page := ev.FirstAccessiblePage(accessAdmin, accessPages)
	if jsonOutput {
		return output.JSON(map[string]string{"firstAccessiblePage": page})
	}
	output.Print("%s", page)
	return nil
}
