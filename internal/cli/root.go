package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ksyq12/tsm/internal/logger"
	"github.com/ksyq12/tsm/internal/output"
)

var (
	configPath string
	jsonOutput bool
	verbose    bool
	logJSON    bool
	version    = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tsm",
	Short: "The Server Manager",
	Long: `tsm manages nginx site files, pm2 processes and dashboard users on a
single host.

Run "tsm serve" to start the HTTP API, or use the subcommands to render
nginx templates, manage users and machines, and inspect nginx and pm2.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(verbose)
		logger.SetJSON(logJSON)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.Error("%v", err)
		os.Exit(1)
	}
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default $TSM_CONFIG or ~/.config/tsm/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging for debugging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON lines")
}
