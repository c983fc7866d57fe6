package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ksyq12/tsm/internal/logger"
	"github.com/ksyq12/tsm/internal/pm2"
	"github.com/ksyq12/tsm/internal/server"
	"github.com/ksyq12/tsm/internal/template"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the tsm HTTP API until interrupted.

The config must set auth.jwt_secret. Send SIGINT or SIGTERM to shut down
gracefully.

Examples:
  tsm serve
  tsm serve --listen 0.0.0.0:8001
  tsm --config /etc/tsm/config.yaml serve --log-json`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Override the configured listen address")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, drv, err := loadConfigAndDriver()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Listen = serveListen
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Request logs are info level.
	if !verbose {
		logger.SetLevel(logger.LevelInfo)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	evaluator, err := newEvaluator(cfg)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Deps{
		Config:    cfg,
		Store:     st,
		Driver:    drv,
		PM2:       pm2.NewClient(cfg.PM2.Binary, deps.Executor),
		Evaluator: evaluator,
		Templates: template.NewValidator(cfg.TemplatesPath()),
	})
	if err != nil {
		return err
	}

	logger.InfoFields("Starting tsm", map[string]interface{}{
		"version":   version,
		"listen":    cfg.Listen,
		"database":  cfg.DatabasePath(),
		"templates": cfg.TemplatesPath(),
		"nginx":     cfg.Nginx.Available,
	})
	return srv.Run(ctx)
}
