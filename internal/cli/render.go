package cli

import (
	"github.com/spf13/cobra"

	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/output"
	"github.com/ksyq12/tsm/internal/template"
)

var (
	renderServerNames []string
	renderIP          string
	renderPort        int
	renderDest        string
	renderOutput      string
)

var renderCmd = &cobra.Command{
	Use:   "render <template>",
	Short: "Render an nginx template into a site file",
	Long: `Render a template from the templates directory into an nginx config
file. The first --server-name names the output file unless --output is set.

Examples:
  tsm render reverse-proxy.txt --server-name app.example.com --ip 127.0.0.1 --port 3000
  tsm render reverse-proxy.txt -s a.example.com -s b.example.com --ip 10.0.0.5 --port 8080 --dest /etc/nginx/conf.d --output a.conf`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringArrayVarP(&renderServerNames, "server-name", "s", nil, "Server name (repeatable, first is primary)")
	renderCmd.Flags().StringVar(&renderIP, "ip", "", "Backend address")
	renderCmd.Flags().IntVarP(&renderPort, "port", "p", 0, "Backend port")
	renderCmd.Flags().StringVarP(&renderDest, "dest", "d", "", "Destination directory (default nginx.available)")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Output file name (default first server name)")
	_ = renderCmd.MarkFlagRequired("server-name")
	_ = renderCmd.MarkFlagRequired("port")

	rootCmd.AddCommand(renderCmd)
}

type renderResult struct {
	Success  bool   `json:"success"`
	Template string `json:"template"`
	Path     string `json:"path"`
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	check := template.NewValidator(cfg.TemplatesPath()).VerifyExists(args[0])
	if !check.Exists {
		return errors.Validation(check.Error)
	}

	dest := renderDest
	if dest == "" {
		dest = cfg.Nginx.Available
	}

	path, err := template.Render(template.Request{
		TemplatePath:   check.FullPath,
		ServerNames:    renderServerNames,
		LocalAddress:   renderIP,
		Port:           renderPort,
		DestinationDir: dest,
		OutputFileName: renderOutput,
	})
	if err != nil {
		return err
	}

	if !jsonOutput {
		output.Info("Template: %s", check.FullPath)
	}
	return outputResult(renderResult{Success: true, Template: args[0], Path: path}, "Wrote %s", path)
}
