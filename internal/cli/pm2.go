package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ksyq12/tsm/internal/output"
	"github.com/ksyq12/tsm/internal/pm2"
)

var pm2Cmd = &cobra.Command{
	Use:   "pm2",
	Short: "Inspect pm2 processes",
}

var pm2ListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List processes managed by pm2",
	Args:    cobra.NoArgs,
	RunE:    runPM2List,
}

func init() {
	pm2Cmd.AddCommand(pm2ListCmd)
	for _, a := range []pm2.Action{pm2.ActionStart, pm2.ActionStop, pm2.ActionRestart, pm2.ActionReload} {
		pm2Cmd.AddCommand(&cobra.Command{
			Use:   string(a) + " <app>",
			Short: "Run pm2 " + string(a) + " on an app",
			Args:  cobra.ExactArgs(1),
			RunE:  runPM2Action,
		})
	}
	rootCmd.AddCommand(pm2Cmd)
}

func runPM2List(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	apps, err := pm2.NewClient(cfg.PM2.Binary, deps.Executor).List(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		return output.JSON(map[string]interface{}{"managedAppsArray": apps})
	}
	if len(apps) == 0 {
		output.Info("pm2 is not managing any processes")
		return nil
	}

	rows := make([][]string, 0, len(apps))
	for _, a := range apps {
		port := "-"
		if a.Port != nil {
			port = strconv.Itoa(*a.Port)
		}
		uptime := "-"
		if a.Uptime > 0 {
			uptime = (time.Duration(a.Uptime) * time.Millisecond).Round(time.Second).String()
		}
		rows = append(rows, []string{
			strconv.Itoa(a.PmID),
			a.Name,
			a.Status,
			fmt.Sprintf("%.1f%%", a.CPU),
			humanize.IBytes(uint64(a.Memory)),
			uptime,
			strconv.Itoa(a.Restarts),
			port,
		})
	}
	output.Table([]string{"ID", "NAME", "STATUS", "CPU", "MEMORY", "UPTIME", "RESTARTS", "PORT"}, rows)
	return nil
}

func runPM2Action(cmd *cobra.Command, args []string) error {
	action, err := pm2.ParseAction(cmd.Name())
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := pm2.NewClient(cfg.PM2.Binary, deps.Executor).Action(cmd.Context(), args[0], action); err != nil {
		return err
	}
	return outputResult(
		map[string]interface{}{"success": true, "app": args[0], "action": action},
		"pm2 %s %s done", action, args[0],
	)
}
