package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ksyq12/tsm/internal/models"
	"github.com/ksyq12/tsm/internal/output"
)

var (
	machineURL   string
	machineIP    string
	machinePaths []string
	machineForce bool
)

var machineCmd = &cobra.Command{
	Use:     "machine",
	Aliases: []string{"machines"},
	Short:   "Manage machines",
}

var machineAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a machine",
	Long: `Register a machine tsm manages nginx files for. Each --nginx-path is a
directory config files for this machine may be saved to.

Examples:
  tsm machine add web-1 --ip 10.0.0.5 --nginx-path /etc/nginx/sites-available --nginx-path /etc/nginx/conf.d`,
	Args: cobra.ExactArgs(1),
	RunE: runMachineAdd,
}

var machineListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List machines",
	Args:    cobra.NoArgs,
	RunE:    runMachineList,
}

var machineRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a machine",
	Long: `Remove a machine. Machines with recorded nginx config files cannot be
removed until those files are deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: runMachineRemove,
}

func init() {
	machineAddCmd.Flags().StringVar(&machineURL, "url", "", "URL of the machine's tsm API on the internal network")
	machineAddCmd.Flags().StringVar(&machineIP, "ip", "", "Local IP address")
	machineAddCmd.Flags().StringArrayVar(&machinePaths, "nginx-path", nil, "Allowed nginx storage directory (repeatable)")
	machineRemoveCmd.Flags().BoolVarP(&machineForce, "force", "f", false, "Remove without confirmation")

	machineCmd.AddCommand(machineAddCmd, machineListCmd, machineRemoveCmd)
	rootCmd.AddCommand(machineCmd)
}

func runMachineAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	m, err := st.CreateMachine(ctx, &models.Machine{
		MachineName:             strings.TrimSpace(args[0]),
		URLAPIForTsmNetwork:     machineURL,
		LocalIPAddress:          machineIP,
		NginxStoragePathOptions: machinePaths,
	})
	if err != nil {
		return err
	}
	return outputResult(m, "Machine %s added (%s)", m.MachineName, m.PublicID)
}

func runMachineList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	machines, err := st.ListMachines(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return output.JSON(machines)
	}
	if len(machines) == 0 {
		output.Info("No machines registered")
		return nil
	}

	rows := make([][]string, 0, len(machines))
	for _, m := range machines {
		rows = append(rows, []string{
			m.MachineName,
			m.LocalIPAddress,
			strings.Join(m.NginxStoragePathOptions, ","),
			m.PublicID,
		})
	}
	output.Table([]string{"NAME", "IP", "NGINX PATHS", "ID"}, rows)
	return nil
}

func runMachineRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	m, err := st.GetMachine(ctx, args[0])
	if err != nil {
		return err
	}
	if !machineForce {
		ok, err := confirm("Remove machine " + m.MachineName + "?")
		if err != nil {
			return err
		}
		if !ok {
			output.Info("Removal cancelled")
			return nil
		}
	}

	if err := st.DeleteMachine(ctx, m.PublicID); err != nil {
		return err
	}
	return outputResult(
		map[string]interface{}{
			"success":  true,
			"publicId": m.PublicID,
			"removed":  true,
		},
		"Machine %s removed", m.MachineName,
	)
}
