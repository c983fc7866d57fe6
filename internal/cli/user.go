package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ksyq12/tsm/internal/auth"
	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/input"
	"github.com/ksyq12/tsm/internal/models"
	"github.com/ksyq12/tsm/internal/output"
	"github.com/ksyq12/tsm/internal/store"
)

var (
	userUsername string
	userPassword string
	userAdmin    bool
	userForce    bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage dashboard users",
	Long: `Manage dashboard users in the tsm database.

Users are addressed by email or public id.`,
}

var userCreateCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Create a user",
	Long: `Create a user. The password is prompted for when --password is not
given. The first user ever created is an admin.

Examples:
  tsm user create owner@example.com
  tsm user create dev@example.com --username devops --page /dns/nginx`,
	Args: cobra.ExactArgs(1),
	RunE: runUserCreate,
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	Args:    cobra.NoArgs,
	RunE:    runUserList,
}

var userGrantPagesCmd = &cobra.Command{
	Use:   "grant-pages <user> [page...]",
	Short: "Replace a user's page grants",
	Long: `Replace the permission-controlled pages a user may open. The first
page becomes the user's landing page. Pass no pages to revoke all grants.

Examples:
  tsm user grant-pages dev@example.com /dns/nginx /servers/services`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUserGrantPages,
}

var userGrantServersCmd = &cobra.Command{
	Use:   "grant-servers <user> [machine-id...]",
	Short: "Replace the machines a user may see",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUserGrantServers,
}

var userSetAdminCmd = &cobra.Command{
	Use:   "set-admin <user> <true|false>",
	Short: "Grant or revoke admin rights",
	Args:  cobra.ExactArgs(2),
	RunE:  runUserSetAdmin,
}

var userDeleteCmd = &cobra.Command{
	Use:     "delete <user>",
	Aliases: []string{"rm"},
	Short:   "Delete a user",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserDelete,
}

func init() {
	userCreateCmd.Flags().StringVar(&userUsername, "username", "", "Username (default: part of the email before @)")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "Password (prompted when omitted)")
	userCreateCmd.Flags().BoolVar(&userAdmin, "admin", false, "Create the user as an admin")
	userCreateCmd.Flags().StringArrayVar(&accessPages, "page", nil, "Granted page (repeatable)")
	userDeleteCmd.Flags().BoolVarP(&userForce, "force", "f", false, "Delete without confirmation")

	userCmd.AddCommand(userCreateCmd, userListCmd, userGrantPagesCmd, userGrantServersCmd, userSetAdminCmd, userDeleteCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ev, err := newEvaluator(cfg)
	if err != nil {
		return err
	}
	pages, err := ev.NormalizePages(accessPages)
	if err != nil {
		return err
	}

	password := userPassword
	if password == "" {
		if password, err = input.NewPassword(deps.StdinReader, deps.Prompt); err != nil {
			return err
		}
	}
	hash, err := auth.HashPassword(password, cfg.Auth.MinPasswordLength)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	user, err := st.CreateUser(ctx, store.NewUser{
		Email:        args[0],
		Username:     userUsername,
		PasswordHash: hash,
		IsAdmin:      userAdmin,
		AccessPages:  pages,
	})
	if err != nil {
		return err
	}

	if !jsonOutput && user.IsAdmin && !userAdmin {
		output.Info("%s is the first user and was made an admin", user.Email)
	}
	return outputResult(user, "User %s created (%s)", user.Email, user.PublicID)
}

func runUserList(cmd *cobra.Command, args []string) error {
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

	users, err := st.ListUsers(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return output.JSON(users)
	}
	if len(users) == 0 {
		output.Info("No users yet (run 'tsm user create <email>')")
		return nil
	}

	rows := make([][]string, 0, len(users))
	for _, u := range users {
		role := "user"
		if u.IsAdmin {
			role = "admin"
		}
		rows = append(rows, []string{
			u.Email,
			u.Username,
			role,
			strings.Join(u.AccessPages, ","),
			u.PublicID,
		})
	}
	output.Table([]string{"EMAIL", "USERNAME", "ROLE", "PAGES", "ID"}, rows)
	return nil
}

// updateUser resolves ref to a user and applies update to it.
func updateUser(cmd *cobra.Command, ref string, update func(st *store.Store, u *models.User) (*models.User, error)) (*models.User, error) {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	user, err := findUser(ctx, st, ref)
	if err != nil {
		return nil, err
	}
	return update(st, user)
}

func runUserGrantPages(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ev, err := newEvaluator(cfg)
	if err != nil {
		return err
	}
	pages, err := ev.NormalizePages(args[1:])
	if err != nil {
		return err
	}

	user, err := updateUser(cmd, args[0], func(st *store.Store, u *models.User) (*models.User, error) {
		return st.UpdateUserPages(cmd.Context(), u.PublicID, pages)
	})
	if err != nil {
		return err
	}
	return outputResult(user, "%s may open: %s", user.Email, describeList(user.AccessPages, "default pages only"))
}

func runUserGrantServers(cmd *cobra.Command, args []string) error {
	machineIDs := args[1:]
	user, err := updateUser(cmd, args[0], func(st *store.Store, u *models.User) (*models.User, error) {
		for _, id := range machineIDs {
			if _, err := st.GetMachine(cmd.Context(), id); err != nil {
				return nil, err
			}
		}
		return st.UpdateUserServers(cmd.Context(), u.PublicID, machineIDs)
	})
	if err != nil {
		return err
	}
	return outputResult(user, "%s may see machines: %s", user.Email, describeList(user.AccessServers, "none"))
}

func runUserSetAdmin(cmd *cobra.Command, args []string) error {
	var isAdmin bool
	switch strings.ToLower(args[1]) {
	case "true", "yes", "1":
		isAdmin = true
	case "false", "no", "0":
	default:
		return errors.Validation("expected true or false, got " + args[1])
	}

	user, err := updateUser(cmd, args[0], func(st *store.Store, u *models.User) (*models.User, error) {
		return st.SetAdmin(cmd.Context(), u.PublicID, isAdmin)
	})
	if err != nil {
		return err
	}
	if user.IsAdmin {
		return outputResult(user, "%s is now an admin", user.Email)
	}
	return outputResult(user, "%s is no longer an admin", user.Email)
}

func runUserDelete(cmd *cobra.Command, args []string) error {
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

	user, err := findUser(ctx, st, args[0])
	if err != nil {
		return err
	}

	if !userForce {
		ok, err := confirm("Delete user " + user.Email + "?")
		if err != nil {
			return err
		}
		if !ok {
			output.Info("Deletion cancelled")
			return nil
		}
	}

	if err := st.DeleteUser(ctx, user.PublicID); err != nil {
		return err
	}
	return outputResult(
		map[string]interface{}{
			"success":  true,
			"email":    user.Email,
			"publicId": user.PublicID,
			"deleted":  true,
		},
		"User %s deleted", user.Email,
	)
}

func describeList(list []string, empty string) string {
	if len(list) == 0 {
		return empty
	}
	return strings.Join(list, ", ")
}
