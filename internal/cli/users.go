package cli

import (
	"fmt"
	"strings"

	"crm-cli/internal/api"
	"crm-cli/internal/forms"
	"crm-cli/internal/perm"

	"github.com/spf13/cobra"
)

func newUsersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "User administration (admin only)",
	}
	cmd.AddCommand(newUsersListCmd(app))
	cmd.AddCommand(newUsersRoleCmd(app))
	return cmd
}

func newUsersListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users with their role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := gate(app, "listing users", perm.CanManageUsers, perm.RoleAdmin); err != nil {
				return writeErr(cmd, err)
			}
			users, err := c.ListUsers(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, userRows(users))
		},
	}
}

func newUsersRoleCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "role <user-id> <USER|MANAGER>",
		Short: "Change a user's role",
		Long: strings.TrimSpace(`
Assigns USER or MANAGER. The ADMIN role cannot be granted from the client.
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := forms.ParseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			role, ok := perm.ParseRole(args[1])
			if !ok || role == perm.RoleAdmin {
				return writeErr(cmd, fmt.Errorf("invalid role: %q (use USER or MANAGER)", args[1]))
			}
			c, err := app.authed(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := gate(app, "changing roles", perm.CanManageUsers, perm.RoleAdmin); err != nil {
				return writeErr(cmd, err)
			}
			if !yes {
				return writeErr(cmd, fmt.Errorf("refusing to change the role of user %d to %s without --yes", id, role))
			}
			if err := c.ChangeUserRole(cmd.Context(), id, role); err != nil {
				if api.KindOf(err) == api.KindNotFound {
					return writeErr(cmd, fmt.Errorf("user %d not found", id))
				}
				return writeErr(cmd, err)
			}
			// Reload so the output reflects the backend's view.
			users, err := c.ListUsers(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, userRows(users))
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the role change")
	return cmd
}
