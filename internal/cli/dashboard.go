package cli

import (
	"crm-cli/internal/api"
	"crm-cli/internal/perm"

	"github.com/spf13/cobra"
)

func newDashboardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Counts of customers, active offers and open tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := gate(app, "viewing the dashboard", perm.CanView, perm.RoleUser); err != nil {
				return writeErr(cmd, err)
			}
			// One fail-fast join: nothing is printed unless all three lists loaded.
			ov, err := c.Overview(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, countsRow(api.CountOverview(ov)))
		},
	}
}
