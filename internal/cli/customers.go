package cli

import (
	"strings"

	"crm-cli/internal/filter"
	"crm-cli/internal/forms"
	"crm-cli/internal/model"
	"crm-cli/internal/perm"
	"crm-cli/internal/statusutil"

	"github.com/spf13/cobra"
)

func newCustomersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "customers",
		Aliases: []string{"customer"},
		Short:   "Customer commands",
	}
	cmd.AddCommand(newCustomersListCmd(app))
	cmd.AddCommand(newCustomersShowCmd(app))
	cmd.AddCommand(newCustomersCreateCmd(app))
	cmd.AddCommand(newCustomersUpdateCmd(app))
	cmd.AddCommand(newCustomersDeleteCmd(app))
	return cmd
}

func newCustomersListCmd(app *App) *cobra.Command {
	var search, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List customers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := filter.Customers{Search: search}
			if strings.TrimSpace(status) != "" {
				st, err := statusutil.NormalizeCustomerStatus(status)
				if err != nil {
					return writeErr(cmd, err)
				}
				f.Status = st
			}
			c, err := app.authed(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := gate(app, "listing customers", perm.CanView, perm.RoleUser); err != nil {
				return writeErr(cmd, err)
			}
			rows, err := c.ListCustomers(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, customerRows(f.Apply(rows)))
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Match first name, last name or email")
	cmd.Flags().StringVar(&status, "status", "", "LEAD|ACTIVE|INACTIVE")
	return cmd
}

func newCustomersShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <customer-id>",
		Short: "Show a customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := forms.ParseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			c, err := app.authed(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			cu, err := c.GetCustomer(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, cu)
		},
	}
}

type customerFlags struct {
	firstName, lastName, email, phone, status string
}

func (f *customerFlags) register(cmd *cobra.Command, statusDefault string) {
	cmd.Flags().StringVar(&f.firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&f.lastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&f.email, "email", "", "Email address")
	cmd.Flags().StringVar(&f.phone, "phone", "", "Phone (optional, 10 to 20 digits)")
	cmd.Flags().StringVar(&f.status, "status", statusDefault, "LEAD|ACTIVE|INACTIVE")
}

// apply overlays the flags the user set onto in.
func (f *customerFlags) apply(cmd *cobra.Command, in *model.CustomerInput) error {
	set := cmd.Flags().Changed
	if set("first-name") {
		in.FirstName = strings.TrimSpace(f.firstName)
	}
	if set("last-name") {
		in.LastName = strings.TrimSpace(f.lastName)
	}
	if set("email") {
		in.Email = strings.TrimSpace(f.email)
	}
	if set("phone") {
		in.Phone = strings.TrimSpace(f.phone)
	}
	if set("status") || in.Status == "" {
		st, err := statusutil.NormalizeCustomerStatus(f.status)
		if err != nil {
			return err
		}
		in.Status = st
	}
	return forms.ValidateCustomer(*in)
}

func newCustomersCreateCmd(app *App) *cobra.Command {
	var f customerFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a customer",
		Example: strings.TrimSpace(`
crm customers create --first-name Ada --last-name Lovelace --email ada@example.com
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := gate(app, "creating customers", perm.CanModify, perm.RoleManager); err != nil {
				return writeErr(cmd, err)
			}
			var in model.CustomerInput
			if err := f.apply(cmd, &in); err != nil {
				return writeErr(cmd, err)
			}
			cu, err := c.CreateCustomer(cmd.Context(), in)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, cu)
		},
	}
	f.register(cmd, string(model.CustomerLead))
	return cmd
}

func newCustomersUpdateCmd(app *App) *cobra.Command {
	var f customerFlags
	cmd := &cobra.Command{
		Use:   "update <customer-id>",
		Short: "Update a customer (unset flags keep their value)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := forms.ParseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			c, err := app.authed(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := gate(app, "editing customers", perm.CanModify, perm.RoleManager); err != nil {
				return writeErr(cmd, err)
			}
			cur, err := c.GetCustomer(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, err)
			}
			in := cur.Input()
			if err := f.apply(cmd, &in); err != nil {
				return writeErr(cmd, err)
			}
			cu, err := c.UpdateCustomer(cmd.Context(), id, in)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, cu)
		},
	}
	f.register(cmd, "")
	return cmd
}

func newCustomersDeleteCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <customer-id>",
		Short: "Delete a customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := forms.ParseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			c, err := app.authed(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := gate(app, "deleting customers", perm.CanDelete, perm.RoleAdmin); err != nil {
				return writeErr(cmd, err)
			}
			if !yes {
				return writeErr(cmd, errNeedsConfirm)
			}
			if err := c.DeleteCustomer(cmd.Context(), id); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"id": id, "deleted": true})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}
