package cli

import (
	"strings"

	"crm-cli/internal/filter"
	"crm-cli/internal/forms"
	"crm-cli/internal/model"
	"crm-cli/internal/mutate"
	"crm-cli/internal/perm"
	"crm-cli/internal/statusutil"

	"github.com/spf13/cobra"
)

func newOffersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "offers",
		Aliases: []string{"offer"},
		Short:   "Offer commands",
	}
	cmd.AddCommand(newOffersListCmd(app))
	cmd.AddCommand(newOffersShowCmd(app))
	cmd.AddCommand(newOffersCreateCmd(app))
	cmd.AddCommand(newOffersUpdateCmd(app))
	cmd.AddCommand(newOffersDeleteCmd(app))
	cmd.AddCommand(newOffersStatusCmd(app))
	return cmd
}

func newOffersListCmd(app *App) *cobra.Command {
	var search, status, customer string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := filter.Offers{Search: search}
			if strings.TrimSpace(status) != "" {
				st, err := statusutil.NormalizeOfferStatus(status)
				if err != nil {
					return writeErr(cmd, err)
				}
				f.Status = st
			}
			if strings.TrimSpace(customer) != "" {
				id, err := forms.ParseID(customer)
				if err != nil {
					return writeErr(cmd, err)
				}
				f.CustomerID = id
			}
			c, err := app.authed(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := gate(app, "listing offers", perm.CanView, perm.RoleUser); err != nil {
				return writeErr(cmd, err)
			}
			ov, err := c.Overview(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			names := filter.CustomerNames(ov.Customers)
			return writeOut(cmd, app, offerRows{rows: f.Apply(ov.Offers, names), names: names})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Match title or customer name")
	cmd.Flags().StringVar(&status, "status", "", "DRAFT|SENT|ACCEPTED|REJECTED|CANCELLED")
	cmd.Flags().StringVar(&customer, "customer", "", "Only offers of this customer id")
	return cmd
}

type offerDetail struct {
	model.Offer
	Customer *model.Customer `json:"customer,omitempty"`
}

func newOffersShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <offer-id>",
		Short: "Show an offer with its customer",
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
			o, err := c.GetOffer(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, err)
			}
			out := offerDetail{Offer: o}
			// A dangling customer reference still shows the offer.
			if cu, err := c.GetCustomer(cmd.Context(), o.CustomerID); err == nil {
				out.Customer = &cu
			}
			return writeOut(cmd, app, out)
		},
	}
}

type offerFlags struct {
	title, description, price, status, customer string
}

func (f *offerFlags) register(cmd *cobra.Command, statusDefault string) {
	cmd.Flags().StringVar(&f.title, "title", "", "Title, 3 to 200 characters")
	cmd.Flags().StringVar(&f.description, "description", "", "Description (markdown)")
	cmd.Flags().StringVar(&f.price, "price", "", "Price, greater than zero")
	cmd.Flags().StringVar(&f.status, "status", statusDefault, "DRAFT|SENT|ACCEPTED|REJECTED|CANCELLED")
	cmd.Flags().StringVar(&f.customer, "customer", "", "Customer id")
}

func (f *offerFlags) apply(cmd *cobra.Command, in *model.OfferInput) error {
	set := cmd.Flags().Changed
	if set("title") {
		in.Title = strings.TrimSpace(f.title)
	}
	if set("description") {
		in.Description = f.description
	}
	if set("price") {
		p, err := forms.ParsePrice(f.price)
		if err != nil {
			return err
		}
		in.Price = p
	}
	if set("status") || in.Status == "" {
		st, err := statusutil.NormalizeOfferStatus(f.status)
		if err != nil {
			return err
		}
		in.Status = st
	}
	if set("customer") {
		id, err := forms.ParseID(f.customer)
		if err != nil {
			return err
		}
		in.CustomerID = id
	}
	return forms.ValidateOffer(*in)
}

func newOffersCreateCmd(app *App) *cobra.Command {
	var f offerFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an offer",
		Example: strings.TrimSpace(`
crm offers create --title "Website redesign" --price 4200 --customer 12
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := gate(app, "creating offers", perm.CanModify, perm.RoleManager); err != nil {
				return writeErr(cmd, err)
			}
			var in model.OfferInput
			if err := f.apply(cmd, &in); err != nil {
				return writeErr(cmd, err)
			}
			o, err := c.CreateOffer(cmd.Context(), in)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, o)
		},
	}
	f.register(cmd, string(model.OfferDraft))
	return cmd
}

func newOffersUpdateCmd(app *App) *cobra.Command {
	var f offerFlags
	cmd := &cobra.Command{
		Use:   "update <offer-id>",
		Short: "Update an offer (unset flags keep their value)",
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
			if err := gate(app, "editing offers", perm.CanModify, perm.RoleManager); err != nil {
				return writeErr(cmd, err)
			}
			cur, err := c.GetOffer(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, err)
			}
			in := cur.Input()
			if err := f.apply(cmd, &in); err != nil {
				return writeErr(cmd, err)
			}
			o, err := c.UpdateOffer(cmd.Context(), id, in)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, o)
		},
	}
	f.register(cmd, "")
	return cmd
}

func newOffersDeleteCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <offer-id>",
		Short: "Delete an offer",
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
			if err := gate(app, "deleting offers", perm.CanDelete, perm.RoleAdmin); err != nil {
				return writeErr(cmd, err)
			}
			if !yes {
				return writeErr(cmd, errNeedsConfirm)
			}
			if err := c.DeleteOffer(cmd.Context(), id); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"id": id, "deleted": true})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}

type transitionResult struct {
	ID      int64  `json:"id"`
	From    string `json:"from"`
	Status  string `json:"status"`
	Changed bool   `json:"changed"`
}

func newOffersStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status <offer-id> <STATUS>",
		Short: "Change an offer's status",
		Long: strings.TrimSpace(`
Sets the offer's status. Any status may follow any other.
Setting the status the offer already has is a no-op and sends nothing.
`),
		Example: strings.TrimSpace(`
crm offers status 3 SENT
crm offers status offer-3 accepted
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := forms.ParseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			target, err := statusutil.NormalizeOfferStatus(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			c, err := app.authed(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := gate(app, "changing offer status", perm.CanModify, perm.RoleManager); err != nil {
				return writeErr(cmd, err)
			}
			o, err := c.GetOffer(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, err)
			}
			out := mutate.NewController(c).Transition(cmd.Context(), mutate.Request{
				Kind: mutate.KindOffer, ID: id, Current: string(o.Status), Target: string(target),
			})
			if out.Err != nil {
				return writeErr(cmd, out.Err)
			}
			return writeOut(cmd, app, transitionResult{ID: id, From: string(o.Status), Status: string(target), Changed: out.Changed})
		},
	}
}
