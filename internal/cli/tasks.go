package cli

import (
	"strings"
	"time"

	"crm-cli/internal/filter"
	"crm-cli/internal/forms"
	"crm-cli/internal/model"
	"crm-cli/internal/mutate"
	"crm-cli/internal/perm"
	"crm-cli/internal/statusutil"

	"github.com/spf13/cobra"
)

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Task commands",
	}
	cmd.AddCommand(newTasksListCmd(app))
	cmd.AddCommand(newTasksShowCmd(app))
	cmd.AddCommand(newTasksCreateCmd(app))
	cmd.AddCommand(newTasksUpdateCmd(app))
	cmd.AddCommand(newTasksDeleteCmd(app))
	cmd.AddCommand(newTasksStatusCmd(app))
	cmd.AddCommand(newTasksToggleCmd(app))
	return cmd
}

func newTasksListCmd(app *App) *cobra.Command {
	var (
		search, status, priority, customer string
		overdue                            bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Example: strings.TrimSpace(`
crm tasks list --overdue
crm tasks list --priority high --status todo --format table
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := filter.Tasks{Search: search, Overdue: overdue, Now: time.Now()}
			if strings.TrimSpace(status) != "" {
				st, err := statusutil.NormalizeTaskStatus(status)
				if err != nil {
					return writeErr(cmd, err)
				}
				f.Status = st
			}
			if strings.TrimSpace(priority) != "" {
				p, err := statusutil.NormalizePriority(priority)
				if err != nil {
					return writeErr(cmd, err)
				}
				f.Priority = p
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
			if err := gate(app, "listing tasks", perm.CanView, perm.RoleUser); err != nil {
				return writeErr(cmd, err)
			}
			ov, err := c.Overview(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			names := filter.CustomerNames(ov.Customers)
			rows := f.Apply(ov.Tasks)
			for i := range rows {
				rows[i].CustomerName = filter.CustomerName(rows[i].CustomerName, rows[i].CustomerID, names)
			}
			return writeOut(cmd, app, taskRows{rows: rows, titles: filter.OfferTitles(ov.Offers), now: f.Now})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Match title")
	cmd.Flags().StringVar(&status, "status", "", "TODO|IN_PROGRESS|DONE")
	cmd.Flags().StringVar(&priority, "priority", "", "LOW|MEDIUM|HIGH")
	cmd.Flags().StringVar(&customer, "customer", "", "Only tasks of this customer id")
	cmd.Flags().BoolVar(&overdue, "overdue", false, "Only open tasks past their due date")
	return cmd
}

func newTasksShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task",
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
			t, err := c.GetTask(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, t)
		},
	}
}

type taskFlags struct {
	title, description, due, status, priority, customer, offer string
}

func (f *taskFlags) register(cmd *cobra.Command, statusDefault, priorityDefault string) {
	cmd.Flags().StringVar(&f.title, "title", "", "Title, 3 to 200 characters")
	cmd.Flags().StringVar(&f.description, "description", "", "Description (markdown)")
	cmd.Flags().StringVar(&f.due, "due", "", "Due date (YYYY-MM-DD or YYYY-MM-DD HH:MM)")
	cmd.Flags().StringVar(&f.status, "status", statusDefault, "TODO|IN_PROGRESS|DONE")
	cmd.Flags().StringVar(&f.priority, "priority", priorityDefault, "LOW|MEDIUM|HIGH")
	cmd.Flags().StringVar(&f.customer, "customer", "", "Customer id")
	cmd.Flags().StringVar(&f.offer, "offer", "", "Related offer id (\"none\" to clear)")
}

func (f *taskFlags) apply(cmd *cobra.Command, in *model.TaskInput) error {
	set := cmd.Flags().Changed
	if set("title") {
		in.Title = strings.TrimSpace(f.title)
	}
	if set("description") {
		in.Description = f.description
	}
	if set("due") {
		d, err := forms.ParseDueDate(f.due)
		if err != nil {
			return err
		}
		in.DueDate = d
	}
	if set("status") || in.Status == "" {
		st, err := statusutil.NormalizeTaskStatus(f.status)
		if err != nil {
			return err
		}
		in.Status = st
	}
	if set("priority") || in.Priority == "" {
		p, err := statusutil.NormalizePriority(f.priority)
		if err != nil {
			return err
		}
		in.Priority = p
	}
	if set("customer") {
		id, err := forms.ParseID(f.customer)
		if err != nil {
			return err
		}
		in.CustomerID = id
	}
	if set("offer") {
		id, err := forms.ParseOptionalID(f.offer)
		if err != nil {
			return err
		}
		in.OfferID = id
	}
	return forms.ValidateTask(*in)
}

func newTasksCreateCmd(app *App) *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Example: strings.TrimSpace(`
crm tasks create --title "Call back" --due 2025-03-14 --customer 12 --priority high
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := gate(app, "creating tasks", perm.CanModify, perm.RoleManager); err != nil {
				return writeErr(cmd, err)
			}
			var in model.TaskInput
			if err := f.apply(cmd, &in); err != nil {
				return writeErr(cmd, err)
			}
			t, err := c.CreateTask(cmd.Context(), in)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, t)
		},
	}
	f.register(cmd, string(model.TaskTodo), string(model.PriorityMedium))
	return cmd
}

func newTasksUpdateCmd(app *App) *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update a task (unset flags keep their value)",
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
			if err := gate(app, "editing tasks", perm.CanModify, perm.RoleManager); err != nil {
				return writeErr(cmd, err)
			}
			cur, err := c.GetTask(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, err)
			}
			in := cur.Input()
			if err := f.apply(cmd, &in); err != nil {
				return writeErr(cmd, err)
			}
			t, err := c.UpdateTask(cmd.Context(), id, in)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, t)
		},
	}
	f.register(cmd, "", "")
	return cmd
}

func newTasksDeleteCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
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
			if err := gate(app, "deleting tasks", perm.CanDelete, perm.RoleAdmin); err != nil {
				return writeErr(cmd, err)
			}
			if !yes {
				return writeErr(cmd, errNeedsConfirm)
			}
			if err := c.DeleteTask(cmd.Context(), id); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"id": id, "deleted": true})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}

func setTaskStatus(cmd *cobra.Command, app *App, arg string, target func(model.TaskStatus) (model.TaskStatus, error)) error {
	id, err := forms.ParseID(arg)
	if err != nil {
		return writeErr(cmd, err)
	}
	c, err := app.authed(cmd.Context())
	if err != nil {
		return writeErr(cmd, err)
	}
	if err := gate(app, "changing task status", perm.CanToggleCompletion, perm.RoleUser); err != nil {
		return writeErr(cmd, err)
	}
	t, err := c.GetTask(cmd.Context(), id)
	if err != nil {
		return writeErr(cmd, err)
	}
	next, err := target(t.Status)
	if err != nil {
		return writeErr(cmd, err)
	}
	out := mutate.NewController(c).Transition(cmd.Context(), mutate.Request{
		Kind: mutate.KindTask, ID: id, Current: string(t.Status), Target: string(next),
	})
	if out.Err != nil {
		return writeErr(cmd, out.Err)
	}
	return writeOut(cmd, app, transitionResult{ID: id, From: string(t.Status), Status: string(next), Changed: out.Changed})
}

func newTasksStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id> <STATUS>",
		Short: "Change a task's status",
		Example: strings.TrimSpace(`
crm tasks status 7 in-progress
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := statusutil.NormalizeTaskStatus(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			return setTaskStatus(cmd, app, args[0], func(model.TaskStatus) (model.TaskStatus, error) {
				return st, nil
			})
		},
	}
}

func newTasksToggleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <task-id>",
		Short: "Toggle completion (DONE <-> TODO)",
		Long: strings.TrimSpace(`
Marks an open task DONE, or reopens a DONE task as TODO.
A task that was IN_PROGRESS before completion reopens as TODO.
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setTaskStatus(cmd, app, args[0], func(cur model.TaskStatus) (model.TaskStatus, error) {
				return statusutil.ToggleTaskStatus(cur), nil
			})
		},
	}
}
