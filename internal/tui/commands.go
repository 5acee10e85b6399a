package tui

import (
	"context"

	"crm-cli/internal/api"
	"crm-cli/internal/model"
	"crm-cli/internal/mutate"
	"crm-cli/internal/perm"

	tea "github.com/charmbracelet/bubbletea"
)

// Network work runs inside tea.Cmds. Each returns exactly one message.

func fetchOverviewCmd(ctx context.Context, c *api.Client, gen uint64) tea.Cmd {
	return func() tea.Msg {
		ov, err := c.Overview(ctx)
		return overviewMsg{gen: gen, ov: ov, err: err}
	}
}

func fetchUsersCmd(ctx context.Context, c *api.Client, gen uint64) tea.Cmd {
	return func() tea.Msg {
		users, err := c.ListUsers(ctx)
		return usersMsg{gen: gen, users: users, err: err}
	}
}

func loginCmd(ctx context.Context, c *api.Client, username, password string) tea.Cmd {
	return func() tea.Msg {
		p, err := c.Login(ctx, username, password)
		return loginMsg{principal: p, err: err}
	}
}

func registerCmd(ctx context.Context, c *api.Client, in model.RegisterInput) tea.Cmd {
	return func() tea.Msg {
		if err := c.Register(ctx, in); err != nil {
			return registerMsg{err: err}
		}
		p, err := c.Login(ctx, in.Username, in.Password)
		return registerMsg{principal: p, registered: true, err: err}
	}
}

func logoutCmd(ctx context.Context, c *api.Client) tea.Cmd {
	return func() tea.Msg {
		return loggedOutMsg{err: c.Session().Logout(ctx)}
	}
}

func saveCustomerCmd(ctx context.Context, c *api.Client, gen uint64, id int64, in model.CustomerInput) tea.Cmd {
	return func() tea.Msg {
		var (
			v   model.Customer
			err error
		)
		if id == 0 {
			v, err = c.CreateCustomer(ctx, in)
		} else {
			v, err = c.UpdateCustomer(ctx, id, in)
		}
		if err != nil {
			return savedMsg{gen: gen, kind: entityCustomer, err: err}
		}
		return savedMsg{gen: gen, kind: entityCustomer, customer: &v}
	}
}

func saveOfferCmd(ctx context.Context, c *api.Client, gen uint64, id int64, in model.OfferInput) tea.Cmd {
	return func() tea.Msg {
		var (
			v   model.Offer
			err error
		)
		if id == 0 {
			v, err = c.CreateOffer(ctx, in)
		} else {
			v, err = c.UpdateOffer(ctx, id, in)
		}
		if err != nil {
			return savedMsg{gen: gen, kind: entityOffer, err: err}
		}
		return savedMsg{gen: gen, kind: entityOffer, offer: &v}
	}
}

func saveTaskCmd(ctx context.Context, c *api.Client, gen uint64, id int64, in model.TaskInput) tea.Cmd {
	return func() tea.Msg {
		var (
			v   model.Task
			err error
		)
		if id == 0 {
			v, err = c.CreateTask(ctx, in)
		} else {
			v, err = c.UpdateTask(ctx, id, in)
		}
		if err != nil {
			return savedMsg{gen: gen, kind: entityTask, err: err}
		}
		return savedMsg{gen: gen, kind: entityTask, task: &v}
	}
}

func deleteCmd(ctx context.Context, c *api.Client, gen uint64, kind entityKind, id int64) tea.Cmd {
	return func() tea.Msg {
		var err error
		switch kind {
		case entityCustomer:
			err = c.DeleteCustomer(ctx, id)
		case entityOffer:
			err = c.DeleteOffer(ctx, id)
		case entityTask:
			err = c.DeleteTask(ctx, id)
		}
		return deletedMsg{gen: gen, kind: kind, id: id, err: err}
	}
}

func transitionCmd(ctx context.Context, ctrl *mutate.Controller, sessGen uint64, req mutate.Request) tea.Cmd {
	return func() tea.Msg {
		return transitionMsg{sessGen: sessGen, out: ctrl.Transition(ctx, req)}
	}
}

// refreshPrincipalCmd reloads the role claims of a restored session.
func refreshPrincipalCmd(ctx context.Context, c *api.Client) tea.Cmd {
	return func() tea.Msg {
		return principalMsg{err: c.RefreshPrincipal(ctx)}
	}
}

func changeRoleCmd(ctx context.Context, c *api.Client, gen uint64, id int64, role perm.Role) tea.Cmd {
	return func() tea.Msg {
		return roleChangedMsg{gen: gen, id: id, err: c.ChangeUserRole(ctx, id, role)}
	}
}

// waitExpiredCmd blocks until the session reports a 401 teardown.
func waitExpiredCmd(ctx context.Context, ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ch:
			return sessionExpiredMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}
