package tui

import (
	"crm-cli/internal/perm"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type keyMap struct {
	Quit      key.Binding
	Dashboard key.Binding
	Customers key.Binding
	Offers    key.Binding
	Tasks     key.Binding
	Users     key.Binding
	Reload    key.Binding
	Logout    key.Binding

	New     key.Binding
	Edit    key.Binding
	Delete  key.Binding
	Status  key.Binding
	Toggle  key.Binding
	Filter  key.Binding
	Overdue key.Binding
	Search  key.Binding
	Role    key.Binding

	CustomerOffers key.Binding
	CustomerTasks  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Dashboard: key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "dashboard")),
		Customers: key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "customers")),
		Offers:    key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "offers")),
		Tasks:     key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "tasks")),
		Users:     key.NewBinding(key.WithKeys("5"), key.WithHelp("5", "users")),
		Reload:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Logout:    key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "log out")),

		New:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		Edit:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Status:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "status")),
		Toggle:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "done/undo")),
		Filter:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "status filter")),
		Overdue: key.NewBinding(key.WithKeys("!"), key.WithHelp("!", "overdue only")),
		Search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Role:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "change role")),

		CustomerOffers: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "offers")),
		CustomerTasks:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "tasks")),
	}
}

// gate enables each mutating binding from the current role. A disabled binding
// is hidden from help and never matches, so its key is ignored.
func (k *keyMap) gate(v view, r perm.Role) {
	caps := perm.For(r)
	k.Users.SetEnabled(caps.ManageUsers)

	lists := v == viewCustomers || v == viewOffers || v == viewTasks
	k.New.SetEnabled(lists && caps.Modify)
	k.Edit.SetEnabled(lists && caps.Modify)
	k.Delete.SetEnabled(lists && caps.Delete)
	k.Search.SetEnabled(lists || v == viewUsers)
	k.Filter.SetEnabled(lists)

	switch v {
	case viewOffers:
		k.Status.SetEnabled(caps.Modify)
	case viewTasks:
		k.Status.SetEnabled(caps.ToggleCompletion)
	default:
		k.Status.SetEnabled(false)
	}
	k.Toggle.SetEnabled(v == viewTasks && caps.ToggleCompletion)
	k.Overdue.SetEnabled(v == viewTasks)
	k.Role.SetEnabled(v == viewUsers && caps.ManageUsers)
	k.CustomerOffers.SetEnabled(v == viewCustomers)
	k.CustomerTasks.SetEnabled(v == viewCustomers)
}

func (k keyMap) all() []key.Binding {
	return []key.Binding{
		k.Quit, k.Dashboard, k.Customers, k.Offers, k.Tasks, k.Users, k.Reload, k.Logout,
		k.New, k.Edit, k.Delete, k.Status, k.Toggle, k.Filter, k.Overdue, k.Role,
		k.CustomerOffers, k.CustomerTasks,
	}
}

// owns reports whether msg is one of the app's keys, enabled or not.
func (k keyMap) owns(msg tea.KeyMsg) bool {
	s := msg.String()
	for _, b := range k.all() {
		for _, bk := range b.Keys() {
			if bk == s {
				return true
			}
		}
	}
	return false
}

func (k keyMap) shortHelp(v view) []key.Binding {
	switch v {
	case viewCustomers:
		return []key.Binding{k.Search, k.Filter, k.CustomerOffers, k.CustomerTasks, k.New, k.Edit, k.Delete, k.Reload, k.Quit}
	case viewOffers:
		return []key.Binding{k.Search, k.Filter, k.Status, k.New, k.Edit, k.Delete, k.Reload, k.Quit}
	case viewTasks:
		return []key.Binding{k.Search, k.Filter, k.Overdue, k.Toggle, k.Status, k.New, k.Edit, k.Delete, k.Reload, k.Quit}
	case viewUsers:
		return []key.Binding{k.Search, k.Role, k.Reload, k.Quit}
	default:
		return []key.Binding{k.Dashboard, k.Customers, k.Offers, k.Tasks, k.Users, k.Reload, k.Logout, k.Quit}
	}
}
