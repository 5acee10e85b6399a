package tui

import (
	"fmt"
	"strings"
	"time"

	"crm-cli/internal/filter"
	"crm-cli/internal/model"
	"crm-cli/internal/statusutil"

	"github.com/charmbracelet/bubbles/list"
)

// rowItem is what the list delegate needs from every row.
type rowItem interface {
	list.Item
	Title() string
	ID() int64
}

type customerItem struct {
	c model.Customer
}

func (i customerItem) ID() int64 { return i.c.ID }
func (i customerItem) FilterValue() string {
	return strings.Join([]string{i.c.FirstName, i.c.LastName, i.c.Email}, " ")
}
func (i customerItem) Title() string {
	return fmt.Sprintf("%-24s %-8s %s", i.c.FullName(), i.c.Status, i.c.Email)
}

type offerItem struct {
	o        model.Offer
	customer string
}

func (i offerItem) ID() int64            { return i.o.ID }
func (i offerItem) FilterValue() string { return i.o.Title + " " + i.customer }
func (i offerItem) Title() string {
	return fmt.Sprintf("%-28s %-10s %10.2f  %s", i.o.Title, statusutil.OfferStatusLabel(i.o.Status), i.o.Price, i.customer)
}

type taskItem struct {
	t        model.Task
	customer string
	overdue  bool
}

func (i taskItem) ID() int64            { return i.t.ID }
func (i taskItem) FilterValue() string { return i.t.Title }
func (i taskItem) Title() string {
	box := "[ ]"
	if statusutil.IsEndState(i.t.Status) {
		box = "[x]"
	}
	title := i.t.Title
	if i.overdue {
		title += " !"
	}
	return fmt.Sprintf("%s %-28s %-6s %-16s %s", box, title, statusutil.PriorityLabel(i.t.Priority), i.t.DueDate.Format(), i.customer)
}

type userItem struct {
	u model.User
}

func (i userItem) ID() int64            { return i.u.ID }
func (i userItem) FilterValue() string { return i.u.Username + " " + i.u.Email }
func (i userItem) Title() string {
	return fmt.Sprintf("%-20s %-8s %s", i.u.Username, i.u.RoleLabel(), i.u.Email)
}

func newList() list.Model {
	l := list.New(nil, newRowDelegate(nil), 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(true)
	// The app owns q; the list's own quit would end the program mid-form.
	l.DisableQuitKeybindings()
	return l
}

func customerItems(rows []model.Customer, f filter.Customers) []list.Item {
	rows = f.Apply(rows)
	out := make([]list.Item, 0, len(rows))
	for _, c := range rows {
		out = append(out, customerItem{c: c})
	}
	return out
}

func offerItems(rows []model.Offer, f filter.Offers, names map[int64]string) []list.Item {
	rows = f.Apply(rows, names)
	out := make([]list.Item, 0, len(rows))
	for _, o := range rows {
		out = append(out, offerItem{o: o, customer: filter.CustomerName(o.CustomerName, o.CustomerID, names)})
	}
	return out
}

func taskItems(rows []model.Task, f filter.Tasks, names map[int64]string, now time.Time) []list.Item {
	f.Now = now
	rows = f.Apply(rows)
	out := make([]list.Item, 0, len(rows))
	for _, t := range rows {
		out = append(out, taskItem{
			t:        t,
			customer: filter.CustomerName(t.CustomerName, t.CustomerID, names),
			overdue:  t.Overdue(now),
		})
	}
	return out
}

func userItems(rows []model.User) []list.Item {
	out := make([]list.Item, 0, len(rows))
	for _, u := range rows {
		out = append(out, userItem{u: u})
	}
	return out
}

// selectIDInList moves the cursor to the visible row with id, if present.
func selectIDInList(l *list.Model, id int64) {
	if id == 0 {
		return
	}
	for i, it := range l.VisibleItems() {
		if r, ok := it.(rowItem); ok && r.ID() == id {
			l.Select(i)
			return
		}
	}
}
