package tui

import (
	"fmt"
	"strings"
	"time"

	"crm-cli/internal/api"
	"crm-cli/internal/filter"
	"crm-cli/internal/model"
	"crm-cli/internal/statusutil"

	"github.com/charmbracelet/lipgloss"
)

type detailRow struct {
	label string
	value string
}

func renderRows(rows []detailRow) string {
	labelW := 0
	for _, r := range rows {
		labelW = max(labelW, len(r.label))
	}
	label := styleMuted().Width(labelW + 2)
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		v := r.value
		if strings.TrimSpace(v) == "" {
			v = "-"
		}
		lines = append(lines, label.Render(r.label)+v)
	}
	return strings.Join(lines, "\n")
}

func customerCard(c model.Customer, width int) string {
	body := renderRows([]detailRow{
		{"Name", c.FullName()},
		{"Email", c.Email},
		{"Phone", c.Phone},
		{"Status", string(c.Status)},
	})
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(colorMuted).
		Padding(0, 1).
		Width(max(width-2, 10)).
		Render(body)
}

func findCustomer(rows []model.Customer, id int64) (model.Customer, bool) {
	for _, c := range rows {
		if c.ID == id {
			return c, true
		}
	}
	return model.Customer{}, false
}

func customerDetail(c model.Customer, ov model.Overview, width int) string {
	var offers, open int
	for _, o := range ov.Offers {
		if o.CustomerID == c.ID {
			offers++
		}
	}
	for _, t := range ov.Tasks {
		if t.CustomerID == c.ID && !statusutil.IsEndState(t.Status) {
			open++
		}
	}
	return strings.Join([]string{
		styleHeading().Render(c.FullName()),
		"",
		customerCard(c, width),
		"",
		renderRows([]detailRow{
			{"Offers", fmt.Sprint(offers)},
			{"Open tasks", fmt.Sprint(open)},
		}),
		"",
		styleMuted().Render("o: offers   t: tasks"),
	}, "\n")
}

func offerDetail(o model.Offer, ov model.Overview, width int) string {
	parts := []string{
		styleHeading().Render(o.Title),
		"",
		renderRows([]detailRow{
			{"Status", offerStatusBadge(o.Status)},
			{"Price", fmt.Sprintf("%.2f", o.Price)},
			{"Created", o.CreatedAt.Format()},
			{"Updated", o.UpdatedAt.Format()},
		}),
		"",
	}
	if c, ok := findCustomer(ov.Customers, o.CustomerID); ok {
		parts = append(parts, customerCard(c, width))
	} else {
		parts = append(parts, renderRows([]detailRow{{"Customer", filter.CustomerName(o.CustomerName, o.CustomerID, nil)}}))
	}
	if md := renderMarkdown(o.Description, width); md != "" {
		parts = append(parts, "", md)
	}
	return strings.Join(parts, "\n")
}

func taskDetail(t model.Task, ov model.Overview, now time.Time, width int) string {
	due := t.DueDate.Format()
	if t.Overdue(now) {
		due = styleError().Render(due + " (overdue)")
	}
	names := filter.CustomerNames(ov.Customers)
	titles := filter.OfferTitles(ov.Offers)
	parts := []string{
		styleHeading().Render(t.Title),
		"",
		renderRows([]detailRow{
			{"Status", taskStatusBadge(t.Status)},
			{"Priority", statusutil.PriorityLabel(t.Priority)},
			{"Due", due},
			{"Customer", filter.CustomerName(t.CustomerName, t.CustomerID, names)},
			{"Offer", filter.OfferTitle(t.OfferTitle, t.OfferID, titles)},
			{"Created", t.CreatedAt.Format()},
			{"Updated", t.UpdatedAt.Format()},
		}),
	}
	if md := renderMarkdown(t.Description, width); md != "" {
		parts = append(parts, "", md)
	}
	return strings.Join(parts, "\n")
}

func userDetail(u model.User) string {
	enabled := "-"
	if u.Enabled != nil {
		enabled = fmt.Sprint(*u.Enabled)
	}
	return strings.Join([]string{
		styleHeading().Render(u.Username),
		"",
		renderRows([]detailRow{
			{"Email", u.Email},
			{"Role", u.RoleLabel()},
			{"Enabled", enabled},
			{"Created", u.CreatedAt.Format()},
		}),
	}, "\n")
}

func dashboardView(ov model.Overview, now time.Time, width int) string {
	counts := api.CountOverview(ov)
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(0, 2).
		Width(20)
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		card.Render(styleHeading().Render(fmt.Sprint(counts.Customers))+"\ncustomers"),
		" ",
		card.Render(styleHeading().Render(fmt.Sprint(counts.ActiveOffers))+"\nactive offers"),
		" ",
		card.Render(styleHeading().Render(fmt.Sprint(counts.OpenTasks))+"\nopen tasks"),
	)

	var overdue []string
	for _, t := range ov.Tasks {
		if t.Overdue(now) {
			overdue = append(overdue, fitLine("  "+t.DueDate.Format()+"  "+t.Title, max(width-2, 10)))
		}
	}
	out := cards
	if len(overdue) > 0 {
		out += "\n\n" + styleError().Render("Overdue") + "\n" + strings.Join(overdue, "\n")
	}
	return out
}
