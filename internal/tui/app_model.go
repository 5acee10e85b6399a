package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"crm-cli/internal/api"
	"crm-cli/internal/filter"
	"crm-cli/internal/logger"
	"crm-cli/internal/model"
	"crm-cli/internal/mutate"
	"crm-cli/internal/perm"
	"crm-cli/internal/session"
)

// appModel owns the session for the lifetime of the program. Everything it
// shows is recomputed from the session's current role on every Update and View.
type appModel struct {
	ctx    context.Context
	client *api.Client
	sess   *session.Session
	ctrl   *mutate.Controller
	log    zerolog.Logger
	now    func() time.Time

	width  int
	height int

	keys    keyMap
	help    help.Model
	spin    spinner.Model
	animate bool

	view view
	// gen is the request generation. It moves on every load and teardown;
	// responses issued under an older one are dropped.
	gen     uint64
	loading bool
	banner  string
	flash   string

	ov          model.Overview
	loaded      bool
	users       []model.User
	usersLoaded bool

	customerFilter filter.Customers
	offerFilter    filter.Offers
	taskFilter     filter.Tasks

	list list.Model

	auth    fieldForm
	form    *entityForm
	confirm *confirmState
	picker  *picker

	expired     chan struct{}
	unsubscribe func()
}

func newAppModel(ctx context.Context, c *api.Client) appModel {
	sess := c.Session()
	ctrl := mutate.NewController(c)

	expired := make(chan struct{}, 1)
	unsubscribe := sess.OnExpire(func() {
		select {
		case expired <- struct{}{}:
		default:
		}
	})

	l := newList()
	l.SetDelegate(newRowDelegate(func(r rowItem) string {
		var ph mutate.Phase
		switch r.(type) {
		case offerItem:
			ph = ctrl.Phase(mutate.KindOffer, r.ID())
		case taskItem:
			ph = ctrl.Phase(mutate.KindTask, r.ID())
		}
		switch ph {
		case mutate.PhasePending:
			return "…"
		case mutate.PhaseFailed:
			return "✗"
		}
		return ""
	}))

	m := appModel{
		ctx:         ctx,
		client:      c,
		sess:        sess,
		ctrl:        ctrl,
		log:         logger.Get().With().Str("component", "tui").Logger(),
		now:         time.Now,
		keys:        newKeyMap(),
		help:        help.New(),
		spin:        spinner.New(spinner.WithSpinner(spinner.Dot)),
		list:        l,
		expired:     expired,
		unsubscribe: unsubscribe,
	}
	if sess.State() == session.Authenticated {
		m.view = viewDashboard
	} else {
		m.view = viewLogin
		m.auth = newLoginForm("")
	}
	return m
}

func newLoginForm(username string) fieldForm {
	f := newFieldForm("Sign in",
		newTextField("username", "Username", username),
		newSecretField("password", "Password"),
	)
	if username != "" {
		f.focusField(1)
	}
	return f
}

func newRegisterForm() fieldForm {
	return newFieldForm("Create account",
		newTextField("username", "Username", ""),
		newTextField("email", "Email", ""),
		newSecretField("password", "Password"),
		newSecretField("confirmPassword", "Confirm password"),
	)
}

func (m appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{waitExpiredCmd(m.ctx, m.expired)}
	if m.view.authenticated() {
		cmds = append(cmds, refreshPrincipalCmd(m.ctx, m.client))
	}
	return tea.Batch(cmds...)
}

func (m appModel) role() perm.Role {
	return m.sess.Role()
}

func (m appModel) username() string {
	if p := m.sess.Snapshot().Principal; p != nil {
		return p.Username
	}
	return ""
}

// load fetches what the current view shows under a fresh generation.
func (m *appModel) load() tea.Cmd {
	if !m.view.authenticated() {
		return nil
	}
	m.gen++
	wasLoading := m.loading
	m.loading = true
	m.banner = ""

	var cmd tea.Cmd
	if m.view == viewUsers {
		cmd = fetchUsersCmd(m.ctx, m.client, m.gen)
	} else {
		cmd = fetchOverviewCmd(m.ctx, m.client, m.gen)
	}
	if m.animate && !wasLoading {
		return tea.Batch(cmd, m.spin.Tick)
	}
	return cmd
}

func (m *appModel) switchView(v view) tea.Cmd {
	if v != m.view {
		m.list.ResetFilter()
		m.list.Select(0)
	}
	m.view = v
	m.flash = ""
	m.keys.gate(m.view, m.role())
	listCmd := m.refreshList()
	loadCmd := m.load()
	if listCmd == nil {
		return loadCmd
	}
	return tea.Batch(listCmd, loadCmd)
}

// toLogin drops everything fetched under the old session and shows the login
// form. It is idempotent so a 401 and the expiry signal can both land.
func (m *appModel) toLogin(banner string) {
	m.gen++
	m.loading = false
	m.form, m.confirm, m.picker = nil, nil, nil
	m.ov, m.loaded = model.Overview{}, false
	m.users, m.usersLoaded = nil, false
	m.customerFilter, m.offerFilter, m.taskFilter = filter.Customers{}, filter.Offers{}, filter.Tasks{}
	m.list.ResetFilter()
	m.list.SetItems(nil)
	if m.view != viewLogin {
		m.auth = newLoginForm("")
	}
	m.view = viewLogin
	m.banner = banner
	m.flash = ""
}

// refreshList rebuilds the rows of the current view, keeping the selection.
func (m *appModel) refreshList() tea.Cmd {
	var selected int64
	if r, ok := m.list.SelectedItem().(rowItem); ok {
		selected = r.ID()
	}
	names := filter.CustomerNames(m.ov.Customers)

	var items []list.Item
	switch m.view {
	case viewCustomers:
		items = customerItems(m.ov.Customers, m.customerFilter)
	case viewOffers:
		items = offerItems(m.ov.Offers, m.offerFilter, names)
	case viewTasks:
		items = taskItems(m.ov.Tasks, m.taskFilter, names, m.now())
	case viewUsers:
		items = userItems(m.users)
	default:
		return nil
	}
	cmd := m.list.SetItems(items)
	selectIDInList(&m.list, selected)
	return cmd
}

func (m appModel) selected() rowItem {
	r, _ := m.list.SelectedItem().(rowItem)
	return r
}

func (m *appModel) resize(width, height int) {
	m.width, m.height = width, height
	m.help.Width = width
	// One line of the list pane goes to the filter summary.
	m.list.SetSize(listWidth(width), m.bodyHeight()-1)
}

// bodyHeight leaves room for the header, tabs, banner and footer.
func (m appModel) bodyHeight() int {
	return max(m.height-6, 3)
}

func (m appModel) View() string {
	keys := m.keys
	keys.gate(m.view, m.role())

	header := styleHeading().Render("CRM") + styleMuted().Render(" · "+m.view.title())
	if u := m.username(); u != "" && m.view.authenticated() {
		who := fmt.Sprintf("%s (%s)", u, m.role())
		pad := max(m.width-lipgloss.Width(header)-lipgloss.Width(who), 1)
		header += strings.Repeat(" ", pad) + styleMuted().Render(who)
	}

	lines := []string{header}
	if m.view.authenticated() {
		lines = append(lines, m.tabs(keys))
	}

	status := ""
	switch {
	case m.banner != "":
		status = styleError().Render(m.banner)
	case m.loading:
		status = m.spin.View() + " " + styleMuted().Render("loading…")
	case m.flash != "":
		status = styleOK().Render(m.flash)
	}
	lines = append(lines, status, m.body())
	lines = append(lines, m.help.ShortHelpView(keys.shortHelp(m.view)))
	return strings.Join(lines, "\n")
}

func (m appModel) tabs(keys keyMap) string {
	var parts []string
	for _, t := range []struct {
		enabled bool
		label   string
		v       view
	}{
		{keys.Dashboard.Enabled(), "1 Dashboard", viewDashboard},
		{keys.Customers.Enabled(), "2 Customers", viewCustomers},
		{keys.Offers.Enabled(), "3 Offers", viewOffers},
		{keys.Tasks.Enabled(), "4 Tasks", viewTasks},
		{keys.Users.Enabled(), "5 Users", viewUsers},
	} {
		if !t.enabled {
			continue
		}
		if t.v == m.view {
			parts = append(parts, styleHeading().Render("["+t.label+"]"))
		} else {
			parts = append(parts, styleMuted().Render(" "+t.label+" "))
		}
	}
	return strings.Join(parts, " ")
}

func (m appModel) body() string {
	width := max(m.width, 40)
	switch {
	case m.confirm != nil:
		return m.centered(renderConfirmModal(width, *m.confirm))
	case m.picker != nil:
		return m.centered(m.picker.view(width))
	case m.form != nil:
		return m.centered(renderModalBox(width, m.form.title, m.form.view(modalBodyWidth(width))))
	}

	switch m.view {
	case viewLogin, viewRegister:
		hint := "enter: sign in   ctrl+r: create account   ctrl+c: quit"
		if m.view == viewRegister {
			hint = "enter: create account   esc: back to sign in   ctrl+c: quit"
		}
		f := m.auth
		return m.centered(renderModalBox(width, f.title, f.view(modalBodyWidth(width))+"\n"+styleMuted().Render(hint)))
	case viewDashboard:
		return dashboardView(m.ov, m.now(), width)
	}
	return splitPanes(m.filterLine()+"\n"+m.list.View(), m.detail(detailWidth(width)), width, m.bodyHeight())
}

func (m appModel) centered(s string) string {
	if m.width == 0 || m.height == 0 {
		return s
	}
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, s)
}

func (m appModel) filterLine() string {
	var parts []string
	names := filter.CustomerNames(m.ov.Customers)
	switch m.view {
	case viewCustomers:
		if m.customerFilter.Status != "" {
			parts = append(parts, "status: "+string(m.customerFilter.Status))
		}
	case viewOffers:
		if m.offerFilter.Status != "" {
			parts = append(parts, "status: "+string(m.offerFilter.Status))
		}
		if m.offerFilter.CustomerID != 0 {
			parts = append(parts, "customer: "+filter.CustomerName("", m.offerFilter.CustomerID, names))
		}
	case viewTasks:
		if m.taskFilter.Status != "" {
			parts = append(parts, "status: "+string(m.taskFilter.Status))
		}
		if m.taskFilter.CustomerID != 0 {
			parts = append(parts, "customer: "+filter.CustomerName("", m.taskFilter.CustomerID, names))
		}
		if m.taskFilter.Overdue {
			parts = append(parts, "overdue")
		}
	}
	if len(parts) == 0 {
		return styleMuted().Render(fmt.Sprintf("%d rows", len(m.list.VisibleItems())))
	}
	return styleMuted().Render(strings.Join(parts, "  ·  "))
}

func (m appModel) detail(width int) string {
	switch it := m.selected().(type) {
	case customerItem:
		return customerDetail(it.c, m.ov, width)
	case offerItem:
		return offerDetail(it.o, m.ov, width)
	case taskItem:
		return taskDetail(it.t, m.ov, m.now(), width)
	case userItem:
		return userDetail(it.u)
	}
	if m.loaded || m.usersLoaded {
		return styleMuted().Render("Nothing selected.")
	}
	return ""
}
