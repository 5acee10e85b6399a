package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"crm-cli/internal/api"
	"crm-cli/internal/filter"
	"crm-cli/internal/forms"
	"crm-cli/internal/model"
	"crm-cli/internal/mutate"
	"crm-cli/internal/perm"
	"crm-cli/internal/statusutil"
)

const expiredBanner = "Your session has expired. Please log in again."

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case sessionExpiredMsg:
		m.log.Info().Msg("session expired; back to login")
		m.toLogin(expiredBanner)
		return m, waitExpiredCmd(m.ctx, m.expired)

	case principalMsg:
		if isUnauthorized(msg.err) {
			m.toLogin(expiredBanner)
			return m, nil
		}
		if msg.err != nil {
			m.log.Debug().Err(msg.err).Msg("refresh principal")
		}
		return m, m.switchView(m.view)

	case loginMsg:
		return m.handleLogin(msg)
	case registerMsg:
		return m.handleRegister(msg)
	case loggedOutMsg:
		if msg.err != nil {
			m.log.Error().Err(msg.err).Msg("logout")
		}
		m.toLogin("")
		m.flash = "Logged out."
		return m, nil

	case overviewMsg:
		if msg.gen != m.gen {
			m.log.Debug().Uint64("gen", msg.gen).Uint64("current", m.gen).Msg("drop stale overview")
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			return m.fetchFailed(msg.err)
		}
		m.ov, m.loaded = msg.ov, true
		return m, m.refreshList()

	case usersMsg:
		if msg.gen != m.gen {
			m.log.Debug().Uint64("gen", msg.gen).Uint64("current", m.gen).Msg("drop stale users")
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			return m.fetchFailed(msg.err)
		}
		m.users, m.usersLoaded = msg.users, true
		return m, m.refreshList()

	case savedMsg:
		return m.handleSaved(msg)
	case deletedMsg:
		return m.handleDeleted(msg)
	case transitionMsg:
		return m.handleTransition(msg)
	case roleChangedMsg:
		return m.handleRoleChanged(msg)

	case tea.KeyMsg:
		return m.updateKey(msg)
	}

	// Anything else (filter matches, list internals) belongs to the list.
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m appModel) fetchFailed(err error) (tea.Model, tea.Cmd) {
	if isUnauthorized(err) {
		m.toLogin(expiredBanner)
		return m, nil
	}
	m.banner = errorText(err) + "  (r: retry)"
	return m, nil
}

func (m appModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch {
	case m.confirm != nil:
		done, ok := m.confirm.update(msg)
		if !done {
			return m, nil
		}
		run := m.confirm.run
		m.confirm = nil
		if !ok {
			return m, nil
		}
		return m, run
	case m.picker != nil:
		done, value := m.picker.update(msg)
		if !done {
			return m, nil
		}
		p := m.picker
		m.picker = nil
		if value == "" {
			return m, nil
		}
		return m.picked(p, value)
	case m.form != nil:
		if msg.String() == "esc" {
			m.form = nil
			return m, nil
		}
		if m.form.update(msg) {
			return m.submitForm()
		}
		return m, nil
	case !m.view.authenticated():
		return m.updateAuthKey(msg)
	}

	// The list owns every key while its filter prompt is open.
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	m.keys.gate(m.view, m.role())
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Dashboard):
		return m, m.switchView(viewDashboard)
	case key.Matches(msg, k.Customers):
		return m, m.switchView(viewCustomers)
	case key.Matches(msg, k.Offers):
		m.offerFilter.CustomerID = 0
		return m, m.switchView(viewOffers)
	case key.Matches(msg, k.Tasks):
		m.taskFilter.CustomerID = 0
		return m, m.switchView(viewTasks)
	case key.Matches(msg, k.Users):
		return m, m.switchView(viewUsers)
	case key.Matches(msg, k.Reload):
		return m, m.load()
	case key.Matches(msg, k.Logout):
		return m, logoutCmd(m.ctx, m.client)
	case key.Matches(msg, k.New):
		return m.openForm(0)
	case key.Matches(msg, k.Edit):
		if r := m.selected(); r != nil {
			return m.openForm(r.ID())
		}
		return m, nil
	case key.Matches(msg, k.Delete):
		return m.askDelete()
	case key.Matches(msg, k.Status):
		return m.openStatusPicker()
	case key.Matches(msg, k.Toggle):
		return m.toggleTask()
	case key.Matches(msg, k.Filter):
		m.cycleStatusFilter()
		return m, m.refreshList()
	case key.Matches(msg, k.Overdue):
		m.taskFilter.Overdue = !m.taskFilter.Overdue
		return m, m.refreshList()
	case key.Matches(msg, k.CustomerOffers):
		if it, ok := m.selected().(customerItem); ok {
			m.offerFilter = filter.Offers{CustomerID: it.c.ID}
			return m, m.switchView(viewOffers)
		}
		return m, nil
	case key.Matches(msg, k.CustomerTasks):
		if it, ok := m.selected().(customerItem); ok {
			m.taskFilter = filter.Tasks{CustomerID: it.c.ID}
			return m, m.switchView(viewTasks)
		}
		return m, nil
	case key.Matches(msg, k.Role):
		if it, ok := m.selected().(userItem); ok {
			if it.u.RoleLabel() == perm.RoleAdmin.String() {
				m.banner = "Administrator roles cannot be changed."
				return m, nil
			}
			m.picker = rolePicker(it.u)
		}
		return m, nil
	case msg.String() == "esc" && m.list.FilterState() == list.Unfiltered:
		m.banner = ""
		m.offerFilter.CustomerID = 0
		m.taskFilter.CustomerID = 0
		return m, m.refreshList()
	}

	// A disabled binding still owns its key; the list must not see it.
	if m.view == viewDashboard || k.owns(msg) {
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m appModel) updateAuthKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case m.view == viewLogin && msg.String() == "ctrl+r":
		m.view = viewRegister
		m.auth = newRegisterForm()
		m.banner = ""
		return m, nil
	case m.view == viewRegister && msg.String() == "esc":
		m.view = viewLogin
		m.auth = newLoginForm("")
		return m, nil
	}
	if !m.auth.update(msg) {
		return m, nil
	}

	m.banner, m.flash = "", ""
	if m.view == viewLogin {
		username := strings.TrimSpace(m.auth.value("username"))
		password := m.auth.value("password")
		if username == "" || password == "" {
			m.auth.banner = "username and password are required"
			return m, nil
		}
		m.auth.busy = true
		m.auth.banner = ""
		return m, loginCmd(m.ctx, m.client, username, password)
	}

	in := model.RegisterInput{
		Username:        strings.TrimSpace(m.auth.value("username")),
		Email:           strings.TrimSpace(m.auth.value("email")),
		Password:        m.auth.value("password"),
		ConfirmPassword: m.auth.value("confirmPassword"),
	}
	if err := forms.ValidateRegister(in); err != nil {
		m.auth.fail(err, nil)
		return m, nil
	}
	m.auth.busy = true
	m.auth.errs, m.auth.banner = nil, ""
	return m, registerCmd(m.ctx, m.client, in)
}

func (m appModel) handleLogin(msg loginMsg) (tea.Model, tea.Cmd) {
	if m.view != viewLogin {
		return m, nil
	}
	if msg.err != nil {
		username := m.auth.value("username")
		m.auth = newLoginForm(username)
		m.auth.fail(msg.err, nil)
		return m, nil
	}
	m.banner = ""
	m.flash = "Signed in as " + msg.principal.Username
	return m, m.switchView(viewDashboard)
}

func (m appModel) handleRegister(msg registerMsg) (tea.Model, tea.Cmd) {
	if m.view != viewRegister {
		return m, nil
	}
	switch {
	case msg.err != nil && !msg.registered:
		m.auth.fail(msg.err, serverFields(msg.err))
		return m, nil
	case msg.err != nil:
		username := m.auth.value("username")
		m.view = viewLogin
		m.auth = newLoginForm(username)
		m.auth.banner = "Account created, but signing in failed: " + errorText(msg.err)
		return m, nil
	}
	m.flash = "Welcome, " + msg.principal.Username
	return m, m.switchView(viewDashboard)
}

func (m appModel) openForm(id int64) (tea.Model, tea.Cmd) {
	var f entityForm
	switch m.view {
	case viewCustomers:
		in := model.CustomerInput{}
		if it, ok := m.selected().(customerItem); ok && id != 0 {
			in = it.c.Input()
		}
		f = newCustomerForm(id, in)
	case viewOffers:
		in := model.OfferInput{CustomerID: m.offerFilter.CustomerID}
		if it, ok := m.selected().(offerItem); ok && id != 0 {
			in = it.o.Input()
		}
		f = newOfferForm(id, in, m.ov.Customers)
	case viewTasks:
		in := model.TaskInput{CustomerID: m.taskFilter.CustomerID}
		if it, ok := m.selected().(taskItem); ok && id != 0 {
			in = it.t.Input()
		}
		f = newTaskForm(id, in, m.ov.Customers, m.ov.Offers)
	default:
		return m, nil
	}
	m.form = &f
	return m, nil
}

// submitForm validates locally first; a form with field errors never reaches
// the backend.
func (m appModel) submitForm() (tea.Model, tea.Cmd) {
	f := m.form
	var cmd tea.Cmd
	switch f.kind {
	case entityCustomer:
		in, err := f.customerInput()
		if err != nil {
			f.fail(err, nil)
			return m, nil
		}
		cmd = saveCustomerCmd(m.ctx, m.client, m.gen, f.id, in)
	case entityOffer:
		in, err := f.offerInput()
		if err != nil {
			f.fail(err, nil)
			return m, nil
		}
		cmd = saveOfferCmd(m.ctx, m.client, m.gen, f.id, in)
	case entityTask:
		in, err := f.taskInput()
		if err != nil {
			f.fail(err, nil)
			return m, nil
		}
		cmd = saveTaskCmd(m.ctx, m.client, m.gen, f.id, in)
	default:
		return m, nil
	}
	f.busy = true
	f.errs, f.banner = nil, ""
	return m, cmd
}

func (m appModel) handleSaved(msg savedMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.gen || m.form == nil {
		return m, nil
	}
	if msg.err != nil {
		switch {
		case isUnauthorized(msg.err):
			m.toLogin(expiredBanner)
			return m, nil
		case api.KindOf(msg.err) == api.KindNotFound:
			m.form = nil
			cmd := m.load()
			m.banner = errorText(msg.err)
			return m, cmd
		}
		m.form.fail(msg.err, serverFields(msg.err))
		return m, nil
	}

	created := m.form.id == 0
	m.form = nil
	var id int64
	switch {
	case msg.customer != nil:
		m.ov.Customers = mutate.Upsert(m.ov.Customers, *msg.customer, mutate.CustomerID)
		id = msg.customer.ID
	case msg.offer != nil:
		m.ov.Offers = mutate.Upsert(m.ov.Offers, *msg.offer, mutate.OfferID)
		id = msg.offer.ID
	case msg.task != nil:
		m.ov.Tasks = mutate.Upsert(m.ov.Tasks, *msg.task, mutate.TaskID)
		id = msg.task.ID
	}
	if created {
		m.flash = fmt.Sprintf("Created %s %d.", msg.kind, id)
	} else {
		m.flash = fmt.Sprintf("Saved %s %d.", msg.kind, id)
	}
	cmd := m.refreshList()
	selectIDInList(&m.list, id)
	return m, cmd
}

func (m appModel) askDelete() (tea.Model, tea.Cmd) {
	var (
		kind  entityKind
		label string
	)
	switch it := m.selected().(type) {
	case customerItem:
		kind, label = entityCustomer, it.c.FullName()
	case offerItem:
		kind, label = entityOffer, it.o.Title
	case taskItem:
		kind, label = entityTask, it.t.Title
	default:
		return m, nil
	}
	id := m.selected().ID()
	m.confirm = &confirmState{
		title:        "Delete " + string(kind),
		body:         fmt.Sprintf("Delete %s %q? This cannot be undone.", kind, label),
		confirmLabel: "Delete",
		focus:        confirmFocusCancel,
		run:          deleteCmd(m.ctx, m.client, m.gen, kind, id),
	}
	return m, nil
}

func (m appModel) handleDeleted(msg deletedMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.gen {
		return m, nil
	}
	if msg.err != nil {
		if isUnauthorized(msg.err) {
			m.toLogin(expiredBanner)
			return m, nil
		}
		m.banner = errorText(msg.err)
		return m, nil
	}
	m.flash = fmt.Sprintf("Deleted %s %d.", msg.kind, msg.id)
	switch msg.kind {
	case entityCustomer:
		// Offers and tasks of the customer may be gone too.
		return m, m.load()
	case entityOffer:
		m.ov.Offers = mutate.Without(m.ov.Offers, msg.id, mutate.OfferID)
		m.ctrl.Reset(mutate.KindOffer, msg.id)
	case entityTask:
		m.ov.Tasks = mutate.Without(m.ov.Tasks, msg.id, mutate.TaskID)
		m.ctrl.Reset(mutate.KindTask, msg.id)
	}
	return m, m.refreshList()
}

func (m appModel) openStatusPicker() (tea.Model, tea.Cmd) {
	switch it := m.selected().(type) {
	case offerItem:
		m.picker = offerStatusPicker(it.o)
	case taskItem:
		m.picker = taskStatusPicker(it.t)
	}
	return m, nil
}

func (m appModel) toggleTask() (tea.Model, tea.Cmd) {
	it, ok := m.selected().(taskItem)
	if !ok {
		return m, nil
	}
	target := statusutil.ToggleTaskStatus(it.t.Status)
	return m, m.transition(mutate.KindTask, it.t.ID, string(it.t.Status), string(target))
}

func (m appModel) transition(kind mutate.EntityKind, id int64, current, target string) tea.Cmd {
	req := mutate.Request{Kind: kind, ID: id, Current: current, Target: target}
	return transitionCmd(m.ctx, m.ctrl, m.sess.Generation(), req)
}

func (m appModel) picked(p *picker, value string) (tea.Model, tea.Cmd) {
	switch p.kind {
	case entityOffer:
		return m, m.transition(mutate.KindOffer, p.id, p.current, value)
	case entityTask:
		return m, m.transition(mutate.KindTask, p.id, p.current, value)
	case entityUser:
		role, ok := perm.ParseRole(value)
		if !ok || role == perm.RoleAdmin {
			return m, nil
		}
		if value == p.current {
			m.flash = "Role unchanged."
			return m, nil
		}
		name := strings.TrimPrefix(p.title, "Role of ")
		m.confirm = &confirmState{
			title:        "Change role",
			body:         fmt.Sprintf("Change the role of %s to %s?", name, role),
			confirmLabel: "Change",
			focus:        confirmFocusConfirm,
			run:          changeRoleCmd(m.ctx, m.client, m.gen, p.id, role),
		}
	}
	return m, nil
}

// handleTransition applies the status the backend confirmed. A failed latest
// change shows why and may still carry an older confirmed status; other stale
// outcomes are dropped.
func (m appModel) handleTransition(msg transitionMsg) (tea.Model, tea.Cmd) {
	out := msg.out
	if msg.sessGen != m.sess.Generation() {
		return m, nil
	}
	if out.Err != nil && isUnauthorized(out.Err) {
		m.toLogin(expiredBanner)
		return m, nil
	}
	if out.Stale && !out.Applied() {
		return m, nil
	}
	if out.Err == nil && !out.Changed {
		m.flash = "Status unchanged."
		return m, nil
	}

	var applied bool
	switch out.Kind {
	case mutate.KindOffer:
		m.ov.Offers, applied = mutate.ApplyOfferStatus(m.ov.Offers, out)
	case mutate.KindTask:
		m.ov.Tasks, applied = mutate.ApplyTaskStatus(m.ov.Tasks, out)
	}
	switch {
	case out.Err != nil && !out.Stale:
		m.banner = errorText(out.Err)
	case applied:
		m.banner = ""
		m.flash = fmt.Sprintf("%s %d is now %s.", out.Kind, out.ID, out.Confirmed)
	}
	return m, m.refreshList()
}

func (m appModel) handleRoleChanged(msg roleChangedMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.gen {
		return m, nil
	}
	if msg.err != nil {
		if isUnauthorized(msg.err) {
			m.toLogin(expiredBanner)
			return m, nil
		}
		if api.KindOf(msg.err) == api.KindNotFound {
			m.banner = fmt.Sprintf("User %d not found.", msg.id)
			return m, nil
		}
		m.banner = errorText(msg.err)
		return m, nil
	}
	cmd := m.load()
	m.flash = fmt.Sprintf("Role of user %d updated.", msg.id)
	return m, cmd
}

// cycleStatusFilter steps the current view's status filter through its values
// and back to "all".
func (m *appModel) cycleStatusFilter() {
	switch m.view {
	case viewCustomers:
		m.customerFilter.Status = nextStatus(m.customerFilter.Status, statusutil.CustomerStatuses)
	case viewOffers:
		m.offerFilter.Status = nextStatus(m.offerFilter.Status, statusutil.OfferStatuses)
	case viewTasks:
		m.taskFilter.Status = nextStatus(m.taskFilter.Status, statusutil.TaskStatuses)
	}
}

func nextStatus[T ~string](cur T, all []T) T {
	if cur == "" {
		return all[0]
	}
	for i, s := range all {
		if s == cur && i+1 < len(all) {
			return all[i+1]
		}
	}
	return ""
}
