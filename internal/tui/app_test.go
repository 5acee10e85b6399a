package tui

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"crm-cli/internal/api"
	"crm-cli/internal/crmtest"
	"crm-cli/internal/model"
	"crm-cli/internal/mutate"
	"crm-cli/internal/session"
	"crm-cli/internal/store"
)

func newTestApp(t *testing.T, srv *crmtest.Server) appModel {
	t.Helper()
	sess := session.New(store.Local{Dir: t.TempDir()})
	c, err := api.New(api.Options{BaseURL: srv.BaseURL(), Session: sess, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	m := newAppModel(context.Background(), c)
	t.Cleanup(m.unsubscribe)
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func step(t *testing.T, m appModel, msg tea.Msg) (appModel, tea.Cmd) {
	t.Helper()
	mm, cmd := m.Update(msg)
	am, ok := mm.(appModel)
	if !ok {
		t.Fatalf("expected appModel, got %T", mm)
	}
	return am, cmd
}

// settle runs cmd and every command that follows from it, feeding each message
// back into the model.
func settle(t *testing.T, m appModel, cmd tea.Cmd) appModel {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for n := 0; len(queue) > 0; n++ {
		if n > 100 {
			t.Fatalf("commands did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case tea.QuitMsg:
		default:
			var next tea.Cmd
			m, next = step(t, m, msg)
			queue = append(queue, next)
		}
	}
	return m
}

func press(t *testing.T, m appModel, k string) appModel {
	t.Helper()
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "space":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+s":
		msg = tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+r":
		msg = tea.KeyMsg{Type: tea.KeyCtrlR}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	m, cmd := step(t, m, msg)
	return settle(t, m, cmd)
}

func typeText(t *testing.T, m appModel, s string) appModel {
	t.Helper()
	for _, r := range s {
		m = press(t, m, string(r))
	}
	return m
}

func login(t *testing.T, m appModel, username, password string) appModel {
	t.Helper()
	m = typeText(t, m, username)
	m = press(t, m, "tab")
	m = typeText(t, m, password)
	return press(t, m, "enter")
}

func selectRow(t *testing.T, m appModel, id int64) appModel {
	t.Helper()
	selectIDInList(&m.list, id)
	if r := m.selected(); r == nil || r.ID() != id {
		t.Fatalf("row %d not in the %s list", id, m.view.title())
	}
	return m
}

func seed(srv *crmtest.Server) (model.Customer, model.Offer, model.Task) {
	c := srv.AddCustomer(model.Customer{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Status: model.CustomerActive})
	srv.AddCustomer(model.Customer{FirstName: "Alan", LastName: "Turing", Email: "alan@example.com"})
	o := srv.AddOffer(model.Offer{Title: "Engine", Price: 100, CustomerID: c.ID})
	srv.AddOffer(model.Offer{Title: "Old deal", Price: 50, Status: model.OfferAccepted, CustomerID: c.ID})
	due := model.NewLocalTime(time.Now().Add(-48 * time.Hour))
	tk := srv.AddTask(model.Task{Title: "Call Ada", DueDate: due, CustomerID: c.ID})
	return c, o, tk
}

func TestLogin_ShowsDashboardWithCounts(t *testing.T) {
	t.Parallel()

	srv := crmtest.New(t)
	srv.AddUser("alice", "password", "ROLE_ADMIN")
	seed(srv)

	m := newTestApp(t, srv)
	if m.view != viewLogin {
		t.Fatalf("expected login view without a persisted credential, got %s", m.view.title())
	}
	m = login(t, m, "alice", "password")
	if m.view != viewDashboard {
		t.Fatalf("expected dashboard after login, got %s (banner %q, form %q)", m.view.title(), m.banner, m.auth.banner)
	}
	if got := api.CountOverview(m.ov); got.Customers != 2 || got.ActiveOffers != 1 || got.OpenTasks != 1 {
		t.Fatalf("unexpected counts: %+v", got)
	}
	out := m.View()
	for _, want := range []string{"active offers", "open tasks", "alice (ADMIN)", "5 Users", "Call Ada"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected dashboard to contain %q; got:\n%s", want, out)
		}
	}
}

func TestLogin_InvalidCredentialsStayOnLogin(t *testing.T) {
	t.Parallel()

	srv := crmtest.New(t)
	srv.AddUser("bob", "password", "USER")

	m := newTestApp(t, srv)
	m = login(t, m, "bob", "wrong")
	if m.view != viewLogin {
		t.Fatalf("expected to stay on login, got %s", m.view.title())
	}
	if !strings.Contains(m.auth.banner, "invalid username or password") {
		t.Fatalf("unexpected login banner: %q", m.auth.banner)
	}
	if m.auth.value("username") != "bob" || m.auth.value("password") != "" {
		t.Fatalf("expected username kept and password cleared")
	}
	if m.sess.State() != session.Anonymous {
		t.Fatalf("expected anonymous session, got %s", m.sess.State())
	}
}

func TestUnauthorizedResponse_ReturnsToLogin(t *testing.T) {
	t.Parallel()

	srv := crmtest.New(t)
	srv.AddUser("bob", "password", "USER")
	seed(srv)

	m := newTestApp(t, srv)
	m = login(t, m, "bob", "password")
	m = press(t, m, "2")
	if m.view != viewCustomers || len(m.list.Items()) != 2 {
		t.Fatalf("expected customers view with 2 rows, got %s with %d", m.view.title(), len(m.list.Items()))
	}

	srv.Fail(http.MethodGet, "/api/customers", http.StatusUnauthorized, "Bad credentials", 1)
	m = press(t, m, "r")

	if m.view != viewLogin {
		t.Fatalf("expected login view after 401, got %s", m.view.title())
	}
	if m.banner != expiredBanner {
		t.Fatalf("unexpected banner: %q", m.banner)
	}
	if m.sess.State() != session.Anonymous {
		t.Fatalf("expected session torn down, got %s", m.sess.State())
	}
	if len(m.ov.Customers) != 0 || len(m.list.Items()) != 0 {
		t.Fatalf("expected data of the old session to be dropped")
	}
	select {
	case <-m.expired:
	default:
		t.Fatalf("expected the expiry listener to fire")
	}

	// The expiry signal arriving after the 401 was handled changes nothing.
	m, _ = step(t, m, sessionExpiredMsg{})
	if m.view != viewLogin || m.banner != expiredBanner {
		t.Fatalf("expected login view to stay, got %s / %q", m.view.title(), m.banner)
	}
}

func TestStaleResponses_AreDropped(t *testing.T) {
	t.Parallel()

	srv := crmtest.New(t)
	srv.AddUser("bob", "password", "USER")
	seed(srv)

	m := newTestApp(t, srv)
	m = login(t, m, "bob", "password")

	// Switch views twice before the first fetch answers.
	m, first := step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2")})
	m, second := step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("3")})

	stale := first().(overviewMsg)
	if stale.gen == m.gen {
		t.Fatalf("expected the first fetch to carry an older generation")
	}
	stale.ov.Customers = nil
	m, _ = step(t, m, stale)
	if !m.loading {
		t.Fatalf("expected the stale response to be ignored while the current one is in flight")
	}

	m = settle(t, m, second)
	if m.loading || m.view != viewOffers || len(m.list.Items()) != 2 {
		t.Fatalf("expected offers view with 2 rows, got %s with %d (loading %v)", m.view.title(), len(m.list.Items()), m.loading)
	}
	if len(m.ov.Customers) != 2 {
		t.Fatalf("expected customers from the current response, got %d", len(m.ov.Customers))
	}
}

func TestGating_HiddenControlsIgnoreKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		role       string
		wantForm   bool
		wantDelete bool
		wantUsers  bool
	}{
		{name: "user", role: "USER"},
		{name: "manager", role: "MANAGER", wantForm: true},
		{name: "admin", role: "ADMIN", wantForm: true, wantDelete: true, wantUsers: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := crmtest.New(t)
			srv.AddUser("pat", "password", tc.role)
			seed(srv)

			m := newTestApp(t, srv)
			m = login(t, m, "pat", "password")
			m = press(t, m, "2")

			withForm := press(t, m, "n")
			if got := withForm.form != nil; got != tc.wantForm {
				t.Fatalf("n opened form = %v, want %v", got, tc.wantForm)
			}
			withConfirm := press(t, m, "d")
			if got := withConfirm.confirm != nil; got != tc.wantDelete {
				t.Fatalf("d opened confirm = %v, want %v", got, tc.wantDelete)
			}
			if !tc.wantDelete && withConfirm.list.Index() != m.list.Index() {
				t.Fatalf("expected a disabled key not to reach the list")
			}
			users := press(t, m, "5")
			if got := users.view == viewUsers; got != tc.wantUsers {
				t.Fatalf("5 switched to users = %v, want %v", got, tc.wantUsers)
			}
			if got := strings.Contains(m.View(), "5 Users"); got != tc.wantUsers {
				t.Fatalf("users tab shown = %v, want %v", got, tc.wantUsers)
			}
		})
	}
}

func TestTaskToggle_AllowedForUser(t *testing.T) {
	t.Parallel()

	srv := crmtest.New(t)
	srv.AddUser("bob", "password", "USER")
	_, _, tk := seed(srv)

	m := newTestApp(t, srv)
	m = login(t, m, "bob", "password")
	m = press(t, m, "4")
	m = selectRow(t, m, tk.ID)
	if !strings.Contains(m.View(), "Call Ada !") {
		t.Fatalf("expected overdue marker on the task row; got:\n%s", m.View())
	}

	m = press(t, m, "space")
	got, _ := srv.Task(tk.ID)
	if got.Status != model.TaskDone {
		t.Fatalf("expected backend task DONE, got %s", got.Status)
	}
	if it, ok := m.selected().(taskItem); !ok || it.t.Status != model.TaskDone {
		t.Fatalf("expected local task DONE after confirmation, got %+v", m.selected())
	}
}

func TestOfferStatus_ForbiddenLeavesRowUnchanged(t *testing.T) {
	t.Parallel()

	srv := crmtest.New(t)
	srv.AddUser("mia", "password", "MANAGER")
	_, offer, _ := seed(srv)

	m := newTestApp(t, srv)
	m = login(t, m, "mia", "password")
	m = press(t, m, "3")
	m = selectRow(t, m, offer.ID)

	srv.Fail(http.MethodPatch, "/api/offers/:id/status", http.StatusForbidden, "Access denied", 1)
	m = press(t, m, "s")
	if m.picker == nil {
		t.Fatalf("expected status picker")
	}
	m = press(t, m, "down")
	m = press(t, m, "enter")

	if !strings.Contains(m.banner, "permission") {
		t.Fatalf("expected a permission banner, got %q", m.banner)
	}
	if it := m.selected().(offerItem); it.o.Status != model.OfferDraft {
		t.Fatalf("expected offer to stay DRAFT, got %s", it.o.Status)
	}

	// The same change goes through once the backend allows it.
	m = press(t, m, "s")
	m = press(t, m, "down")
	m = press(t, m, "enter")
	if it := m.selected().(offerItem); it.o.Status != model.OfferSent {
		t.Fatalf("expected offer SENT, got %s (banner %q)", it.o.Status, m.banner)
	}
	if got, _ := srv.Offer(offer.ID); got.Status != model.OfferSent {
		t.Fatalf("expected backend offer SENT, got %s", got.Status)
	}
}

func TestOfferStatus_FailedLatestShowsOlderConfirmedStatus(t *testing.T) {
	t.Parallel()

	srv := crmtest.New(t)
	srv.AddUser("mia", "password", "MANAGER")
	_, offer, _ := seed(srv)

	m := newTestApp(t, srv)
	m = login(t, m, "mia", "password")
	m = press(t, m, "3")
	m = selectRow(t, m, offer.ID)

	req := mutate.Request{Kind: mutate.KindOffer, ID: offer.ID, Current: string(model.OfferDraft), Target: string(model.OfferAccepted)}
	out := mutate.Outcome{
		Request:   req,
		Phase:     mutate.PhaseFailed,
		Seq:       2,
		Err:       &mutate.TransitionError{Reason: mutate.ReasonForbidden, Kind: mutate.KindOffer, ID: offer.ID, Target: req.Target},
		Confirmed: string(model.OfferSent),
	}
	m, cmd := step(t, m, transitionMsg{sessGen: m.sess.Generation(), out: out})
	m = settle(t, m, cmd)

	if !strings.Contains(m.banner, "permission") {
		t.Fatalf("expected a permission banner, got %q", m.banner)
	}
	if it := m.selected().(offerItem); it.o.Status != model.OfferSent {
		t.Fatalf("expected the confirmed SENT to be shown, got %s", it.o.Status)
	}
}

func TestOfferStatus_SameStatusSendsNothing(t *testing.T) {
	t.Parallel()

	srv := crmtest.New(t)
	srv.AddUser("mia", "password", "MANAGER")
	_, offer, _ := seed(srv)

	m := newTestApp(t, srv)
	m = login(t, m, "mia", "password")
	m = press(t, m, "3")
	m = selectRow(t, m, offer.ID)
	m = press(t, m, "s")
	m = press(t, m, "enter")

	if n := srv.Calls(http.MethodPatch, "/api/offers/:id/status"); n != 0 {
		t.Fatalf("expected no PATCH for an unchanged status, got %d", n)
	}
	if m.flash != "Status unchanged." {
		t.Fatalf("unexpected flash: %q", m.flash)
	}
}

func TestCustomerForm_ValidationSendsNoRequest(t *testing.T) {
	t.Parallel()

	srv := crmtest.New(t)
	srv.AddUser("mia", "password", "MANAGER")

	m := newTestApp(t, srv)
	m = login(t, m, "mia", "password")
	m = press(t, m, "2")
	m = press(t, m, "n")
	m = typeText(t, m, "Grace")
	m = press(t, m, "tab")
	m = press(t, m, "tab")
	m = typeText(t, m, "not-an-email")
	m = press(t, m, "ctrl+s")

	if m.form == nil {
		t.Fatalf("expected form to stay open")
	}
	for _, field := range []string{"lastName", "email"} {
		if _, ok := m.form.errs[field]; !ok {
			t.Fatalf("expected an error for %s, got %v", field, m.form.errs)
		}
	}
	if n := srv.CallsByMethod(http.MethodPost); n != 0 {
		t.Fatalf("expected no POST, got %d", n)
	}

	// Fix the fields and save.
	m.form.setValue("lastName", "Hopper")
	m.form.setValue("email", "grace@example.com")
	m = press(t, m, "ctrl+s")
	if m.form != nil {
		t.Fatalf("expected form closed after save; errs %v banner %q", m.form.errs, m.form.banner)
	}
	it, ok := m.selected().(customerItem)
	if !ok || it.c.FullName() != "Grace Hopper" {
		t.Fatalf("expected the new customer selected, got %+v", m.selected())
	}
	if _, ok := srv.Customer(it.c.ID); !ok {
		t.Fatalf("expected customer %d on the backend", it.c.ID)
	}
}

func TestTaskForm_ParseErrorsStayLocal(t *testing.T) {
	t.Parallel()

	srv := crmtest.New(t)
	srv.AddUser("mia", "password", "MANAGER")
	seed(srv)

	m := newTestApp(t, srv)
	m = login(t, m, "mia", "password")
	m = press(t, m, "4")
	m = press(t, m, "n")
	m.form.setValue("title", "Follow up")
	m.form.setValue("dueDate", "next tuesday")
	m = press(t, m, "ctrl+s")

	if m.form == nil || !strings.Contains(m.form.errs["dueDate"], "invalid due date") {
		t.Fatalf("expected a due date error, got %+v", m.form)
	}
	if n := srv.CallsByMethod(http.MethodPost); n != 0 {
		t.Fatalf("expected no POST, got %d", n)
	}
}

func TestDeleteOffer_RequiresConfirmation(t *testing.T) {
	t.Parallel()

	srv := crmtest.New(t)
	srv.AddUser("alice", "password", "ADMIN")
	_, offer, _ := seed(srv)

	m := newTestApp(t, srv)
	m = login(t, m, "alice", "password")
	m = press(t, m, "3")
	m = selectRow(t, m, offer.ID)

	m = press(t, m, "d")
	m = press(t, m, "n")
	if n := srv.CallsByMethod(http.MethodDelete); n != 0 {
		t.Fatalf("expected no DELETE after cancel, got %d", n)
	}

	m = press(t, m, "d")
	m = press(t, m, "y")
	if _, ok := srv.Offer(offer.ID); ok {
		t.Fatalf("expected offer deleted on the backend")
	}
	for _, it := range m.list.Items() {
		if it.(offerItem).o.ID == offer.ID {
			t.Fatalf("expected offer removed from the list")
		}
	}
}

func TestCustomerShortcut_NarrowsOffers(t *testing.T) {
	t.Parallel()

	srv := crmtest.New(t)
	srv.AddUser("bob", "password", "USER")
	c, _, _ := seed(srv)
	other := srv.AddCustomer(model.Customer{FirstName: "Edsger", LastName: "Dijkstra", Email: "e@example.com"})
	srv.AddOffer(model.Offer{Title: "Other", Price: 1, CustomerID: other.ID})

	m := newTestApp(t, srv)
	m = login(t, m, "bob", "password")
	m = press(t, m, "2")
	m = selectRow(t, m, c.ID)
	m = press(t, m, "o")

	if m.view != viewOffers || m.offerFilter.CustomerID != c.ID {
		t.Fatalf("expected offers narrowed to customer %d, got %s / %d", c.ID, m.view.title(), m.offerFilter.CustomerID)
	}
	if len(m.list.Items()) != 2 {
		t.Fatalf("expected 2 offers of %s, got %d", c.FullName(), len(m.list.Items()))
	}
	m = press(t, m, "esc")
	if len(m.list.Items()) != 3 {
		t.Fatalf("expected all 3 offers after esc, got %d", len(m.list.Items()))
	}
	m = press(t, m, "f")
	if m.offerFilter.Status != model.OfferDraft || len(m.list.Items()) != 2 {
		t.Fatalf("expected DRAFT filter with 2 rows, got %q with %d", m.offerFilter.Status, len(m.list.Items()))
	}
}

func TestUserRoleChange_ConfirmAndReload(t *testing.T) {
	t.Parallel()

	srv := crmtest.New(t)
	srv.AddUser("alice", "password", "ROLE_ADMIN")
	bob := srv.AddUser("bob", "password", "ROLE_USER")

	m := newTestApp(t, srv)
	m = login(t, m, "alice", "password")
	m = press(t, m, "5")
	if m.view != viewUsers || len(m.list.Items()) != 2 {
		t.Fatalf("expected users view with 2 rows, got %s with %d", m.view.title(), len(m.list.Items()))
	}
	m = selectRow(t, m, bob)
	m = press(t, m, "enter")
	m = press(t, m, "down")
	m = press(t, m, "enter")
	if m.confirm == nil {
		t.Fatalf("expected a confirmation before changing the role")
	}
	if n := srv.CallsByMethod(http.MethodPatch); n != 0 {
		t.Fatalf("expected no PATCH before confirming, got %d", n)
	}
	m = press(t, m, "y")

	if got := srv.Roles("bob"); len(got) != 1 || got[0] != "MANAGER" {
		t.Fatalf("expected bob to be MANAGER, got %v", got)
	}
	m = selectRow(t, m, bob)
	if it := m.selected().(userItem); it.u.RoleLabel() != "MANAGER" {
		t.Fatalf("expected reloaded list to show MANAGER, got %s", it.u.RoleLabel())
	}
}

func TestUserRoleChange_AdminRowsAreReadOnly(t *testing.T) {
	t.Parallel()

	srv := crmtest.New(t)
	alice := srv.AddUser("alice", "password", "ROLE_ADMIN")
	bob := srv.AddUser("bob", "password", "ROLE_MANAGER")

	m := newTestApp(t, srv)
	m = login(t, m, "alice", "password")
	m = press(t, m, "5")

	m = selectRow(t, m, alice)
	m = press(t, m, "enter")
	if m.picker != nil {
		t.Fatalf("expected no role picker for an administrator")
	}

	m = selectRow(t, m, bob)
	m = press(t, m, "enter")
	if m.picker == nil {
		t.Fatalf("expected a role picker for a manager")
	}
	m = press(t, m, "enter")
	if m.confirm != nil || m.picker != nil {
		t.Fatalf("expected picking the current role to close without confirming")
	}
	if n := srv.CallsByMethod(http.MethodPatch); n != 0 {
		t.Fatalf("expected no PATCH, got %d", n)
	}
}

func TestRegister_ValidatesThenSignsIn(t *testing.T) {
	t.Parallel()

	srv := crmtest.New(t)

	m := newTestApp(t, srv)
	m = press(t, m, "ctrl+r")
	if m.view != viewRegister {
		t.Fatalf("expected register view, got %s", m.view.title())
	}
	m.auth.setValue("username", "newbie")
	m.auth.setValue("email", "newbie@example.com")
	m.auth.setValue("password", "secret1")
	m.auth.setValue("confirmPassword", "secret2")
	m = press(t, m, "ctrl+s")
	if m.auth.errs["confirmPassword"] != "passwords do not match" {
		t.Fatalf("expected mismatch error, got %v", m.auth.errs)
	}
	if n := srv.CallsByMethod(http.MethodPost); n != 0 {
		t.Fatalf("expected no POST, got %d", n)
	}

	m.auth.setValue("confirmPassword", "secret1")
	m = press(t, m, "ctrl+s")
	if m.view != viewDashboard {
		t.Fatalf("expected dashboard after register, got %s (errs %v banner %q)", m.view.title(), m.auth.errs, m.auth.banner)
	}
	if u := m.username(); u != "newbie" {
		t.Fatalf("expected signed in as newbie, got %q", u)
	}
}

func TestLogout_ClearsSession(t *testing.T) {
	t.Parallel()

	srv := crmtest.New(t)
	srv.AddUser("bob", "password", "USER")

	m := newTestApp(t, srv)
	m = login(t, m, "bob", "password")
	m = press(t, m, "L")
	if m.view != viewLogin || m.sess.State() != session.Anonymous {
		t.Fatalf("expected anonymous login view, got %s / %s", m.view.title(), m.sess.State())
	}
	select {
	case <-m.expired:
		t.Fatalf("logout must not look like an expiry")
	default:
	}
}
