package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"crm-cli/internal/crmtest"
	"crm-cli/internal/model"
	"crm-cli/internal/perm"
	"crm-cli/internal/session"
	"crm-cli/internal/store"
)

func newTestClient(t *testing.T, baseURL string) (*Client, *session.Session, store.Local) {
	t.Helper()
	st := store.Local{Dir: t.TempDir()}
	sess := session.New(st)
	c, err := New(Options{BaseURL: baseURL, Session: sess})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, sess, st
}

func TestLogin_UsernameHeuristicWhenBackendHasNoMe(t *testing.T) {
	srv := crmtest.New(t, crmtest.WithoutMe())
	srv.AddUser("manager", "password", "MANAGER")
	c, sess, st := newTestClient(t, srv.BaseURL())
	ctx := context.Background()

	p, err := c.Login(ctx, "manager", "password")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if len(p.RoleClaims) != 0 {
		t.Fatalf("expected claim-less principal, got %v", p.RoleClaims)
	}
	if got := sess.Role(); got != perm.RoleManager {
		t.Fatalf("expected MANAGER, got %v", got)
	}
	if srv.Calls(http.MethodGet, "/api/users/me") != 1 || srv.Calls(http.MethodGet, "/api/customers") != 1 {
		t.Fatalf("expected /users/me probe then /customers fallback")
	}
	saved, err := st.Load(ctx)
	if err != nil || saved == nil || saved.Username != "manager" {
		t.Fatalf("expected persisted credential, got %+v err=%v", saved, err)
	}
}

func TestLogin_ClaimsFromMe(t *testing.T) {
	srv := crmtest.New(t)
	srv.AddUser("alice", "secret", "ROLE_ADMIN")
	c, sess, _ := newTestClient(t, srv.BaseURL())

	if _, err := c.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := sess.Role(); got != perm.RoleAdmin {
		t.Fatalf("expected ADMIN from claims, got %v", got)
	}
	if srv.Calls(http.MethodGet, "/api/customers") != 0 {
		t.Fatalf("expected no fallback probe when /users/me works")
	}
}

func TestLogin_MeForbiddenFallsBackToCustomers(t *testing.T) {
	srv := crmtest.New(t, crmtest.MeAdminOnly())
	srv.AddUser("user", "pw1234", "USER")
	c, sess, _ := newTestClient(t, srv.BaseURL())

	if _, err := c.Login(context.Background(), "user", "pw1234"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.State() != session.Authenticated || sess.Role() != perm.RoleUser {
		t.Fatalf("unexpected session: %v %v", sess.State(), sess.Role())
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv := crmtest.New(t)
	srv.AddUser("manager", "password", "MANAGER")
	c, sess, st := newTestClient(t, srv.BaseURL())
	ctx := context.Background()

	_, err := c.Login(ctx, "manager", "wrong")
	var le *LoginError
	if !errors.As(err, &le) || !le.Invalid {
		t.Fatalf("expected invalid-credentials LoginError, got %v", err)
	}
	if sess.State() != session.Anonymous {
		t.Fatalf("expected Anonymous after failed probe, got %v", sess.State())
	}
	if saved, _ := st.Load(ctx); saved != nil {
		t.Fatalf("nothing must be persisted on failed login, got %+v", saved)
	}
}

func TestLogin_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, sess, _ := newTestClient(t, url)
	_, err := c.Login(context.Background(), "manager", "password")
	var le *LoginError
	if !errors.As(err, &le) || le.Invalid {
		t.Fatalf("expected connection LoginError, got %v", err)
	}
	if KindOf(err) != KindNetwork {
		t.Fatalf("expected network kind, got %q", KindOf(err))
	}
	if sess.State() != session.Anonymous {
		t.Fatalf("expected Anonymous, got %v", sess.State())
	}
}

func TestAny401TearsDownSession(t *testing.T) {
	srv := crmtest.New(t)
	srv.AddUser("manager", "password", "MANAGER")
	srv.AddCustomer(model.Customer{FirstName: "Ada", LastName: "L", Email: "ada@example.com"})
	c, sess, st := newTestClient(t, srv.BaseURL())
	ctx := context.Background()

	if _, err := c.Login(ctx, "manager", "password"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	var expired atomic.Int32
	sess.OnExpire(func() { expired.Add(1) })

	// A background dashboard fetch hits an expired credential.
	srv.Fail(http.MethodGet, "/api/tasks", http.StatusUnauthorized, "", 1)
	_, err := c.Overview(ctx)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	snap := sess.Snapshot()
	if snap.State != session.Anonymous || snap.Principal != nil || snap.Credential != "" {
		t.Fatalf("expected session cleared, got %+v", snap)
	}
	if expired.Load() != 1 {
		t.Fatalf("expected one expiry notification, got %d", expired.Load())
	}
	if saved, _ := st.Load(ctx); saved != nil {
		t.Fatalf("expected persisted credential cleared, got %+v", saved)
	}
}

func TestLate401FromEarlierSessionIsIgnored(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	t.Cleanup(srv.Close)

	c, sess, st := newTestClient(t, srv.URL)
	ctx := context.Background()
	signIn := func(name string) {
		t.Helper()
		if _, err := sess.BeginLogin(name, "password"); err != nil {
			t.Fatalf("BeginLogin: %v", err)
		}
		if err := sess.Commit(ctx, model.Principal{Username: name}); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}
	signIn("manager")

	done := make(chan error, 1)
	go func() {
		_, err := c.ListCustomers(ctx)
		done <- err
	}()
	<-entered

	if err := sess.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	signIn("admin")
	var expired atomic.Int32
	sess.OnExpire(func() { expired.Add(1) })

	close(release)
	if err := <-done; !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if sess.State() != session.Authenticated || expired.Load() != 0 {
		t.Fatalf("expected the admin session to survive, got %v with %d notifications", sess.State(), expired.Load())
	}
	if saved, _ := st.Load(ctx); saved == nil || saved.Username != "admin" {
		t.Fatalf("expected persisted admin credential, got %+v", saved)
	}
}

func TestErrorKindsAndMessages(t *testing.T) {
	srv := crmtest.New(t)
	srv.AddUser("admin", "password", "ADMIN")
	c, _, _ := newTestClient(t, srv.BaseURL())
	ctx := context.Background()
	if _, err := c.Login(ctx, "admin", "password"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	_, err := c.GetCustomer(ctx, 999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	srv.Fail(http.MethodPatch, "/api/offers/:id/status", http.StatusForbidden, "Access denied", 1)
	err = c.SetOfferStatus(ctx, 1, model.OfferAccepted)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if UserMessage(err) != "You don't have permission to do this." {
		t.Fatalf("unexpected forbidden message: %q", UserMessage(err))
	}

	_, err = c.CreateCustomer(ctx, model.CustomerInput{FirstName: "A", LastName: "B", Email: "bad", Status: model.CustomerLead})
	if KindOf(err) != KindBadRequest {
		t.Fatalf("expected bad request, got %v", err)
	}
	if msg := UserMessage(err); !strings.Contains(msg, "Invalid input data") || !strings.Contains(msg, "email") {
		t.Fatalf("expected server detail with field errors, got %q", msg)
	}

	srv.Fail(http.MethodGet, "/api/offers", http.StatusInternalServerError, "database down", 1)
	_, err = c.ListOffers(ctx)
	if KindOf(err) != KindServer || UserMessage(err) != "Server error: database down" {
		t.Fatalf("expected server error with detail, got %v / %q", err, UserMessage(err))
	}

	srv.Fail(http.MethodGet, "/api/offers", http.StatusBadGateway, "", 1)
	_, err = c.ListOffers(ctx)
	if UserMessage(err) != "Unexpected server error." {
		t.Fatalf("expected generic fallback, got %q", UserMessage(err))
	}
}

func TestRequestCarriesSnapshotCredentialAndRequestID(t *testing.T) {
	var gotAuth, gotReqID, gotAccept atomic.Value
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		gotReqID.Store(r.Header.Get("X-Request-ID"))
		gotAccept.Store(r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer hs.Close()

	c, sess, _ := newTestClient(t, hs.URL+"/api/")
	ctx := context.Background()

	// Anonymous requests carry no Authorization header.
	if _, err := c.ListCustomers(ctx); err != nil {
		t.Fatalf("ListCustomers: %v", err)
	}
	if gotAuth.Load().(string) != "" {
		t.Fatalf("expected no credential while anonymous")
	}

	if _, err := sess.BeginLogin("user", "pw"); err != nil {
		t.Fatalf("BeginLogin: %v", err)
	}
	if err := sess.Commit(ctx, model.Principal{}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := c.ListCustomers(ctx); err != nil {
		t.Fatalf("ListCustomers: %v", err)
	}
	if gotAuth.Load().(string) != session.NewCredential("user", "pw").Header() {
		t.Fatalf("unexpected Authorization: %q", gotAuth.Load())
	}
	if gotReqID.Load().(string) == "" {
		t.Fatalf("expected X-Request-ID")
	}
	if gotAccept.Load().(string) != "application/json" {
		t.Fatalf("unexpected Accept: %q", gotAccept.Load())
	}
}

func TestOverview_FailFastReturnsNoPartialData(t *testing.T) {
	srv := crmtest.New(t)
	srv.AddUser("user", "password", "USER")
	cu := srv.AddCustomer(model.Customer{FirstName: "Ada", LastName: "L", Email: "ada@example.com"})
	srv.AddOffer(model.Offer{Title: "Website", Price: 100, CustomerID: cu.ID, Status: model.OfferSent})
	srv.AddOffer(model.Offer{Title: "Audit", Price: 50, CustomerID: cu.ID, Status: model.OfferAccepted})
	srv.AddTask(model.Task{Title: "Call", CustomerID: cu.ID, Status: model.TaskDone})
	srv.AddTask(model.Task{Title: "Mail", CustomerID: cu.ID, Status: model.TaskInProgress})

	c, _, _ := newTestClient(t, srv.BaseURL())
	ctx := context.Background()
	if _, err := c.Login(ctx, "user", "password"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	ov, err := c.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	counts := CountOverview(ov)
	if counts != (Counts{Customers: 1, ActiveOffers: 1, OpenTasks: 1}) {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	srv.Fail(http.MethodGet, "/api/offers", http.StatusInternalServerError, "boom", 1)
	ov, err = c.Overview(ctx)
	if err == nil {
		t.Fatalf("expected failure")
	}
	if ov.Customers != nil || ov.Offers != nil || ov.Tasks != nil {
		t.Fatalf("expected no partial data, got %+v", ov)
	}
}

func TestRegister(t *testing.T) {
	srv := crmtest.New(t)
	srv.AddUser("taken", "password", "USER")
	c, sess, _ := newTestClient(t, srv.BaseURL())
	ctx := context.Background()

	err := c.Register(ctx, model.RegisterInput{Username: "taken", Email: "t@example.com", Password: "secret1"})
	if KindOf(err) != KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if KindOf(err) == KindUnauthorized || sess.Generation() != 0 {
		t.Fatalf("register must not touch the session")
	}

	if err := c.Register(ctx, model.RegisterInput{Username: "newbie", Email: "n@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if roles := srv.Roles("newbie"); len(roles) != 1 || roles[0] != "USER" {
		t.Fatalf("expected new account with USER role, got %v", roles)
	}
}
