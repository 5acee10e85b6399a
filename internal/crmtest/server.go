// Package crmtest runs an in-memory CRM backend for tests.
//
// It speaks the same REST surface as the real backend (Basic auth, role checks,
// {message} error bodies), counts calls per route and can be told to fail a
// route with a given status.
package crmtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"

	"crm-cli/internal/forms"
	"crm-cli/internal/model"
	"crm-cli/internal/perm"
	"crm-cli/internal/statusutil"
)

type account struct {
	id       int64
	username string
	email    string
	hash     []byte
	roles    []string
	created  time.Time
}

func (a *account) role() perm.Role {
	best := perm.RoleNone
	for _, r := range a.roles {
		if pr, ok := perm.ParseRole(r); ok && pr > best {
			best = pr
		}
	}
	return best
}

func (a *account) user() model.User {
	enabled, unlocked := true, true
	return model.User{
		ID:               a.id,
		Username:         a.username,
		Email:            a.email,
		Roles:            append([]string(nil), a.roles...),
		Enabled:          &enabled,
		AccountNonLocked: &unlocked,
		CreatedAt:        model.NewLocalTime(a.created),
		UpdatedAt:        model.NewLocalTime(a.created),
	}
}

type failure struct {
	status  int
	message string
	times   int
}

type Option func(*Server)

// WithoutMe makes GET /users/me answer 404, like backends that lack it.
func WithoutMe() Option { return func(s *Server) { s.noMe = true } }

// MeAdminOnly puts /users/me behind the admin-only users rules.
func MeAdminOnly() Option { return func(s *Server) { s.meAdminOnly = true } }

type Server struct {
	*httptest.Server
	Echo *echo.Echo

	mu          sync.Mutex
	noMe        bool
	meAdminOnly bool
	nextID      int64
	accounts    map[string]*account
	customers   map[int64]model.Customer
	offers      map[int64]model.Offer
	tasks       map[int64]model.Task
	calls       map[string]int
	failures    map[string]*failure
}

// New starts a server and closes it when t finishes.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := &Server{
		accounts:  map[string]*account{},
		customers: map[int64]model.Customer{},
		offers:    map[int64]model.Offer{},
		tasks:     map[int64]model.Task{},
		calls:     map[string]int{},
		failures:  map[string]*failure{},
	}
	for _, o := range opts {
		o(s)
	}
	s.Echo = s.router()
	s.Server = httptest.NewServer(s.Echo)
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root the client is configured with.
func (s *Server) BaseURL() string { return s.Server.URL + "/api" }

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

// AddUser registers an account. Roles are stored as given ("ADMIN" or "ROLE_ADMIN").
func (s *Server) AddUser(username, password string, roles ...string) int64 {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &account{
		id:       s.id(),
		username: username,
		email:    username + "@example.com",
		hash:     hash,
		roles:    roles,
		created:  time.Date(2025, 1, 1, 9, 0, 0, 0, time.Local),
	}
	s.accounts[username] = a
	return a.id
}

// Roles returns the stored roles of username.
func (s *Server) Roles(username string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[username]; ok {
		return append([]string(nil), a.roles...)
	}
	return nil
}

func (s *Server) AddCustomer(c model.Customer) model.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.id()
	}
	if c.Status == "" {
		c.Status = model.CustomerLead
	}
	s.customers[c.ID] = c
	return c
}

func (s *Server) AddOffer(o model.Offer) model.Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.id()
	}
	if o.Status == "" {
		o.Status = model.OfferDraft
	}
	o.CustomerName = s.customerNameLocked(o.CustomerID)
	s.offers[o.ID] = o
	return o
}

func (s *Server) AddTask(t model.Task) model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.id()
	}
	if t.Status == "" {
		t.Status = model.TaskTodo
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	t.CustomerName = s.customerNameLocked(t.CustomerID)
	if t.OfferID != nil {
		t.OfferTitle = s.offers[*t.OfferID].Title
	}
	s.tasks[t.ID] = t
	return t
}

func (s *Server) Offer(id int64) (model.Offer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	return o, ok
}

func (s *Server) Task(id int64) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

func (s *Server) Customer(id int64) (model.Customer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	return c, ok
}

// Fail makes the next n calls to method+path (echo route, e.g. "/api/offers/:id/status")
// answer status with message. n <= 0 means until cleared.
func (s *Server) Fail(method, route string, status int, message string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+route] = &failure{status: status, message: message, times: n}
}

func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = map[string]*failure{}
}

// Calls counts requests by method and echo route.
func (s *Server) Calls(method, route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+route]
}

// CallsByMethod sums Calls over every route for method.
func (s *Server) CallsByMethod(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, v := range s.calls {
		if strings.HasPrefix(k, method+" ") {
			n += v
		}
	}
	return n
}

func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = map[string]int{}
}

func (s *Server) customerNameLocked(id int64) string {
	if c, ok := s.customers[id]; ok {
		return c.FullName()
	}
	return ""
}

type errorBody struct {
	Timestamp        string            `json:"timestamp"`
	Status           int               `json:"status"`
	Error            string            `json:"error"`
	Message          string            `json:"message,omitempty"`
	Path             string            `json:"path"`
	ValidationErrors map[string]string `json:"validationErrors,omitempty"`
}

func writeError(c echo.Context, status int, message string) error {
	return c.JSON(status, errorBody{
		Timestamp: time.Now().Format("2006-01-02T15:04:05"),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      c.Request().URL.Path,
	})
}

func (s *Server) countAndFail(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Request().Method + " " + c.Path()
		s.mu.Lock()
		s.calls[key]++
		f := s.failures[key]
		if f != nil && f.times > 0 {
			f.times--
			if f.times == 0 {
				delete(s.failures, key)
			}
		}
		s.mu.Unlock()
		if f != nil {
			return writeError(c, f.status, f.message)
		}
		return next(c)
	}
}

func (s *Server) authenticate(username, password string, c echo.Context) (bool, error) {
	s.mu.Lock()
	a, ok := s.accounts[username]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(a.hash, []byte(password)) != nil {
		return false, nil
	}
	c.Set("account", a)
	return true, nil
}

func requireRole(min perm.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			a, _ := c.Get("account").(*account)
			if a == nil || a.role() < min {
				return writeError(c, http.StatusForbidden, "Access denied")
			}
			return next(c)
		}
	}
}

func (s *Server) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = forms.EchoValidator{}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := "Unexpected error"
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		}
		_ = writeError(c, code, msg)
	}

	api := e.Group("/api", s.countAndFail)
	api.POST("/auth/register", s.register)

	basic := middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Skipper:   func(c echo.Context) bool { return c.Path() == "/api/auth/register" },
		Validator: s.authenticate,
	})
	authed := api.Group("", basic)

	view := requireRole(perm.RoleUser)
	modify := requireRole(perm.RoleManager)
	admin := requireRole(perm.RoleAdmin)

	authed.GET("/customers", s.listCustomers, view)
	authed.GET("/customers/:id", s.getCustomer, view)
	authed.POST("/customers", s.createCustomer, modify)
	authed.PUT("/customers/:id", s.updateCustomer, modify)
	authed.DELETE("/customers/:id", s.deleteCustomer, admin)

	authed.GET("/offers", s.listOffers, view)
	authed.GET("/offers/:id", s.getOffer, view)
	authed.POST("/offers", s.createOffer, modify)
	authed.PUT("/offers/:id", s.updateOffer, modify)
	authed.PATCH("/offers/:id/status", s.setOfferStatus, modify)
	authed.DELETE("/offers/:id", s.deleteOffer, admin)

	authed.GET("/tasks", s.listTasks, view)
	authed.GET("/tasks/:id", s.getTask, view)
	authed.POST("/tasks", s.createTask, modify)
	authed.PUT("/tasks/:id", s.updateTask, modify)
	authed.PATCH("/tasks/:id/status", s.setTaskStatus, view)
	authed.DELETE("/tasks/:id", s.deleteTask, admin)

	authed.GET("/users/me", s.me)
	authed.GET("/users", s.listUsers, admin)
	authed.PATCH("/users/:id/role", s.changeRole, admin)
	return e
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func bindValid(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return writeError(c, http.StatusBadRequest, "Malformed request body")
	}
	if err := c.Validate(v); err != nil {
		body := errorBody{
			Timestamp: time.Now().Format("2006-01-02T15:04:05"),
			Status:    http.StatusBadRequest,
			Error:     "Validation Failed",
			Message:   "Invalid input data",
			Path:      c.Request().URL.Path,
		}
		if fe, ok := err.(forms.FieldErrors); ok {
			body.ValidationErrors = fe
		}
		return c.JSON(http.StatusBadRequest, body)
	}
	return nil
}

func sortedValues[T any](m map[int64]T) []T {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

// Auth and users

func (s *Server) register(c echo.Context) error {
	var in model.RegisterInput
	if err := c.Bind(&in); err != nil {
		return writeError(c, http.StatusBadRequest, "Malformed request body")
	}
	in.ConfirmPassword = in.Password
	if err := c.Validate(&in); err != nil {
		return writeError(c, http.StatusBadRequest, err.Error())
	}
	s.mu.Lock()
	if _, exists := s.accounts[in.Username]; exists {
		s.mu.Unlock()
		return writeError(c, http.StatusConflict, "Username already exists: "+in.Username)
	}
	for _, a := range s.accounts {
		if strings.EqualFold(a.email, in.Email) {
			s.mu.Unlock()
			return writeError(c, http.StatusConflict, "Email already exists: "+in.Email)
		}
	}
	s.mu.Unlock()
	s.AddUser(in.Username, in.Password, "USER")
	s.mu.Lock()
	a := s.accounts[in.Username]
	a.email = in.Email
	u := a.user()
	s.mu.Unlock()
	return c.JSON(http.StatusCreated, u)
}

func (s *Server) me(c echo.Context) error {
	if s.noMe {
		return writeError(c, http.StatusNotFound, "No endpoint GET /api/users/me")
	}
	a := c.Get("account").(*account)
	if s.meAdminOnly && a.role() != perm.RoleAdmin {
		return writeError(c, http.StatusForbidden, "Access denied")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, a.user())
}

func (s *Server) listUsers(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.user())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return c.JSON(http.StatusOK, out)
}

func (s *Server) changeRole(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var body struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&body); err != nil {
		return writeError(c, http.StatusBadRequest, "Malformed request body")
	}
	role, ok := perm.ParseRole(body.Role)
	if !ok {
		return writeError(c, http.StatusBadRequest, "Invalid role: "+body.Role)
	}
	if role == perm.RoleAdmin {
		return writeError(c, http.StatusBadRequest, "Cannot assign ADMIN role")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.id == id {
			a.roles = []string{role.String()}
			return c.NoContent(http.StatusOK)
		}
	}
	return writeError(c, http.StatusNotFound, fmt.Sprintf("User not found with id: %d", id))
}

// Customers

func (s *Server) listCustomers(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, sortedValues(s.customers))
}

func (s *Server) getCustomer(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cu, ok := s.customers[id]
	if !ok {
		return writeError(c, http.StatusNotFound, fmt.Sprintf("Customer not found with id: %d", id))
	}
	return c.JSON(http.StatusOK, cu)
}

func (s *Server) createCustomer(c echo.Context) error {
	var in model.CustomerInput
	if err := bindValid(c, &in); err != nil || c.Response().Committed {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.customers {
		if strings.EqualFold(existing.Email, in.Email) {
			return writeError(c, http.StatusConflict, "Customer with email already exists: "+in.Email)
		}
	}
	cu := model.Customer{ID: s.id(), FirstName: in.FirstName, LastName: in.LastName, Email: in.Email, Phone: in.Phone, Status: in.Status}
	s.customers[cu.ID] = cu
	return c.JSON(http.StatusCreated, cu)
}

func (s *Server) updateCustomer(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in model.CustomerInput
	if err := bindValid(c, &in); err != nil || c.Response().Committed {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return writeError(c, http.StatusNotFound, fmt.Sprintf("Customer not found with id: %d", id))
	}
	cu := model.Customer{ID: id, FirstName: in.FirstName, LastName: in.LastName, Email: in.Email, Phone: in.Phone, Status: in.Status}
	s.customers[id] = cu
	return c.JSON(http.StatusOK, cu)
}

func (s *Server) deleteCustomer(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return writeError(c, http.StatusNotFound, fmt.Sprintf("Customer not found with id: %d", id))
	}
	delete(s.customers, id)
	return c.NoContent(http.StatusNoContent)
}

// Offers

func (s *Server) listOffers(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, sortedValues(s.offers))
}

func (s *Server) getOffer(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return writeError(c, http.StatusNotFound, fmt.Sprintf("Offer not found with id: %d", id))
	}
	return c.JSON(http.StatusOK, o)
}

func (s *Server) saveOffer(c echo.Context, id int64) error {
	var in model.OfferInput
	if err := bindValid(c, &in); err != nil || c.Response().Committed {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[in.CustomerID]; !ok {
		return writeError(c, http.StatusNotFound, fmt.Sprintf("Customer not found with id: %d", in.CustomerID))
	}
	now := model.NewLocalTime(time.Now())
	status := http.StatusOK
	o := model.Offer{ID: id, CreatedAt: now}
	if id == 0 {
		o.ID = s.id()
		status = http.StatusCreated
	} else {
		prev, ok := s.offers[id]
		if !ok {
			return writeError(c, http.StatusNotFound, fmt.Sprintf("Offer not found with id: %d", id))
		}
		o.CreatedAt = prev.CreatedAt
	}
	o.Title, o.Description, o.Price, o.Status, o.CustomerID = in.Title, in.Description, in.Price, in.Status, in.CustomerID
	o.CustomerName = s.customerNameLocked(in.CustomerID)
	o.UpdatedAt = now
	s.offers[o.ID] = o
	return c.JSON(status, o)
}

func (s *Server) createOffer(c echo.Context) error { return s.saveOffer(c, 0) }

func (s *Server) updateOffer(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	return s.saveOffer(c, id)
}

func (s *Server) setOfferStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return writeError(c, http.StatusBadRequest, "Malformed request body")
	}
	st := model.OfferStatus(body.Status)
	if !statusutil.ValidOfferStatus(st) && st != model.OfferExpired {
		return writeError(c, http.StatusBadRequest, "Invalid status: "+body.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return writeError(c, http.StatusNotFound, fmt.Sprintf("Offer not found with id: %d", id))
	}
	o.Status = st
	o.UpdatedAt = model.NewLocalTime(time.Now())
	s.offers[id] = o
	return c.JSON(http.StatusOK, o)
}

func (s *Server) deleteOffer(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offers[id]; !ok {
		return writeError(c, http.StatusNotFound, fmt.Sprintf("Offer not found with id: %d", id))
	}
	delete(s.offers, id)
	return c.NoContent(http.StatusNoContent)
}

// Tasks

func (s *Server) listTasks(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, sortedValues(s.tasks))
}

func (s *Server) getTask(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return writeError(c, http.StatusNotFound, fmt.Sprintf("Task not found with id: %d", id))
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) saveTask(c echo.Context, id int64) error {
	var in model.TaskInput
	if err := bindValid(c, &in); err != nil || c.Response().Committed {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[in.CustomerID]; !ok {
		return writeError(c, http.StatusNotFound, fmt.Sprintf("Customer not found with id: %d", in.CustomerID))
	}
	now := model.NewLocalTime(time.Now())
	status := http.StatusOK
	t := model.Task{ID: id, CreatedAt: now}
	if id == 0 {
		t.ID = s.id()
		status = http.StatusCreated
	} else {
		prev, ok := s.tasks[id]
		if !ok {
			return writeError(c, http.StatusNotFound, fmt.Sprintf("Task not found with id: %d", id))
		}
		t.CreatedAt = prev.CreatedAt
	}
	t.Title, t.Description, t.DueDate = in.Title, in.Description, in.DueDate
	t.Status, t.Priority, t.CustomerID, t.OfferID = in.Status, in.Priority, in.CustomerID, in.OfferID
	t.CustomerName = s.customerNameLocked(in.CustomerID)
	if in.OfferID != nil {
		t.OfferTitle = s.offers[*in.OfferID].Title
	}
	t.UpdatedAt = now
	s.tasks[t.ID] = t
	return c.JSON(status, t)
}

func (s *Server) createTask(c echo.Context) error { return s.saveTask(c, 0) }

func (s *Server) updateTask(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	return s.saveTask(c, id)
}

func (s *Server) setTaskStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return writeError(c, http.StatusBadRequest, "Malformed request body")
	}
	st := model.TaskStatus(body.Status)
	if !statusutil.ValidTaskStatus(st) {
		return writeError(c, http.StatusBadRequest, "Invalid status: "+body.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return writeError(c, http.StatusNotFound, fmt.Sprintf("Task not found with id: %d", id))
	}
	t.Status = st
	t.UpdatedAt = model.NewLocalTime(time.Now())
	s.tasks[id] = t
	return c.JSON(http.StatusOK, t)
}

func (s *Server) deleteTask(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return writeError(c, http.StatusNotFound, fmt.Sprintf("Task not found with id: %d", id))
	}
	delete(s.tasks, id)
	return c.NoContent(http.StatusNoContent)
}
