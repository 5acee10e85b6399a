package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"crm-cli/internal/model"
	"crm-cli/internal/perm"
	"crm-cli/internal/session"
)

func idPath(prefix string, id int64) string {
	return fmt.Sprintf("%s/%d", prefix, id)
}

// Customers

func (c *Client) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	var out []model.Customer
	if err := c.get(ctx, "/customers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCustomer(ctx context.Context, id int64) (model.Customer, error) {
	var out model.Customer
	err := c.get(ctx, idPath("/customers", id), nil, &out)
	return out, err
}

func (c *Client) CreateCustomer(ctx context.Context, in model.CustomerInput) (model.Customer, error) {
	var out model.Customer
	err := c.send(ctx, http.MethodPost, "/customers", in, &out)
	return out, err
}

func (c *Client) UpdateCustomer(ctx context.Context, id int64, in model.CustomerInput) (model.Customer, error) {
	var out model.Customer
	err := c.send(ctx, http.MethodPut, idPath("/customers", id), in, &out)
	return out, err
}

func (c *Client) DeleteCustomer(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, idPath("/customers", id), nil, nil)
}

// Offers

func (c *Client) ListOffers(ctx context.Context) ([]model.Offer, error) {
	var out []model.Offer
	if err := c.get(ctx, "/offers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOffer(ctx context.Context, id int64) (model.Offer, error) {
	var out model.Offer
	err := c.get(ctx, idPath("/offers", id), nil, &out)
	return out, err
}

func (c *Client) CreateOffer(ctx context.Context, in model.OfferInput) (model.Offer, error) {
	var out model.Offer
	err := c.send(ctx, http.MethodPost, "/offers", in, &out)
	return out, err
}

func (c *Client) UpdateOffer(ctx context.Context, id int64, in model.OfferInput) (model.Offer, error) {
	var out model.Offer
	err := c.send(ctx, http.MethodPut, idPath("/offers", id), in, &out)
	return out, err
}

func (c *Client) DeleteOffer(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, idPath("/offers", id), nil, nil)
}

type statusBody struct {
	Status string `json:"status"`
}

// SetOfferStatus sends only the status field. The response body, if any, is ignored.
func (c *Client) SetOfferStatus(ctx context.Context, id int64, status model.OfferStatus) error {
	return c.send(ctx, http.MethodPatch, idPath("/offers", id)+"/status", statusBody{Status: string(status)}, nil)
}

// Tasks

func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	var out []model.Task
	if err := c.get(ctx, "/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTask(ctx context.Context, id int64) (model.Task, error) {
	var out model.Task
	err := c.get(ctx, idPath("/tasks", id), nil, &out)
	return out, err
}

func (c *Client) CreateTask(ctx context.Context, in model.TaskInput) (model.Task, error) {
	var out model.Task
	err := c.send(ctx, http.MethodPost, "/tasks", in, &out)
	return out, err
}

func (c *Client) UpdateTask(ctx context.Context, id int64, in model.TaskInput) (model.Task, error) {
	var out model.Task
	err := c.send(ctx, http.MethodPut, idPath("/tasks", id), in, &out)
	return out, err
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, idPath("/tasks", id), nil, nil)
}

func (c *Client) SetTaskStatus(ctx context.Context, id int64, status model.TaskStatus) error {
	return c.send(ctx, http.MethodPatch, idPath("/tasks", id)+"/status", statusBody{Status: string(status)}, nil)
}

// Users

func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var out []model.User
	if err := c.get(ctx, "/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Me(ctx context.Context) (model.User, error) {
	var out model.User
	err := c.get(ctx, "/users/me", nil, &out)
	return out, err
}

func (c *Client) ChangeUserRole(ctx context.Context, id int64, role perm.Role) error {
	body := struct {
		Role string `json:"role"`
	}{Role: role.String()}
	return c.send(ctx, http.MethodPatch, idPath("/users", id)+"/role", body, nil)
}

// Register creates an account. It never carries a credential.
func (c *Client) Register(ctx context.Context, in model.RegisterInput) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/auth/register", body: in, anon: true})
}

// Login probes the backend with the candidate credential from sess.BeginLogin.
// It prefers GET /users/me (principal with role claims) and falls back to
// GET /customers when that endpoint is missing or refused. The session is only
// committed on success.
func (c *Client) Login(ctx context.Context, username, password string) (model.Principal, error) {
	cred, err := c.sess.BeginLogin(username, password)
	if err != nil {
		return model.Principal{}, err
	}
	p, err := c.probe(ctx, cred, strings.TrimSpace(username))
	if err != nil {
		c.sess.Abort()
		return model.Principal{}, err
	}
	if err := c.sess.Commit(ctx, p); err != nil {
		return model.Principal{}, err
	}
	return p, nil
}

func (c *Client) probe(ctx context.Context, cred session.Credential, username string) (model.Principal, error) {
	var me model.User
	err := c.do(ctx, call{method: http.MethodGet, path: "/users/me", out: &me, cred: cred, override: true})
	if err == nil {
		name := me.Username
		if name == "" {
			name = username
		}
		return model.Principal{Username: name, RoleClaims: me.Roles}, nil
	}
	if k := KindOf(err); k != KindNotFound && k != KindForbidden {
		return model.Principal{}, loginError(err)
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/customers", cred: cred, override: true}); err != nil {
		return model.Principal{}, loginError(err)
	}
	return model.Principal{Username: username}, nil
}

// RefreshPrincipal updates the role claims of a restored session from /users/me.
// A 404 leaves the session as is.
func (c *Client) RefreshPrincipal(ctx context.Context) error {
	gen := c.sess.Generation()
	me, err := c.Me(ctx)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil
		}
		return err
	}
	c.sess.UpdateClaims(gen, me.Roles)
	return nil
}

// LoginError is a failed login probe.
type LoginError struct {
	Invalid bool
	Err     error
}

func (e *LoginError) Error() string {
	if e.Invalid {
		return "invalid username or password"
	}
	return "cannot connect to the server: " + UserMessage(e.Err)
}

func (e *LoginError) Unwrap() error { return e.Err }

func loginError(err error) error {
	return &LoginError{Invalid: KindOf(err) == KindUnauthorized, Err: err}
}
