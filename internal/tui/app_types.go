package tui

import (
	"crm-cli/internal/model"
	"crm-cli/internal/mutate"
)

type view int

const (
	viewLogin view = iota
	viewRegister
	viewDashboard
	viewCustomers
	viewOffers
	viewTasks
	viewUsers
)

func (v view) title() string {
	switch v {
	case viewLogin:
		return "Sign in"
	case viewRegister:
		return "Register"
	case viewDashboard:
		return "Dashboard"
	case viewCustomers:
		return "Customers"
	case viewOffers:
		return "Offers"
	case viewTasks:
		return "Tasks"
	case viewUsers:
		return "Users"
	default:
		return ""
	}
}

// authenticated views need a signed-in principal.
func (v view) authenticated() bool {
	return v != viewLogin && v != viewRegister
}

type modalKind int

const (
	modalNone modalKind = iota
	modalConfirm
	modalStatusPicker
	modalForm
)

type entityKind string

const (
	entityCustomer entityKind = "customer"
	entityOffer    entityKind = "offer"
	entityTask     entityKind = "task"
	entityUser     entityKind = "user"
)

// Messages. Fetch results carry the request generation they were issued under;
// anything older than the model's current generation is dropped.

type overviewMsg struct {
	gen uint64
	ov  model.Overview
	err error
}

type usersMsg struct {
	gen   uint64
	users []model.User
	err   error
}

type loginMsg struct {
	principal model.Principal
	err       error
}

type registerMsg struct {
	principal model.Principal
	// registered is set when the account exists even if signing in failed.
	registered bool
	err        error
}

type savedMsg struct {
	gen  uint64
	kind entityKind
	// exactly one of these is set
	customer *model.Customer
	offer    *model.Offer
	task     *model.Task
	err      error
}

type deletedMsg struct {
	gen  uint64
	kind entityKind
	id   int64
	err  error
}

// transitionMsg carries the session generation it was issued under so an
// outcome that lands after logout is dropped.
type transitionMsg struct {
	sessGen uint64
	out     mutate.Outcome
}

type principalMsg struct {
	err error
}

type roleChangedMsg struct {
	gen uint64
	id  int64
	err error
}

// sessionExpiredMsg arrives from the session's expiry listener after a 401.
type sessionExpiredMsg struct{}

type loggedOutMsg struct {
	err error
}
