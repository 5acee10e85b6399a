package model

import (
	"strings"
	"time"
)

type CustomerStatus string

const (
	CustomerLead     CustomerStatus = "LEAD"
	CustomerActive   CustomerStatus = "ACTIVE"
	CustomerInactive CustomerStatus = "INACTIVE"
)

type OfferStatus string

const (
	OfferDraft     OfferStatus = "DRAFT"
	OfferSent      OfferStatus = "SENT"
	OfferAccepted  OfferStatus = "ACCEPTED"
	OfferRejected  OfferStatus = "REJECTED"
	OfferCancelled OfferStatus = "CANCELLED"

	// OfferExpired is produced by some backends. It is decoded for display but is
	// never offered as a transition target.
	OfferExpired OfferStatus = "EXPIRED"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
)

type Customer struct {
	ID        int64          `json:"id"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone,omitempty"`
	Status    CustomerStatus `json:"status"`
}

func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type Offer struct {
	ID           int64       `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	Price        float64     `json:"price"`
	Status       OfferStatus `json:"status"`
	CustomerID   int64       `json:"customerId"`
	CustomerName string      `json:"customerName,omitempty"`
	CreatedAt    *LocalTime  `json:"createdAt,omitempty"`
	UpdatedAt    *LocalTime  `json:"updatedAt,omitempty"`
}

type Task struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	DueDate      *LocalTime   `json:"dueDate,omitempty"`
	Status       TaskStatus   `json:"status"`
	Priority     TaskPriority `json:"priority"`
	CustomerID   int64        `json:"customerId"`
	CustomerName string       `json:"customerName,omitempty"`
	OfferID      *int64       `json:"offerId,omitempty"`
	OfferTitle   string       `json:"offerTitle,omitempty"`
	CreatedAt    *LocalTime   `json:"createdAt,omitempty"`
	UpdatedAt    *LocalTime   `json:"updatedAt,omitempty"`
}

// Overdue reports whether the task's due date has passed while it is still open.
func (t Task) Overdue(now time.Time) bool {
	if t.DueDate == nil || t.DueDate.IsZero() {
		return false
	}
	return t.Status != TaskDone && t.DueDate.Time().Before(now)
}

type User struct {
	ID               int64      `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email,omitempty"`
	Roles            []string   `json:"roles,omitempty"`
	Enabled          *bool      `json:"enabled,omitempty"`
	AccountNonLocked *bool      `json:"accountNonLocked,omitempty"`
	CreatedAt        *LocalTime `json:"createdAt,omitempty"`
	UpdatedAt        *LocalTime `json:"updatedAt,omitempty"`
}

// RoleLabel is the first role claim without its ROLE_ prefix ("USER" when none).
func (u User) RoleLabel() string {
	if len(u.Roles) == 0 {
		return "USER"
	}
	return strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(u.Roles[0])), "ROLE_")
}

// Principal is the authenticated identity as known to the client.
// RoleClaims is empty when the backend does not report roles.
type Principal struct {
	Username   string   `json:"username"`
	RoleClaims []string `json:"roleClaims,omitempty"`
}

// Overview is the dashboard bundle. All three lists come from one fail-fast join.
type Overview struct {
	Customers []Customer `json:"customers"`
	Offers    []Offer    `json:"offers"`
	Tasks     []Task     `json:"tasks"`
}
