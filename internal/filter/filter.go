// Package filter narrows already-fetched lists. Filtering is client-side; the
// backend list endpoints take no parameters.
package filter

import (
	"strings"
	"time"

	"crm-cli/internal/model"
)

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

type Customers struct {
	Search string
	Status model.CustomerStatus
}

func (f Customers) Apply(rows []model.Customer) []model.Customer {
	q := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]model.Customer, 0, len(rows))
	for _, c := range rows {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if q != "" && !contains(c.FirstName, q) && !contains(c.LastName, q) && !contains(c.Email, q) {
			continue
		}
		out = append(out, c)
	}
	return out
}

type Offers struct {
	Search     string
	Status     model.OfferStatus
	CustomerID int64
}

// Apply matches Search against the title and the customer name. Names missing
// from the rows are looked up in names (customer id to full name).
func (f Offers) Apply(rows []model.Offer, names map[int64]string) []model.Offer {
	q := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]model.Offer, 0, len(rows))
	for _, o := range rows {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.CustomerID != 0 && o.CustomerID != f.CustomerID {
			continue
		}
		if q != "" && !contains(o.Title, q) && !contains(CustomerName(o.CustomerName, o.CustomerID, names), q) {
			continue
		}
		out = append(out, o)
	}
	return out
}

type Tasks struct {
	Search     string
	Status     model.TaskStatus
	Priority   model.TaskPriority
	CustomerID int64
	Overdue    bool
	Now        time.Time
}

func (f Tasks) Apply(rows []model.Task) []model.Task {
	q := strings.ToLower(strings.TrimSpace(f.Search))
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}
	out := make([]model.Task, 0, len(rows))
	for _, t := range rows {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.CustomerID != 0 && t.CustomerID != f.CustomerID {
			continue
		}
		if f.Overdue && !t.Overdue(now) {
			continue
		}
		if q != "" && !contains(t.Title, q) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// CustomerNames indexes full names by id.
func CustomerNames(rows []model.Customer) map[int64]string {
	out := make(map[int64]string, len(rows))
	for _, c := range rows {
		out[c.ID] = c.FullName()
	}
	return out
}

// OfferTitles indexes titles by id.
func OfferTitles(rows []model.Offer) map[int64]string {
	out := make(map[int64]string, len(rows))
	for _, o := range rows {
		out[o.ID] = o.Title
	}
	return out
}

// CustomerName prefers the denormalised name, then the index, then "unknown".
func CustomerName(name string, id int64, names map[int64]string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return "unknown"
}

// OfferTitle resolves an optional offer reference; "-" when unset or dangling.
func OfferTitle(title string, id *int64, titles map[int64]string) string {
	if strings.TrimSpace(title) != "" {
		return title
	}
	if id == nil {
		return "-"
	}
	if t, ok := titles[*id]; ok && t != "" {
		return t
	}
	return "-"
}
