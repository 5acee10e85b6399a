package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"crm-cli/internal/api"
	"crm-cli/internal/filter"
	"crm-cli/internal/model"
	"crm-cli/internal/statusutil"
)

// Row types for --format table. As JSON they marshal as plain arrays.

type customerRows []model.Customer

func (customerRows) Headers() []string {
	return []string{"ID", "NAME", "EMAIL", "PHONE", "STATUS"}
}

func (rs customerRows) Rows() [][]string {
	out := make([][]string, 0, len(rs))
	for _, c := range rs {
		out = append(out, []string{fmtID(c.ID), c.FullName(), c.Email, dash(c.Phone), string(c.Status)})
	}
	return out
}

type offerRows struct {
	rows  []model.Offer
	names map[int64]string
}

func (r offerRows) MarshalJSON() ([]byte, error) { return marshalRows(r.rows) }

func (offerRows) Headers() []string {
	return []string{"ID", "TITLE", "CUSTOMER", "PRICE", "STATUS"}
}

func (r offerRows) Rows() [][]string {
	out := make([][]string, 0, len(r.rows))
	for _, o := range r.rows {
		out = append(out, []string{
			fmtID(o.ID),
			o.Title,
			filter.CustomerName(o.CustomerName, o.CustomerID, r.names),
			fmt.Sprintf("%.2f", o.Price),
			statusutil.OfferStatusLabel(o.Status),
		})
	}
	return out
}

type taskRows struct {
	rows   []model.Task
	titles map[int64]string
	now    time.Time
}

func (r taskRows) MarshalJSON() ([]byte, error) { return marshalRows(r.rows) }

func (taskRows) Headers() []string {
	return []string{"", "ID", "TITLE", "CUSTOMER", "OFFER", "DUE", "PRIORITY", "STATUS"}
}

func (r taskRows) Rows() [][]string {
	out := make([][]string, 0, len(r.rows))
	for _, t := range r.rows {
		box := "[ ]"
		if statusutil.IsEndState(t.Status) {
			box = "[x]"
		}
		due := t.DueDate.Format()
		if t.Overdue(r.now) {
			due += " !"
		}
		out = append(out, []string{
			box,
			fmtID(t.ID),
			t.Title,
			filter.CustomerName(t.CustomerName, t.CustomerID, nil),
			filter.OfferTitle(t.OfferTitle, t.OfferID, r.titles),
			due,
			statusutil.PriorityLabel(t.Priority),
			statusutil.TaskStatusLabel(t.Status),
		})
	}
	return out
}

type userRows []model.User

func (userRows) Headers() []string {
	return []string{"ID", "USERNAME", "EMAIL", "ROLE"}
}

func (rs userRows) Rows() [][]string {
	out := make([][]string, 0, len(rs))
	for _, u := range rs {
		out = append(out, []string{fmtID(u.ID), u.Username, dash(u.Email), u.RoleLabel()})
	}
	return out
}

type countsRow api.Counts

func (countsRow) Headers() []string {
	return []string{"CUSTOMERS", "ACTIVE OFFERS", "OPEN TASKS"}
}

func (c countsRow) Rows() [][]string {
	return [][]string{{strconv.Itoa(c.Customers), strconv.Itoa(c.ActiveOffers), strconv.Itoa(c.OpenTasks)}}
}

func marshalRows[T any](rows []T) ([]byte, error) {
	if rows == nil {
		rows = []T{}
	}
	return json.Marshal(rows)
}

func fmtID(v int64) string { return strconv.FormatInt(v, 10) }

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
