package filter

import (
	"testing"
	"time"

	"crm-cli/internal/model"
)

func TestCustomers_SearchAndStatus(t *testing.T) {
	t.Parallel()

	rows := []model.Customer{
		{ID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Status: model.CustomerActive},
		{ID: 2, FirstName: "Alan", LastName: "Turing", Email: "alan@bletchley.uk", Status: model.CustomerLead},
		{ID: 3, FirstName: "Grace", LastName: "Hopper", Email: "grace@navy.mil", Status: model.CustomerActive},
	}

	tests := []struct {
		name string
		f    Customers
		want []int64
	}{
		{name: "empty keeps all", f: Customers{}, want: []int64{1, 2, 3}},
		{name: "email match", f: Customers{Search: "BLETCH"}, want: []int64{2}},
		{name: "last name", f: Customers{Search: "hop"}, want: []int64{3}},
		{name: "status", f: Customers{Status: model.CustomerActive}, want: []int64{1, 3}},
		{name: "both", f: Customers{Search: "a", Status: model.CustomerLead}, want: []int64{2}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.f.Apply(rows)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d rows, want %v", len(got), tt.want)
			}
			for i, c := range got {
				if c.ID != tt.want[i] {
					t.Fatalf("row %d = %d, want %d", i, c.ID, tt.want[i])
				}
			}
		})
	}
}

func TestOffers_SearchMatchesCustomerName(t *testing.T) {
	t.Parallel()

	rows := []model.Offer{
		{ID: 1, Title: "Website", CustomerID: 10, Status: model.OfferSent},
		{ID: 2, Title: "Audit", CustomerID: 11, CustomerName: "Grace Hopper", Status: model.OfferDraft},
	}
	names := map[int64]string{10: "Ada Lovelace"}

	if got := (Offers{Search: "lovelace"}).Apply(rows, names); len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected customer-name match, got %+v", got)
	}
	if got := (Offers{Search: "grace"}).Apply(rows, names); len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("expected denormalised-name match, got %+v", got)
	}
	if got := (Offers{CustomerID: 11, Status: model.OfferSent}).Apply(rows, names); len(got) != 0 {
		t.Fatalf("expected no rows, got %+v", got)
	}
}

func TestTasks_OverdueAndPriority(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)
	past := model.NewLocalTime(now.Add(-48 * time.Hour))
	future := model.NewLocalTime(now.Add(48 * time.Hour))
	rows := []model.Task{
		{ID: 1, Title: "Call", DueDate: past, Status: model.TaskTodo, Priority: model.PriorityHigh},
		{ID: 2, Title: "Mail", DueDate: past, Status: model.TaskDone, Priority: model.PriorityHigh},
		{ID: 3, Title: "Call again", DueDate: future, Status: model.TaskInProgress, Priority: model.PriorityLow},
	}

	if got := (Tasks{Overdue: true, Now: now}).Apply(rows); len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected only the open past-due task, got %+v", got)
	}
	if got := (Tasks{Priority: model.PriorityHigh, Search: "call"}).Apply(rows); len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("unexpected priority/search result: %+v", got)
	}
}

func TestDanglingReferencesFallBack(t *testing.T) {
	t.Parallel()

	missing := int64(99)
	if got := CustomerName("", 5, nil); got != "unknown" {
		t.Fatalf("CustomerName = %q", got)
	}
	if got := OfferTitle("", &missing, map[int64]string{1: "x"}); got != "-" {
		t.Fatalf("OfferTitle = %q", got)
	}
	if got := OfferTitle("", nil, nil); got != "-" {
		t.Fatalf("OfferTitle(nil) = %q", got)
	}
}
