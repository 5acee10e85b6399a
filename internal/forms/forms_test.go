package forms

import (
	"errors"
	"strings"
	"testing"
	"time"

	"crm-cli/internal/model"
)

func validTask() model.TaskInput {
	return model.TaskInput{
		Title:      "Call back",
		DueDate:    model.NewLocalTime(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		Status:     model.TaskTodo,
		Priority:   model.PriorityHigh,
		CustomerID: 1,
	}
}

func TestValidateCustomer(t *testing.T) {
	t.Parallel()

	ok := model.CustomerInput{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Phone: "+48 600 100 200", Status: model.CustomerLead}
	if err := ValidateCustomer(ok); err != nil {
		t.Fatalf("expected valid customer, got %v", err)
	}

	bad := ok
	bad.Email = "not-an-email"
	bad.Phone = "12ab"
	bad.Status = "VIP"
	err := ValidateCustomer(bad)
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %T %v", err, err)
	}
	for _, k := range []string{"email", "phone", "status"} {
		if _, ok := fe[k]; !ok {
			t.Fatalf("expected %q in field errors: %v", k, fe)
		}
	}
	if !strings.Contains(fe["status"], "LEAD, ACTIVE, INACTIVE") {
		t.Fatalf("unexpected status message: %q", fe["status"])
	}

	// Phone is optional.
	ok.Phone = ""
	if err := ValidateCustomer(ok); err != nil {
		t.Fatalf("expected empty phone to be accepted, got %v", err)
	}
}

func TestValidateOffer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    model.OfferInput
		field string
	}{
		{name: "short title", in: model.OfferInput{Title: "ab", Price: 1, Status: model.OfferDraft, CustomerID: 1}, field: "title"},
		{name: "zero price", in: model.OfferInput{Title: "Website", Price: 0, Status: model.OfferDraft, CustomerID: 1}, field: "price"},
		{name: "expired is not selectable", in: model.OfferInput{Title: "Website", Price: 10, Status: model.OfferExpired, CustomerID: 1}, field: "status"},
		{name: "missing customer", in: model.OfferInput{Title: "Website", Price: 10, Status: model.OfferSent}, field: "customerId"},
		{name: "long description", in: model.OfferInput{Title: "Website", Description: strings.Repeat("x", 1001), Price: 10, Status: model.OfferSent, CustomerID: 2}, field: "description"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var fe FieldErrors
			if err := ValidateOffer(tt.in); !errors.As(err, &fe) {
				t.Fatalf("expected FieldErrors, got %v", err)
			}
			if _, ok := fe[tt.field]; !ok {
				t.Fatalf("expected error on %q, got %v", tt.field, fe)
			}
		})
	}
}

func TestValidateTask(t *testing.T) {
	t.Parallel()

	if err := ValidateTask(validTask()); err != nil {
		t.Fatalf("expected valid task, got %v", err)
	}

	in := validTask()
	in.DueDate = nil
	in.Priority = "URGENT"
	var fe FieldErrors
	if err := ValidateTask(in); !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if fe["dueDate"] != "dueDate is required" {
		t.Fatalf("unexpected dueDate message: %q", fe["dueDate"])
	}
	if _, ok := fe["priority"]; !ok {
		t.Fatalf("expected priority error: %v", fe)
	}
}

func TestValidateRegister(t *testing.T) {
	t.Parallel()

	in := model.RegisterInput{Username: "newbie", Email: "n@example.com", Password: "secret1", ConfirmPassword: "secret2"}
	var fe FieldErrors
	if err := ValidateRegister(in); !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if fe["confirmPassword"] != "passwords do not match" {
		t.Fatalf("unexpected confirmation error: %v", fe)
	}

	in.ConfirmPassword = in.Password
	if err := ValidateRegister(in); err != nil {
		t.Fatalf("expected valid registration, got %v", err)
	}
}

func TestParseHelpers(t *testing.T) {
	t.Parallel()

	if id, err := ParseID("customer-12"); err != nil || id != 12 {
		t.Fatalf("ParseID(customer-12) = %d, %v", id, err)
	}
	if _, err := ParseID("0"); err == nil {
		t.Fatalf("expected error for zero id")
	}
	if id, err := ParseOptionalID(""); err != nil || id != nil {
		t.Fatalf("expected nil optional id, got %v %v", id, err)
	}
	if p, err := ParsePrice("12,50"); err != nil || p != 12.5 {
		t.Fatalf("ParsePrice = %v, %v", p, err)
	}
	d, err := ParseDueDate("2025-03-01")
	if err != nil || d.Format() != "2025-03-01" {
		t.Fatalf("ParseDueDate = %v, %v", d, err)
	}
	if _, err := ParseDueDate("tomorrow"); err == nil {
		t.Fatalf("expected error for unparseable date")
	}
}
