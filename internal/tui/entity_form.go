package tui

import (
	"fmt"
	"strconv"
	"strings"

	"crm-cli/internal/forms"
	"crm-cli/internal/model"
	"crm-cli/internal/statusutil"
)

// entityForm is the create/edit form of one customer, offer or task. id is 0
// when creating.
type entityForm struct {
	kind entityKind
	id   int64
	fieldForm
}

func customerStatusChoices() []choice {
	out := make([]choice, 0, len(statusutil.CustomerStatuses))
	for _, s := range statusutil.CustomerStatuses {
		out = append(out, choice{label: string(s), value: string(s)})
	}
	return out
}

func offerStatusChoices() []choice {
	out := make([]choice, 0, len(statusutil.OfferStatuses))
	for _, s := range statusutil.OfferStatuses {
		out = append(out, choice{label: statusutil.OfferStatusLabel(s), value: string(s)})
	}
	return out
}

func taskStatusChoices() []choice {
	out := make([]choice, 0, len(statusutil.TaskStatuses))
	for _, s := range statusutil.TaskStatuses {
		out = append(out, choice{label: statusutil.TaskStatusLabel(s), value: string(s)})
	}
	return out
}

func priorityChoices() []choice {
	out := make([]choice, 0, len(statusutil.TaskPriorities))
	for _, p := range statusutil.TaskPriorities {
		out = append(out, choice{label: statusutil.PriorityLabel(p), value: string(p)})
	}
	return out
}

func customerChoices(rows []model.Customer) []choice {
	out := make([]choice, 0, len(rows))
	for _, c := range rows {
		out = append(out, choice{label: c.FullName(), value: strconv.FormatInt(c.ID, 10)})
	}
	return out
}

func offerChoices(rows []model.Offer) []choice {
	out := []choice{{label: "(none)", value: ""}}
	for _, o := range rows {
		out = append(out, choice{label: o.Title, value: strconv.FormatInt(o.ID, 10)})
	}
	return out
}

func idString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func formTitle(kind entityKind, id int64) string {
	if id == 0 {
		return "New " + string(kind)
	}
	return fmt.Sprintf("Edit %s %d", kind, id)
}

func newCustomerForm(id int64, in model.CustomerInput) entityForm {
	if in.Status == "" {
		in.Status = model.CustomerLead
	}
	return entityForm{kind: entityCustomer, id: id, fieldForm: newFieldForm(formTitle(entityCustomer, id),
		newTextField("firstName", "First name", in.FirstName),
		newTextField("lastName", "Last name", in.LastName),
		newTextField("email", "Email", in.Email),
		newTextField("phone", "Phone", in.Phone),
		newChoiceField("status", "Status", customerStatusChoices(), string(in.Status)),
	)}
}

// newOfferForm preselects customerID on create when the list is narrowed to a customer.
func newOfferForm(id int64, in model.OfferInput, customers []model.Customer) entityForm {
	if in.Status == "" {
		in.Status = model.OfferDraft
	}
	price := ""
	if in.Price != 0 {
		price = strconv.FormatFloat(in.Price, 'f', 2, 64)
	}
	return entityForm{kind: entityOffer, id: id, fieldForm: newFieldForm(formTitle(entityOffer, id),
		newTextField("title", "Title", in.Title),
		newTextField("description", "Description", in.Description),
		newTextField("price", "Price", price),
		newChoiceField("status", "Status", offerStatusChoices(), string(in.Status)),
		newChoiceField("customerId", "Customer", customerChoices(customers), idString(in.CustomerID)),
	)}
}

func newTaskForm(id int64, in model.TaskInput, customers []model.Customer, offers []model.Offer) entityForm {
	if in.Status == "" {
		in.Status = model.TaskTodo
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	due := ""
	if in.DueDate != nil && !in.DueDate.IsZero() {
		due = in.DueDate.Format()
	}
	offer := ""
	if in.OfferID != nil {
		offer = idString(*in.OfferID)
	}
	return entityForm{kind: entityTask, id: id, fieldForm: newFieldForm(formTitle(entityTask, id),
		newTextField("title", "Title", in.Title),
		newTextField("description", "Description", in.Description),
		newTextField("dueDate", "Due (YYYY-MM-DD HH:MM)", due),
		newChoiceField("priority", "Priority", priorityChoices(), string(in.Priority)),
		newChoiceField("status", "Status", taskStatusChoices(), string(in.Status)),
		newChoiceField("customerId", "Customer", customerChoices(customers), idString(in.CustomerID)),
		newChoiceField("offerId", "Offer", offerChoices(offers), offer),
	)}
}

// parseID is 0 for an empty choice so validation reports the field as required.
func parseID(s string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (f entityForm) customerInput() (model.CustomerInput, error) {
	in := model.CustomerInput{
		FirstName: strings.TrimSpace(f.value("firstName")),
		LastName:  strings.TrimSpace(f.value("lastName")),
		Email:     strings.TrimSpace(f.value("email")),
		Phone:     strings.TrimSpace(f.value("phone")),
		Status:    model.CustomerStatus(f.value("status")),
	}
	return in, forms.ValidateCustomer(in)
}

func (f entityForm) offerInput() (model.OfferInput, error) {
	in := model.OfferInput{
		Title:       strings.TrimSpace(f.value("title")),
		Description: strings.TrimSpace(f.value("description")),
		Status:      model.OfferStatus(f.value("status")),
		CustomerID:  parseID(f.value("customerId")),
	}
	parseErrs := forms.FieldErrors{}
	if s := strings.TrimSpace(f.value("price")); s != "" {
		p, err := forms.ParsePrice(s)
		if err != nil {
			parseErrs["price"] = err.Error()
		}
		in.Price = p
	}
	return in, mergeErrors(parseErrs, forms.ValidateOffer(in))
}

func (f entityForm) taskInput() (model.TaskInput, error) {
	in := model.TaskInput{
		Title:       strings.TrimSpace(f.value("title")),
		Description: strings.TrimSpace(f.value("description")),
		Status:      model.TaskStatus(f.value("status")),
		Priority:    model.TaskPriority(f.value("priority")),
		CustomerID:  parseID(f.value("customerId")),
	}
	if id := parseID(f.value("offerId")); id != 0 {
		in.OfferID = &id
	}
	parseErrs := forms.FieldErrors{}
	due, err := forms.ParseDueDate(f.value("dueDate"))
	if err != nil {
		parseErrs["dueDate"] = err.Error()
	}
	in.DueDate = due
	return in, mergeErrors(parseErrs, forms.ValidateTask(in))
}

// mergeErrors lets parse errors take precedence over the validator's message
// for the same field.
func mergeErrors(parse forms.FieldErrors, err error) error {
	if len(parse) == 0 {
		return err
	}
	if fe, ok := err.(forms.FieldErrors); ok {
		for k, v := range fe {
			if _, exists := parse[k]; !exists {
				parse[k] = v
			}
		}
	} else if err != nil {
		return err
	}
	return parse
}
