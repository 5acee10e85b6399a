package model

// Request bodies for create/update. Validation rules live in the validate tags
// and are checked client-side before a request is built.

type CustomerInput struct {
	FirstName string         `json:"firstName" validate:"required"`
	LastName  string         `json:"lastName"  validate:"required"`
	Email     string         `json:"email"     validate:"required,email"`
	Phone     string         `json:"phone,omitempty" validate:"omitempty,phone"`
	Status    CustomerStatus `json:"status"    validate:"required,oneof=LEAD ACTIVE INACTIVE"`
}

type OfferInput struct {
	Title       string      `json:"title"       validate:"required,min=3,max=200"`
	Description string      `json:"description" validate:"max=1000"`
	Price       float64     `json:"price"       validate:"gt=0"`
	Status      OfferStatus `json:"status"      validate:"required,oneof=DRAFT SENT ACCEPTED REJECTED CANCELLED"`
	CustomerID  int64       `json:"customerId"  validate:"required,gt=0"`
}

type TaskInput struct {
	Title       string       `json:"title"       validate:"required,min=3,max=200"`
	Description string       `json:"description" validate:"max=1000"`
	DueDate     *LocalTime   `json:"dueDate"     validate:"required"`
	Status      TaskStatus   `json:"status"      validate:"required,oneof=TODO IN_PROGRESS DONE"`
	Priority    TaskPriority `json:"priority"    validate:"required,oneof=LOW MEDIUM HIGH"`
	CustomerID  int64        `json:"customerId"  validate:"required,gt=0"`
	OfferID     *int64       `json:"offerId"     validate:"omitempty,gt=0"`
}

type RegisterInput struct {
	Username        string `json:"username" validate:"required,min=3,max=50"`
	Email           string `json:"email"    validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"-"        validate:"eqfield=Password"`
}

// Input seeds an edit form.
func (c Customer) Input() CustomerInput {
	return CustomerInput{FirstName: c.FirstName, LastName: c.LastName, Email: c.Email, Phone: c.Phone, Status: c.Status}
}

func (o Offer) Input() OfferInput {
	return OfferInput{Title: o.Title, Description: o.Description, Price: o.Price, Status: o.Status, CustomerID: o.CustomerID}
}

func (t Task) Input() TaskInput {
	return TaskInput{
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Status:      t.Status,
		Priority:    t.Priority,
		CustomerID:  t.CustomerID,
		OfferID:     t.OfferID,
	}
}
