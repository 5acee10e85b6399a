// Package forms validates create/update input before any request is built.
package forms

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"crm-cli/internal/model"
)

var phoneRE = regexp.MustCompile(`^\+?[0-9\s]{10,20}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return lowerFirst(f.Name)
		case "":
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRE.MatchString(fl.Field().String())
	})
	return v
}

// FieldErrors maps a field (by its JSON name) to a human-readable message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fe[k])
	}
	return strings.Join(msgs, "; ")
}

// Validate checks v's validate tags. It returns FieldErrors or nil.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := FieldErrors{}
	for _, fe := range ve {
		if _, ok := out[fe.Field()]; ok {
			continue
		}
		out[fe.Field()] = fieldError(fe)
	}
	return out
}

func ValidateCustomer(in model.CustomerInput) error { return Validate(in) }
func ValidateOffer(in model.OfferInput) error       { return Validate(in) }
func ValidateTask(in model.TaskInput) error         { return Validate(in) }
func ValidateRegister(in model.RegisterInput) error { return Validate(in) }

func fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "phone":
		return field + " must be 10-20 digits, optionally starting with +"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "eqfield":
		return "passwords do not match"
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

// EchoValidator adapts Validate to echo.Validator.
type EchoValidator struct{}

func (EchoValidator) Validate(i any) error { return Validate(i) }

// ParseID parses a positive entity id. Accepts "12" and "customer-12" style refs.
func ParseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "-"); i >= 0 {
		s = s[i+1:]
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %q", s)
	}
	return id, nil
}

// ParseOptionalID is ParseID where "" (or "none") means no id.
func ParseOptionalID(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") || s == "-" {
		return nil, nil
	}
	id, err := ParseID(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func ParsePrice(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price: %q", s)
	}
	return f, nil
}

// ParseDueDate accepts the LocalTime layouts (date only is midnight). Empty means unset.
func ParseDueDate(s string) (*model.LocalTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := model.ParseLocalTime(s)
	if err != nil {
		return nil, fmt.Errorf("invalid due date %q (use YYYY-MM-DD or YYYY-MM-DD HH:MM)", s)
	}
	return model.NewLocalTime(t), nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
