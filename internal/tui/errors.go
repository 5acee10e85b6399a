package tui

import (
	"errors"

	"crm-cli/internal/api"
	"crm-cli/internal/forms"
	"crm-cli/internal/mutate"
	"crm-cli/internal/session"
)

// errorText renders err for a banner.
func errorText(err error) string {
	var le *api.LoginError
	var te *mutate.TransitionError
	var fe forms.FieldErrors
	switch {
	case err == nil:
		return ""
	case errors.As(err, &le):
		return le.Error()
	case errors.As(err, &te):
		return te.Message()
	case errors.As(err, &fe):
		return "invalid input: " + fe.Error()
	case errors.Is(err, session.ErrEmptyCredentials):
		return "username and password are required"
	default:
		return api.UserMessage(err)
	}
}

// serverFields returns the per-field messages of a 400 response.
func serverFields(err error) map[string]string {
	var ae *api.Error
	if errors.As(err, &ae) {
		return ae.Fields
	}
	return nil
}

func isUnauthorized(err error) bool {
	return errors.Is(err, api.ErrUnauthorized)
}
