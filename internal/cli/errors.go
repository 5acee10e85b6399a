package cli

import (
	"errors"
	"fmt"

	"crm-cli/internal/api"
	"crm-cli/internal/forms"
	"crm-cli/internal/mutate"
	"crm-cli/internal/perm"
)

var (
	errNotLoggedIn    = errors.New("not logged in; run `crm login --username <name>`")
	errSessionExpired = errors.New("session expired; run `crm login` again")
	errNeedsConfirm   = errors.New("refusing to delete without --yes")
)

type permissionError struct {
	action string
	need   perm.Role
	have   perm.Role
}

func (e permissionError) Error() string {
	have := e.have.String()
	if have == "" {
		have = "no role"
	}
	return fmt.Sprintf("permission denied: %s requires %s (you are %s)", e.action, e.need, have)
}

// gate refuses an action before any request is built.
func gate(app *App, action string, allowed func(perm.Role) bool, need perm.Role) error {
	r := app.sess.Role()
	if allowed(r) {
		return nil
	}
	return permissionError{action: action, need: need, have: r}
}

func userMessage(err error) string {
	var le *api.LoginError
	if errors.As(err, &le) {
		return le.Error()
	}
	var te *mutate.TransitionError
	if errors.As(err, &te) {
		return te.Message()
	}
	var fe forms.FieldErrors
	if errors.As(err, &fe) {
		return "invalid input: " + fe.Error()
	}
	if api.KindOf(err) == api.KindUnauthorized {
		return errSessionExpired.Error()
	}
	return api.UserMessage(err)
}
