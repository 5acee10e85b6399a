package mutate

import (
	"errors"
	"fmt"

	"crm-cli/internal/api"
)

var ErrInvalidStatus = errors.New("invalid status")

type Reason string

const (
	ReasonForbidden       Reason = "FORBIDDEN"
	ReasonNotFound        Reason = "NOT_FOUND"
	ReasonUnauthenticated Reason = "UNAUTHENTICATED"
	ReasonServer          Reason = "SERVER"
)

// TransitionError is a status change the backend did not confirm. Nothing was
// applied locally.
type TransitionError struct {
	Reason Reason
	Kind   EntityKind
	ID     int64
	Target string
	// Detail is the server's message, when it sent one.
	Detail string
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %d -> %s: %s", e.Kind, e.ID, e.Target, e.Message())
}

func (e *TransitionError) Unwrap() error { return e.Err }

// Message is the user-facing text. Each Reason reads differently.
func (e *TransitionError) Message() string {
	switch e.Reason {
	case ReasonForbidden:
		return fmt.Sprintf("You don't have permission to change the status of this %s.", e.Kind)
	case ReasonNotFound:
		return fmt.Sprintf("This %s no longer exists.", e.Kind)
	case ReasonUnauthenticated:
		return "Your session has expired. Please log in again."
	default:
		if e.Detail != "" {
			return "Could not change status: " + e.Detail
		}
		return "Could not change status. Please try again."
	}
}

func newTransitionError(req Request, err error) *TransitionError {
	te := &TransitionError{Kind: req.Kind, ID: req.ID, Target: req.Target, Err: err}
	switch api.KindOf(err) {
	case api.KindForbidden:
		te.Reason = ReasonForbidden
	case api.KindNotFound:
		te.Reason = ReasonNotFound
	case api.KindUnauthorized:
		te.Reason = ReasonUnauthenticated
	default:
		te.Reason = ReasonServer
		var ae *api.Error
		if errors.As(err, &ae) {
			te.Detail = ae.Message
		}
	}
	return te
}
