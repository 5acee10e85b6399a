package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

type Kind string

const (
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindNotFound     Kind = "NOT_FOUND"
	KindBadRequest   Kind = "BAD_REQUEST"
	KindConflict     Kind = "CONFLICT"
	KindServer       Kind = "SERVER"
	KindNetwork      Kind = "NETWORK"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// Error is a failed API call. Message is the server's detail when it sent one.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Fields  map[string]string
	Method  string
	Path    string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Method)
	b.WriteString(" ")
	b.WriteString(e.Path)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": %d", e.Status)
	} else {
		b.WriteString(": ")
		b.WriteString(strings.ToLower(string(e.Kind)))
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrForbidden:
		return e.Kind == KindForbidden
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindBadRequest
	default:
		return KindServer
	}
}

// KindOf returns the Kind of err, or "" when err is not an API error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// UserMessage renders err for display. Each Kind has its own wording.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if !errors.As(err, &ae) {
		return err.Error()
	}
	switch ae.Kind {
	case KindUnauthorized:
		return "Your session has expired. Please log in again."
	case KindForbidden:
		return "You don't have permission to do this."
	case KindNotFound:
		return "Not found. It may have been deleted."
	case KindNetwork:
		return "Cannot reach the server. Check your connection and retry."
	case KindBadRequest, KindConflict:
		msg := ae.Message
		if msg == "" {
			msg = "The server rejected the request."
		}
		if len(ae.Fields) > 0 {
			keys := make([]string, 0, len(ae.Fields))
			for k := range ae.Fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			parts := make([]string, 0, len(keys))
			for _, k := range keys {
				parts = append(parts, k+": "+ae.Fields[k])
			}
			msg += " (" + strings.Join(parts, "; ") + ")"
		}
		return msg
	default:
		if ae.Message != "" {
			return "Server error: " + ae.Message
		}
		return "Unexpected server error."
	}
}
