package statusutil

import (
	"fmt"
	"strings"

	"crm-cli/internal/model"
)

// Selectable sets, in display order. OfferExpired is deliberately absent.
var (
	OfferStatuses    = []model.OfferStatus{model.OfferDraft, model.OfferSent, model.OfferAccepted, model.OfferRejected, model.OfferCancelled}
	TaskStatuses     = []model.TaskStatus{model.TaskTodo, model.TaskInProgress, model.TaskDone}
	TaskPriorities   = []model.TaskPriority{model.PriorityLow, model.PriorityMedium, model.PriorityHigh}
	CustomerStatuses = []model.CustomerStatus{model.CustomerLead, model.CustomerActive, model.CustomerInactive}
)

func canon(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

func NormalizeOfferStatus(s string) (model.OfferStatus, error) {
	c := canon(s)
	for _, st := range OfferStatuses {
		if string(st) == c {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid offer status: %q", s)
}

func NormalizeTaskStatus(s string) (model.TaskStatus, error) {
	c := canon(s)
	// Shorthands people type on the command line.
	switch c {
	case "DOING", "INPROGRESS":
		c = string(model.TaskInProgress)
	}
	for _, st := range TaskStatuses {
		if string(st) == c {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid task status: %q", s)
}

func NormalizePriority(s string) (model.TaskPriority, error) {
	c := canon(s)
	for _, p := range TaskPriorities {
		if string(p) == c {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid priority: %q", s)
}

func NormalizeCustomerStatus(s string) (model.CustomerStatus, error) {
	c := canon(s)
	for _, st := range CustomerStatuses {
		if string(st) == c {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid customer status: %q", s)
}

func ValidOfferStatus(s model.OfferStatus) bool {
	for _, st := range OfferStatuses {
		if st == s {
			return true
		}
	}
	return false
}

func ValidTaskStatus(s model.TaskStatus) bool {
	for _, st := range TaskStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// ToggleTaskStatus is the completion checkbox: DONE flips to TODO, anything else to DONE.
// IN_PROGRESS is not remembered across a DONE round-trip.
func ToggleTaskStatus(current model.TaskStatus) model.TaskStatus {
	if current == model.TaskDone {
		return model.TaskTodo
	}
	return model.TaskDone
}

func IsEndState(s model.TaskStatus) bool {
	return s == model.TaskDone
}

// IsActiveOffer reports whether an offer is still in the pipeline (dashboard count).
func IsActiveOffer(s model.OfferStatus) bool {
	return s == model.OfferDraft || s == model.OfferSent
}

func OfferStatusLabel(s model.OfferStatus) string {
	switch s {
	case model.OfferDraft:
		return "Draft"
	case model.OfferSent:
		return "Sent"
	case model.OfferAccepted:
		return "Accepted"
	case model.OfferRejected:
		return "Rejected"
	case model.OfferCancelled:
		return "Cancelled"
	case model.OfferExpired:
		return "Expired"
	case "":
		return "-"
	default:
		return string(s)
	}
}

func TaskStatusLabel(s model.TaskStatus) string {
	switch s {
	case model.TaskTodo:
		return "To do"
	case model.TaskInProgress:
		return "In progress"
	case model.TaskDone:
		return "Done"
	case "":
		return "-"
	default:
		return string(s)
	}
}

func PriorityLabel(p model.TaskPriority) string {
	switch p {
	case model.PriorityLow:
		return "Low"
	case model.PriorityMedium:
		return "Medium"
	case model.PriorityHigh:
		return "High"
	case "":
		return "-"
	default:
		return string(p)
	}
}
