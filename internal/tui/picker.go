package tui

import (
	"strings"

	"crm-cli/internal/model"
	"crm-cli/internal/statusutil"

	tea "github.com/charmbracelet/bubbletea"
)

// picker chooses one value from a short list: a new offer or task status, or
// a user's role.
type picker struct {
	kind    entityKind
	id      int64
	title   string
	options []choice
	cursor  int
	current string
}

func newPicker(kind entityKind, id int64, title string, options []choice, current string) *picker {
	p := &picker{kind: kind, id: id, title: title, options: options, current: current}
	for i, o := range options {
		if o.value == current {
			p.cursor = i
		}
	}
	return p
}

func offerStatusPicker(o model.Offer) *picker {
	return newPicker(entityOffer, o.ID, "Status of "+o.Title, offerStatusChoices(), string(o.Status))
}

func taskStatusPicker(t model.Task) *picker {
	return newPicker(entityTask, t.ID, "Status of "+t.Title, taskStatusChoices(), string(t.Status))
}

// rolePicker never offers ADMIN; the backend only moves users between USER and MANAGER.
func rolePicker(u model.User) *picker {
	opts := []choice{{label: "User", value: "USER"}, {label: "Manager", value: "MANAGER"}}
	return newPicker(entityUser, u.ID, "Role of "+u.Username, opts, u.RoleLabel())
}

// update reports (done, chosen value). An empty value with done means cancelled.
func (p *picker) update(msg tea.KeyMsg) (bool, string) {
	switch msg.String() {
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.options)-1 {
			p.cursor++
		}
	case "enter":
		if len(p.options) == 0 {
			return true, ""
		}
		return true, p.options[p.cursor].value
	case "esc", "ctrl+g", "q":
		return true, ""
	}
	return false, ""
}

func (p picker) view(width int) string {
	var b strings.Builder
	for i, o := range p.options {
		mark := "  "
		if i == p.cursor {
			mark = "› "
		}
		line := mark + o.label
		if o.value == p.current {
			line += styleMuted().Render("  (current)")
		}
		if i == p.cursor {
			line = styleHeading().Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + styleMuted().Render("↑/↓: move   enter: apply   esc: cancel"))
	return renderModalBox(width, p.title, b.String())
}

// offerStatusBadge colors a status label by state.
func offerStatusBadge(s model.OfferStatus) string {
	label := statusutil.OfferStatusLabel(s)
	switch s {
	case model.OfferAccepted:
		return styleOK().Render(label)
	case model.OfferRejected, model.OfferCancelled, model.OfferExpired:
		return styleMuted().Render(label)
	default:
		return styleWarn().Render(label)
	}
}

func taskStatusBadge(s model.TaskStatus) string {
	label := statusutil.TaskStatusLabel(s)
	if statusutil.IsEndState(s) {
		return styleOK().Render(label)
	}
	return styleWarn().Render(label)
}
