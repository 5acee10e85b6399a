package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type confirmModalFocus int

const (
	confirmFocusConfirm confirmModalFocus = iota
	confirmFocusCancel
)

// confirmState is a pending destructive action. run is returned once confirmed.
type confirmState struct {
	title        string
	body         string
	confirmLabel string
	focus        confirmModalFocus
	run          tea.Cmd
}

// update reports (done, confirmed). y confirms directly; n and esc cancel.
func (c *confirmState) update(msg tea.KeyMsg) (done bool, confirmed bool) {
	switch msg.String() {
	case "y":
		return true, true
	case "n", "esc", "ctrl+g":
		return true, false
	case "tab", "shift+tab", "left", "right":
		if c.focus == confirmFocusConfirm {
			c.focus = confirmFocusCancel
		} else {
			c.focus = confirmFocusConfirm
		}
	case "enter":
		return true, c.focus == confirmFocusConfirm
	}
	return false, false
}

func modalBodyWidth(width int) int {
	return min(max(width-8, 30), 72)
}

func renderModalBox(width int, title, content string) string {
	bodyW := modalBodyWidth(width)
	head := styleHeading().Render(title)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(1, 2).
		Width(bodyW + 4).
		Render(head + "\n\n" + content)
}

func renderConfirmModal(width int, c confirmState) string {
	btnBase := lipgloss.NewStyle().
		Padding(0, 1).
		Foreground(colorSurfaceFg).
		Background(colorControlBg)
	btnActive := btnBase.
		Foreground(colorSelectedFg).
		Background(colorSelectedBg).
		Bold(true)

	label := c.confirmLabel
	if label == "" {
		label = "Confirm"
	}
	confirm := btnBase.Render(label)
	cancel := btnBase.Render("Cancel")
	if c.focus == confirmFocusConfirm {
		confirm = btnActive.Render(label)
	} else {
		cancel = btnActive.Render("Cancel")
	}
	controls := lipgloss.JoinHorizontal(lipgloss.Top, confirm, " ", cancel)

	bodyW := modalBodyWidth(width)
	content := strings.Join([]string{
		lipgloss.NewStyle().Width(bodyW).Render(c.body),
		"",
		controls,
		"",
		styleMuted().Width(bodyW).Render("y: confirm   n/esc: cancel   tab: focus"),
	}, "\n")
	return renderModalBox(width, c.title, content)
}
