package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// rowDelegate renders one line per row. marker returns a short prefix for rows
// with an in-flight or failed status change; it may be nil.
type rowDelegate struct {
	normal   lipgloss.Style
	selected lipgloss.Style
	marker   func(rowItem) string
}

func newRowDelegate(marker func(rowItem) string) rowDelegate {
	return rowDelegate{
		normal: lipgloss.NewStyle(),
		selected: lipgloss.NewStyle().
			Foreground(colorSelectedFg).
			Background(colorSelectedBg).
			Bold(true),
		marker: marker,
	}
}

func (d rowDelegate) Height() int                             { return 1 }
func (d rowDelegate) Spacing() int                            { return 0 }
func (d rowDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d rowDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	width := m.Width()
	if width < 4 {
		return
	}
	r, ok := item.(rowItem)
	if !ok {
		fmt.Fprint(w, fitLine(fmt.Sprint(item), width))
		return
	}

	prefix := "  "
	if d.marker != nil {
		if mk := d.marker(r); mk != "" {
			prefix = mk + " "
		}
	}
	style := d.normal
	if index == m.Index() {
		style = d.selected
	}
	fmt.Fprint(w, style.Render(fitLine(prefix+r.Title(), width)))
}
