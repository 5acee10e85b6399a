package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

// normalizePane forces s to exactly width columns (ANSI-aware) and height lines,
// so lipgloss.JoinHorizontal lines up the list and detail panes.
func normalizePane(s string, width, height int) string {
	width = max(width, 0)
	height = max(height, 0)

	lines := strings.Split(s, "\n")
	if height > 0 {
		if len(lines) > height {
			lines = lines[:height]
		}
		for len(lines) < height {
			lines = append(lines, "")
		}
	}
	for i, ln := range lines {
		lines[i] = fitLine(ln, width)
	}
	return strings.Join(lines, "\n")
}

// fitLine truncates with an ellipsis or pads with spaces to width columns.
func fitLine(ln string, width int) string {
	w := xansi.StringWidth(ln)
	switch {
	case w > width && width <= 1:
		ln = xansi.Cut(ln, 0, width)
	case w > width:
		ln = xansi.Cut(ln, 0, width-1) + "…"
	}
	if w = xansi.StringWidth(ln); w < width {
		ln += strings.Repeat(" ", width-w)
	}
	return ln
}

// splitPanes renders the list on the left and the detail on the right.
func splitPanes(left, right string, width, height int) string {
	leftW := listWidth(width)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		normalizePane(left, leftW, height),
		normalizePane("", 2, height),
		normalizePane(right, detailWidth(width), height),
	)
}

func listWidth(width int) int {
	return max(width/2, 36)
}

func detailWidth(width int) int {
	return max(width-listWidth(width)-2, 24)
}
