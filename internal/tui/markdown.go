package tui

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	mdRendererMu sync.Mutex
	// Renderers are cached by style and wrap width. WithAutoStyle is avoided: it
	// queries the terminal and can block.
	mdRenderers = map[string]*glamour.TermRenderer{}
)

// renderMarkdown renders offer and task descriptions for the detail pane.
// On any renderer error the raw text is returned.
func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if width < 10 {
		width = 10
	}

	style := markdownStyle()
	key := style + ":" + strconv.Itoa(width)

	mdRendererMu.Lock()
	r := mdRenderers[key]
	if r == nil {
		rr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			mdRendererMu.Unlock()
			return md
		}
		mdRenderers[key] = rr
		r = rr
	}
	mdRendererMu.Unlock()

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// markdownStyle follows the TUI theme so descriptions stay readable when the
// theme is forced. CRM_TUI_MD_STYLE overrides it.
func markdownStyle() string {
	for _, env := range []string{"CRM_TUI_MD_STYLE", "CRM_TUI_THEME"} {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(env))) {
		case "light":
			return "light"
		case "dark":
			return "dark"
		case "notty", "ascii":
			return "notty"
		}
	}
	if dark, ok := colorFGBGIsDark(); ok {
		if dark {
			return "dark"
		}
		return "light"
	}
	if lipgloss.HasDarkBackground() {
		return "dark"
	}
	return "light"
}
