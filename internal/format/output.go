package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Tabular values can be rendered with --format table.
type Tabular interface {
	Headers() []string
	Rows() [][]string
}

// Write writes output in the requested format.
//
// Supported formats:
// - json (default)
// - table (values that are not Tabular fall back to indented JSON)
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "table":
		if t, ok := v.(Tabular); ok {
			return WriteTable(w, t, pretty)
		}
		return WriteJSON(w, v, true)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteJSON writes strict JSON output for CLI commands.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}

// WriteTable renders t with lipgloss. pretty draws a rounded border; otherwise
// columns are aligned without rules.
func WriteTable(w io.Writer, t Tabular, pretty bool) error {
	tbl := table.New().
		Headers(t.Headers()...).
		Rows(t.Rows()...)
	if pretty {
		header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
		cell := lipgloss.NewStyle().Padding(0, 1)
		tbl = tbl.Border(lipgloss.RoundedBorder()).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return header
				}
				return cell
			})
	} else {
		cell := lipgloss.NewStyle().PaddingRight(2)
		tbl = tbl.Border(lipgloss.HiddenBorder()).
			BorderTop(false).
			BorderBottom(false).
			BorderLeft(false).
			BorderRight(false).
			BorderColumn(false).
			BorderHeader(false).
			StyleFunc(func(row, col int) lipgloss.Style { return cell })
	}
	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}
