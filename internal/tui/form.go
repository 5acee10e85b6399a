package tui

import (
	"sort"
	"strings"

	"crm-cli/internal/forms"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type choice struct {
	label string
	value string
}

// formField is a single labelled input. Fields with choices cycle with
// left/right and ignore typing.
type formField struct {
	name    string
	label   string
	input   textinput.Model
	choices []choice
	choice  int
}

func newTextField(name, label, value string) formField {
	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = 1000
	in.SetValue(value)
	// A static cursor keeps the form free of blink timers.
	in.Cursor.SetMode(cursor.CursorStatic)
	return formField{name: name, label: label, input: in}
}

func newSecretField(name, label string) formField {
	f := newTextField(name, label, "")
	f.input.EchoMode = textinput.EchoPassword
	f.input.EchoCharacter = '•'
	return f
}

func newChoiceField(name, label string, choices []choice, current string) formField {
	f := formField{name: name, label: label, choices: choices}
	for i, c := range choices {
		if c.value == current {
			f.choice = i
		}
	}
	return f
}

func (f formField) value() string {
	if f.choices != nil {
		if f.choice < len(f.choices) {
			return f.choices[f.choice].value
		}
		return ""
	}
	return f.input.Value()
}

type fieldForm struct {
	title  string
	fields []formField
	focus  int
	errs   forms.FieldErrors
	banner string
	busy   bool
}

func newFieldForm(title string, fields ...formField) fieldForm {
	f := fieldForm{title: title, fields: fields}
	f.focusField(0)
	return f
}

func (f *fieldForm) focusField(i int) {
	if len(f.fields) == 0 {
		return
	}
	i = (i + len(f.fields)) % len(f.fields)
	for j := range f.fields {
		if j == i {
			f.fields[j].input.Focus()
		} else {
			f.fields[j].input.Blur()
		}
	}
	f.focus = i
}

func (f fieldForm) value(name string) string {
	for _, fld := range f.fields {
		if fld.name == name {
			return fld.value()
		}
	}
	return ""
}

func (f *fieldForm) setValue(name, v string) {
	for i := range f.fields {
		if f.fields[i].name == name && f.fields[i].choices == nil {
			f.fields[i].input.SetValue(v)
		}
	}
}

// update handles one key and reports whether the form should be submitted.
// enter on the last field submits; ctrl+s submits from anywhere.
func (f *fieldForm) update(msg tea.KeyMsg) (submit bool) {
	if f.busy {
		return false
	}
	switch msg.String() {
	case "ctrl+s":
		return true
	case "enter":
		if f.focus == len(f.fields)-1 {
			return true
		}
		f.focusField(f.focus + 1)
		return false
	case "tab", "down":
		f.focusField(f.focus + 1)
		return false
	case "shift+tab", "up":
		f.focusField(f.focus - 1)
		return false
	}

	fld := &f.fields[f.focus]
	if fld.choices != nil {
		if n := len(fld.choices); n > 0 {
			switch msg.String() {
			case "left", "h":
				fld.choice = (fld.choice - 1 + n) % n
			case "right", "l", " ":
				fld.choice = (fld.choice + 1) % n
			}
		}
		return false
	}
	fld.input, _ = fld.input.Update(msg)
	return false
}

// fail shows err against the form. Field errors are attached to their inputs;
// anything else becomes the form banner.
func (f *fieldForm) fail(err error, fields map[string]string) {
	f.busy = false
	f.errs = nil
	f.banner = ""
	if len(fields) > 0 {
		f.errs = forms.FieldErrors(fields)
	}
	if fe, ok := err.(forms.FieldErrors); ok {
		f.errs = fe
		return
	}
	if err != nil {
		f.banner = errorText(err)
	}
}

func (f fieldForm) view(width int) string {
	labelW := 0
	for _, fld := range f.fields {
		labelW = max(labelW, len(fld.label))
	}
	inputW := max(width-labelW-4, 10)

	label := lipgloss.NewStyle().Width(labelW + 2)
	focused := label.Foreground(colorAccent).Bold(true)
	box := lipgloss.NewStyle().Background(colorInputBg).Width(inputW)

	var b strings.Builder
	b.WriteString(styleHeading().Render(f.title))
	b.WriteString("\n\n")
	for i, fld := range f.fields {
		ls := label
		if i == f.focus {
			ls = focused
		}
		var val string
		if fld.choices != nil {
			cur := ""
			if fld.choice < len(fld.choices) {
				cur = fld.choices[fld.choice].label
			}
			val = "‹ " + cur + " ›"
		} else {
			fld.input.Width = inputW - 1
			val = fld.input.View()
		}
		b.WriteString(ls.Render(fld.label))
		b.WriteString(box.Render(val))
		b.WriteString("\n")
		if msg, ok := f.errs[fld.name]; ok {
			b.WriteString(strings.Repeat(" ", labelW+2))
			b.WriteString(styleError().Render(msg))
			b.WriteString("\n")
		}
	}

	// Errors for fields the form does not show (server-side names).
	var extra []string
	for name, msg := range f.errs {
		if !f.hasField(name) {
			extra = append(extra, msg)
		}
	}
	sort.Strings(extra)
	for _, msg := range extra {
		b.WriteString("\n" + styleError().Render(msg))
	}
	if f.banner != "" {
		b.WriteString("\n" + styleError().Render(f.banner))
	}
	b.WriteString("\n")
	if f.busy {
		b.WriteString(styleMuted().Render("saving…"))
	} else {
		b.WriteString(styleMuted().Render("tab: next field   ←/→: choose   ctrl+s: save   esc: cancel"))
	}
	return b.String()
}

func (f fieldForm) hasField(name string) bool {
	for _, fld := range f.fields {
		if fld.name == name {
			return true
		}
	}
	return false
}
