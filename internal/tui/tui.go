package tui

import (
	"context"
	"errors"

	"crm-cli/internal/api"

	tea "github.com/charmbracelet/bubbletea"
)

func Run(ctx context.Context, c *api.Client) error {
	applyColorProfilePreference()
	applyThemePreference()

	m := newAppModel(ctx, c)
	m.animate = true
	defer m.unsubscribe()

	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
