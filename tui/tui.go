package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Start launches the TUI.
func Start(opts Options) error {
	app := NewApp(opts)
	p := tea.NewProgram(app, tea.WithAltScreen())

	_, err := p.Run()
	return err
}
