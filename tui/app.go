// app.go is the top-level Bubble Tea model that orchestrates all views.
//
// Two tabs: the SQL composer (F1) and the saved connections (F2). Picking
// a connection imports its schema into the composer and jumps back to it.
// Composer messages are always routed to the composer, whichever tab is
// shown, so a stream keeps rendering in the background.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/DachengChen/obsql/composer"
	"github.com/DachengChen/obsql/config"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const appVersion = "0.2.0"

// Tab indices.
const (
	TabComposer = iota
	TabConnections
)

// Options configures the App.
type Options struct {
	AppConfig *config.AppConfig
	Store     *config.ConnectionStore
	// Endpoint overrides AppConfig.Composer.Endpoint.
	Endpoint string
	// ConnName preselects a saved connection for Ctrl+O schema import.
	ConnName   string
	Client     composer.Doer
	Clipboard  composer.Clipboard
	LoadSchema SchemaLoader
}

// App is the root Bubble Tea model.
type App struct {
	composer    *ComposerView
	connections *ConnectionsView
	views       []View
	activeTab   int
	endpoint    string

	width    int
	height   int
	showHelp bool
}

// NewApp builds the views from opts.
func NewApp(opts Options) *App {
	appCfg := opts.AppConfig
	if appCfg == nil {
		appCfg = config.DefaultAppConfig()
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = appCfg.Composer.Endpoint
	}
	load := opts.LoadSchema
	if load == nil {
		load = DefaultSchemaLoader
	}

	copts := ComposerOptions{
		Endpoint:        endpoint,
		Client:          opts.Client,
		Mode:            composer.ModeFor(appCfg.Composer.SnippetMode),
		KeepBusyOnError: appCfg.Composer.KeepBusyOnError,
		Clipboard:       opts.Clipboard,
	}
	if opts.Store != nil && opts.ConnName != "" {
		if conn, ok := opts.Store.Get(opts.ConnName); ok {
			copts.ImportSchema = func(ctx context.Context) (string, error) { return load(ctx, conn) }
			copts.ImportSource = conn.Name
		}
	}

	a := &App{
		composer:    NewComposerView(copts),
		connections: NewConnectionsView(opts.Store, load),
	}
	a.endpoint = a.composer.comp.Endpoint()
	a.views = []View{a.composer, a.connections}
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.composer.Init()
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Header(1) + Status(1) + Borders(2) = 4 lines chrome
		contentW := a.width - 2
		contentH := max(a.height-4, 0)
		for _, v := range a.views {
			v.SetSize(contentW, contentH)
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case ChunkMsg, ComposeDoneMsg, toastExpiredMsg:
		return a, a.updateComposer(msg)

	case SchemaImportedMsg:
		_, connCmd := a.connections.Update(msg)
		cmd := a.updateComposer(msg)
		if msg.Err == nil {
			a.activeTab = TabComposer
		}
		return a, tea.Batch(connCmd, cmd)
	}

	updated, cmd := a.views[a.activeTab].Update(msg)
	a.views[a.activeTab] = updated
	return a, cmd
}

func (a *App) updateComposer(msg tea.Msg) tea.Cmd {
	_, cmd := a.composer.Update(msg)
	return cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "f1":
		return a.switchTab(TabComposer)
	case "f2":
		return a.switchTab(TabConnections)
	}

	// When the active view is accepting text input, every other key is
	// forwarded so "?" and "q" can be typed.
	if !a.views[a.activeTab].WantsTextInput() {
		switch msg.String() {
		case "?":
			a.showHelp = !a.showHelp
			return a, nil
		case "q":
			return a, tea.Quit
		case "esc":
			if a.showHelp {
				a.showHelp = false
				return a, nil
			}
		}
	}

	updated, cmd := a.views[a.activeTab].Update(msg)
	a.views[a.activeTab] = updated
	return a, cmd
}

// switchTab shows another view. Views are not re-initialized: the
// composer's chunk listener is armed exactly once, in Init.
func (a *App) switchTab(idx int) (tea.Model, tea.Cmd) {
	if idx >= 0 && idx < len(a.views) {
		a.activeTab = idx
		a.showHelp = false
	}
	return a, nil
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "loading..."
	}

	header := a.renderHeader()

	var inner string
	if a.showHelp {
		inner = a.renderHelp()
	} else {
		inner = a.views[a.activeTab].View()
	}

	frame := StyleBorder.
		Width(a.width - 2).
		Height(max(a.height-4, 0)).
		Render(inner)

	return header + "\n" + frame + "\n" + a.renderStatusBar()
}

// renderHeader draws the logo, the tabs and the generate endpoint.
func (a *App) renderHeader() string {
	left := StyleBold.Render("🌊 obsql") + StyleDimmed.Render(" v"+appVersion) + "  "
	for i, v := range a.views {
		label := fmt.Sprintf("F%d %s", i+1, v.Name())
		if i == a.activeTab {
			left += StyleTabActive.Render(label)
		} else {
			left += StyleTabInactive.Render(label)
		}
	}

	right := StyleDimmed.Render("→ " + a.endpoint)
	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return lipgloss.NewStyle().
		Width(a.width).
		Render(left + strings.Repeat(" ", gap) + right)
}

func (a *App) renderStatusBar() string {
	if status, isErr := a.composer.Status(); status != "" {
		if isErr {
			return StyleStatusBar.Width(a.width).Render(StyleError.Render(status))
		}
		return StyleStatusBar.Width(a.width).Render(StyleSuccess.Render(status))
	}

	var parts []string
	for _, h := range a.helpItems() {
		parts = append(parts, StyleHelpKey.Render(h.Key)+" "+StyleHelpDesc.Render(h.Desc))
	}
	return StyleStatusBar.Width(a.width).Render(strings.Join(parts, "  │  "))
}

func (a *App) helpItems() []KeyBinding {
	global := []KeyBinding{
		{Key: "F1/F2", Desc: "views"},
		{Key: "Ctrl+C", Desc: "quit"},
	}
	return append(a.views[a.activeTab].ShortHelp(), global...)
}

func (a *App) renderHelp() string {
	help := []string{
		StyleTitle.Render("⌨ obsql Keyboard Shortcuts"),
		"",
		StyleHelpKey.Render("F1 / F2") + "          Composer / Connections",
		StyleHelpKey.Render("?") + "                Toggle this help (outside text fields)",
		StyleHelpKey.Render("Ctrl+C") + "           Quit",
		"",
		StyleTitle.Render("Composer"),
		"",
		StyleHelpKey.Render("Tab / Shift+Tab") + "  Next / previous field",
		StyleHelpKey.Render("Ctrl+S") + "           Compose your OceanBase SQL query",
		StyleHelpKey.Render("Esc") + "              Cancel the running composition",
		StyleHelpKey.Render("Ctrl+L") + "           Clear the results",
		StyleHelpKey.Render("Ctrl+O") + "           Import the schema of --conn",
		StyleHelpKey.Render("↑/↓ j/k") + "          Select a snippet",
		StyleHelpKey.Render("Enter / c") + "        Copy the selected snippet",
		"",
		StyleTitle.Render("Connections"),
		"",
		StyleHelpKey.Render("Enter") + "            Import the schema into the composer",
		StyleHelpKey.Render("r") + "                Reload connections.json",
		"",
		StyleDimmed.Render("Press ? to close"),
	}

	return lipgloss.NewStyle().
		Width(max(a.width-4, 0)).
		Padding(1, 2).
		Render(strings.Join(help, "\n"))
}
