// view_connections.go lists the saved database connections.
//
// Selecting a connection introspects its schema and hands the formatted
// text to the composer's schema field. Connections are edited in
// ~/.obsql/connections.json; "r" reloads the file.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DachengChen/obsql/config"
	"github.com/DachengChen/obsql/db"
	tea "github.com/charmbracelet/bubbletea"
)

const schemaImportTimeout = 30 * time.Second

// SchemaLoader introspects a connection and returns its schema as prompt text.
type SchemaLoader func(ctx context.Context, conn config.Connection) (string, error)

// DefaultSchemaLoader imports every table of the connection's schema.
func DefaultSchemaLoader(ctx context.Context, conn config.Connection) (string, error) {
	return db.ImportSchema(ctx, conn, nil)
}

// ConnectionsView is the saved-connection picker.
type ConnectionsView struct {
	store     *config.ConnectionStore
	reload    func() (*config.ConnectionStore, error)
	load      SchemaLoader
	selected  int
	importing string
	status    string
	width     int
	height    int
}

func NewConnectionsView(store *config.ConnectionStore, load SchemaLoader) *ConnectionsView {
	if load == nil {
		load = DefaultSchemaLoader
	}
	return &ConnectionsView{
		store:  store,
		reload: config.NewConnectionStore,
		load:   load,
	}
}

func (v *ConnectionsView) Name() string { return "Connections" }

func (v *ConnectionsView) WantsTextInput() bool { return false }

func (v *ConnectionsView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

func (v *ConnectionsView) ShortHelp() []KeyBinding {
	return []KeyBinding{
		{Key: "↑/↓", Desc: "select"},
		{Key: "Enter", Desc: "import schema"},
		{Key: "r", Desc: "reload"},
	}
}

func (v *ConnectionsView) Init() tea.Cmd { return nil }

func (v *ConnectionsView) connections() []config.Connection {
	if v.store == nil {
		return nil
	}
	return v.store.Connections
}

// Selected returns the highlighted connection.
func (v *ConnectionsView) Selected() (config.Connection, bool) {
	conns := v.connections()
	if v.selected < 0 || v.selected >= len(conns) {
		return config.Connection{}, false
	}
	return conns[v.selected], true
}

func (v *ConnectionsView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		conns := v.connections()
		switch msg.String() {
		case "up", "k":
			if v.selected > 0 {
				v.selected--
			}
		case "down", "j":
			if v.selected < len(conns)-1 {
				v.selected++
			}
		case "r":
			store, err := v.reload()
			if err != nil {
				v.status = "reload failed: " + err.Error()
				return v, nil
			}
			v.store = store
			v.selected = min(v.selected, max(len(store.Connections)-1, 0))
			v.status = fmt.Sprintf("%d connection(s) loaded", len(store.Connections))
		case "enter":
			conn, ok := v.Selected()
			if !ok || v.importing != "" {
				return v, nil
			}
			v.importing = conn.Name
			v.status = "importing schema from " + conn.Name + "..."
			return v, v.importCmd(conn)
		}
		return v, nil

	case SchemaImportedMsg:
		v.importing = ""
		if msg.Err != nil {
			v.status = "schema import failed: " + msg.Err.Error()
		} else {
			v.status = ""
		}
	}
	return v, nil
}

func (v *ConnectionsView) importCmd(conn config.Connection) tea.Cmd {
	load := v.load
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), schemaImportTimeout)
		defer cancel()
		schema, err := load(ctx, conn)
		return SchemaImportedMsg{Source: conn.Name, Schema: schema, Err: err}
	}
}

func (v *ConnectionsView) View() string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render("Saved Connections"))
	b.WriteString("\n")

	conns := v.connections()
	if len(conns) == 0 {
		b.WriteString(StyleDimmed.Render("No saved connections. Add them to " + config.Dir() + "/connections.json"))
		b.WriteString("\n")
	}
	for i, c := range conns {
		schema := c.Schema
		if schema == "" {
			schema = "public"
		}
		line := fmt.Sprintf("%s  %s@%s:%s/%s (%s)", c.Name, c.User, c.Host, c.Port, c.Database, schema)
		if c.SSH.Enabled {
			line += "  via ssh " + c.SSH.Host
		}
		if i == v.selected {
			b.WriteString(StyleListItemActive.Render("▸ " + line))
		} else {
			b.WriteString(StyleNormal.Render("  " + line))
		}
		b.WriteString("\n")
	}

	if v.status != "" {
		b.WriteString("\n")
		if strings.HasPrefix(v.status, "schema import failed") || strings.HasPrefix(v.status, "reload failed") {
			b.WriteString(StyleError.Render(v.status))
		} else {
			b.WriteString(StyleDimmed.Render(v.status))
		}
	}
	return b.String()
}
