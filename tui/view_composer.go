// view_composer.go is the SQL composer: the schema and description form,
// the streamed answer, and select-to-copy over the resulting snippets.
//
// A submission runs Compose inside a command. Every snapshot the composer
// publishes is pushed onto a channel and delivered to Update as a
// ChunkMsg, so the results re-render once per streamed chunk.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DachengChen/obsql/composer"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// toastDuration matches how long the web page shows its copy confirmation.
const toastDuration = 2 * time.Second

type focusArea int

const (
	focusSchema focusArea = iota
	focusDescription
	focusResults
	focusCount
)

// ComposerOptions wires a ComposerView.
type ComposerOptions struct {
	Endpoint        string
	Client          composer.Doer
	Mode            composer.Mode
	KeepBusyOnError bool
	Clipboard       composer.Clipboard
	// ImportSchema fills the schema field from a database (Ctrl+O). Nil
	// when no connection was selected.
	ImportSchema func(ctx context.Context) (string, error)
	ImportSource string
}

type ComposerView struct {
	comp    *composer.Composer
	updates chan composer.Snapshot
	snap    composer.Snapshot

	schema      *textField
	description *textField
	focus       focusArea
	selected    int
	results     *Viewport

	clipboard    composer.Clipboard
	toast        *composer.Notification
	toastID      int
	status       string
	statusIsErr  bool
	importSchema func(ctx context.Context) (string, error)
	importSource string
	importing    bool

	width  int
	height int
}

func NewComposerView(opts ComposerOptions) *ComposerView {
	v := &ComposerView{
		updates: make(chan composer.Snapshot, 256),
		schema: newTextField("1. Provide your schema here.",
			"e.g. table: Users (UserID INT PRIMARY KEY AUTO_INCREMENT, FirstName VARCHAR(50) NOT NULL, ...).", 4),
		description: newTextField("2. Describe what you would like to query.",
			"e.g. Get 5 users whose first name contains 'Amber', case-insensitive.", 3),
		results:      NewViewport(80, 10),
		clipboard:    opts.Clipboard,
		importSchema: opts.ImportSchema,
		importSource: opts.ImportSource,
	}
	if v.clipboard == nil {
		v.clipboard = composer.NewOSC52Clipboard(nil)
	}
	v.comp = composer.New(composer.Options{
		Endpoint:        opts.Endpoint,
		Client:          opts.Client,
		Mode:            opts.Mode,
		KeepBusyOnError: opts.KeepBusyOnError,
		OnUpdate:        v.publish,
	})
	return v
}

// publish hands a snapshot to the UI without blocking the composer; a
// dropped snapshot is recovered from the composer when Compose returns.
func (v *ComposerView) publish(s composer.Snapshot) {
	select {
	case v.updates <- s:
	default:
	}
}

// apply keeps the newest snapshot seen so far.
func (v *ComposerView) apply(s composer.Snapshot) {
	if s.Version < v.snap.Version {
		return
	}
	v.snap = s
	v.refreshResults()
}

func (v *ComposerView) Name() string { return "Composer" }

func (v *ComposerView) WantsTextInput() bool { return v.focus != focusResults }

func (v *ComposerView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.schema.width = width
	v.description.width = width
	// label+box for both fields, button line, spacer, results title
	used := (v.schema.height + 3) + (v.description.height + 3) + 4
	v.results.SetSize(width, max(height-used, 3))
	v.refreshResults()
}

func (v *ComposerView) ShortHelp() []KeyBinding {
	help := []KeyBinding{
		{Key: "Tab", Desc: "next field"},
		{Key: "Ctrl+S", Desc: "compose"},
	}
	if v.focus == focusResults {
		help = append(help,
			KeyBinding{Key: "↑/↓", Desc: "select"},
			KeyBinding{Key: "Enter/c", Desc: "copy"},
		)
	}
	if v.importSchema != nil {
		help = append(help, KeyBinding{Key: "Ctrl+O", Desc: "import schema"})
	}
	return append(help, KeyBinding{Key: "Ctrl+L", Desc: "clear"})
}

func (v *ComposerView) Init() tea.Cmd {
	return waitForChunk(v.updates)
}

func (v *ComposerView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)

	case ChunkMsg:
		v.apply(msg.Snapshot)
		return v, waitForChunk(v.updates)

	case ComposeDoneMsg:
		v.apply(v.comp.Snapshot())
		if msg.Err != nil && !errors.Is(msg.Err, composer.ErrSuperseded) {
			v.setStatus("compose failed: "+msg.Err.Error(), true)
		}
		return v, nil

	case SchemaImportedMsg:
		v.importing = false
		if msg.Err != nil {
			v.setStatus("schema import failed: "+msg.Err.Error(), true)
			return v, nil
		}
		v.schema.SetValue(msg.Schema)
		v.setStatus(fmt.Sprintf("schema imported from %s", msg.Source), false)
		return v, nil

	case toastExpiredMsg:
		if msg.id == v.toastID {
			v.toast = nil
		}
		return v, nil
	}
	return v, nil
}

func (v *ComposerView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "tab":
		v.focus = (v.focus + 1) % focusCount
		v.refreshResults()
		return v, nil
	case "shift+tab":
		v.focus = (v.focus + focusCount - 1) % focusCount
		v.refreshResults()
		return v, nil
	case "ctrl+s":
		return v, v.submit()
	case "ctrl+l":
		v.comp.Reset()
		v.apply(v.comp.Snapshot())
		v.selected = 0
		v.setStatus("", false)
		return v, nil
	case "ctrl+o":
		return v, v.startImport()
	case "esc":
		if v.snap.Busy {
			v.comp.Cancel()
		}
		return v, nil
	}

	if v.focus == focusResults {
		return v, v.handleResultsKey(msg)
	}

	field := v.schema
	if v.focus == focusDescription {
		field = v.description
	}
	field.HandleKey(msg)
	return v, nil
}

func (v *ComposerView) handleResultsKey(msg tea.KeyMsg) tea.Cmd {
	snippets := v.snippets()
	switch msg.String() {
	case "up", "k":
		if v.selected > 0 {
			v.selected--
		}
	case "down", "j":
		if v.selected < len(snippets)-1 {
			v.selected++
		}
	case "pgup":
		v.results.PageUp()
		return nil
	case "pgdown":
		v.results.PageDown()
		return nil
	case "home", "g":
		v.selected = 0
	case "end", "G":
		v.selected = max(len(snippets)-1, 0)
	case "enter", "c":
		if v.selected < len(snippets) {
			return v.copySnippet(snippets[v.selected])
		}
		return nil
	}
	v.refreshResults()
	return nil
}

// submit starts a Compose for the current form. A submission already in
// flight is superseded.
func (v *ComposerView) submit() tea.Cmd {
	form := composer.FormState{Schema: v.schema.Value(), Description: v.description.Value()}
	v.selected = 0
	v.setStatus("", false)
	comp := v.comp
	return func() tea.Msg {
		return ComposeDoneMsg{Err: comp.Compose(context.Background(), form)}
	}
}

func (v *ComposerView) startImport() tea.Cmd {
	if v.importSchema == nil {
		v.setStatus("no connection selected (use --conn or the Connections view)", true)
		return nil
	}
	if v.importing {
		return nil
	}
	v.importing = true
	v.setStatus("importing schema from "+v.importSource+"...", false)
	load, source := v.importSchema, v.importSource
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		schema, err := load(ctx)
		return SchemaImportedMsg{Source: source, Schema: schema, Err: err}
	}
}

func (v *ComposerView) copySnippet(text string) tea.Cmd {
	_ = composer.CopySnippet(v.clipboard, composer.NotifierFunc(v.notify), text)
	id := v.toastID
	return tea.Tick(toastDuration, func(time.Time) tea.Msg { return toastExpiredMsg{id: id} })
}

func (v *ComposerView) notify(n composer.Notification) {
	v.toastID++
	v.toast = &n
}

func (v *ComposerView) setStatus(s string, isErr bool) {
	v.status = s
	v.statusIsErr = isErr
}

// Status returns the view's status line and whether it is an error.
func (v *ComposerView) Status() (string, bool) {
	if v.snap.Err != nil && v.status == "" {
		return v.snap.Err.Error(), true
	}
	return v.status, v.statusIsErr
}

func (v *ComposerView) snippets() []string {
	if v.snap.Buffer == "" {
		return nil
	}
	return v.comp.Mode().Split(v.snap.Buffer)
}

func (v *ComposerView) refreshResults() {
	snippets := v.snippets()
	if v.selected >= len(snippets) {
		v.selected = max(len(snippets)-1, 0)
	}

	cardWidth := max(v.width-2, 10)
	var lines []string
	selectedStart := 0
	for i, s := range snippets {
		style := StyleSnippet
		if i == v.selected && v.focus == focusResults {
			style = StyleSnippetSelected
			selectedStart = len(lines)
		}
		card := style.Width(cardWidth).Render(strings.TrimRight(s, "\n"))
		lines = append(lines, strings.Split(card, "\n")...)
	}
	v.results.SetContentLines(lines)
	if v.focus == focusResults {
		v.results.ScrollTo(selectedStart)
	} else if v.snap.Busy {
		v.results.End()
	}
}

func (v *ComposerView) View() string {
	var sections []string

	if v.toast != nil {
		style := StyleToast
		if v.toast.Kind == composer.NotifyError {
			style = style.Foreground(ColorError)
		}
		msg := v.toast.Message
		if v.toast.Icon != "" {
			msg = v.toast.Icon + " " + msg
		}
		sections = append(sections, lipgloss.PlaceHorizontal(v.width, lipgloss.Center, style.Render(msg)))
	}

	sections = append(sections,
		v.schema.Render(v.focus == focusSchema),
		v.description.Render(v.focus == focusDescription),
		v.renderButton(),
	)

	if v.snap.Buffer != "" {
		title := StyleTitle.Render("Your Queries")
		if v.focus == focusResults {
			title += StyleDimmed.Render("  (↑/↓ select, Enter copy)")
		}
		sections = append(sections, "", title, v.results.Render())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (v *ComposerView) renderButton() string {
	if v.snap.Busy {
		return StyleWarning.Render("⏳ Composing" + strings.Repeat(".", 1+len(v.snap.Buffer)%3))
	}
	return StyleHelpKey.Render("Ctrl+S") + " " + StyleNormal.Render("Compose your OceanBase SQL Query →")
}
