package tui

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DachengChen/obsql/composer"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
)

type fakeClipboard struct {
	copied []string
	err    error
}

func (c *fakeClipboard) Copy(text string) error {
	if c.err != nil {
		return c.err
	}
	c.copied = append(c.copied, text)
	return nil
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func key(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

// generateServer answers every prompt with body.
func generateServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestComposerView(t *testing.T, endpoint string, clip composer.Clipboard) *ComposerView {
	t.Helper()
	v := NewComposerView(ComposerOptions{Endpoint: endpoint, Clipboard: clip})
	v.SetSize(80, 30)
	return v
}

// drain delivers every queued snapshot the way the program loop would.
func drain(v *ComposerView) {
	for len(v.updates) > 0 {
		msg := waitForChunk(v.updates)()
		v.Update(msg)
	}
}

func TestComposerViewTyping(t *testing.T) {
	v := newTestComposerView(t, "http://127.0.0.1:1/api/generate", &fakeClipboard{})

	v.Update(keyRunes("table: t (id INT)"))
	v.Update(key(tea.KeyBackspace))
	v.Update(keyRunes(")"))
	v.Update(key(tea.KeyTab))
	v.Update(keyRunes("all rows"))
	v.Update(key(tea.KeySpace))
	v.Update(keyRunes("?"))

	if got := v.schema.Value(); got != "table: t (id INT)" {
		t.Fatalf("schema = %q", got)
	}
	if got := v.description.Value(); got != "all rows ?" {
		t.Fatalf("description = %q", got)
	}
	if !v.WantsTextInput() {
		t.Fatal("description field should take text input")
	}

	v.Update(key(tea.KeyTab))
	if v.focus != focusResults || v.WantsTextInput() {
		t.Fatalf("focus = %v, want results", v.focus)
	}
	v.Update(key(tea.KeyShiftTab))
	v.Update(key(tea.KeyShiftTab))
	if v.focus != focusSchema {
		t.Fatalf("focus = %v, want schema", v.focus)
	}
}

func TestComposerViewComposeAndCopy(t *testing.T) {
	srv := generateServer(t, "1. SELECT 1;\n2. SELECT 2;")
	clip := &fakeClipboard{}
	v := newTestComposerView(t, srv.URL, clip)

	v.Update(keyRunes("table: t (id INT)."))
	_, cmd := v.Update(key(tea.KeyCtrlS))
	if cmd == nil {
		t.Fatal("ctrl+s returned no command")
	}
	done, ok := cmd().(ComposeDoneMsg)
	if !ok || done.Err != nil {
		t.Fatalf("compose = %#v", done)
	}
	drain(v)
	v.Update(done)

	if v.snap.Busy {
		t.Fatal("still busy after the stream ended")
	}
	want := []string{"SELECT 1;\n", " SELECT 2;"}
	if diff := cmp.Diff(want, v.snippets()); diff != "" {
		t.Fatalf("snippets mismatch (-want +got):\n%s", diff)
	}
	if out := v.View(); !strings.Contains(out, "Your Queries") || !strings.Contains(out, "SELECT 2;") {
		t.Fatalf("results not rendered:\n%s", out)
	}

	v.Update(key(tea.KeyTab))
	v.Update(key(tea.KeyTab))
	v.Update(key(tea.KeyDown))
	_, tick := v.Update(key(tea.KeyEnter))
	if tick == nil {
		t.Fatal("copy did not schedule the toast expiry")
	}
	if diff := cmp.Diff([]string{" SELECT 2;"}, clip.copied); diff != "" {
		t.Fatalf("clipboard mismatch (-want +got):\n%s", diff)
	}
	if v.toast == nil || v.toast.Message != composer.CopiedMessage {
		t.Fatalf("toast = %#v", v.toast)
	}
	if !strings.Contains(v.View(), composer.CopiedMessage) {
		t.Fatal("toast not rendered")
	}

	// A stale expiry from an earlier toast leaves the current one alone.
	v.Update(toastExpiredMsg{id: v.toastID - 1})
	if v.toast == nil {
		t.Fatal("stale expiry hid the toast")
	}
	v.Update(toastExpiredMsg{id: v.toastID})
	if v.toast != nil {
		t.Fatal("toast still shown after expiry")
	}
}

func TestComposerViewCopyFailureRaisesErrorToast(t *testing.T) {
	srv := generateServer(t, "1. SELECT 1;")
	v := newTestComposerView(t, srv.URL, &fakeClipboard{err: errors.New("no terminal")})

	_, cmd := v.Update(key(tea.KeyCtrlS))
	v.Update(cmd())
	v.focus = focusResults
	v.Update(keyRunes("c"))

	if v.toast == nil || v.toast.Kind != composer.NotifyError {
		t.Fatalf("toast = %#v, want error toast", v.toast)
	}
}

func TestComposerViewIgnoresStaleSnapshots(t *testing.T) {
	srv := generateServer(t, "1. SELECT 1;")
	v := newTestComposerView(t, srv.URL, &fakeClipboard{})

	_, cmd := v.Update(key(tea.KeyCtrlS))
	v.Update(cmd())
	final := v.snap

	v.Update(ChunkMsg{Snapshot: composer.Snapshot{Busy: true, Phase: composer.Submitting, Version: 1}})
	if diff := cmp.Diff(final.Buffer, v.snap.Buffer); diff != "" {
		t.Fatalf("stale snapshot applied (-want +got):\n%s", diff)
	}
	if v.snap.Busy {
		t.Fatal("stale snapshot restored busy")
	}
}

func TestComposerViewErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	v := newTestComposerView(t, srv.URL, &fakeClipboard{})

	_, cmd := v.Update(key(tea.KeyCtrlS))
	v.Update(cmd())

	status, isErr := v.Status()
	if !isErr || !strings.Contains(status, "502") {
		t.Fatalf("status = %q (err %v)", status, isErr)
	}
	if v.snap.Busy {
		t.Fatal("busy should clear after a failed submission")
	}
	if !strings.Contains(v.renderButton(), "Compose your OceanBase SQL Query") {
		t.Fatal("button not re-enabled")
	}

	v.Update(key(tea.KeyCtrlL))
	if status, _ := v.Status(); status != "" {
		t.Fatalf("status after clear = %q", status)
	}
}

func TestComposerViewImportSchema(t *testing.T) {
	v := NewComposerView(ComposerOptions{
		Endpoint:  "http://127.0.0.1:1/api/generate",
		Clipboard: &fakeClipboard{},
		ImportSchema: func(ctx context.Context) (string, error) {
			return "table: users (id integer PRIMARY KEY).", nil
		},
		ImportSource: "local",
	})

	_, cmd := v.Update(key(tea.KeyCtrlO))
	if cmd == nil {
		t.Fatal("ctrl+o returned no command")
	}
	msg := cmd()
	if _, again := v.Update(key(tea.KeyCtrlO)); again != nil {
		t.Fatal("second import started while the first is running")
	}
	v.Update(msg)

	if got := v.schema.Value(); got != "table: users (id integer PRIMARY KEY)." {
		t.Fatalf("schema = %q", got)
	}
	if status, isErr := v.Status(); isErr || !strings.Contains(status, "local") {
		t.Fatalf("status = %q (err %v)", status, isErr)
	}
}

func TestComposerViewImportWithoutConnection(t *testing.T) {
	v := newTestComposerView(t, "http://127.0.0.1:1/api/generate", &fakeClipboard{})
	if _, cmd := v.Update(key(tea.KeyCtrlO)); cmd != nil {
		t.Fatal("import started without a connection")
	}
	if _, isErr := v.Status(); !isErr {
		t.Fatal("expected an error status")
	}
}

func TestTextFieldEditing(t *testing.T) {
	f := newTextField("label", "placeholder", 2)
	f.HandleKey(keyRunes("select from"))
	f.HandleKey(key(tea.KeyCtrlW))
	if got := f.Value(); got != "select " {
		t.Fatalf("after ctrl+w = %q", got)
	}
	f.HandleKey(keyRunes("查"))
	f.HandleKey(key(tea.KeyBackspace))
	f.HandleKey(key(tea.KeyEnter))
	if got := f.Value(); got != "select \n" {
		t.Fatalf("value = %q", got)
	}
	if f.HandleKey(key(tea.KeyF5)) {
		t.Fatal("F5 should not be consumed")
	}
	f.HandleKey(key(tea.KeyCtrlU))
	if f.Value() != "" {
		t.Fatalf("ctrl+u left %q", f.Value())
	}
	if !strings.Contains(f.Render(false), "placeholder") {
		t.Fatal("placeholder not shown for an empty, unfocused field")
	}
}

func TestViewportScrolling(t *testing.T) {
	vp := NewViewport(10, 2)
	vp.SetContent("a\nb\nc\nd")
	vp.End()
	if !strings.HasPrefix(vp.Render(), "c\nd") {
		t.Fatalf("end render = %q", vp.Render())
	}
	vp.Home()
	if !strings.HasPrefix(vp.Render(), "a\nb") {
		t.Fatalf("home render = %q", vp.Render())
	}
	vp.ScrollTo(2)
	if !strings.HasPrefix(vp.Render(), "b\nc") {
		t.Fatalf("scrollTo render = %q", vp.Render())
	}

	vp.SetContentLines([]string{"abcdefghijklmnop"})
	if got := len(vp.lines()); got != 2 {
		t.Fatalf("wrapped lines = %d, want 2", got)
	}
}
