// messages.go defines Bubble Tea messages used for async communication.
//
// Submissions and schema imports run in commands and report back through
// these message types, so the UI never blocks.
package tui

import (
	"github.com/DachengChen/obsql/composer"
	tea "github.com/charmbracelet/bubbletea"
)

// ChunkMsg carries the composer state after a chunk (or any other state
// change) of the running submission.
type ChunkMsg struct {
	Snapshot composer.Snapshot
}

// ComposeDoneMsg is sent when a Compose call returns.
type ComposeDoneMsg struct {
	Err error
}

// SchemaImportedMsg is sent when a schema import from a database completes.
type SchemaImportedMsg struct {
	Source string // connection name
	Schema string
	Err    error
}

// toastExpiredMsg hides the toast with the given id if it is still shown.
type toastExpiredMsg struct {
	id int
}

// waitForChunk blocks until the composer publishes the next snapshot.
// The receiver re-arms it after every ChunkMsg.
func waitForChunk(updates <-chan composer.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return nil
		}
		return ChunkMsg{Snapshot: snap}
	}
}
