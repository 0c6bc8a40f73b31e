// Package ai defines the interface for text-generation providers and
// the streaming backends behind POST /api/generate.
//
// Design decisions:
//   - Provider is an interface so the server can swap backends (OpenAI,
//     Anthropic, Gemini, Ollama) without changing handler code.
//   - Generation is always streamed: Stream returns a channel of text
//     deltas that is closed when the model is done.
//   - All calls accept a context; cancelling it stops the upstream request
//     and closes the channel.
package ai

import (
	"context"
	"strings"
)

// Delta is one fragment of generated text. A Delta with Err set is the
// last value sent on a stream.
type Delta struct {
	Text string
	Err  error
}

// Provider is the interface all generation backends must implement.
type Provider interface {
	// Stream sends prompt to the model and returns its output as it is
	// produced. Errors that happen before any output is available are
	// returned directly; later errors arrive as a final Delta.
	Stream(ctx context.Context, prompt string) (<-chan Delta, error)

	// Name returns the provider name for display.
	Name() string
}

// Collect drains a stream and returns the concatenated text. On a stream
// error the text received so far is returned along with the error.
func Collect(ch <-chan Delta) (string, error) {
	var sb strings.Builder
	for d := range ch {
		if d.Err != nil {
			return sb.String(), d.Err
		}
		sb.WriteString(d.Text)
	}
	return sb.String(), nil
}

// send delivers d unless ctx is done first.
func send(ctx context.Context, ch chan<- Delta, d Delta) bool {
	select {
	case ch <- d:
		return true
	case <-ctx.Done():
		return false
	}
}
