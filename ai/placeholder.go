package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DachengChen/obsql/config"
)

// Placeholder is an offline provider for development. It streams a canned
// two-answer response in small chunks so the UI behaves as with a real model.
type Placeholder struct {
	delay     time.Duration
	chunkSize int
}

var _ Provider = (*Placeholder)(nil)

func NewPlaceholder(cfg config.PlaceholderConfig) *Placeholder {
	return &Placeholder{
		delay:     time.Duration(cfg.ChunkDelayMillis) * time.Millisecond,
		chunkSize: 8,
	}
}

func (p *Placeholder) Name() string {
	return "placeholder"
}

func (p *Placeholder) Stream(ctx context.Context, prompt string) (<-chan Delta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	answer := placeholderAnswer(promptDescription(prompt))

	ch := make(chan Delta)
	go func() {
		defer close(ch)
		for _, chunk := range splitRunes(answer, p.chunkSize) {
			if p.delay > 0 {
				select {
				case <-time.After(p.delay):
				case <-ctx.Done():
					return
				}
			}
			if !send(ctx, ch, Delta{Text: chunk}) {
				return
			}
		}
	}()
	return ch, nil
}

func placeholderAnswer(description string) string {
	if description == "" {
		description = "(no description)"
	}
	return fmt.Sprintf("1. # Placeholder answer for: %s\n"+
		"SELECT 'configure a real provider' AS note;\n\n"+
		"2. # Set ai.provider to openai, anthropic, gemini or ollama in ~/.obsql/config.json\n"+
		"SELECT NOW();\n", truncate(description, 80))
}

// promptDescription pulls the user's description out of a composed prompt:
// the text between the last "Description:" and the trailing "Query:" cue.
func promptDescription(prompt string) string {
	start := strings.LastIndex(prompt, "Description:")
	if start < 0 {
		return ""
	}
	rest := prompt[start+len("Description:"):]
	if end := strings.LastIndex(rest, "Query:"); end >= 0 {
		rest = rest[:end]
	}
	return strings.Join(strings.Fields(rest), " ")
}

func splitRunes(s string, size int) []string {
	runes := []rune(s)
	if size <= 0 {
		size = len(runes)
	}
	var out []string
	for len(runes) > 0 {
		n := min(size, len(runes))
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
