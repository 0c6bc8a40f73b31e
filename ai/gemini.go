package ai

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/DachengChen/obsql/config"
	"google.golang.org/genai"
)

// geminiModels is the slice of genai.Models the provider uses; tests swap it.
type geminiModels interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// Gemini implements the Provider interface for Google's Gemini API.
type Gemini struct {
	models      geminiModels
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

var _ Provider = (*Gemini)(nil)

// NewGemini creates a Gemini provider backed by the genai SDK.
func NewGemini(cfg config.AIConfig) (*Gemini, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGemini(cfg, client.Models), nil
}

func newGemini(cfg config.AIConfig, models geminiModels) *Gemini {
	model := cfg.Gemini.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{
		models:      models,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

func (g *Gemini) Name() string {
	return fmt.Sprintf("Gemini (%s)", g.model)
}

func (g *Gemini) Stream(ctx context.Context, prompt string) (<-chan Delta, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(g.temperature)),
	}
	if g.maxTokens > 0 {
		genCfg.MaxOutputTokens = int32(g.maxTokens)
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if _, ok := ctx.Deadline(); !ok && g.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
	}

	seq := g.models.GenerateContentStream(callCtx, g.model, genai.Text(prompt), genCfg)

	ch := make(chan Delta)
	go func() {
		defer close(ch)
		defer cancel()

		for resp, err := range seq {
			if err != nil {
				send(callCtx, ch, Delta{Err: fmt.Errorf("gemini stream: %w", err)})
				return
			}
			text := geminiText(resp)
			if text == "" {
				continue
			}
			if !send(callCtx, ch, Delta{Text: text}) {
				return
			}
		}
	}()
	return ch, nil
}

// geminiText concatenates the visible text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}
