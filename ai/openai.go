package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/DachengChen/obsql/config"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI implements the Provider interface for OpenAI's Chat API and any
// OpenAI-compatible gateway reachable through base_url.
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
}

var _ Provider = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(cfg config.AIConfig) (*OpenAI, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return newOpenAIWithHTTPClient(cfg, &http.Client{Timeout: timeout})
}

func newOpenAIWithHTTPClient(cfg config.AIConfig, httpClient *http.Client) (*OpenAI, error) {
	if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		return nil, fmt.Errorf("openai api_key is required")
	}
	model := strings.TrimSpace(cfg.OpenAI.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.OpenAI.APIKey),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(cfg.OpenAI.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}

	return &OpenAI{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (o *OpenAI) Name() string {
	return fmt.Sprintf("OpenAI (%s)", o.model)
}

func (o *OpenAI) Stream(ctx context.Context, prompt string) (<-chan Delta, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.maxTokens))
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	ch := make(chan Delta)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			text := chunk.Choices[0].Delta.Content
			if text == "" {
				continue
			}
			if !send(ctx, ch, Delta{Text: text}) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			send(ctx, ch, Delta{Err: fmt.Errorf("openai stream: %w", err)})
		}
	}()
	return ch, nil
}
