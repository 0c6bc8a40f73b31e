package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DachengChen/obsql/config"
)

// Ollama implements the Provider interface for local Ollama instances.
type Ollama struct {
	host        string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

var _ Provider = (*Ollama)(nil)

// NewOllama creates an Ollama provider.
func NewOllama(cfg config.AIConfig) *Ollama {
	host := strings.TrimRight(cfg.Ollama.Host, "/")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := cfg.Ollama.Model
	if model == "" {
		model = "llama3.2"
	}
	return &Ollama{
		host:        host,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

func (o *Ollama) Name() string {
	return fmt.Sprintf("Ollama (%s)", o.model)
}

// ollamaChunk is one NDJSON line of /api/generate output.
type ollamaChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

func (o *Ollama) Stream(ctx context.Context, prompt string) (<-chan Delta, error) {
	options := map[string]any{"temperature": o.temperature}
	if o.maxTokens > 0 {
		options["num_predict"] = o.maxTokens
	}
	payload, err := json.Marshal(map[string]any{
		"model":   o.model,
		"prompt":  prompt,
		"stream":  true,
		"options": options,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed (is Ollama running at %s?): %w", o.host, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	ch := make(chan Delta)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var chunk ollamaChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				send(ctx, ch, Delta{Err: fmt.Errorf("ollama parse error: %w", err)})
				return
			}
			if chunk.Error != "" {
				send(ctx, ch, Delta{Err: errors.New("ollama: " + chunk.Error)})
				return
			}
			if chunk.Response != "" && !send(ctx, ch, Delta{Text: chunk.Response}) {
				return
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			send(ctx, ch, Delta{Err: fmt.Errorf("ollama stream: %w", err)})
		}
	}()
	return ch, nil
}
