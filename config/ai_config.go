package config

// AIConfig holds the generation provider selection and credentials.
type AIConfig struct {
	Provider       string            `json:"provider"` // "openai", "anthropic", "gemini", "ollama", "placeholder"
	OpenAI         OpenAIConfig      `json:"openai"`
	Anthropic      AnthropicConfig   `json:"anthropic"`
	Gemini         GeminiConfig      `json:"gemini"`
	Ollama         OllamaConfig      `json:"ollama"`
	Placeholder    PlaceholderConfig `json:"placeholder"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	TimeoutSeconds int               `json:"timeout_seconds"`
}

// OpenAIConfig holds OpenAI-specific settings. BaseURL may point at any
// OpenAI-compatible gateway.
type OpenAIConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model"`
}

// GeminiConfig holds Google Gemini-specific settings.
type GeminiConfig struct {
	APIKey string `json:"api_key,omitempty"`
	Model  string `json:"model"`
}

// OllamaConfig holds Ollama-specific settings.
type OllamaConfig struct {
	Host  string `json:"host"`
	Model string `json:"model"`
}

// PlaceholderConfig tunes the offline provider.
type PlaceholderConfig struct {
	ChunkDelayMillis int `json:"chunk_delay_ms"`
}

// DefaultAIConfig returns sensible defaults.
func DefaultAIConfig() AIConfig {
	return AIConfig{
		Provider: "placeholder",
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Anthropic: AnthropicConfig{
			BaseURL: "https://api.anthropic.com/v1",
			Model:   "claude-sonnet-4-20250514",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.0-flash",
		},
		Ollama: OllamaConfig{
			Host:  "http://localhost:11434",
			Model: "llama3.2",
		},
		Placeholder: PlaceholderConfig{
			ChunkDelayMillis: 40,
		},
		Temperature:    0.7,
		MaxTokens:      1024,
		TimeoutSeconds: 120,
	}
}

// SetModel overrides the model of the selected provider. The placeholder
// provider has no model and ignores it.
func (c *AIConfig) SetModel(model string) {
	switch c.Provider {
	case "openai":
		c.OpenAI.Model = model
	case "anthropic":
		c.Anthropic.Model = model
	case "gemini":
		c.Gemini.Model = model
	case "ollama":
		c.Ollama.Model = model
	}
}
