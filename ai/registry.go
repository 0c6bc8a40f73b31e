package ai

import (
	"fmt"

	"github.com/DachengChen/obsql/config"
)

// SupportedProviders lists available provider names for display.
var SupportedProviders = []string{"openai", "anthropic", "gemini", "ollama", "placeholder"}

// NewProvider creates a generation provider from the application config.
func NewProvider(cfg config.AIConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key not set. Set OPENAI_API_KEY env var or add it to ~/.obsql/config.json")
		}
		return NewOpenAI(cfg)

	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("Anthropic API key not set. Set ANTHROPIC_API_KEY env var or add it to ~/.obsql/config.json")
		}
		return NewAnthropic(cfg), nil

	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("Gemini API key not set. Set GEMINI_API_KEY env var or add it to ~/.obsql/config.json")
		}
		return NewGemini(cfg)

	case "ollama":
		return NewOllama(cfg), nil

	case "placeholder", "":
		return NewPlaceholder(cfg.Placeholder), nil

	default:
		return nil, fmt.Errorf("unknown AI provider %q. Supported: openai, anthropic, gemini, ollama, placeholder", cfg.Provider)
	}
}
