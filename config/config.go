// Package config defines the application configuration structures.
//
// Settings live in ~/.obsql/config.json. Environment variables are
// applied on top of the file so API keys never have to be written to disk.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DirName is the per-user directory holding config, connections and logs.
const DirName = ".obsql"

// Snippet partitioning modes.
const (
	SnippetModeEnumerated = "enumerated"
	SnippetModeDelimited  = "delimited"
)

// LookupFunc resolves an environment variable. os.LookupEnv in production.
type LookupFunc func(string) (string, bool)

// AppConfig is the top-level config file structure (~/.obsql/config.json).
type AppConfig struct {
	AI       AIConfig       `json:"ai"`
	Server   ServerConfig   `json:"server"`
	Composer ComposerConfig `json:"composer"`
	Log      LogConfig      `json:"log"`
}

// ServerConfig controls `obsql serve`.
type ServerConfig struct {
	Addr                     string `json:"addr"`
	ReadHeaderTimeoutSeconds int    `json:"read_header_timeout_seconds"`
	IdleTimeoutSeconds       int    `json:"idle_timeout_seconds"`
	ShutdownTimeoutSeconds   int    `json:"shutdown_timeout_seconds"`
	MaxPromptBytes           int64  `json:"max_prompt_bytes"`
}

// ComposerConfig controls the client side of a composition.
type ComposerConfig struct {
	// Endpoint is the generate URL the composer posts prompts to.
	Endpoint string `json:"endpoint"`
	// SnippetMode is "enumerated" (split on "1."/"2.") or "delimited" (split on ==== lines).
	SnippetMode string `json:"snippet_mode"`
	// KeepBusyOnError leaves the compose button disabled after a failed
	// submission until the results are cleared.
	KeepBusyOnError bool `json:"keep_busy_on_error,omitempty"`
}

// LogConfig selects where and how the application logs.
type LogConfig struct {
	File   string `json:"file,omitempty"`
	Level  string `json:"level"`
	Format string `json:"format"` // "json" or "text"
}

// Dir returns ~/.obsql, falling back to a relative path when the home
// directory cannot be resolved.
func Dir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(homeDir) == "" {
		return DirName
	}
	return filepath.Join(homeDir, DirName)
}

// DefaultAppConfig returns sensible defaults.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		AI: DefaultAIConfig(),
		Server: ServerConfig{
			Addr:                     ":3000",
			ReadHeaderTimeoutSeconds: 10,
			IdleTimeoutSeconds:       120,
			ShutdownTimeoutSeconds:   10,
			MaxPromptBytes:           64 << 10,
		},
		Composer: ComposerConfig{
			Endpoint:    "http://127.0.0.1:3000/api/generate",
			SnippetMode: SnippetModeEnumerated,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadAppConfig reads ~/.obsql/config.json; returns defaults if not found.
func LoadAppConfig() (*AppConfig, error) {
	return LoadAppConfigFrom(filepath.Join(Dir(), "config.json"), os.LookupEnv)
}

// LoadAppConfigFrom reads the config at path and applies env overrides
// resolved through lookup. A missing file yields the defaults.
func LoadAppConfigFrom(path string, lookup LookupFunc) (*AppConfig, error) {
	if lookup == nil {
		return nil, errors.New("lookup function is required")
	}

	cfg := DefaultAppConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Env vars override file config.
func applyEnv(cfg *AppConfig, lookup LookupFunc) error {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	set("OBSQL_PROVIDER", &cfg.AI.Provider)
	set("OPENAI_API_KEY", &cfg.AI.OpenAI.APIKey)
	set("OPENAI_BASE_URL", &cfg.AI.OpenAI.BaseURL)
	set("ANTHROPIC_API_KEY", &cfg.AI.Anthropic.APIKey)
	set("GEMINI_API_KEY", &cfg.AI.Gemini.APIKey)
	set("OLLAMA_HOST", &cfg.AI.Ollama.Host)
	set("OBSQL_ENDPOINT", &cfg.Composer.Endpoint)
	set("OBSQL_ADDR", &cfg.Server.Addr)
	set("OBSQL_LOG_LEVEL", &cfg.Log.Level)

	if raw, ok := lookup("OBSQL_MAX_PROMPT_BYTES"); ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("OBSQL_MAX_PROMPT_BYTES: %w", err)
		}
		cfg.Server.MaxPromptBytes = n
	}
	return nil
}

// Validate rejects settings the rest of the application cannot work with.
func (c *AppConfig) Validate() error {
	switch c.Composer.SnippetMode {
	case SnippetModeEnumerated, SnippetModeDelimited:
	case "":
		c.Composer.SnippetMode = SnippetModeEnumerated
	default:
		return fmt.Errorf("unknown snippet_mode %q (want %q or %q)",
			c.Composer.SnippetMode, SnippetModeEnumerated, SnippetModeDelimited)
	}
	if c.Server.MaxPromptBytes <= 0 {
		return fmt.Errorf("server.max_prompt_bytes must be positive")
	}
	return nil
}

// SaveAppConfig writes the config to ~/.obsql/config.json.
func SaveAppConfig(cfg *AppConfig) error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0600)
}
