package applog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DachengChen/obsql/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSONLoggerCarriesAppAttr(t *testing.T) {
	var buf bytes.Buffer
	l := New(config.LogConfig{Level: "info"}, &buf)
	l.Info("composed", slog.Int("snippets", 2))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["app"] != "obsql" || entry["msg"] != "composed" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestEventUsesInstalledLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	t.Cleanup(func() { Use(prev) })

	Use(New(config.LogConfig{Level: "debug", Format: "text"}, &buf))
	Event("server", "listening", slog.String("addr", ":3000"))
	Error("boom %d", 7)

	out := buf.String()
	if !strings.Contains(out, "category=server") || !strings.Contains(out, "addr=:3000") {
		t.Fatalf("event attrs missing: %q", out)
	}
	if !strings.Contains(out, "boom 7") {
		t.Fatalf("formatted error missing: %q", out)
	}
}

func TestInitWritesToConfiguredFile(t *testing.T) {
	prev := Logger()
	t.Cleanup(func() {
		Close()
		Use(prev)
	})

	path := filepath.Join(t.TempDir(), "nested", "app.log")
	l, err := Init(config.LogConfig{File: path, Level: "info"})
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	l.Info("hello")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("log file content = %q", data)
	}
}
