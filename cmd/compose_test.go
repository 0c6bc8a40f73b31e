package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DachengChen/obsql/composer"
	"github.com/google/go-cmp/cmp"
)

// isolate points the config directory at a temp HOME with the given
// config.json and resets the package-level flag values.
func isolate(t *testing.T, configJSON string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OBSQL_PROVIDER", "")
	t.Setenv("OBSQL_ENDPOINT", "")
	if configJSON != "" {
		dir := filepath.Join(home, ".obsql")
		if err := os.MkdirAll(dir, 0700); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(configJSON), 0600); err != nil {
			t.Fatal(err)
		}
	}
	endpointFlag, connFlag = "", ""
	composeSchema, composeSchemaFile, composeDescription = "", "", ""
	composeDirect, composeCopy = false, 0
	configForce, serveLogErr = false, false
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestComposeCommandAgainstEndpoint(t *testing.T) {
	isolate(t, "")

	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req composer.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		prompt = req.Prompt
		io.WriteString(w, "1. SELECT 1;\n2. SELECT 2;")
	}))
	defer srv.Close()

	schemaFile := filepath.Join(t.TempDir(), "schema.txt")
	if err := os.WriteFile(schemaFile, []byte("table: t (id INT)."), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "compose", "--endpoint", srv.URL, "--schema-file", schemaFile, "--description", "everything")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !strings.Contains(prompt, "table: t (id INT).") || !strings.Contains(prompt, "everything") {
		t.Fatalf("prompt missing form values:\n%s", prompt)
	}
	if !strings.HasPrefix(out, "1. SELECT 1;\n2. SELECT 2;") {
		t.Fatalf("stream not echoed first:\n%s", out)
	}
	if !strings.Contains(out, "[1]\nSELECT 1;") || !strings.Contains(out, "[2]\nSELECT 2;") {
		t.Fatalf("snippets not printed:\n%s", out)
	}
}

func TestComposeCommandEndpointError(t *testing.T) {
	isolate(t, "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := execute(t, "compose", "--endpoint", srv.URL, "--schema", "s", "--description", "d")
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("err = %v, want a 502 request error", err)
	}
}

func TestComposeCommandDirect(t *testing.T) {
	isolate(t, `{"ai":{"provider":"placeholder","placeholder":{"chunk_delay_ms":0}}}`)

	out, err := execute(t, "compose", "--direct", "--schema", "s", "--description", "list orders")
	if err != nil {
		t.Fatalf("compose --direct: %v", err)
	}
	if !strings.Contains(out, "Placeholder answer for: list orders") {
		t.Fatalf("placeholder answer not streamed:\n%s", out)
	}
	if !strings.Contains(out, "[2]\n# Set ai.provider") {
		t.Fatalf("second snippet missing:\n%s", out)
	}
}

func TestComposeCommandCopyOutOfRange(t *testing.T) {
	isolate(t, `{"ai":{"provider":"placeholder","placeholder":{"chunk_delay_ms":0}}}`)

	_, err := execute(t, "compose", "--direct", "--schema", "s", "--description", "d", "--copy", "5")
	if err == nil || !strings.Contains(err.Error(), "only 2 snippet(s)") {
		t.Fatalf("err = %v", err)
	}
}

func TestComposeCommandCopyNegative(t *testing.T) {
	isolate(t, `{"ai":{"provider":"placeholder","placeholder":{"chunk_delay_ms":0}}}`)

	_, err := execute(t, "compose", "--direct", "--schema", "s", "--description", "d", "--copy=-1")
	if err == nil || !strings.Contains(err.Error(), "--copy -1: only 2 snippet(s)") {
		t.Fatalf("err = %v", err)
	}
}

func TestStreamEchoWritesOnlyNewText(t *testing.T) {
	var out bytes.Buffer
	echo := &streamEcho{out: &out}
	for _, buf := range []string{"", "1.", "1. SEL", "1. SELECT", ""} {
		echo.update(composer.Snapshot{Buffer: buf})
	}
	echo.update(composer.Snapshot{Buffer: "x"})
	if diff := cmp.Diff("1. SELECTx", out.String()); diff != "" {
		t.Fatalf("echo mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigShowRedactsKeys(t *testing.T) {
	isolate(t, "")
	t.Setenv("OPENAI_API_KEY", "sk-secret")

	out, err := execute(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "sk-secret") || !strings.Contains(out, "****") {
		t.Fatalf("key not redacted:\n%s", out)
	}
}

func TestConfigInitRefusesToOverwrite(t *testing.T) {
	isolate(t, `{}`)

	if _, err := execute(t, "config", "init"); err == nil {
		t.Fatal("config init overwrote an existing file")
	}
}

func TestSchemaRequiresConn(t *testing.T) {
	isolate(t, "")

	_, err := execute(t, "schema")
	if err == nil || !strings.Contains(err.Error(), "--conn") {
		t.Fatalf("err = %v", err)
	}
}

func TestConfigInitWritesDefaults(t *testing.T) {
	isolate(t, "")

	out, err := execute(t, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	home, _ := os.UserHomeDir()
	for _, name := range []string{"config.json", "connections.json"} {
		if _, err := os.Stat(filepath.Join(home, ".obsql", name)); err != nil {
			t.Fatalf("%s not written: %v", name, err)
		}
	}
	if !strings.Contains(out, "connections.json") {
		t.Fatalf("output = %q", out)
	}
}
