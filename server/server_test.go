package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DachengChen/obsql/ai"
	"github.com/DachengChen/obsql/composer"
	"github.com/DachengChen/obsql/config"
)

type fakeProvider struct {
	deltas    []ai.Delta
	streamErr error
	prompts   []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Stream(ctx context.Context, prompt string) (<-chan ai.Delta, error) {
	f.prompts = append(f.prompts, prompt)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan ai.Delta)
	go func() {
		defer close(ch)
		for _, d := range f.deltas {
			select {
			case ch <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T, p ai.Provider, maxPrompt int64) http.Handler {
	t.Helper()
	h, err := NewHandler(Dependencies{Logger: discardLogger(), Provider: p, MaxPromptBytes: maxPrompt})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h
}

func decodeError(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return payload
}

func TestNewHandlerRequiresProvider(t *testing.T) {
	if _, err := NewHandler(Dependencies{}); err == nil {
		t.Fatal("expected error without provider")
	}
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t, &fakeProvider{}, 0)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload["status"] != "ok" || payload["provider"] != "fake" {
		t.Errorf("payload = %v", payload)
	}
	if rec.Header().Get(traceHeader) == "" {
		t.Error("trace header should be set")
	}
}

func TestPage(t *testing.T) {
	h := newTestHandler(t, &fakeProvider{}, 0)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content-type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<title>OceanBase SQL generator</title>",
		`fetch("/api/generate"`,
		"SQL copied to clipboard",
		"Generate OceanBase SQL with comments",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
}

func TestGenerateStreamsText(t *testing.T) {
	p := &fakeProvider{deltas: []ai.Delta{{Text: "1. SELECT 1;\n"}, {Text: ""}, {Text: "2. SELECT 2;"}}}
	h := newTestHandler(t, p, 0)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"prompt":"hello"}`))
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("content-type = %q", ct)
	}
	if got := rec.Body.String(); got != "1. SELECT 1;\n2. SELECT 2;" {
		t.Errorf("body = %q", got)
	}
	if !rec.Flushed {
		t.Error("response should be flushed while streaming")
	}
	if len(p.prompts) != 1 || p.prompts[0] != "hello" {
		t.Errorf("prompts = %v", p.prompts)
	}
}

func TestGenerateEmptyPromptIsAccepted(t *testing.T) {
	p := &fakeProvider{deltas: []ai.Delta{{Text: "ok"}}}
	h := newTestHandler(t, p, 0)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"prompt":""}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGenerateBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"prompt":`},
		{"missing prompt", `{"text":"x"}`},
		{"wrong type", `{"prompt":42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &fakeProvider{}, 0)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			payload := decodeError(t, rec.Body)
			if payload["error_code"] != "BAD_REQUEST" {
				t.Errorf("error_code = %v", payload["error_code"])
			}
			if payload["trace_id"] == "" {
				t.Error("trace_id should be set")
			}
		})
	}
}

func TestGeneratePromptTooLarge(t *testing.T) {
	p := &fakeProvider{}
	h := newTestHandler(t, p, 16)

	body, _ := json.Marshal(map[string]string{"prompt": strings.Repeat("x", 17)})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(string(body))))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if payload := decodeError(t, rec.Body); payload["error_code"] != "PROMPT_TOO_LARGE" {
		t.Errorf("error_code = %v", payload["error_code"])
	}

	huge := `{"prompt":"` + strings.Repeat("y", envelopeSlack+64) + `"}`
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(huge)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body status = %d, want 413", rec.Code)
	}
	if len(p.prompts) != 0 {
		t.Error("provider should not be called for oversized prompts")
	}
}

func TestGenerateUpstreamError(t *testing.T) {
	h := newTestHandler(t, &fakeProvider{streamErr: errors.New("API key not set")}, 0)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"prompt":"x"}`)))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	payload := decodeError(t, rec.Body)
	if payload["error_code"] != "UPSTREAM_ERROR" || payload["retryable"] != true {
		t.Errorf("payload = %v", payload)
	}
	if msg, _ := payload["message"].(string); !strings.Contains(msg, "API key not set") {
		t.Errorf("message = %q", msg)
	}
}

func TestGenerateMidStreamErrorEndsResponse(t *testing.T) {
	p := &fakeProvider{deltas: []ai.Delta{{Text: "1. SEL"}, {Err: errors.New("overloaded")}, {Text: "never"}}}
	h := newTestHandler(t, p, 0)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"prompt":"x"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "1. SEL" {
		t.Errorf("body = %q, want text up to the error", got)
	}
}

func TestGenerateMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, &fakeProvider{}, 0)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/generate", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t, &fakeProvider{deltas: []ai.Delta{{Text: "x"}}}, 0)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"prompt":"x"}`)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"obsql_http_requests_total", "obsql_generate_requests_total", "obsql_generate_stream_bytes_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestComposerAgainstHandler(t *testing.T) {
	provider := ai.NewPlaceholder(config.PlaceholderConfig{})
	srv := httptest.NewServer(newTestHandler(t, provider, 0))
	defer srv.Close()

	c := composer.New(composer.Options{Endpoint: srv.URL + "/api/generate"})
	form := composer.FormState{Schema: "table: t (id INT)", Description: "count the rows"}
	if err := c.Compose(context.Background(), form); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	snap := c.Snapshot()
	if !strings.Contains(snap.Buffer, "count the rows") {
		t.Errorf("buffer = %q, want the echoed description", snap.Buffer)
	}
	if snippets := c.Snippets(); len(snippets) != 2 {
		t.Errorf("snippets = %q, want 2", snippets)
	}
}

func TestComposerSeesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t, &fakeProvider{streamErr: errors.New("boom")}, 0))
	defer srv.Close()

	c := composer.New(composer.Options{Endpoint: srv.URL + "/api/generate"})
	err := c.Compose(context.Background(), composer.FormState{})
	var reqErr *composer.RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("err = %v, want 502 RequestError", err)
	}
	if c.Snapshot().Busy {
		t.Error("busy should be cleared")
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ln, config.ServerConfig{ShutdownTimeoutSeconds: 2}, newTestHandler(t, &fakeProvider{}, 0), discardLogger())
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
