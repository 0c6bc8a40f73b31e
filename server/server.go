// Package server is the web front end: it serves the composer page and the
// streaming generate endpoint the page posts to.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DachengChen/obsql/ai"
	"github.com/DachengChen/obsql/composer"
	"github.com/DachengChen/obsql/config"
)

type Dependencies struct {
	Logger   *slog.Logger
	Provider ai.Provider
	// Mode decides which prompt variant and splitter the page uses.
	Mode           composer.Mode
	MaxPromptBytes int64
}

func NewHandler(deps Dependencies) (http.Handler, error) {
	if deps.Provider == nil {
		return nil, errors.New("server: provider is required")
	}
	if deps.MaxPromptBytes <= 0 {
		deps.MaxPromptBytes = config.DefaultAppConfig().Server.MaxPromptBytes
	}
	if deps.Mode.Prompt == nil || deps.Mode.Split == nil {
		deps.Mode = composer.ModeFor("")
	}
	page, err := RenderPage(newPageData(deps.Mode))
	if err != nil {
		return nil, fmt.Errorf("server: render page: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handlePage(page))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "provider": deps.Provider.Name()})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/generate", func(w http.ResponseWriter, r *http.Request) {
		handleGenerate(deps, w, r)
	})

	middlewares := []func(http.Handler) http.Handler{
		TraceMiddleware,
		MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...), nil
}

// Run serves handler on cfg.Addr until ctx is done, then shuts down
// gracefully. There is no write timeout since generate streams are long.
func Run(ctx context.Context, cfg config.ServerConfig, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	return Serve(ctx, ln, cfg, handler, logger)
}

// Serve is Run on an existing listener.
func Serve(ctx context.Context, ln net.Listener, cfg config.ServerConfig, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: seconds(cfg.ReadHeaderTimeoutSeconds, 10),
		IdleTimeout:       seconds(cfg.IdleTimeoutSeconds, 120),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), seconds(cfg.ShutdownTimeoutSeconds, 10))
	defer cancel()
	logger.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = srv.Close()
		return err
	}
	return nil
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"trace_id":   TraceIDFromContext(ctx),
	})
}
