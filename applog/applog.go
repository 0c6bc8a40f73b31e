// Package applog provides general-purpose application logging.
//
// Logs are structured (slog) and written to ~/.obsql/logs/obsql.log,
// rotated by lumberjack. Until Init is called everything is discarded so
// the TUI never has log lines drawn over it.
package applog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/DachengChen/obsql/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultLogFile = "obsql.log"

const (
	maxLogSizeMB  = 5
	maxLogBackups = 5
	maxLogAgeDays = 14
)

var (
	mu     sync.RWMutex
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	closer io.Closer
)

// Init configures the application logger from cfg and installs it as the
// slog default. The returned logger is also available through Logger().
func Init(cfg config.LogConfig) (*slog.Logger, error) {
	path := strings.TrimSpace(cfg.File)
	if path == "" {
		path = filepath.Join(config.Dir(), "logs", defaultLogFile)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return Logger(), err
	}

	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
		Compress:   true,
	}
	l := New(cfg, writer)
	install(l, writer)
	return l, nil
}

// New builds a logger over out without installing it.
func New(cfg config.LogConfig, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler).With(slog.String("app", "obsql"))
}

// Use installs l as the application logger. Tests use it, and so does
// `obsql serve --log-stderr`.
func Use(l *slog.Logger) {
	install(l, nil)
}

func install(l *slog.Logger, c io.Closer) {
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = closer.Close()
	}
	logger = l
	closer = c
	slog.SetDefault(l)
}

// Logger returns the current application logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// ParseLevel maps a config string to a slog level; unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Info logs a general info message.
func Info(format string, args ...any) {
	Logger().Info(fmt.Sprintf(format, args...))
}

// Error logs an error message.
func Error(format string, args ...any) {
	Logger().Error(fmt.Sprintf(format, args...))
}

// Event logs a structured event with a category.
func Event(category string, msg string, attrs ...any) {
	Logger().Info(msg, append([]any{slog.String("category", category)}, attrs...)...)
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = closer.Close()
		closer = nil
	}
}
