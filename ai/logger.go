// logger.go records every generation request and its outcome.
//
// Entries go to the application log (see applog) at debug level for
// prompts and info level for completions, so prompts are only persisted
// when debugging is switched on.
package ai

import (
	"log/slog"
	"time"

	"github.com/DachengChen/obsql/applog"
)

// LogRequest logs a generation request.
func LogRequest(operation, provider, prompt string) {
	applog.Logger().Debug("ai_request",
		slog.String("op", operation),
		slog.String("provider", provider),
		slog.Int("prompt_bytes", len(prompt)),
		slog.String("prompt", prompt),
	)
}

// LogResponse logs the end of a generation, successful or not.
func LogResponse(operation, provider string, responseBytes int, elapsed time.Duration, err error) {
	attrs := []any{
		slog.String("op", operation),
		slog.String("provider", provider),
		slog.Int("response_bytes", responseBytes),
		slog.Duration("elapsed", elapsed),
	}
	if err != nil {
		applog.Logger().Error("ai_response", append(attrs, slog.Any("error", err))...)
		return
	}
	applog.Logger().Info("ai_response", attrs...)
}
