package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/DachengChen/obsql/ai"
)

// envelopeSlack is the room allowed for the JSON envelope around the
// prompt when limiting request bodies.
const envelopeSlack = 4 << 10

type generateRequest struct {
	Prompt *string `json:"prompt"`
}

// handleGenerate proxies a prompt to the provider and streams the answer
// back as plain text, flushing after every delta.
func handleGenerate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	provider := deps.Provider.Name()

	r.Body = http.MaxBytesReader(w, r.Body, deps.MaxPromptBytes+envelopeSlack)
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			generateRequestsTotal.WithLabelValues(provider, outcomeTooLarge).Inc()
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "PROMPT_TOO_LARGE",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), false)
			return
		}
		generateRequestsTotal.WithLabelValues(provider, outcomeBadRequest).Inc()
		writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body: "+err.Error(), false)
		return
	}
	if req.Prompt == nil {
		generateRequestsTotal.WithLabelValues(provider, outcomeBadRequest).Inc()
		writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", "prompt is required", false)
		return
	}
	prompt := *req.Prompt
	if int64(len(prompt)) > deps.MaxPromptBytes {
		generateRequestsTotal.WithLabelValues(provider, outcomeTooLarge).Inc()
		writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "PROMPT_TOO_LARGE",
			fmt.Sprintf("prompt is %d bytes, limit is %d", len(prompt), deps.MaxPromptBytes), false)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	start := time.Now()
	ai.LogRequest("generate", provider, prompt)
	deltas, err := deps.Provider.Stream(ctx, prompt)
	if err != nil {
		ai.LogResponse("generate", provider, 0, time.Since(start), err)
		generateRequestsTotal.WithLabelValues(provider, outcomeUpstream).Inc()
		writeError(r.Context(), w, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error(), true)
		return
	}

	generateInflight.Inc()
	defer generateInflight.Dec()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	_ = rc.Flush()

	written, outcome, streamErr := pumpDeltas(w, rc, deltas, start, provider)
	if streamErr == nil && ctx.Err() != nil {
		outcome, streamErr = outcomeClientGone, ctx.Err()
	}
	ai.LogResponse("generate", provider, written, time.Since(start), streamErr)
	generateRequestsTotal.WithLabelValues(provider, outcome).Inc()
	if streamErr != nil && deps.Logger != nil {
		deps.Logger.WarnContext(r.Context(), "generate_stream_ended",
			slog.String("trace_id", TraceIDFromContext(r.Context())),
			slog.String("outcome", outcome),
			slog.Any("error", streamErr),
		)
	}
}

// pumpDeltas copies deltas to the response until the channel closes, a
// delta carries an error, or the client stops reading. Headers are already
// sent, so mid-stream errors end the response early.
func pumpDeltas(w http.ResponseWriter, rc *http.ResponseController, deltas <-chan ai.Delta, start time.Time, provider string) (int, string, error) {
	written := 0
	first := true
	for d := range deltas {
		if d.Err != nil {
			return written, outcomeStreamError, d.Err
		}
		if d.Text == "" {
			continue
		}
		if first {
			generateFirstDeltaSeconds.WithLabelValues(provider).Observe(time.Since(start).Seconds())
			first = false
		}
		n, err := w.Write([]byte(d.Text))
		written += n
		generateStreamBytesTotal.WithLabelValues(provider).Add(float64(n))
		if err != nil {
			return written, outcomeClientGone, err
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return written, outcomeClientGone, err
		}
	}
	return written, outcomeOK, nil
}
