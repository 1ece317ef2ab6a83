package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	autobatch "github.com/fabriziopfannl/llm-autobatch"
	"github.com/fabriziopfannl/llm-autobatch/internal/logger"
	"github.com/fabriziopfannl/llm-autobatch/internal/monitoring"
)

const promptLogLength = 120

// gateway serves single-prompt requests over a shared batcher.
type gateway struct {
	batcher        *autobatch.Batcher[string, string]
	exec           autobatch.Executor[string, string]
	logger         *slog.Logger
	metrics        *monitoring.Metrics
	requestTimeout time.Duration
}

type answerResponse struct {
	RequestID string `json:"request_id"`
	Answer    string `json:"answer"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// handleAnswer is the single-item entry point: one prompt in, one answer out,
// batched with concurrent requests under the hood.
func (g *gateway) handleAnswer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()

	if r.Method != http.MethodGet {
		g.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", start)
		return
	}
	prompt := r.URL.Query().Get("prompt")
	if prompt == "" {
		g.writeError(w, r, http.StatusBadRequest, "missing prompt parameter", start)
		return
	}

	ctx := r.Context()
	if g.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.requestTimeout)
		defer cancel()
	}

	answer, err := g.batcher.Submit(ctx, prompt, g.exec)
	if err != nil {
		status := statusForError(err)
		g.logger.Error("Submit failed",
			"request_id", requestID,
			"prompt", logger.TruncatePrompt(prompt, promptLogLength),
			"status", status,
			"error", err,
		)
		g.writeError(w, r, status, err.Error(), start)
		return
	}

	g.logger.Debug("Answer served",
		"request_id", requestID,
		"prompt", logger.TruncatePrompt(prompt, promptLogLength),
		"duration", time.Since(start),
	)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(answerResponse{
		RequestID: requestID,
		Answer:    answer,
	})
	g.metrics.RecordGatewayRequest(r.URL.Path, http.StatusOK, time.Since(start))
}

// handleHealth reports liveness and current queue depth.
func (g *gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"queue_len": g.batcher.QueueLen(),
		"metrics":   g.batcher.Metrics().AsMap(),
	})
}

// statusForError maps batcher errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, autobatch.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, autobatch.ErrShutdown):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		var execErr *autobatch.ExecutorError
		if errors.As(err, &execErr) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}

// errorTypeForStatus maps HTTP status codes to API error type strings.
func errorTypeForStatus(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest, http.StatusMethodNotAllowed:
		return "invalid_request_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	case http.StatusServiceUnavailable:
		return "shutting_down"
	case http.StatusGatewayTimeout:
		return "timeout_error"
	case http.StatusBadGateway:
		return "api_error"
	default:
		return "server_error"
	}
}

// writeError writes a JSON error response and records the request metric.
func (g *gateway) writeError(w http.ResponseWriter, r *http.Request, statusCode int, message string, start time.Time) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{
			Message: message,
			Type:    errorTypeForStatus(statusCode),
		},
	})
	g.metrics.RecordGatewayRequest(r.URL.Path, statusCode, time.Since(start))
}
