package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autobatch "github.com/fabriziopfannl/llm-autobatch"
	"github.com/fabriziopfannl/llm-autobatch/internal/monitoring"
	"github.com/fabriziopfannl/llm-autobatch/internal/testhelpers"
)

func newTestGateway(t *testing.T, exec autobatch.Executor[string, string]) *gateway {
	t.Helper()
	b, err := autobatch.New[string, string](autobatch.Config{
		MaxBatch: 8,
		MaxWait:  5 * time.Millisecond,
		Logger:   testhelpers.NewTestLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(b.Close)

	return &gateway{
		batcher:        b,
		exec:           exec,
		logger:         testhelpers.NewTestLogger(),
		metrics:        monitoring.New(false),
		requestTimeout: 5 * time.Second,
	}
}

func TestHandleAnswer_Success(t *testing.T) {
	g := newTestGateway(t, echoExecutor)

	req := httptest.NewRequest(http.MethodGet, "/answer?prompt=hello", nil)
	rec := httptest.NewRecorder()
	g.handleAnswer(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp answerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "HELLO", resp.Answer)
	assert.NotEmpty(t, resp.RequestID)
}

func TestHandleAnswer_MissingPrompt(t *testing.T) {
	g := newTestGateway(t, echoExecutor)

	req := httptest.NewRequest(http.MethodGet, "/answer", nil)
	rec := httptest.NewRecorder()
	g.handleAnswer(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_request_error", resp.Error.Type)
}

func TestHandleAnswer_MethodNotAllowed(t *testing.T) {
	g := newTestGateway(t, echoExecutor)

	req := httptest.NewRequest(http.MethodPost, "/answer?prompt=x", nil)
	rec := httptest.NewRecorder()
	g.handleAnswer(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleAnswer_ExecutorError(t *testing.T) {
	failing := func(_ context.Context, prompts []string) ([]string, error) {
		return nil, errors.New("model overloaded")
	}
	g := newTestGateway(t, failing)

	req := httptest.NewRequest(http.MethodGet, "/answer?prompt=x", nil)
	rec := httptest.NewRecorder()
	g.handleAnswer(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "api_error", resp.Error.Type)
	assert.Contains(t, resp.Error.Message, "model overloaded")
}

func TestHandleHealth(t *testing.T) {
	g := newTestGateway(t, echoExecutor)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	g.handleHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Contains(t, resp, "queue_len")
	assert.Contains(t, resp, "metrics")
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, statusForError(autobatch.ErrQueueFull))
	assert.Equal(t, http.StatusServiceUnavailable, statusForError(autobatch.ErrShutdown))
	assert.Equal(t, http.StatusGatewayTimeout, statusForError(context.DeadlineExceeded))
	assert.Equal(t, http.StatusBadGateway, statusForError(&autobatch.ExecutorError{Err: errors.New("x")}))
	assert.Equal(t, http.StatusInternalServerError, statusForError(errors.New("other")))
}

func TestEchoExecutor(t *testing.T) {
	out, err := echoExecutor(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, out)
}
