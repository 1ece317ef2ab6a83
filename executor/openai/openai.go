// Package openai provides a batch executor for OpenAI-compatible Responses
// APIs: the whole batch is sent as one request and the ordered output texts
// are returned one per prompt.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	autobatch "github.com/fabriziopfannl/llm-autobatch"
)

const (
	defaultBaseURL = "https://api.openai.com/v1/responses"
	defaultTimeout = 30 * time.Second

	// maxResponseSizeBytes caps how much of an upstream response is read.
	maxResponseSizeBytes = 10 * 1024 * 1024
)

// Config configures a Responses executor.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string        // default: the OpenAI Responses endpoint
	Timeout time.Duration // per batch request, default 30s

	// HTTPClient overrides the transport under the bearer-token client.
	// Mainly for tests.
	HTTPClient *http.Client
}

// Responses is a batch executor over an OpenAI-compatible Responses API.
type Responses struct {
	model   string
	baseURL string
	client  *http.Client
}

// New creates a Responses executor. The API key is attached to every request
// via an oauth2 static token source.
func New(cfg Config) (*Responses, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai: model is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	ctx := context.Background()
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.APIKey,
		TokenType:   "Bearer",
	}))
	client.Timeout = cfg.Timeout

	return &Responses{
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		client:  client,
	}, nil
}

type responsesRequest struct {
	Model string         `json:"model"`
	Input []inputMessage `json:"input"`
}

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesResponse struct {
	Output []outputItem `json:"output"`
}

type outputItem struct {
	Content []outputContent `json:"content"`
}

type outputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Execute sends the prompts as one Responses request and returns one output
// text per prompt, in order.
func (e *Responses) Execute(ctx context.Context, prompts []string) ([]string, error) {
	input := make([]inputMessage, len(prompts))
	for i, p := range prompts {
		input[i] = inputMessage{Role: "user", Content: p}
	}
	body, err := json.Marshal(responsesRequest{Model: e.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("openai: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("openai: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai: upstream returned status %d: %s", resp.StatusCode, string(data))
	}

	var parsed responsesResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("openai: failed to parse response: %w", err)
	}

	outputs := make([]string, 0, len(prompts))
	for _, item := range parsed.Output {
		for _, content := range item.Content {
			if content.Type == "output_text" {
				outputs = append(outputs, content.Text)
			}
		}
	}

	if len(outputs) != len(prompts) {
		return nil, fmt.Errorf("openai: upstream returned %d outputs for %d prompts", len(outputs), len(prompts))
	}
	return outputs, nil
}

// Executor adapts the client to the batcher's executor signature.
func (e *Responses) Executor() autobatch.Executor[string, string] {
	return e.Execute
}
