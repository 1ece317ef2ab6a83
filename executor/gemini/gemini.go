// Package gemini provides a batch embeddings executor for the Gemini API.
// The whole batch is sent as one models/{model}:batchEmbedContents request
// and one embedding vector is returned per input text.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"google.golang.org/genai"

	autobatch "github.com/fabriziopfannl/llm-autobatch"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultTimeout = 30 * time.Second

	maxResponseSizeBytes = 32 * 1024 * 1024
)

// Config configures an Embeddings executor.
type Config struct {
	APIKey  string
	Model   string // e.g. "text-embedding-004"
	BaseURL string
	Timeout time.Duration

	// OutputDimensionality optionally truncates the returned vectors.
	OutputDimensionality *int32

	// HTTPClient overrides the transport. Mainly for tests.
	HTTPClient *http.Client
}

// Embeddings is a batch executor over the Gemini batchEmbedContents API.
type Embeddings struct {
	apiKey  string
	model   string
	baseURL string
	dims    *int32
	client  *http.Client
}

// New creates an Embeddings executor.
func New(cfg Config) (*Embeddings, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini: model is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Embeddings{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		dims:    cfg.OutputDimensionality,
		client:  client,
	}, nil
}

// batchEmbedRequest is the models/{model}:batchEmbedContents payload.
type batchEmbedRequest struct {
	Requests []embedRequest `json:"requests"`
}

type embedRequest struct {
	Model                string         `json:"model"`
	Content              *genai.Content `json:"content"`
	OutputDimensionality *int32         `json:"outputDimensionality,omitempty"`
}

type batchEmbedResponse struct {
	Embeddings []contentEmbedding `json:"embeddings"`
}

type contentEmbedding struct {
	Values []float64 `json:"values"`
}

// Execute embeds the given texts in one upstream call and returns one vector
// per text, in order.
func (e *Embeddings) Execute(ctx context.Context, texts []string) ([][]float64, error) {
	model := "models/" + e.model
	requests := make([]embedRequest, len(texts))
	for i, text := range texts {
		requests[i] = embedRequest{
			Model: model,
			Content: &genai.Content{
				Parts: []*genai.Part{{Text: text}},
			},
			OutputDimensionality: e.dims,
		}
	}

	body, err := json.Marshal(batchEmbedRequest{Requests: requests})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:batchEmbedContents", e.baseURL, e.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini: upstream returned status %d: %s", resp.StatusCode, string(data))
	}

	var parsed batchEmbedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("gemini: failed to parse response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: upstream returned %d embeddings for %d texts", len(parsed.Embeddings), len(texts))
	}

	vectors := make([][]float64, len(texts))
	for i, emb := range parsed.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Executor adapts the client to the batcher's executor signature.
func (e *Embeddings) Executor() autobatch.Executor[string, []float64] {
	return e.Execute
}
