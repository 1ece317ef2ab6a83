// Package anthropic provides a batch executor over the Anthropic Messages
// API. Each item in the batch is an independent single-turn prompt; the
// executor issues one Messages call per item and returns the ordered answers.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	autobatch "github.com/fabriziopfannl/llm-autobatch"
)

const defaultMaxTokens = 1024

// Config configures a Messages executor.
type Config struct {
	APIKey string
	Model  string

	// MaxTokens caps the completion length per item. Default 1024.
	MaxTokens int

	// System is an optional system prompt applied to every item.
	System string
}

// Messages is a batch executor over the Anthropic Messages API.
type Messages struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	system    string
}

// New creates a Messages executor.
func New(cfg Config) (*Messages, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic: model is required")
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	return &Messages{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		system:    cfg.System,
	}, nil
}

// Execute answers each prompt with one Messages call. The calls run
// sequentially on the dispatcher goroutine; a failure fails the whole batch,
// matching the all-or-nothing executor contract.
func (m *Messages) Execute(ctx context.Context, prompts []string) ([]string, error) {
	outputs := make([]string, len(prompts))
	for i, prompt := range prompts {
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(m.model),
			MaxTokens: m.maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		}
		if m.system != "" {
			params.System = []anthropic.TextBlockParam{{Text: m.system}}
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("anthropic: messages call for item %d failed: %w", i, err)
		}
		outputs[i] = textFromMessage(resp)
	}
	return outputs, nil
}

// textFromMessage joins the text blocks of a response, skipping tool use and
// other non-text content.
func textFromMessage(msg *anthropic.Message) string {
	var parts []string
	for i := range msg.Content {
		block := &msg.Content[i]
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "")
}

// Executor adapts the client to the batcher's executor signature.
func (m *Messages) Executor() autobatch.Executor[string, string] {
	return m.Execute
}
