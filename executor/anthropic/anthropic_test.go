package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Model: "claude-sonnet-4-5"})
	assert.Error(t, err)

	_, err = New(Config{APIKey: "sk-ant-test"})
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	m, err := New(Config{APIKey: "sk-ant-test", Model: "claude-sonnet-4-5"})
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-5", m.model)
	assert.Equal(t, int64(defaultMaxTokens), m.maxTokens)
	assert.NotNil(t, m.Executor())
}

func TestNew_MaxTokensOverride(t *testing.T) {
	m, err := New(Config{APIKey: "sk-ant-test", Model: "claude-sonnet-4-5", MaxTokens: 4096})
	require.NoError(t, err)
	assert.Equal(t, int64(4096), m.maxTokens)
}
