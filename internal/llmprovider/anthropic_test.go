package llmprovider

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leolilley/ryeos/internal/thread"
)

func TestNewAnthropic_RequiresAPIKey(t *testing.T) {
	_, err := NewAnthropic(AnthropicConfig{})
	require.Error(t, err)
}

func TestNewAnthropic_AppliesDefaults(t *testing.T) {
	p, err := NewAnthropic(AnthropicConfig{APIKey: "sk-ant-test"})
	require.NoError(t, err)
	require.Equal(t, "anthropic", p.Name())
	require.Equal(t, "claude-sonnet-4-20250514", p.defaultModel)
	require.Equal(t, 4096, p.maxTokens)
}

func TestConvertMessages_SkipsSystemAndMapsToolRoles(t *testing.T) {
	messages := []thread.Message{
		{Role: "system", Content: "ignored"},
		{Role: "user", Content: "hello"},
		{
			Role: "assistant",
			ToolCalls: []thread.ToolCall{
				{ID: "call-1", Name: "execute_tool", Input: json.RawMessage(`{"item_id":"proj/echo"}`)},
			},
		},
		{
			Role:        "user",
			ToolResults: []thread.ToolResult{{ToolCallID: "call-1", Content: "ok"}},
		},
	}

	converted, err := convertMessages(messages)
	require.NoError(t, err)
	require.Len(t, converted, 3)
}

func TestConvertTools_ProducesNamedToolWithDescription(t *testing.T) {
	schemas := []thread.ToolSchema{
		{
			Name:        "execute_tool",
			Description: "runs a resolved primitive chain",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"item_id": map[string]any{"type": "string"}},
			},
		},
	}

	converted, err := convertTools(schemas)
	require.NoError(t, err)
	require.Len(t, converted, 1)
	require.NotNil(t, converted[0].OfTool)
	require.Equal(t, "execute_tool", converted[0].OfTool.Name)
}
