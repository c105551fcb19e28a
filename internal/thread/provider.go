// Package thread implements the thread runtime: the LLM loop that drives
// one directive invocation from system-prompt composition through tool
// dispatch, budget debiting, hook evaluation, and transcript persistence.
package thread

import (
	"context"
	"encoding/json"
)

// ToolCall is one tool invocation the model requested.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResult is the outcome of one tool call fed back into the
// conversation.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// Message is one entry in the completion request's conversation history.
type Message struct {
	Role        string
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolSchema describes one callable tool's name/description/JSON-Schema
// input shape, advertised to the provider on every turn.
type ToolSchema struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// CompletionRequest is one turn's request to the LLM provider.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []ToolSchema
	MaxTokens int
}

// CompletionChunk is one piece of a streamed completion. The final chunk
// of a turn carries Done=true along with the turn's token usage so the
// runtime can debit the budget ledger without a separate usage call.
type CompletionChunk struct {
	Text             string
	ToolCall         *ToolCall
	Done             bool
	Error            error
	PromptTokens     int
	CompletionTokens int
}

// Provider is the LLM backend the runtime drives, grounded on the
// teacher's LLMProvider interface, trimmed to what the thread loop needs.
type Provider interface {
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)
	Name() string
}
