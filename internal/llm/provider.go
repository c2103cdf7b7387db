package llm

import (
	"context"
	"encoding/json"
)

type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ToolSchema describes one callable tool in the manifest sent with every
// completion request. Parameters is a JSON Schema object.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Tools       []ToolSchema
	Temperature float64
	MaxTokens   int
}

// ChatResponse carries either a plain-text reply or one or more tool
// calls; both being empty means the model produced an empty final answer.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

type Provider interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
}
