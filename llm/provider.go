// Package llm defines the chat-completion boundary and its OpenAI-compatible
// HTTP implementation. Providers are constructed explicitly and injected;
// there is no package-level client.
package llm

import (
	"context"
	"time"

	"github.com/dmoura/tripgraph/types"
)

// ChatRequest is one completion request: ordered messages, optional tool
// schemas, and a flag permitting several tool calls in a single reply.
type ChatRequest struct {
	Model             string             `json:"model"`
	Messages          []types.Message    `json:"messages"`
	Tools             []types.ToolSchema `json:"tools,omitempty"`
	ToolChoice        string             `json:"tool_choice,omitempty"` // auto/none/<tool name>
	ParallelToolCalls bool               `json:"parallel_tool_calls,omitempty"`
	MaxTokens         int                `json:"max_tokens,omitempty"`
	Temperature       float32            `json:"temperature,omitempty"`
	Timeout           time.Duration      `json:"timeout,omitempty"`
}

// ChatUsage reports token consumption.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatResponse is one assistant reply, possibly carrying tool calls.
type ChatResponse struct {
	ID           string        `json:"id,omitempty"`
	Model        string        `json:"model"`
	Message      types.Message `json:"message"`
	FinishReason string        `json:"finish_reason,omitempty"`
	Usage        ChatUsage     `json:"usage,omitempty"`
	CreatedAt    time.Time     `json:"created_at,omitempty"`
}

// Provider is the LLM inference boundary: messages in, one assistant
// message with optional tool-call requests out.
type Provider interface {
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	Name() string
}
