// Package llm defines the provider-agnostic contract the response engine
// speaks to generative-model backends. Concrete implementations live under
// providers/.
package llm

import (
	"context"
	"time"
)

type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a model-requested invocation of a named tool. RawArguments is
// the provider's argument payload verbatim; Args is its decoded form.
type ToolCall struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	RawArguments string         `json:"raw_arguments,omitempty"`
	Args         map[string]any `json:"args,omitempty"`
}

// ToolSpec describes a callable tool to the model. ParameterSchema is a JSON
// Schema document.
type ToolSpec struct {
	Name            string
	Description     string
	ParameterSchema string
}

type Request struct {
	Model     string
	Messages  []Message
	Tools     []ToolSpec
	ForceJSON bool
}

type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

type Result struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
	Duration  time.Duration
}

// Client is one chat-completion round trip. A Result carrying ToolCalls means
// the model wants tools executed before it can finish; callers append the
// assistant turn and the tool results to Messages and call Chat again.
type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
}
