// Package model adapts chat-completion providers to the single interface the
// agent loop drives. Adapters translate between the neutral message types and
// each provider's wire format, so the loop never sees SDK types.
package model

import (
	"context"

	"github.com/spoonos-ai/spoonbot/pkg/message"
	"github.com/spoonos-ai/spoonbot/pkg/tool"
)

// Request is one chat-completion round. System turns inside Messages are
// lifted into the provider's native system slot by the adapters.
type Request struct {
	Messages  []message.Message
	Tools     []tool.Definition
	MaxTokens int
}

// Usage reports token consumption for a single round.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the assistant's turn. ToolCalls is non-empty when the model
// wants tools run before it can answer.
type Response struct {
	Content    string
	ToolCalls  []message.ToolCall
	Model      string
	StopReason string
	Usage      Usage
}

// Model is a synchronous chat-completion backend.
type Model interface {
	Chat(ctx context.Context, req *Request) (*Response, error)
}
