// Package llm defines the Provider interface for Large Language Model
// backends.
//
// A provider wraps a remote or local model API (an OpenAI deployment, a
// local Ollama instance, and so on) behind a single completion call, so
// the candidate generator and the resume ingestor never couple to a
// specific SDK. Implementations must be safe for concurrent use.
package llm

import (
	"context"

	"github.com/mockview/mockview/pkg/types"
)

// Usage holds token accounting returned by the backend. Counts are in
// the model's native token unit and may differ between providers for the
// same text.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input
	// messages and system prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the reply.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens. Some providers
	// return it directly rather than computing it from the parts.
	TotalTokens int
}

// CompletionRequest carries everything the model needs to produce a
// reply. Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the reply.
	Messages []types.Message

	// Temperature controls output randomness in [0.0, 2.0]. Zero asks
	// for (near-)deterministic decoding.
	Temperature float64

	// MaxTokens caps the completion length. Zero means the provider
	// default.
	MaxTokens int

	// SystemPrompt is an optional instruction injected ahead of the
	// conversation. Providers without a dedicated system field prepend
	// it as a "system"-role message.
	SystemPrompt string
}

// CompletionResponse is the model's full reply.
type CompletionResponse struct {
	// Content is the text of the reply.
	Content string

	// Usage is the token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
//
// Complete must propagate context cancellation promptly and return an
// error when ctx is cancelled before the reply arrives.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
