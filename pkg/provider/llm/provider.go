// Package llm defines the Provider interface for Large Language Model
// backends.
//
// Clarivox consumes LLMs in exactly two places, both off the real-time path:
// the grammar corrector's model sub-path and the auto-improve suggestion
// service. Neither needs streaming or tool calling, so the interface is a
// single bounded Complete call; providers wrap a remote or local API (OpenAI,
// Anthropic via any-llm-go, a local Ollama instance) behind it.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Message is one turn of the conversation sent to the model.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the model needs to produce a
// response. Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation.
	SystemPrompt string

	// Messages is the ordered conversation; the last message drives the
	// response.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0]. Corrections use
	// low values for determinism.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	// Content is the full text of the reply.
	Content string

	// Usage is the token accounting for this call, when the backend
	// reports it.
	Usage Usage
}

// Provider is a completion-capable LLM backend.
//
// Complete must respect context cancellation and deadlines: Clarivox always
// calls it with a hard timeout, and an abandoned call must return promptly
// with ctx.Err().
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
