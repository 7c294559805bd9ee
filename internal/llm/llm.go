// Package llm abstracts the model provider used by the analyzer and
// decomposer.
package llm

import (
	"context"
)

// Request is a single completion request.
type Request struct {
	// System is the optional system prompt.
	System string
	// Prompt is the user message.
	Prompt string
	// MaxTokens bounds the completion; 0 uses the client default.
	MaxTokens int
}

// Response is the completion result.
type Response struct {
	// Text is the concatenated text content of the reply.
	Text string
}

// Client is the provider interface. Implementations must surface transport
// failures with the llm_unavailable error kind; response parsing is the
// caller's concern.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
