package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/johnazariah/aura-sub015/internal/errors"
)

// DefaultMaxTokens bounds completions when the request does not say.
const DefaultMaxTokens = 8192

// AnthropicClient implements Client against the Anthropic Messages API.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// AnthropicOption configures the client.
type AnthropicOption func(*AnthropicClient)

// WithAPIKey overrides the ANTHROPIC_API_KEY environment lookup.
func WithAPIKey(key string) AnthropicOption {
	return func(c *AnthropicClient) {
		c.client = anthropic.NewClient(option.WithAPIKey(key))
	}
}

// WithMaxTokens sets the default completion bound.
func WithMaxTokens(n int) AnthropicOption {
	return func(c *AnthropicClient) { c.maxTokens = n }
}

// NewAnthropic creates a client for the given model. Credentials come from
// the environment unless WithAPIKey is given.
func NewAnthropic(model string, opts ...AnthropicOption) *AnthropicClient {
	c := &AnthropicClient{
		client:    anthropic.NewClient(),
		model:     model,
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends one user message and returns the concatenated text blocks.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(errors.KindLLMUnavailable, err, "completion request")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()
	if text == "" {
		return nil, errors.New(errors.KindLLMUnavailable, "empty completion response")
	}
	return &Response{Text: text}, nil
}
