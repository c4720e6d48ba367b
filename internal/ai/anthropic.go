package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicReasoner calls the Anthropic Messages API.
type AnthropicReasoner struct {
	client anthropic.Client
	model  string
}

var _ Reasoner = (*AnthropicReasoner)(nil)

// NewAnthropicReasoner creates a reasoner. The SDK's own retries are disabled because
// Analyzer retries with its own schedule.
func NewAnthropicReasoner(apiKey, model string, opts ...option.RequestOption) *AnthropicReasoner {
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	return &AnthropicReasoner{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// Complete sends one user message and returns the concatenated text blocks.
func (r *AnthropicReasoner) Complete(ctx context.Context, req Request) (string, error) {
	msg, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(r.model),
		MaxTokens:   req.MaxTokens,
		Temperature: anthropic.Float(req.Temperature),
		System:      []anthropic.TextBlockParam{{Text: req.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(msg.Content))
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// IsTransient reports whether an Anthropic error is worth retrying: rate limits, overload,
// server errors and transport failures.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}
