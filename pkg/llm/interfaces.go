// Package llm provides the chat clients used to turn questions into SQL.
package llm

import (
	"context"
)

// GenerateResponseResult is a completion plus its token usage.
type GenerateResponseResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// TextGenerator is a single-turn chat completion endpoint.
// Use this interface for dependency injection to enable mocking in tests.
type TextGenerator interface {
	// GenerateResponse sends one system and one user message.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

var (
	_ TextGenerator = (*Client)(nil)
	_ TextGenerator = (*AnthropicClient)(nil)
)
