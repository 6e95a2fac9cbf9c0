// Package llm defines the text-generation surface the gateway consumes.
// Implementations handle protocol-specific details such as request
// formatting, authentication, and response parsing.
package llm

import "context"

// Generator produces a completion for a prompt. The coordinator and its
// specialists are written against this interface.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}

// Config holds common configuration for LLM clients.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}
