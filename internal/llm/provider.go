// Package llm is a small provider-neutral client for structured LLM calls.
// Every request may carry a JSON Schema; providers use their native
// structured output mode and validate the result before returning it.
package llm

import (
	"context"
	"encoding/json"
)

// Provider generates a structured response for a request.
type Provider interface {
	// Generate sends req and returns the response. When req.Schema is set,
	// Content is JSON that has been validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model the provider sends requests to.
	ModelID() string
}

// Request describes one call.
type Request struct {
	System   string
	Messages []Message

	// Schema, when set, constrains the response to JSON matching it.
	Schema *Schema

	MaxTokens int

	// Temperature in [0, 1]. Zero leaves the provider default.
	Temperature float64
}

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema is a named JSON Schema definition.
type Schema struct {
	// Name is a kebab-case identifier, used as the schema or tool name by
	// providers that need one.
	Name        string
	Description string
	Definition  map[string]any
}

// Response holds the provider's output.
type Response struct {
	Content    json.RawMessage
	Usage      Usage
	Model      string
	StopReason string // "end", "max_tokens" or "error"
}

// Usage tracks token consumption for a request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
