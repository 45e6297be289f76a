// Package models contains shared data models used across the aigrader codebase.
package models

import "context"

// AIProvider is the core interface that all LLM integrations must implement.
// Never call specific providers directly; always inject this interface.
type AIProvider interface {
	// Complete sends a chat request and returns the assistant's text reply.
	Complete(ctx context.Context, req ChatRequest) (string, error)
	// Name returns the provider identifier (e.g., "ollama", "openrouter").
	Name() string
}

// Chat roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest is the provider-neutral input to a completion.
type ChatRequest struct {
	// Model is the provider-specific model identifier. Empty means the provider default.
	Model       string
	Messages    []ChatMessage
	Temperature float64
	// JSON asks the provider for a JSON-only reply where the API supports it.
	JSON bool
}

// ChatMessage is one turn of a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
