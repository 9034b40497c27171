package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation.
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// LLMService is the chat-completion contract the Analyzer's LLM classification
// stage (§4.2 step 4) depends on. Implementations may use cloud APIs (Anthropic)
// or any other provider with a compatible chat-completion surface.
type LLMService interface {
	// Chat generates a completion response based on the conversation history.
	// messages should contain the full conversation, including the system prompt
	// that enforces the strict JSON-only response contract.
	Chat(ctx context.Context, messages []Message) (string, error)

	// HealthCheck verifies the LLM service is operational and can handle requests.
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the service.
	Close() error
}
