package provider

import (
	"context"

	"github.com/google/uuid"
)

// Provider defines the interface for model providers (e.g., OpenAI).
// Implementations deliver a completion as a stream of events on the returned
// channel and close it when the completion is over.
type Provider interface {
	ChatCompletion(context.Context, CompletionParams) (<-chan StreamEvent, error)
}

// Model is a named model served by a Provider.
type Model interface {
	Name() string
	Provider() Provider
}

// Role identifies the author of a message in the prompt thread.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of conversation history sent along with the prompt.
type Message struct {
	Role    Role
	Content string
}

// CompletionParams encapsulates all parameters needed for a chat completion request.
type CompletionParams struct {
	// RunID identifies the run that requested the completion
	RunID uuid.UUID

	// Sender is forwarded to the provider as the end-user identifier when set
	Sender string

	// Instructions provide the system prompt
	Instructions string

	// Thread is the conversation history preceding Query
	Thread []Message

	// Query is the user prompt for this completion
	Query string

	// Stream indicates whether to receive responses as a stream of chunks.
	// When false, only the final Response is delivered.
	Stream bool

	// Temperature overrides the provider default when set
	Temperature *float64

	// Model specifies which model to use for this completion
	Model Model

	// Prevents unkeyed literals
	_ struct{}
}

// Temperature is a convenience for filling CompletionParams.Temperature.
func Temperature(v float64) *float64 {
	return &v
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(context.Context, CompletionParams) (<-chan StreamEvent, error)

func (f ProviderFunc) ChatCompletion(ctx context.Context, params CompletionParams) (<-chan StreamEvent, error) {
	return f(ctx, params)
}
