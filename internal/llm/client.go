// Package llm provides chat completion clients for the research assistant.
//
// Two providers are supported: any OpenAI-compatible Chat Completions
// endpoint (OpenAI itself or a proxy such as Electron Hub) and the Anthropic
// Messages API. Callers depend only on the Client interface.
//
// Example usage:
//
//	client, err := llm.NewClient(llm.FactoryConfig{Provider: "openai", ...})
//	resp, err := client.Complete(ctx, llm.CompletionRequest{
//		System:      "You are an academic research assistant.",
//		User:        "Summarize recent work on surface codes.",
//		Temperature: 0.7,
//	})
package llm

import "context"

// CompletionRequest is a single-turn chat completion.
type CompletionRequest struct {
	// System is the system prompt.
	System string

	// User is the user message.
	User string

	// Model overrides the client's default model when set.
	Model string

	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens caps the response length. Zero uses the provider default.
	MaxTokens int

	// JSON asks the provider to return a single JSON object.
	JSON bool
}

// Completion is the result of a chat completion.
type Completion struct {
	// Text is the assistant message content.
	Text string

	// Model is the model that produced the completion.
	Model string

	// InputTokens is the number of prompt tokens billed.
	InputTokens int

	// OutputTokens is the number of completion tokens billed.
	OutputTokens int
}

// Client defines the interface for chat completion providers.
type Client interface {
	// Complete runs a chat completion. Transient provider errors are retried.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Return *APIError for non-success provider responses
	//   - Return wrapped errors with provider context
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Provider returns the name of the LLM provider (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the default model identifier.
	Model() string
}
