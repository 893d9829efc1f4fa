package adapter

import "context"

// Usage for a single completion call, as reported by the provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is one provider response. NeedsResearch is the provider's own
// capability signal that the answer likely needs fresher data than its
// static knowledge; how a provider derives it is its own business.
type Completion struct {
	Text          string
	NeedsResearch bool
	Usage         Usage
}

// ProviderClient is the port for one AI completion backend. Implementations
// must translate transport/status failures into the domain provider errors
// so callers can classify them.
type ProviderClient interface {
	Name() string
	Complete(ctx context.Context, prompt, systemPrompt string) (Completion, error)

	// CountTokens returns prompt tokens for the given text
	// (provider-specific counting; best-effort when exact isn't available).
	CountTokens(ctx context.Context, prompt string) (int, error)
}
