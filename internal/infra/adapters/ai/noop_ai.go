package ai

import (
	"context"
	"fmt"

	"contentforge/internal/domain/ports/adapter"
)

var _ adapter.ProviderClient = (*NoopProvider)(nil)

// NoopProvider answers deterministically without any network call.
// Used in dev mode and as a test double in wiring smoke tests.
type NoopProvider struct {
	Label string
}

func NewNoopProvider(label string) *NoopProvider {
	if label == "" {
		label = "noop"
	}
	return &NoopProvider{Label: label}
}

func (n *NoopProvider) Name() string { return n.Label }

func (n *NoopProvider) Complete(ctx context.Context, prompt, systemPrompt string) (adapter.Completion, error) {
	return adapter.Completion{
		Text: fmt.Sprintf("[%s] generated response for: %.80s", n.Label, prompt),
	}, nil
}

func (n *NoopProvider) CountTokens(ctx context.Context, prompt string) (int, error) {
	return len(prompt) / 4, nil
}
