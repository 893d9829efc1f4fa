package ai

import (
	"context"

	"contentforge/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.ProviderClient = (*limitedProvider)(nil)

type limitedProvider struct {
	inner adapter.ProviderClient
	sem   chan struct{}
}

// NewLimitedProvider bounds concurrent calls to a provider across all
// in-flight requests and jobs.
func NewLimitedProvider(inner adapter.ProviderClient, maxConcurrent int) adapter.ProviderClient {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedProvider{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedProvider) Name() string { return l.inner.Name() }

func (l *limitedProvider) Complete(ctx context.Context, prompt, systemPrompt string) (adapter.Completion, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return adapter.Completion{}, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Complete(ctx, prompt, systemPrompt)
}

func (l *limitedProvider) CountTokens(ctx context.Context, prompt string) (int, error) {
	return l.inner.CountTokens(ctx, prompt)
}
