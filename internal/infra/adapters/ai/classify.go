package ai

import (
	"context"
	"errors"
	"fmt"
	"net"

	"contentforge/internal/domain"
)

// statusError wraps an HTTP-ish status code into the domain provider error
// taxonomy so the orchestrator can classify without provider knowledge.
func statusError(provider string, code int) error {
	switch {
	case code == 401 || code == 403:
		return fmt.Errorf("%s http %d: %w", provider, code, domain.ErrProviderAuth)
	case code == 408 || code == 429 || code >= 500:
		return fmt.Errorf("%s http %d: %w", provider, code, domain.ErrProviderTransient)
	default:
		return fmt.Errorf("%s http %d: %w", provider, code, domain.ErrProviderUnknown)
	}
}

// transportError maps network-level failures. Timeouts and connection
// errors are transient; the fallback chain should advance.
func transportError(provider string, err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %v: %w", provider, err, domain.ErrProviderTransient)
	}
	return fmt.Errorf("%s: %v: %w", provider, err, domain.ErrProviderUnknown)
}
