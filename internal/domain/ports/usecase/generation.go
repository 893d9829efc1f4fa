package usecase

import (
	"context"

	"contentforge/internal/domain"
	"contentforge/internal/domain/model"
)

// Outcome is the orchestrator's single terminal result. Provider failures
// never surface as errors: when the whole chain is exhausted the payload is
// a deterministic static fallback and Degraded is set, so callers and tests
// can tell real from degraded success without parsing text.
type Outcome struct {
	Payload      string
	Provider     string
	Degraded     bool
	FailureClass domain.ErrorClass
}

// Orchestrator converts one generation request into one committed outcome,
// walking the provider fallback chain and emitting phase activities as it
// goes.
type Orchestrator interface {
	Generate(ctx context.Context, req *model.GenerationRequest) Outcome
}
