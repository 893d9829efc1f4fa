package domain

import (
	"context"
	"errors"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrQuotaExceeded      = errors.New("question limit reached for this period")
	ErrJobStarvation      = errors.New("no remaining quota to start job")
	ErrLockNotAcquired    = errors.New("could not acquire account lock")
	ErrInvalidExecContext = errors.New("invalid execution context for query")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Provider errors. Adapters wrap transport/status failures into these so
	// the orchestrator can classify without knowing provider internals.
	ErrProviderAuth      = errors.New("provider authentication failed")
	ErrProviderTransient = errors.New("provider temporarily unavailable")
	ErrProviderUnknown   = errors.New("provider call failed")
)

// ErrorClass buckets a provider failure for fallback/reporting decisions.
type ErrorClass string

const (
	ErrorClassNone      ErrorClass = ""
	ErrorClassAuth      ErrorClass = "authentication"
	ErrorClassTransient ErrorClass = "transient"
	ErrorClassUnknown   ErrorClass = "unknown"
)

// ClassifyProviderError maps any provider-call error onto an ErrorClass.
// Deadline expiry counts as transient: the chain should simply advance.
func ClassifyProviderError(err error) ErrorClass {
	switch {
	case err == nil:
		return ErrorClassNone
	case errors.Is(err, ErrProviderAuth):
		return ErrorClassAuth
	case errors.Is(err, ErrProviderTransient),
		errors.Is(err, context.DeadlineExceeded):
		return ErrorClassTransient
	default:
		return ErrorClassUnknown
	}
}
