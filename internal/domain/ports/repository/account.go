package repository

import (
	"context"

	"contentforge/internal/domain/model"
)

// AccountRepository loads and persists entitlement records. Callers that
// mutate usage counters are responsible for serializing commits per account
// (see the quota locker); the repository itself is plain CRUD.
type AccountRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Account) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Account, error)
	// FindByIDForUpdate takes a row lock when tx is a real transaction.
	FindByIDForUpdate(ctx context.Context, tx Tx, id string) (*model.Account, error)
}
