package repository

import (
	"context"

	"contentforge/internal/domain/model"
)

type BatchJobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.BatchJob) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.BatchJob, error)
	ListByAccount(ctx context.Context, tx Tx, accountID string, limit int) ([]*model.BatchJob, error)
}
