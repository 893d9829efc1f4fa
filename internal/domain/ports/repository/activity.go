package repository

import (
	"context"

	"contentforge/internal/domain/model"
)

// ActivityRepository appends phase activities. Activities are append-only;
// a status change is recorded as a new row for the same phase.
type ActivityRepository interface {
	Save(ctx context.Context, tx Tx, a *model.PhaseActivity) error
	ListByTopic(ctx context.Context, tx Tx, topicID string, limit int) ([]*model.PhaseActivity, error)
}
