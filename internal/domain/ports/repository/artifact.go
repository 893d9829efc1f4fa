package repository

import (
	"context"

	"contentforge/internal/domain/model"
)

type ArtifactRepository interface {
	Save(ctx context.Context, tx Tx, a *model.GeneratedArtifact) error
	ListByTopic(ctx context.Context, tx Tx, topicID string) ([]*model.GeneratedArtifact, error)
}
