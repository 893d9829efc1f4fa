package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"contentforge/internal/domain/model"
	"contentforge/internal/domain/ports/repository"
)

var _ repository.ArtifactRepository = (*PostgresArtifactRepo)(nil)

type PostgresArtifactRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresArtifactRepo(pool *pgxpool.Pool) *PostgresArtifactRepo {
	return &PostgresArtifactRepo{pool: pool}
}

func (r *PostgresArtifactRepo) Save(ctx context.Context, tx repository.Tx, a *model.GeneratedArtifact) error {
	const q = `
INSERT INTO generated_artifacts (
  id, topic_id, account_id, kind, keyword, content,
  provider, degraded, failure_class, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);
`
	return execSQL(ctx, r.pool, tx, q,
		a.ID, a.TopicID, a.AccountID, a.Kind, a.Keyword, a.Content,
		a.Provider, a.Degraded, a.FailureClass, a.CreatedAt)
}

func (r *PostgresArtifactRepo) ListByTopic(ctx context.Context, tx repository.Tx, topicID string) ([]*model.GeneratedArtifact, error) {
	const q = `
SELECT id, topic_id, account_id, kind, keyword, content,
       provider, degraded, failure_class, created_at
  FROM generated_artifacts WHERE topic_id=$1 ORDER BY created_at ASC;
`
	rows, err := queryRows(ctx, r.pool, tx, q, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.GeneratedArtifact
	for rows.Next() {
		var a model.GeneratedArtifact
		if err := rows.Scan(&a.ID, &a.TopicID, &a.AccountID, &a.Kind, &a.Keyword, &a.Content,
			&a.Provider, &a.Degraded, &a.FailureClass, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
