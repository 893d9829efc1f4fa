package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"contentforge/internal/domain/model"
	"contentforge/internal/domain/ports/repository"
)

var _ repository.ActivityRepository = (*PostgresActivityRepo)(nil)

type PostgresActivityRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresActivityRepo(pool *pgxpool.Pool) *PostgresActivityRepo {
	return &PostgresActivityRepo{pool: pool}
}

func (r *PostgresActivityRepo) Save(ctx context.Context, tx repository.Tx, a *model.PhaseActivity) error {
	const q = `
INSERT INTO phase_activities (id, topic_id, phase, status, description, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);
`
	// Metadata goes to a jsonb column; marshal explicitly so pgx does not
	// guess at an hstore mapping.
	var meta []byte
	if len(a.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(a.Metadata); err != nil {
			return err
		}
	}
	return execSQL(ctx, r.pool, tx, q,
		a.ID, a.TopicID, a.Phase, a.Status, a.Description, meta, a.CreatedAt)
}

func (r *PostgresActivityRepo) ListByTopic(ctx context.Context, tx repository.Tx, topicID string, limit int) ([]*model.PhaseActivity, error) {
	if limit <= 0 {
		limit = 200
	}
	const q = `
SELECT id, topic_id, phase, status, description, metadata, created_at
  FROM phase_activities WHERE topic_id=$1 ORDER BY created_at ASC LIMIT $2;
`
	rows, err := queryRows(ctx, r.pool, tx, q, topicID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PhaseActivity
	for rows.Next() {
		var a model.PhaseActivity
		var meta []byte
		if err := rows.Scan(&a.ID, &a.TopicID, &a.Phase, &a.Status, &a.Description, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &a.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
