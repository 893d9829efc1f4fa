package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"contentforge/internal/domain"
	"contentforge/internal/domain/model"
	"contentforge/internal/domain/ports/repository"
)

var _ repository.BatchJobRepository = (*PostgresBatchJobRepo)(nil)

type PostgresBatchJobRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresBatchJobRepo(pool *pgxpool.Pool) *PostgresBatchJobRepo {
	return &PostgresBatchJobRepo{pool: pool}
}

func (r *PostgresBatchJobRepo) Save(ctx context.Context, tx repository.Tx, j *model.BatchJob) error {
	const q = `
INSERT INTO batch_jobs (
  id, account_id, name, keywords, target_country, content_length,
  status, total_items, completed_items, failed_items, questions_consumed,
  limit_reached, last_error, created_at, started_at, completed_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
) ON CONFLICT (id) DO UPDATE SET
  status=$7, completed_items=$9, failed_items=$10, questions_consumed=$11,
  limit_reached=$12, last_error=$13, started_at=$15, completed_at=$16;
`
	return execSQL(ctx, r.pool, tx, q,
		j.ID, j.AccountID, j.Name, j.Keywords, j.TargetCountry, j.ContentLength,
		j.Status, j.TotalItems, j.CompletedItems, j.FailedItems, j.QuestionsConsumed,
		j.LimitReached, j.LastError, j.CreatedAt, j.StartedAt, j.CompletedAt)
}

const jobColumns = `id, account_id, name, keywords, target_country, content_length,
       status, total_items, completed_items, failed_items, questions_consumed,
       limit_reached, last_error, created_at, started_at, completed_at`

func (r *PostgresBatchJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.BatchJob, error) {
	q := `SELECT ` + jobColumns + ` FROM batch_jobs WHERE id=$1;`
	return scanJob(pickRow(ctx, r.pool, tx, q, id))
}

// ListByAccount returns newest first; ULID ids sort by creation time.
func (r *PostgresBatchJobRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit int) ([]*model.BatchJob, error) {
	q := `SELECT ` + jobColumns + ` FROM batch_jobs WHERE account_id=$1 ORDER BY id DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.BatchJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(row pgx.Row) (*model.BatchJob, error) {
	var j model.BatchJob
	if err := row.Scan(&j.ID, &j.AccountID, &j.Name, &j.Keywords, &j.TargetCountry, &j.ContentLength,
		&j.Status, &j.TotalItems, &j.CompletedItems, &j.FailedItems, &j.QuestionsConsumed,
		&j.LimitReached, &j.LastError, &j.CreatedAt, &j.StartedAt, &j.CompletedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}
