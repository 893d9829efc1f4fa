package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"contentforge/internal/domain"
	"contentforge/internal/domain/model"
	"contentforge/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*PostgresAccountRepo)(nil)

type PostgresAccountRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepo(pool *pgxpool.Pool) *PostgresAccountRepo {
	return &PostgresAccountRepo{pool: pool}
}

func (r *PostgresAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
INSERT INTO accounts (
  id, email, tier, questions_used, period_key,
  has_unlimited_credits, overage_questions_used, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
) ON CONFLICT (id) DO UPDATE SET
  email=$2, tier=$3, questions_used=$4, period_key=$5,
  has_unlimited_credits=$6, overage_questions_used=$7, updated_at=$9;
`
	return execSQL(ctx, r.pool, tx, q,
		a.ID, a.Email, a.Tier, a.QuestionsUsed, a.PeriodKey,
		a.HasUnlimitedCredits, a.OverageQuestionsUsed, a.CreatedAt, a.UpdatedAt)
}

const accountColumns = `id, email, tier, questions_used, period_key,
       has_unlimited_credits, overage_questions_used, created_at, updated_at`

func (r *PostgresAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1;`
	return r.scanOne(pickRow(ctx, r.pool, tx, q, id))
}

// FindByIDForUpdate takes a row lock; only meaningful when tx is a real
// transaction, otherwise the lock is released immediately.
func (r *PostgresAccountRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1 FOR UPDATE;`
	return r.scanOne(pickRow(ctx, r.pool, tx, q, id))
}

func (r *PostgresAccountRepo) scanOne(row pgx.Row) (*model.Account, error) {
	var a model.Account
	if err := row.Scan(&a.ID, &a.Email, &a.Tier, &a.QuestionsUsed, &a.PeriodKey,
		&a.HasUnlimitedCredits, &a.OverageQuestionsUsed, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
