// File: internal/usecase/batch_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"contentforge/internal/domain"
	"contentforge/internal/domain/model"
	"contentforge/internal/domain/ports/repository"
	ports "contentforge/internal/domain/ports/usecase"
	"contentforge/internal/infra/logging"
	"contentforge/internal/infra/metrics"
	"contentforge/internal/infra/worker"
)

// Compile-time check
var _ ports.BatchService = (*batchUC)(nil)

const maxBatchKeywords = 100

// JobRunner executes one batch job to a terminal status. Implemented by the
// sequential batch processor in the worker package.
type JobRunner interface {
	Run(ctx context.Context, job *model.BatchJob)
}

type batchUC struct {
	jobs   repository.BatchJobRepository
	runner JobRunner
	pool   *worker.Pool
	log    *zerolog.Logger
}

func NewBatchService(jobs repository.BatchJobRepository, runner JobRunner, pool *worker.Pool, logger *zerolog.Logger) *batchUC {
	return &batchUC{jobs: jobs, runner: runner, pool: pool, log: logger}
}

func (b *batchUC) SubmitBatchJob(ctx context.Context, sub ports.BatchSubmission) (*model.BatchJob, error) {
	keywords := dedupeKeywords(sub.Keywords)
	if len(keywords) > maxBatchKeywords {
		return nil, domain.ErrInvalidArgument
	}
	job, err := model.NewBatchJob(sub.AccountID, sub.Name, keywords, sub.TargetCountry, sub.ContentLength)
	if err != nil {
		return nil, err
	}
	if err := b.jobs.Save(ctx, repository.NoTX, job); err != nil {
		return nil, err
	}
	metrics.IncBatchJob(string(model.BatchJobPending))

	log := logging.With(logging.WithJobID(ctx, job.ID), b.log)
	if !b.pool.Submit(func() {
		runCtx, cancel := context.WithTimeout(context.Background(), jobBudget(job))
		defer cancel()
		b.runner.Run(logging.WithJobID(runCtx, job.ID), job)
	}) {
		// The job stays pending in storage; surface the rejection so the
		// caller can retry submission.
		log.Warn().Msg("batch job rejected, worker pool unavailable")
		return nil, domain.ErrProviderUnknown
	}

	log.Info().Int("total_items", job.TotalItems).Msg("batch job accepted")
	return job, nil
}

func (b *batchUC) GetJobStatus(ctx context.Context, accountID, jobID string) (*model.BatchJob, error) {
	job, err := b.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return nil, err
	}
	// Jobs are account-scoped; hide other accounts' jobs entirely.
	if job.AccountID != accountID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (b *batchUC) ListJobs(ctx context.Context, accountID string, limit int) ([]*model.BatchJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return b.jobs.ListByAccount(ctx, repository.NoTX, accountID, limit)
}

// jobBudget scales the run deadline with job size so large jobs survive the
// per-item delays.
func jobBudget(job *model.BatchJob) time.Duration {
	per := 2 * time.Minute
	budget := time.Duration(job.TotalItems) * per
	if budget < 10*time.Minute {
		budget = 10 * time.Minute
	}
	return budget
}

func dedupeKeywords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
