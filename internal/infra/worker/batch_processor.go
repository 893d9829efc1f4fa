// File: internal/infra/worker/batch_processor.go
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"contentforge/internal/domain/model"
	"contentforge/internal/domain/ports/repository"
	ports "contentforge/internal/domain/ports/usecase"
	"contentforge/internal/infra/broadcast"
	"contentforge/internal/infra/logging"
	"contentforge/internal/infra/metrics"
	"contentforge/internal/infra/redis"
)

// BatchProcessor drives one job through the orchestrator strictly one item
// at a time. The item budget is clamped to the account's remaining quota
// before the first call, counters are persisted after every item, and a
// single failed item never aborts the rest of the job.
type BatchProcessor struct {
	jobs         repository.BatchJobRepository
	accounts     repository.AccountRepository
	artifacts    repository.ArtifactRepository
	txm          repository.TransactionManager
	governor     ports.QuotaGovernor
	orchestrator ports.Orchestrator
	locker       redis.Locker
	hub          *broadcast.Hub
	itemDelay    time.Duration
	lockTTL      time.Duration
	now          func() time.Time
	log          *zerolog.Logger
}

func NewBatchProcessor(
	jobs repository.BatchJobRepository,
	accounts repository.AccountRepository,
	artifacts repository.ArtifactRepository,
	txm repository.TransactionManager,
	governor ports.QuotaGovernor,
	orchestrator ports.Orchestrator,
	locker redis.Locker,
	hub *broadcast.Hub,
	itemDelay, lockTTL time.Duration,
	logger *zerolog.Logger,
) *BatchProcessor {
	if itemDelay < 0 {
		itemDelay = 0
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &BatchProcessor{
		jobs:         jobs,
		accounts:     accounts,
		artifacts:    artifacts,
		txm:          txm,
		governor:     governor,
		orchestrator: orchestrator,
		locker:       locker,
		hub:          hub,
		itemDelay:    itemDelay,
		lockTTL:      lockTTL,
		now:          time.Now,
		log:          logger,
	}
}

func (p *BatchProcessor) Run(ctx context.Context, job *model.BatchJob) {
	log := logging.With(logging.WithJobID(logging.WithAccountID(ctx, job.AccountID), job.ID), p.log)
	defer logging.TraceDuration(log, "BatchProcessor.Run")()

	if err := job.MarkProcessing(p.now()); err != nil {
		log.Error().Err(err).Str("status", string(job.Status)).Msg("job not in a runnable state")
		return
	}
	p.persist(ctx, log, job)
	metrics.IncBatchJob(string(model.BatchJobProcessing))

	allowed, unlimited, err := p.itemBudget(ctx, job.AccountID, job.TotalItems)
	if err != nil {
		p.fail(ctx, log, job, "could not determine quota budget: "+err.Error())
		return
	}
	if allowed == 0 {
		// Starvation: no attempts at all, and the caller can tell why.
		job.LimitReached = true
		p.fail(ctx, log, job, "no remaining quota to start job")
		return
	}
	if allowed < job.TotalItems {
		job.LimitReached = true
		log.Info().Int("allowed", allowed).Int("requested", job.TotalItems).Msg("job clamped to remaining quota")
	}

	for i := 0; i < allowed; i++ {
		if ctx.Err() != nil {
			p.fail(ctx, log, job, "job cancelled")
			return
		}

		keyword := job.Keywords[i]
		outcome := p.orchestrator.Generate(ctx, p.itemRequest(job, keyword))

		if outcome.Degraded {
			job.FailedItems++
			job.LastError = fmt.Sprintf("item %q degraded (%s)", keyword, outcome.FailureClass)
			metrics.IncBatchItem("failed")
			log.Warn().Str("keyword", keyword).Str("class", string(outcome.FailureClass)).Msg("batch item degraded")
		} else {
			art := model.NewGeneratedArtifact(job.ID, job.AccountID, model.ArtifactSEOPost, outcome.Payload)
			art.Keyword = keyword
			art.Provider = outcome.Provider
			if err := p.artifacts.Save(ctx, repository.NoTX, art); err != nil {
				log.Error().Err(err).Str("keyword", keyword).Msg("failed to persist batch artifact")
			}
			job.CompletedItems++
			job.QuestionsConsumed++
			metrics.IncBatchItem("completed")
			if !unlimited {
				p.chargeUnit(ctx, log, job.AccountID)
			}
		}

		// Counters hit storage after every item, so a crash mid-run leaves
		// an accurate partial state.
		p.persist(ctx, log, job)

		if i < allowed-1 && p.itemDelay > 0 {
			select {
			case <-time.After(p.itemDelay):
			case <-ctx.Done():
				p.fail(ctx, log, job, "job cancelled")
				return
			}
		}
	}

	if err := job.MarkCompleted(p.now()); err != nil {
		log.Error().Err(err).Msg("could not mark job completed")
		return
	}
	p.persist(ctx, log, job)
	metrics.IncBatchJob(string(model.BatchJobCompleted))
	log.Info().
		Int("completed", job.CompletedItems).
		Int("failed", job.FailedItems).
		Bool("limit_reached", job.LimitReached).
		Msg("batch job finished")
}

// itemBudget clamps the job size to what the account can still spend.
func (p *BatchProcessor) itemBudget(ctx context.Context, accountID string, requested int) (int, bool, error) {
	key := redis.AccountLockKey(accountID)
	token, err := p.locker.TryLock(ctx, key, p.lockTTL)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = p.locker.Unlock(ctx, key, token) }()

	var remaining int
	var unlimited bool
	err = p.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		acct, err := p.accounts.FindByIDForUpdate(ctx, tx, accountID)
		if err != nil {
			return err
		}
		remaining, unlimited = p.governor.RemainingUnits(acct)
		// RemainingUnits may have rolled the period over.
		return p.accounts.Save(ctx, tx, acct)
	})
	if err != nil {
		return 0, false, err
	}
	if unlimited {
		return requested, true, nil
	}
	if remaining < requested {
		return remaining, false, nil
	}
	return requested, false, nil
}

// chargeUnit records one successful item against the account, under the
// same lock the chat path uses.
func (p *BatchProcessor) chargeUnit(ctx context.Context, log *zerolog.Logger, accountID string) {
	key := redis.AccountLockKey(accountID)
	token, err := p.locker.TryLock(ctx, key, p.lockTTL)
	if err != nil {
		log.Error().Err(err).Msg("could not lock account to charge batch item")
		return
	}
	defer func() { _ = p.locker.Unlock(ctx, key, token) }()

	err = p.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		acct, err := p.accounts.FindByIDForUpdate(ctx, tx, accountID)
		if err != nil {
			return err
		}
		p.governor.Commit(acct, 1, false)
		return p.accounts.Save(ctx, tx, acct)
	})
	if err != nil {
		log.Error().Err(err).Msg("could not persist batch item charge")
	}
}

func (p *BatchProcessor) itemRequest(job *model.BatchJob, keyword string) *model.GenerationRequest {
	prompt := fmt.Sprintf(
		"Write an SEO-optimized article of roughly %d words targeting the keyword %q.",
		job.ContentLength, keyword)
	if job.TargetCountry != "" {
		prompt += fmt.Sprintf(" Tailor examples and spelling to readers in %s.", job.TargetCountry)
	}
	return &model.GenerationRequest{
		TopicID:   job.ID,
		AccountID: job.AccountID,
		Mode:      model.ModeSEOContent,
		Intent:    model.IntentComplex,
		Prompt:    prompt,
		Keyword:   keyword,
		CreatedAt: p.now(),
	}
}

func (p *BatchProcessor) fail(ctx context.Context, log *zerolog.Logger, job *model.BatchJob, reason string) {
	if err := job.MarkFailed(p.now(), reason); err != nil {
		log.Error().Err(err).Msg("could not mark job failed")
		return
	}
	p.persist(ctx, log, job)
	metrics.IncBatchJob(string(model.BatchJobFailed))
	log.Warn().Str("reason", reason).Msg("batch job failed")
}

// persist saves the job and pushes a progress snapshot to subscribers.
func (p *BatchProcessor) persist(ctx context.Context, log *zerolog.Logger, job *model.BatchJob) {
	if err := p.jobs.Save(ctx, repository.NoTX, job); err != nil {
		log.Error().Err(err).Msg("failed to persist job state")
	}
	p.hub.Publish(broadcast.Event{
		Type:    broadcast.EventJobUpdate,
		TopicID: job.ID,
		Job: &broadcast.JobSnapshot{
			JobID:          job.ID,
			Status:         string(job.Status),
			TotalItems:     job.TotalItems,
			CompletedItems: job.CompletedItems,
			FailedItems:    job.FailedItems,
			LimitReached:   job.LimitReached,
		},
	})
}
