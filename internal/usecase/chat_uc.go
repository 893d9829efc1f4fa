// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"contentforge/internal/domain"
	"contentforge/internal/domain/model"
	"contentforge/internal/domain/ports/repository"
	ports "contentforge/internal/domain/ports/usecase"
	"contentforge/internal/infra/broadcast"
	"contentforge/internal/infra/logging"
	"contentforge/internal/infra/redis"
	"contentforge/internal/infra/worker"
)

// Compile-time check
var _ ports.ChatService = (*chatUC)(nil)

// generateBudget bounds one background generation end to end, fallback
// chain included.
const generateBudget = 5 * time.Minute

// chatUC admits chat requests against the account quota and hands the
// generation itself to the worker pool. Admission reserves a unit up front
// under the account lock; a degraded outcome refunds it afterwards, so the
// user is never charged for a static fallback.
type chatUC struct {
	accounts     repository.AccountRepository
	artifacts    repository.ArtifactRepository
	txm          repository.TransactionManager
	governor     ports.QuotaGovernor
	orchestrator ports.Orchestrator
	locker       redis.Locker
	hub          *broadcast.Hub
	pool         *worker.Pool
	lockTTL      time.Duration
	log          *zerolog.Logger
}

func NewChatService(
	accounts repository.AccountRepository,
	artifacts repository.ArtifactRepository,
	txm repository.TransactionManager,
	governor ports.QuotaGovernor,
	orchestrator ports.Orchestrator,
	locker redis.Locker,
	hub *broadcast.Hub,
	pool *worker.Pool,
	lockTTL time.Duration,
	logger *zerolog.Logger,
) *chatUC {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &chatUC{
		accounts:     accounts,
		artifacts:    artifacts,
		txm:          txm,
		governor:     governor,
		orchestrator: orchestrator,
		locker:       locker,
		hub:          hub,
		pool:         pool,
		lockTTL:      lockTTL,
		log:          logger,
	}
}

func (c *chatUC) SubmitChatRequest(ctx context.Context, topicID, accountID, prompt, mode string) (ports.ChatAck, error) {
	if strings.TrimSpace(prompt) == "" {
		return ports.ChatAck{}, domain.ErrInvalidArgument
	}
	if topicID == "" {
		topicID = uuid.NewString()
	}
	ctx = logging.WithTopicID(logging.WithAccountID(ctx, accountID), topicID)
	log := logging.With(ctx, c.log)

	decision, acct, err := c.admit(ctx, accountID)
	if err != nil {
		return ports.ChatAck{}, err
	}
	if !decision.Allowed() {
		log.Info().Str("reason", decision.Reason).Msg("chat request denied by quota")
		return ports.ChatAck{
			Accepted:       false,
			TopicID:        topicID,
			RemainingUnits: decision.Remaining,
			Reason:         decision.Reason,
		}, nil
	}

	req := &model.GenerationRequest{
		TopicID:   topicID,
		AccountID: accountID,
		Mode:      resolveMode(mode),
		Intent:    model.ClassifyIntent(prompt),
		Prompt:    prompt,
		CreatedAt: time.Now(),
	}

	wasOverage := decision.Kind == ports.DecisionAllowWithOverage
	if !c.pool.Submit(func() { c.generate(req, wasOverage) }) {
		// Nothing will run: give the reserved unit straight back.
		c.refund(context.Background(), accountID, wasOverage)
		log.Warn().Msg("chat request rejected, worker pool unavailable")
		return ports.ChatAck{}, domain.ErrProviderUnknown
	}

	remaining, unlimited := c.governor.RemainingUnits(acct)
	return ports.ChatAck{
		Accepted:       true,
		TopicID:        topicID,
		RemainingUnits: remaining,
		Unlimited:      unlimited,
		Overage:        wasOverage,
	}, nil
}

// admit runs the quota critical section: lock, load, decide, and on allow
// persist the reservation before releasing the lock.
func (c *chatUC) admit(ctx context.Context, accountID string) (ports.Decision, *model.Account, error) {
	key := redis.AccountLockKey(accountID)
	token, err := c.locker.TryLock(ctx, key, c.lockTTL)
	if err != nil {
		return ports.Decision{}, nil, err
	}
	defer func() {
		if uerr := c.locker.Unlock(ctx, key, token); uerr != nil {
			c.log.Warn().Err(uerr).Str("account_id", accountID).Msg("failed to release quota lock")
		}
	}()

	// Row lock under the distributed lock: the rollover and reservation
	// land atomically even if another process bypasses the locker.
	var decision ports.Decision
	var acct *model.Account
	err = c.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		a, err := c.accounts.FindByIDForUpdate(ctx, tx, accountID)
		if err != nil {
			return err
		}
		decision = c.governor.CheckAndReserve(a, 1)
		if decision.Allowed() {
			c.governor.Commit(a, 1, decision.Kind == ports.DecisionAllowWithOverage)
		}
		if err := c.accounts.Save(ctx, tx, a); err != nil {
			return err
		}
		acct = a
		return nil
	})
	if err != nil {
		return ports.Decision{}, nil, err
	}
	return decision, acct, nil
}

// generate runs on a pool worker, detached from the submitting request.
func (c *chatUC) generate(req *model.GenerationRequest, wasOverage bool) {
	ctx, cancel := context.WithTimeout(context.Background(), generateBudget)
	defer cancel()
	ctx = logging.WithTopicID(logging.WithAccountID(ctx, req.AccountID), req.TopicID)
	log := logging.With(ctx, c.log)

	outcome := c.orchestrator.Generate(ctx, req)

	art := model.NewGeneratedArtifact(req.TopicID, req.AccountID, model.ArtifactChatReply, outcome.Payload)
	art.Provider = outcome.Provider
	art.Degraded = outcome.Degraded
	art.FailureClass = outcome.FailureClass
	if err := c.artifacts.Save(ctx, repository.NoTX, art); err != nil {
		log.Error().Err(err).Msg("failed to persist chat artifact")
	}

	if outcome.Degraded {
		c.refund(ctx, req.AccountID, wasOverage)
	}

	c.hub.Publish(broadcast.Event{
		Type:     broadcast.EventCompleted,
		TopicID:  req.TopicID,
		Payload:  outcome.Payload,
		Degraded: outcome.Degraded,
	})
	log.Info().
		Str("provider", outcome.Provider).
		Bool("degraded", outcome.Degraded).
		Msg("chat generation finished")
}

// refund returns a reserved unit after a degraded outcome, under the same
// account lock as the reservation.
func (c *chatUC) refund(ctx context.Context, accountID string, wasOverage bool) {
	key := redis.AccountLockKey(accountID)
	token, err := c.locker.TryLock(ctx, key, c.lockTTL)
	if err != nil {
		c.log.Error().Err(err).Str("account_id", accountID).Msg("could not lock account for quota refund")
		return
	}
	defer func() { _ = c.locker.Unlock(ctx, key, token) }()

	err = c.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		acct, err := c.accounts.FindByIDForUpdate(ctx, tx, accountID)
		if err != nil {
			return err
		}
		c.governor.Rollback(acct, 1, wasOverage)
		return c.accounts.Save(ctx, tx, acct)
	})
	if err != nil {
		c.log.Error().Err(err).Str("account_id", accountID).Msg("could not persist quota refund")
	}
}

func resolveMode(mode string) model.Mode {
	switch model.Mode(mode) {
	case model.ModeSEOContent, model.ModeGrant, model.ModeDevelopment:
		return model.Mode(mode)
	default:
		return model.ModeGeneral
	}
}
