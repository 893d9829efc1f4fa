//go:build !integration

package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"contentforge/internal/domain"
	"contentforge/internal/domain/model"
	"contentforge/internal/domain/ports/repository"
	ports "contentforge/internal/domain/ports/usecase"
	"contentforge/internal/infra/broadcast"
	"contentforge/internal/infra/worker"
	"contentforge/internal/usecase"
)

// ---------------- fakes ----------------

type memJobRepo struct {
	mu    sync.Mutex
	byID  map[string]*model.BatchJob
	saves int
}

func newMemJobRepo() *memJobRepo { return &memJobRepo{byID: map[string]*model.BatchJob{}} }

func (r *memJobRepo) Save(ctx context.Context, tx repository.Tx, j *model.BatchJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *j
	r.byID[j.ID] = &cp
	r.saves++
	return nil
}

func (r *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.BatchJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *memJobRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit int) ([]*model.BatchJob, error) {
	return nil, nil
}

func (r *memJobRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

type memAccountRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Account
}

func newMemAccountRepo(a *model.Account) *memAccountRepo {
	cp := *a
	return &memAccountRepo{byID: map[string]*model.Account{a.ID: &cp}}
}

func (r *memAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.byID[a.ID] = &cp
	return nil
}

func (r *memAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAccountRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	return r.FindByID(ctx, tx, id)
}

func (r *memAccountRepo) usage(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id].QuestionsUsed
}

type memArtifactRepo struct {
	mu   sync.Mutex
	rows []*model.GeneratedArtifact
}

func (r *memArtifactRepo) Save(ctx context.Context, tx repository.Tx, a *model.GeneratedArtifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memArtifactRepo) ListByTopic(ctx context.Context, tx repository.Tx, topicID string) ([]*model.GeneratedArtifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.GeneratedArtifact
	for _, a := range r.rows {
		if a.TopicID == topicID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeTxManager runs the callback without a real transaction.
type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(context.Context, repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

type fakeLocker struct{}

func (fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "token", nil
}
func (fakeLocker) Unlock(ctx context.Context, key, token string) error { return nil }

// scriptedOrchestrator degrades the keywords listed in degrade.
type scriptedOrchestrator struct {
	mu      sync.Mutex
	degrade map[string]bool
	prompts []string
}

func (s *scriptedOrchestrator) Generate(ctx context.Context, req *model.GenerationRequest) ports.Outcome {
	s.mu.Lock()
	s.prompts = append(s.prompts, req.Keyword)
	degraded := s.degrade[req.Keyword]
	s.mu.Unlock()
	if degraded {
		return ports.Outcome{
			Payload:      "fallback",
			Provider:     "fallback",
			Degraded:     true,
			FailureClass: domain.ErrorClassTransient,
		}
	}
	return ports.Outcome{Payload: "article about " + req.Keyword, Provider: "openai"}
}

func (s *scriptedOrchestrator) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// ---------------- fixture ----------------

type fixture struct {
	proc      *worker.BatchProcessor
	jobs      *memJobRepo
	accounts  *memAccountRepo
	artifacts *memArtifactRepo
	orch      *scriptedOrchestrator
	hub       *broadcast.Hub
}

func newFixture(t *testing.T, acct *model.Account, degrade map[string]bool) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	f := &fixture{
		jobs:      newMemJobRepo(),
		accounts:  newMemAccountRepo(acct),
		artifacts: &memArtifactRepo{},
		orch:      &scriptedOrchestrator{degrade: degrade},
		hub:       broadcast.NewHub(&logger),
	}
	f.proc = worker.NewBatchProcessor(
		f.jobs, f.accounts, f.artifacts, fakeTxManager{}, usecase.NewQuotaGovernor(),
		f.orch, fakeLocker{}, f.hub, 0, time.Second, &logger)
	return f
}

func account(tier model.Tier, used int) *model.Account {
	a, _ := model.NewAccount("acct-1", "u@example.com", tier, time.Now())
	a.QuestionsUsed = used
	return a
}

func newJob(t *testing.T, keywords ...string) *model.BatchJob {
	t.Helper()
	job, err := model.NewBatchJob("acct-1", "test job", keywords, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	return job
}

// ---------------- tests ----------------

func TestRunCompletesAllItems(t *testing.T) {
	f := newFixture(t, account(model.TierPro, 0), nil)
	job := newJob(t, "alpha", "beta", "gamma")
	_ = f.jobs.Save(context.Background(), nil, job)

	f.proc.Run(context.Background(), job)

	stored, _ := f.jobs.FindByID(context.Background(), nil, job.ID)
	if stored.Status != model.BatchJobCompleted {
		t.Fatalf("status = %s, want completed", stored.Status)
	}
	if stored.CompletedItems != 3 || stored.FailedItems != 0 || stored.LimitReached {
		t.Errorf("unexpected counters: %+v", stored)
	}
	if got := f.accounts.usage("acct-1"); got != 3 {
		t.Errorf("account usage = %d, want 3", got)
	}
	arts, _ := f.artifacts.ListByTopic(context.Background(), nil, job.ID)
	if len(arts) != 3 {
		t.Errorf("artifacts = %d, want 3", len(arts))
	}
}

func TestRunClampsToRemainingQuota(t *testing.T) {
	// Free tier with 1 of 3 used: 2 units left for a 5-keyword job.
	f := newFixture(t, account(model.TierFree, 1), nil)
	job := newJob(t, "a", "b", "c", "d", "e")
	_ = f.jobs.Save(context.Background(), nil, job)

	f.proc.Run(context.Background(), job)

	stored, _ := f.jobs.FindByID(context.Background(), nil, job.ID)
	if stored.Status != model.BatchJobCompleted {
		t.Fatalf("status = %s, want completed", stored.Status)
	}
	if stored.CompletedItems != 2 || !stored.LimitReached {
		t.Errorf("completed=%d limitReached=%v, want 2/true", stored.CompletedItems, stored.LimitReached)
	}
	if f.orch.attempts() != 2 {
		t.Errorf("attempts = %d, want exactly the clamped budget", f.orch.attempts())
	}
}

func TestRunStarvesWithZeroBudget(t *testing.T) {
	f := newFixture(t, account(model.TierFree, 3), nil)
	job := newJob(t, "a", "b")
	_ = f.jobs.Save(context.Background(), nil, job)

	f.proc.Run(context.Background(), job)

	stored, _ := f.jobs.FindByID(context.Background(), nil, job.ID)
	if stored.Status != model.BatchJobFailed || !stored.LimitReached {
		t.Fatalf("status=%s limitReached=%v, want failed/true", stored.Status, stored.LimitReached)
	}
	if f.orch.attempts() != 0 {
		t.Errorf("starved job attempted %d items", f.orch.attempts())
	}
}

func TestItemFailureDoesNotAbortJob(t *testing.T) {
	f := newFixture(t, account(model.TierPro, 0), map[string]bool{"b": true})
	job := newJob(t, "a", "b", "c")
	_ = f.jobs.Save(context.Background(), nil, job)

	f.proc.Run(context.Background(), job)

	stored, _ := f.jobs.FindByID(context.Background(), nil, job.ID)
	if stored.Status != model.BatchJobCompleted {
		t.Fatalf("status = %s, want completed", stored.Status)
	}
	if stored.CompletedItems != 2 || stored.FailedItems != 1 {
		t.Errorf("completed=%d failed=%d, want 2/1", stored.CompletedItems, stored.FailedItems)
	}
	// Degraded items are not charged.
	if got := f.accounts.usage("acct-1"); got != 2 {
		t.Errorf("account usage = %d, want 2", got)
	}
	if stored.LastError == "" {
		t.Error("failed item should be recorded in LastError")
	}
}

func TestUnlimitedAccountProcessesEverythingUncharged(t *testing.T) {
	f := newFixture(t, account(model.TierAdmin, 0), nil)
	job := newJob(t, "a", "b", "c", "d")
	_ = f.jobs.Save(context.Background(), nil, job)

	f.proc.Run(context.Background(), job)

	stored, _ := f.jobs.FindByID(context.Background(), nil, job.ID)
	if stored.CompletedItems != 4 || stored.LimitReached {
		t.Errorf("unexpected counters: %+v", stored)
	}
	if got := f.accounts.usage("acct-1"); got != 0 {
		t.Errorf("admin account charged: usage=%d", got)
	}
}

func TestStatePersistedAfterEveryItem(t *testing.T) {
	f := newFixture(t, account(model.TierPro, 0), nil)
	job := newJob(t, "a", "b", "c")
	_ = f.jobs.Save(context.Background(), nil, job)
	before := f.jobs.saveCount()

	f.proc.Run(context.Background(), job)

	// One save for processing, one per item, one for completion.
	if got := f.jobs.saveCount() - before; got < 5 {
		t.Errorf("job saved %d times, want at least 5", got)
	}
}

func TestCancelledContextFailsJob(t *testing.T) {
	f := newFixture(t, account(model.TierPro, 0), nil)
	job := newJob(t, "a", "b")
	_ = f.jobs.Save(context.Background(), nil, job)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.proc.Run(ctx, job)

	stored, _ := f.jobs.FindByID(context.Background(), nil, job.ID)
	if stored.Status != model.BatchJobFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
}

func TestProgressEventsReachSubscribers(t *testing.T) {
	f := newFixture(t, account(model.TierPro, 0), nil)
	job := newJob(t, "a")
	_ = f.jobs.Save(context.Background(), nil, job)

	sub := f.hub.Subscribe(job.ID)
	defer f.hub.Unsubscribe(sub)

	f.proc.Run(context.Background(), job)

	var last broadcast.Event
	var n int
	for {
		select {
		case ev := <-sub.C:
			last = ev
			n++
			continue
		default:
		}
		break
	}
	if n == 0 {
		t.Fatal("no job events delivered")
	}
	if last.Type != broadcast.EventJobUpdate || last.Job == nil || last.Job.Status != string(model.BatchJobCompleted) {
		t.Errorf("unexpected final event: %+v", last)
	}
}
