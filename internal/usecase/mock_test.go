//go:build !integration

package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"contentforge/internal/domain"
	"contentforge/internal/domain/model"
	"contentforge/internal/domain/ports/adapter"
	"contentforge/internal/domain/ports/repository"
	ports "contentforge/internal/domain/ports/usecase"
)

// fakeTxManager runs the callback outside any transaction; the in-memory
// repos ignore the tx handle anyway.
type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(context.Context, repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

// ---------------- in-memory repositories ----------------

type memAccountRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Account
}

func newMemAccountRepo(accounts ...*model.Account) *memAccountRepo {
	r := &memAccountRepo{byID: map[string]*model.Account{}}
	for _, a := range accounts {
		cp := *a
		r.byID[a.ID] = &cp
	}
	return r
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
	if a, ok := r.byID[id]; ok {
		return a.QuestionsUsed
	}
	return -1
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

func (r *memArtifactRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type memJobRepo struct {
	mu   sync.Mutex
	byID map[string]*model.BatchJob
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{byID: map[string]*model.BatchJob{}}
}

func (r *memJobRepo) Save(ctx context.Context, tx repository.Tx, j *model.BatchJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *j
	r.byID[j.ID] = &cp
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
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.BatchJob
	for _, j := range r.byID {
		if j.AccountID == accountID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memActivityRepo struct {
	mu   sync.Mutex
	rows []*model.PhaseActivity
}

func (r *memActivityRepo) Save(ctx context.Context, tx repository.Tx, a *model.PhaseActivity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memActivityRepo) ListByTopic(ctx context.Context, tx repository.Tx, topicID string, limit int) ([]*model.PhaseActivity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PhaseActivity
	for _, a := range r.rows {
		if a.TopicID == topicID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---------------- locker ----------------

// fakeLocker grants every lock immediately; tests that need contention set
// failNext.
type fakeLocker struct {
	mu       sync.Mutex
	locks    int
	failNext bool
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failNext {
		l.failNext = false
		return "", domain.ErrLockNotAcquired
	}
	l.locks++
	return "token", nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key, token string) error { return nil }

// ---------------- providers ----------------

// scriptedProvider replays a per-call script and counts invocations.
type scriptedProvider struct {
	name    string
	mu      sync.Mutex
	n       int
	counted int
	fn      func(call int, prompt, sys string) (adapter.Completion, error)
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Complete(ctx context.Context, prompt, sys string) (adapter.Completion, error) {
	p.mu.Lock()
	call := p.n
	p.n++
	p.mu.Unlock()
	return p.fn(call, prompt, sys)
}

func (p *scriptedProvider) CountTokens(ctx context.Context, prompt string) (int, error) {
	p.mu.Lock()
	p.counted++
	p.mu.Unlock()
	return len(prompt) / 4, nil
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

func (p *scriptedProvider) tokenCounts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counted
}

func okProvider(name, reply string) *scriptedProvider {
	return &scriptedProvider{name: name, fn: func(int, string, string) (adapter.Completion, error) {
		return adapter.Completion{Text: reply}, nil
	}}
}

func errProvider(name string, err error) *scriptedProvider {
	return &scriptedProvider{name: name, fn: func(int, string, string) (adapter.Completion, error) {
		return adapter.Completion{}, err
	}}
}

// ---------------- orchestrator ----------------

type fakeOrchestrator struct {
	mu       sync.Mutex
	outcome  ports.Outcome
	requests []*model.GenerationRequest
}

func (f *fakeOrchestrator) Generate(ctx context.Context, req *model.GenerationRequest) ports.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.outcome
}

func (f *fakeOrchestrator) generations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
