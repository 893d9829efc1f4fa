//go:build !integration

package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"contentforge/internal/domain"
	"contentforge/internal/domain/model"
	ports "contentforge/internal/domain/ports/usecase"
	"contentforge/internal/infra/worker"
)

type fakeRunner struct {
	mu   sync.Mutex
	jobs []*model.BatchJob
}

func (f *fakeRunner) Run(ctx context.Context, job *model.BatchJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
}

func (f *fakeRunner) ran() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

func newBatchFixture(t *testing.T) (*batchUC, *memJobRepo, *fakeRunner) {
	t.Helper()
	logger := zerolog.Nop()
	jobs := newMemJobRepo()
	runner := &fakeRunner{}
	pool := worker.NewPool(2, 16, &logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})
	return NewBatchService(jobs, runner, pool, &logger), jobs, runner
}

func TestSubmitBatchJobPersistsAndSchedules(t *testing.T) {
	uc, jobs, runner := newBatchFixture(t)

	job, err := uc.SubmitBatchJob(context.Background(), ports.BatchSubmission{
		AccountID: "acct-1",
		Name:      "spring campaign",
		Keywords:  []string{"go hosting", "go hosting", "", "managed postgres"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if job.TotalItems != 2 {
		t.Errorf("duplicates and blanks should be dropped: total=%d", job.TotalItems)
	}

	stored, err := jobs.FindByID(context.Background(), nil, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != model.BatchJobPending {
		t.Errorf("stored status = %s, want pending", stored.Status)
	}
	if !waitFor(time.Second, func() bool { return runner.ran() == 1 }) {
		t.Error("runner never invoked")
	}
}

func TestSubmitBatchJobValidation(t *testing.T) {
	uc, _, _ := newBatchFixture(t)

	if _, err := uc.SubmitBatchJob(context.Background(), ports.BatchSubmission{
		AccountID: "acct-1", Keywords: nil,
	}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("empty keywords: got %v, want ErrInvalidArgument", err)
	}

	many := make([]string, 101)
	for i := range many {
		many[i] = fmt.Sprintf("kw-%d", i)
	}
	if _, err := uc.SubmitBatchJob(context.Background(), ports.BatchSubmission{
		AccountID: "acct-1", Keywords: many,
	}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("oversized keyword list: got %v, want ErrInvalidArgument", err)
	}
}

func TestGetJobStatusScopedToAccount(t *testing.T) {
	uc, jobs, _ := newBatchFixture(t)
	job, _ := model.NewBatchJob("owner", "job", []string{"k"}, "", 0)
	_ = jobs.Save(context.Background(), nil, job)

	if _, err := uc.GetJobStatus(context.Background(), "owner", job.ID); err != nil {
		t.Errorf("owner lookup failed: %v", err)
	}
	if _, err := uc.GetJobStatus(context.Background(), "intruder", job.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cross-account lookup: got %v, want ErrNotFound", err)
	}
}
