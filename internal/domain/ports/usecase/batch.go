package usecase

import (
	"context"

	"contentforge/internal/domain/model"
)

// BatchSubmission is the validated input for a new batch job.
type BatchSubmission struct {
	AccountID     string
	Name          string
	Keywords      []string
	TargetCountry string
	ContentLength int
}

type BatchService interface {
	// SubmitBatchJob persists a pending job and schedules it for
	// sequential processing.
	SubmitBatchJob(ctx context.Context, sub BatchSubmission) (*model.BatchJob, error)
	GetJobStatus(ctx context.Context, accountID, jobID string) (*model.BatchJob, error)
	ListJobs(ctx context.Context, accountID string, limit int) ([]*model.BatchJob, error)
}
