package model

import (
	"time"

	"github.com/oklog/ulid/v2"

	"contentforge/internal/domain"
)

type BatchJobStatus string

const (
	BatchJobPending    BatchJobStatus = "pending"
	BatchJobProcessing BatchJobStatus = "processing"
	BatchJobCompleted  BatchJobStatus = "completed"
	BatchJobFailed     BatchJobStatus = "failed"
)

// BatchJob is a named collection of keywords driven through the orchestrator
// one item at a time. Counters are updated after every item so a crash
// mid-run leaves an accurate partial state.
type BatchJob struct {
	ID                string
	AccountID         string
	Name              string
	Keywords          []string
	TargetCountry     string
	ContentLength     int
	Status            BatchJobStatus
	TotalItems        int
	CompletedItems    int
	FailedItems       int
	QuestionsConsumed int
	LimitReached      bool
	LastError         string
	CreatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
}

func NewBatchJob(accountID, name string, keywords []string, targetCountry string, contentLength int) (*BatchJob, error) {
	if accountID == "" || len(keywords) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	if contentLength <= 0 {
		contentLength = 1200
	}
	return &BatchJob{
		// ULIDs sort by creation time, which keeps job listings ordered for free.
		ID:            ulid.Make().String(),
		AccountID:     accountID,
		Name:          name,
		Keywords:      keywords,
		TargetCountry: targetCountry,
		ContentLength: contentLength,
		Status:        BatchJobPending,
		TotalItems:    len(keywords),
		CreatedAt:     time.Now(),
	}, nil
}

// Terminal reports whether the job can no longer change status.
func (j *BatchJob) Terminal() bool {
	return j.Status == BatchJobCompleted || j.Status == BatchJobFailed
}

// MarkProcessing moves pending -> processing. Status only moves forward.
func (j *BatchJob) MarkProcessing(now time.Time) error {
	if j.Status != BatchJobPending {
		return domain.ErrInvalidArgument
	}
	j.Status = BatchJobProcessing
	j.StartedAt = &now
	return nil
}

func (j *BatchJob) MarkCompleted(now time.Time) error {
	if j.Terminal() {
		return domain.ErrInvalidArgument
	}
	j.Status = BatchJobCompleted
	j.CompletedAt = &now
	return nil
}

func (j *BatchJob) MarkFailed(now time.Time, reason string) error {
	if j.Terminal() {
		return domain.ErrInvalidArgument
	}
	j.Status = BatchJobFailed
	j.LastError = reason
	j.CompletedAt = &now
	return nil
}
