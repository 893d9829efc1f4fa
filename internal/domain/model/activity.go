package model

import (
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseResearch   Phase = "research"
	PhaseAnalysis   Phase = "analysis"
	PhaseStrategy   Phase = "strategy"
	PhaseGeneration Phase = "generation"
)

type ActivityStatus string

const (
	// Pending is part of the status vocabulary surfaced to clients for
	// phases they render ahead of time; the server itself only emits
	// active, completed, and failed.
	ActivityPending   ActivityStatus = "pending"
	ActivityActive    ActivityStatus = "active"
	ActivityCompleted ActivityStatus = "completed"
	ActivityFailed    ActivityStatus = "failed"
)

// PhaseActivity is one observable step of an in-flight generation, appended
// at phase boundaries and never deleted.
type PhaseActivity struct {
	ID          string            `json:"id"`
	TopicID     string            `json:"topicId"`
	Phase       Phase             `json:"phase"`
	Status      ActivityStatus    `json:"status"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func NewPhaseActivity(topicID string, phase Phase, status ActivityStatus, description string) *PhaseActivity {
	return &PhaseActivity{
		ID:          uuid.NewString(),
		TopicID:     topicID,
		Phase:       phase,
		Status:      status,
		Description: description,
		CreatedAt:   time.Now(),
	}
}

func (a *PhaseActivity) WithMeta(key, value string) *PhaseActivity {
	if a.Metadata == nil {
		a.Metadata = map[string]string{}
	}
	a.Metadata[key] = value
	return a
}
