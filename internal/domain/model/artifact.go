package model

import (
	"time"

	"github.com/google/uuid"

	"contentforge/internal/domain"
)

type ArtifactKind string

const (
	ArtifactChatReply ArtifactKind = "chat_reply"
	ArtifactSEOPost   ArtifactKind = "seo_post"
)

// GeneratedArtifact is the stored output of one generation request.
// Degraded marks a structurally-successful outcome whose content is a static
// fallback rather than real provider output; callers must not infer that
// from the payload text.
type GeneratedArtifact struct {
	ID           string
	TopicID      string
	AccountID    string
	Kind         ArtifactKind
	Keyword      string
	Content      string
	Provider     string
	Degraded     bool
	FailureClass domain.ErrorClass
	CreatedAt    time.Time
}

func NewGeneratedArtifact(topicID, accountID string, kind ArtifactKind, content string) *GeneratedArtifact {
	return &GeneratedArtifact{
		ID:        uuid.NewString(),
		TopicID:   topicID,
		AccountID: accountID,
		Kind:      kind,
		Content:   content,
		CreatedAt: time.Now(),
	}
}
