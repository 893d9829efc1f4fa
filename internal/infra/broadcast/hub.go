// File: internal/infra/broadcast/hub.go
package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"contentforge/internal/domain/model"
)

const (
	EventActivity  = "activity"
	EventCompleted = "completed"
	EventJobUpdate = "job_update"
)

// Event is one progress message fanned out to subscribers of a topic.
type Event struct {
	Type      string               `json:"type"`
	TopicID   string               `json:"topicId"`
	Activity  *model.PhaseActivity `json:"activity,omitempty"`
	Payload   string               `json:"payload,omitempty"`
	Degraded  bool                 `json:"degraded,omitempty"`
	Job       *JobSnapshot         `json:"job,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// JobSnapshot is the wire shape of batch progress pushed to observers.
type JobSnapshot struct {
	JobID          string `json:"jobId"`
	Status         string `json:"status"`
	TotalItems     int    `json:"totalItems"`
	CompletedItems int    `json:"completedItems"`
	FailedItems    int    `json:"failedItems"`
	LimitReached   bool   `json:"limitReached"`
}

// Subscription is one observer's handle. Read events from C; hand the
// subscription back to Unsubscribe when done.
type Subscription struct {
	ID      string
	TopicID string
	C       chan Event
}

// Hub fans Event values out to subscribers keyed by topic id. Publish is
// fire-and-forget: no subscriber means the event is dropped, and a slow
// subscriber loses events rather than blocking the publisher. There is no
// history; late subscribers see only what happens after they join.
type Hub struct {
	mu      sync.RWMutex
	byTopic map[string]map[string]*Subscription
	log     *zerolog.Logger
}

func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		byTopic: make(map[string]map[string]*Subscription),
		log:     logger,
	}
}

func (h *Hub) Subscribe(topicID string) *Subscription {
	sub := &Subscription{
		ID:      uuid.NewString(),
		TopicID: topicID,
		C:       make(chan Event, 64),
	}
	h.mu.Lock()
	if h.byTopic[topicID] == nil {
		h.byTopic[topicID] = make(map[string]*Subscription)
	}
	h.byTopic[topicID][sub.ID] = sub
	h.mu.Unlock()

	h.log.Debug().Str("topic_id", topicID).Str("sub_id", sub.ID).Msg("subscriber joined")
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	if subs := h.byTopic[sub.TopicID]; subs != nil {
		if _, ok := subs[sub.ID]; ok {
			delete(subs, sub.ID)
			close(sub.C)
		}
		if len(subs) == 0 {
			delete(h.byTopic, sub.TopicID)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	h.mu.RLock()
	subs := h.byTopic[ev.TopicID]
	for _, sub := range subs {
		select {
		case sub.C <- ev:
		default:
			h.log.Warn().Str("topic_id", ev.TopicID).Str("sub_id", sub.ID).Msg("subscriber buffer full, dropping event")
		}
	}
	h.mu.RUnlock()
}

// SubscriberCount is used by the status endpoint and tests.
func (h *Hub) SubscriberCount(topicID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byTopic[topicID])
}
