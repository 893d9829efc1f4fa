package usecase

import "context"

// ChatAck is the synchronous admission result for a chat request. The
// generated reply itself arrives asynchronously on the topic's broadcast
// channel.
type ChatAck struct {
	Accepted       bool
	TopicID        string
	RemainingUnits int
	Unlimited      bool
	Overage        bool
	Reason         string
}

type ChatService interface {
	// SubmitChatRequest admits (or denies) one chat generation against the
	// account's quota and schedules the generation in the background.
	SubmitChatRequest(ctx context.Context, topicID, accountID, prompt, mode string) (ChatAck, error)
}
