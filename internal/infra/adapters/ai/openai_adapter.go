package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"contentforge/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.ProviderClient = (*OpenAIAdapter)(nil)

// OpenAIAdapter is the primary provider: fast general-purpose completions
// via the Chat Completions API.
type OpenAIAdapter struct {
	client *openai.Client
	model  openai.ChatModel
	enc    *tiktoken.Tiktoken
}

func NewOpenAIAdapter(apiKey, model string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIAdapter{
		client: &client,
		model:  openai.ChatModel(model),
		enc:    enc,
	}, nil
}

func (o *OpenAIAdapter) Name() string { return "openai" }

func (o *OpenAIAdapter) CountTokens(ctx context.Context, prompt string) (int, error) {
	return len(o.enc.Encode(prompt, nil, nil)), nil
}

func (o *OpenAIAdapter) Complete(ctx context.Context, prompt, systemPrompt string) (adapter.Completion, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(systemPrompt))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    o.model,
		Messages: msgs,
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			return adapter.Completion{}, statusError("openai", apierr.StatusCode)
		}
		return adapter.Completion{}, transportError("openai", err)
	}

	text := ""
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			text = c.Message.Content
			break
		}
	}
	if text == "" {
		return adapter.Completion{}, transportError("openai", errors.New("no choice content"))
	}

	return adapter.Completion{
		Text:          text,
		NeedsResearch: replySignalsStaleness(text),
		Usage: adapter.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

var stalenessPhrases = []string{
	"need current data",
	"knowledge cutoff",
	"as of my last update",
	"i don't have access to real-time",
	"do not have real-time",
	"may be outdated",
}

// replySignalsStaleness implements the provider-side research flag: the
// model's own wording admitting its answer likely needs fresher data.
func replySignalsStaleness(text string) bool {
	t := strings.ToLower(text)
	for _, p := range stalenessPhrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}
