package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"contentforge/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.ProviderClient = (*AnthropicAdapter)(nil)

// AnthropicAdapter is the tertiary provider: higher latency, higher quality,
// consulted only when the primary hard-fails. Implemented against the
// Messages API over plain HTTP.
type AnthropicAdapter struct {
	apiKey string
	base   string // e.g., https://api.anthropic.com/v1
	model  string
	maxOut int
	client *http.Client
}

func NewAnthropicAdapter(apiKey, model, base string) (*AnthropicAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic api key empty")
	}
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	if base == "" {
		base = "https://api.anthropic.com/v1"
	}
	return &AnthropicAdapter{
		apiKey: apiKey,
		base:   strings.TrimRight(base, "/"),
		model:  model,
		maxOut: 4096,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (a *AnthropicAdapter) Name() string { return "anthropic" }

// CountTokens is best-effort: the Messages API reports usage only after the
// fact, so estimate at ~4 bytes per token.
func (a *AnthropicAdapter) CountTokens(ctx context.Context, prompt string) (int, error) {
	return len(prompt) / 4, nil
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (a *AnthropicAdapter) Complete(ctx context.Context, prompt, systemPrompt string) (adapter.Completion, error) {
	reqBody := struct {
		Model     string             `json:"model"`
		MaxTokens int                `json:"max_tokens"`
		System    string             `json:"system,omitempty"`
		Messages  []anthropicMessage `json:"messages"`
	}{
		Model:     a.model,
		MaxTokens: a.maxOut,
		System:    systemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}

	b, _ := json.Marshal(reqBody)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/messages", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(req)
	if err != nil {
		return adapter.Completion{}, transportError("anthropic", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return adapter.Completion{}, statusError("anthropic", resp.StatusCode)
	}

	var payload struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return adapter.Completion{}, transportError("anthropic", err)
	}

	text := ""
	for _, c := range payload.Content {
		if c.Type == "text" && c.Text != "" {
			text = c.Text
			break
		}
	}
	if text == "" {
		return adapter.Completion{}, transportError("anthropic", errors.New("no text content"))
	}

	return adapter.Completion{
		Text: text,
		Usage: adapter.Usage{
			PromptTokens:     payload.Usage.InputTokens,
			CompletionTokens: payload.Usage.OutputTokens,
			TotalTokens:      payload.Usage.InputTokens + payload.Usage.OutputTokens,
		},
	}, nil
}
