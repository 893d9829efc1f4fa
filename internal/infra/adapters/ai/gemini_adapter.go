// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"contentforge/internal/domain/ports/adapter"
)

var _ adapter.ProviderClient = (*GeminiAdapter)(nil)

// GeminiAdapter is the secondary provider, used for research-augmented
// lookups when an answer needs fresher factual context.
type GeminiAdapter struct {
	client *genai.Client
	model  string
	maxOut int
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, model string, maxOut int) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, model: model, maxOut: maxOut}, nil
}

func (g *GeminiAdapter) Name() string { return "gemini" }

func (g *GeminiAdapter) CountTokens(ctx context.Context, prompt string) (int, error) {
	resp, err := g.client.Models.CountTokens(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return 0, g.wrapErr(err)
	}
	return int(resp.TotalTokens), nil
}

func (g *GeminiAdapter) Complete(ctx context.Context, prompt, systemPrompt string) (adapter.Completion, error) {
	cfg := &genai.GenerateContentConfig{}
	if g.maxOut > 0 {
		cfg.MaxOutputTokens = int32(g.maxOut)
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return adapter.Completion{}, g.wrapErr(err)
	}

	text := ""
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		if t := resp.Candidates[0].Content.Parts[0].Text; t != "" {
			text = t
		}
	}
	if text == "" {
		return adapter.Completion{}, transportError("gemini", errors.New("empty candidate"))
	}

	u := adapter.Usage{}
	if resp.UsageMetadata != nil {
		u.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		u.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		u.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return adapter.Completion{Text: text, Usage: u}, nil
}

func (g *GeminiAdapter) wrapErr(err error) error {
	var aerr genai.APIError
	if errors.As(err, &aerr) {
		return statusError("gemini", aerr.Code)
	}
	return transportError("gemini", err)
}
