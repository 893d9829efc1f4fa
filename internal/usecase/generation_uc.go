// File: internal/usecase/generation_uc.go
package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"contentforge/internal/domain"
	"contentforge/internal/domain/model"
	"contentforge/internal/domain/ports/adapter"
	"contentforge/internal/domain/ports/repository"
	ports "contentforge/internal/domain/ports/usecase"
	"contentforge/internal/infra/broadcast"
	"contentforge/internal/infra/logging"
	"contentforge/internal/infra/metrics"
)

// Compile-time check
var _ ports.Orchestrator = (*generationUC)(nil)

// generationUC walks the provider chain for one request:
//
//	simple intent      -> canned reply, no provider call
//	primary            -> done, unless a research signal fires
//	research + primary -> re-answer with fresh context
//	tertiary           -> only on primary hard failure
//	static fallback    -> when the whole chain is exhausted
//
// The terminal outcome is always a payload; provider errors never escape.
type generationUC struct {
	primary     adapter.ProviderClient
	research    adapter.ProviderClient
	tertiary    adapter.ProviderClient
	activities  repository.ActivityRepository
	hub         *broadcast.Hub
	callTimeout time.Duration
	log         *zerolog.Logger
}

func NewGenerationOrchestrator(
	primary, research, tertiary adapter.ProviderClient,
	activities repository.ActivityRepository,
	hub *broadcast.Hub,
	callTimeout time.Duration,
	logger *zerolog.Logger,
) *generationUC {
	if callTimeout <= 0 {
		callTimeout = 45 * time.Second
	}
	return &generationUC{
		primary:     primary,
		research:    research,
		tertiary:    tertiary,
		activities:  activities,
		hub:         hub,
		callTimeout: callTimeout,
		log:         logger,
	}
}

func (u *generationUC) Generate(ctx context.Context, req *model.GenerationRequest) ports.Outcome {
	log := logging.With(logging.WithTopicID(ctx, req.TopicID), u.log)
	defer logging.TraceDuration(log, "GenerationUC.Generate")()

	if req.Intent == model.IntentSimple {
		u.emit(ctx, req.TopicID, model.PhaseGeneration, model.ActivityCompleted, "quick reply", nil)
		metrics.IncFallbackDepth("canned")
		return ports.Outcome{Payload: cannedReply(req.Prompt), Provider: "canned"}
	}

	sys := systemPromptFor(req.Mode)
	u.measurePrompt(ctx, log, req.Prompt)
	u.emit(ctx, req.TopicID, model.PhaseResearch, model.ActivityActive, "analyzing request", nil)
	if req.Mode == model.ModeSEOContent {
		u.emit(ctx, req.TopicID, model.PhaseStrategy, model.ActivityActive, "planning article structure",
			map[string]string{"keyword": req.Keyword})
	}

	comp, err := u.call(ctx, log, u.primary, req.Prompt, sys)
	if err == nil {
		// Two independent research triggers: the provider's own staleness
		// signal, and freshness wording in the user's prompt.
		if !comp.NeedsResearch && !model.WantsFreshData(req.Prompt) {
			u.emit(ctx, req.TopicID, model.PhaseResearch, model.ActivityCompleted, "answered from model knowledge", nil)
			u.emit(ctx, req.TopicID, model.PhaseGeneration, model.ActivityCompleted, "response generated", nil)
			metrics.IncFallbackDepth("primary")
			return ports.Outcome{Payload: comp.Text, Provider: u.primary.Name()}
		}

		u.emit(ctx, req.TopicID, model.PhaseResearch, model.ActivityActive, "gathering fresh context",
			map[string]string{"step": "secondary-research"})
		research, rerr := u.call(ctx, log, u.research, researchPrompt(req.Prompt), researchSystemPrompt)
		if rerr != nil {
			// Research is an enrichment, not a dependency: keep the answer
			// we already have.
			log.Warn().Err(rerr).Msg("research provider failed, keeping primary answer")
			u.emit(ctx, req.TopicID, model.PhaseResearch, model.ActivityCompleted, "answered without fresh context", nil)
			u.emit(ctx, req.TopicID, model.PhaseGeneration, model.ActivityCompleted, "response generated", nil)
			metrics.IncFallbackDepth("primary")
			return ports.Outcome{Payload: comp.Text, Provider: u.primary.Name()}
		}

		u.emit(ctx, req.TopicID, model.PhaseAnalysis, model.ActivityActive, "incorporating research findings", nil)
		enriched := req.Prompt + "\n\nRelevant, current research context:\n" + research.Text
		second, serr := u.call(ctx, log, u.primary, enriched, sys)
		if serr == nil {
			u.emit(ctx, req.TopicID, model.PhaseResearch, model.ActivityCompleted, "research incorporated", nil)
			u.emit(ctx, req.TopicID, model.PhaseGeneration, model.ActivityCompleted, "response generated", nil)
			metrics.IncFallbackDepth("research")
			return ports.Outcome{Payload: second.Text, Provider: u.primary.Name()}
		}
		err = serr
	}

	// Primary chain is down; the tertiary provider is the last real option.
	primaryClass := domain.ClassifyProviderError(err)
	u.emit(ctx, req.TopicID, model.PhaseResearch, model.ActivityActive, "switching provider",
		map[string]string{"step": "tertiary-fallback"})

	tcomp, terr := u.call(ctx, log, u.tertiary, req.Prompt, sys)
	if terr == nil {
		u.emit(ctx, req.TopicID, model.PhaseGeneration, model.ActivityCompleted, "response generated", nil)
		metrics.IncFallbackDepth("tertiary")
		return ports.Outcome{Payload: tcomp.Text, Provider: u.tertiary.Name()}
	}

	u.emit(ctx, req.TopicID, model.PhaseGeneration, model.ActivityFailed, "all providers exhausted", nil)
	metrics.IncFallbackDepth("degraded")

	class := primaryClass
	if tclass := domain.ClassifyProviderError(terr); tclass == domain.ErrorClassAuth {
		class = domain.ErrorClassAuth
	}
	log.Error().
		Str("class", string(class)).
		AnErr("primary_err", err).
		AnErr("tertiary_err", terr).
		Msg("generation degraded to static fallback")

	return ports.Outcome{
		Payload:      degradedFallback(class),
		Provider:     "fallback",
		Degraded:     true,
		FailureClass: class,
	}
}

// measurePrompt records the tokenized prompt size before the chain starts.
// Counting is advisory; a tokenizer error never blocks the request.
func (u *generationUC) measurePrompt(ctx context.Context, log *zerolog.Logger, prompt string) {
	n, err := u.primary.CountTokens(ctx, prompt)
	if err != nil {
		log.Debug().Err(err).Msg("prompt token count unavailable")
		return
	}
	metrics.ObservePromptSize(u.primary.Name(), n)
}

// call runs one provider call under the per-call timeout and records it.
func (u *generationUC) call(ctx context.Context, log *zerolog.Logger, p adapter.ProviderClient, prompt, sys string) (adapter.Completion, error) {
	cctx, cancel := context.WithTimeout(ctx, u.callTimeout)
	defer cancel()

	start := time.Now()
	comp, err := p.Complete(cctx, prompt, sys)
	latency := time.Since(start)

	class := domain.ClassifyProviderError(err)
	metrics.ObserveProviderCall(p.Name(), string(class),
		comp.Usage.PromptTokens, comp.Usage.CompletionTokens, int(latency/time.Millisecond))
	if err != nil {
		log.Warn().Err(err).Str("provider", p.Name()).Dur("latency", latency).Msg("provider call failed")
	}
	return comp, err
}

// emit appends a phase activity and broadcasts it. Persistence is
// best-effort: progress reporting must never fail a generation.
func (u *generationUC) emit(ctx context.Context, topicID string, phase model.Phase, status model.ActivityStatus, desc string, meta map[string]string) {
	act := model.NewPhaseActivity(topicID, phase, status, desc)
	for k, v := range meta {
		act.WithMeta(k, v)
	}
	if err := u.activities.Save(ctx, repository.NoTX, act); err != nil {
		u.log.Warn().Err(err).Str("topic_id", topicID).Msg("failed to persist phase activity")
	}
	u.hub.Publish(broadcast.Event{Type: broadcast.EventActivity, TopicID: topicID, Activity: act})
}

const researchSystemPrompt = "You are a research assistant. Provide concise, factual, up-to-date context " +
	"for the given topic: key facts, figures, and recent developments. No filler."

func researchPrompt(prompt string) string {
	return "Gather current factual context relevant to the following request:\n\n" + prompt
}

func systemPromptFor(mode model.Mode) string {
	switch mode {
	case model.ModeSEOContent:
		return "You are an expert SEO content writer. Produce a well-structured, original article " +
			"with a compelling title, clear headings, and natural keyword usage."
	case model.ModeGrant:
		return "You are an experienced grant writer. Draft persuasive, precise funding-oriented text."
	case model.ModeDevelopment:
		return "You are a senior software engineer. Give direct, technically accurate answers with code where useful."
	default:
		return "You are a helpful, knowledgeable assistant. Answer clearly and concisely."
	}
}

func cannedReply(prompt string) string {
	p := strings.ToLower(strings.TrimSpace(prompt))
	if strings.Contains(p, "thank") || p == "thx" {
		return "You're welcome! Let me know if there's anything else I can help with."
	}
	return "Hello! How can I help you today?"
}

// degradedFallback is the deterministic last-resort payload. Auth failures
// get actionable wording; everything else gets the generic apology.
func degradedFallback(class domain.ErrorClass) string {
	if class == domain.ErrorClassAuth {
		return "The AI service could not authenticate with its providers. " +
			"Please verify the provider API credentials in the service configuration and try again."
	}
	return "I'm sorry, I wasn't able to generate a response just now. " +
		"The AI providers are temporarily unavailable. Please try again in a few minutes."
}
