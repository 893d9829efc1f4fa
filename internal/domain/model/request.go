package model

import (
	"strings"
	"time"
)

type Mode string

const (
	ModeGeneral     Mode = "general"
	ModeSEOContent  Mode = "seo_content"
	ModeGrant       Mode = "grant_writing"
	ModeDevelopment Mode = "development"
)

type Intent string

const (
	IntentSimple   Intent = "simple"
	IntentAnalysis Intent = "analysis"
	IntentComplex  Intent = "complex"
)

// GenerationRequest is one unit of generation work: a user chat message or
// one keyword of a batch job. Immutable once built; consumed exactly once.
type GenerationRequest struct {
	TopicID   string // conversation id or batch job id
	AccountID string
	Mode      Mode
	Intent    Intent
	Prompt    string
	Keyword   string // set for batch items only
	CreatedAt time.Time
}

// simplePatterns are ultra-short messages that never justify a provider
// round-trip. Matched against the whole trimmed, lowercased prompt.
var simplePatterns = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "yo": {},
	"thanks": {}, "thank you": {}, "thx": {},
	"test": {}, "ping": {}, "ok": {}, "good morning": {}, "good evening": {},
}

var complexMarkers = []string{
	"step by step", "in depth", "detailed", "strategy", "comprehensive",
	"architecture", "full plan",
}

// ClassifyIntent is a cheap pre-filter so greetings don't pay for a full
// provider round-trip. Everything that isn't trivially simple is analysis,
// promoted to complex for long or explicitly deep prompts.
func ClassifyIntent(prompt string) Intent {
	p := strings.ToLower(strings.TrimSpace(prompt))
	p = strings.TrimRight(p, "!.?")
	if _, ok := simplePatterns[p]; ok && len(p) <= 24 {
		return IntentSimple
	}
	if len(prompt) > 400 {
		return IntentComplex
	}
	for _, m := range complexMarkers {
		if strings.Contains(p, m) {
			return IntentComplex
		}
	}
	return IntentAnalysis
}

var freshnessWords = []string{
	"latest", "current", "research", "recent", "today", "this week", "news",
	"up to date", "up-to-date",
}

// WantsFreshData reports whether the user's own prompt asks for information
// newer than a model's static knowledge. This is one of the two independent
// research triggers; the other is the primary provider's own signal.
func WantsFreshData(prompt string) bool {
	p := strings.ToLower(prompt)
	for _, w := range freshnessWords {
		if strings.Contains(p, w) {
			return true
		}
	}
	return false
}
