package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		providerCallsTotal,
		providerCallLatencyMs,
		providerTokensIn,
		providerTokensOut,
		promptSizeTokens,
		fallbackDepth,
	)
}

var (
	providerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_calls_total",
			Help: "Provider completion calls per provider and error class ('' = success).",
		},
		[]string{"provider", "class"},
	)

	providerCallLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_call_latency_ms",
			Help:    "Provider call latency distribution in milliseconds.",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
		},
		[]string{"provider", "success"},
	)

	providerTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_tokens_in",
			Help: "Sum of prompt (input) tokens per provider.",
		},
		[]string{"provider"},
	)

	providerTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_tokens_out",
			Help: "Sum of completion (output) tokens per provider.",
		},
		[]string{"provider"},
	)

	promptSizeTokens = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prompt_size_tokens",
			Help:    "Tokenized prompt size as counted before the first provider call.",
			Buckets: []float64{16, 32, 64, 128, 256, 512, 1024, 2048, 4096, 8192},
		},
		[]string{"provider"},
	)

	fallbackDepth = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_fallback_depth_total",
			Help: "Terminal outcomes by how deep the fallback chain went (primary/research/tertiary/degraded/canned).",
		},
		[]string{"depth"},
	)
)

func ObserveProviderCall(provider, class string, tokensIn, tokensOut, latencyMs int) {
	providerCallsTotal.WithLabelValues(norm(provider), norm(class)).Inc()
	providerCallLatencyMs.WithLabelValues(norm(provider), strconv.FormatBool(class == "")).
		Observe(float64(latencyMs))
	providerTokensIn.WithLabelValues(norm(provider)).Add(float64(tokensIn))
	providerTokensOut.WithLabelValues(norm(provider)).Add(float64(tokensOut))
}

func ObservePromptSize(provider string, tokens int) {
	promptSizeTokens.WithLabelValues(norm(provider)).Observe(float64(tokens))
}

func IncFallbackDepth(depth string) {
	fallbackDepth.WithLabelValues(norm(depth)).Inc()
}
