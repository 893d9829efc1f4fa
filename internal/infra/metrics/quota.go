package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(quotaDecisionsTotal, overageUnitsTotal) }

var (
	quotaDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_decisions_total",
			Help: "Governor verdicts by kind and tier.",
		},
		[]string{"kind", "tier"},
	)

	overageUnitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_overage_units_total",
			Help: "Units consumed past the included ceiling.",
		},
	)
)

func IncQuotaDecision(kind, tier string) {
	quotaDecisionsTotal.WithLabelValues(norm(kind), norm(tier)).Inc()
}

func AddOverageUnits(n int) { overageUnitsTotal.Add(float64(n)) }
