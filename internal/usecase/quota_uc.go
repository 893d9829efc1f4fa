// File: internal/usecase/quota_uc.go
package usecase

import (
	"time"

	"contentforge/internal/domain/model"
	ports "contentforge/internal/domain/ports/usecase"
	"contentforge/internal/infra/metrics"
)

// Compile-time check
var _ ports.QuotaGovernor = (*quotaUC)(nil)

// quotaUC is the entitlement governor: pure decision logic over an
// already-loaded account snapshot. The only mutation CheckAndReserve
// performs is the lazy period rollover; consumption is recorded separately
// via Commit so that only generations that actually count are charged.
type quotaUC struct {
	now func() time.Time
}

func NewQuotaGovernor() *quotaUC {
	return &quotaUC{now: time.Now}
}

// NewQuotaGovernorAt pins the clock; tests use it to cross period borders.
func NewQuotaGovernorAt(now func() time.Time) *quotaUC {
	return &quotaUC{now: now}
}

func (q *quotaUC) CheckAndReserve(acct *model.Account, requestedUnits int) ports.Decision {
	if requestedUnits <= 0 {
		requestedUnits = 1
	}
	acct.RolloverIfStale(q.now())

	if acct.Unlimited() {
		d := ports.Decision{Kind: ports.DecisionAllow, Unlimited: true}
		metrics.IncQuotaDecision(string(d.Kind), string(acct.Tier))
		return d
	}

	ceiling, known := acct.Tier.Ceiling()
	if !known {
		d := ports.Decision{Kind: ports.DecisionDeny, Reason: "unknown tier"}
		metrics.IncQuotaDecision(string(d.Kind), string(acct.Tier))
		return d
	}

	if acct.QuestionsUsed+requestedUnits > ceiling {
		if acct.Tier.OverageAllowed() {
			d := ports.Decision{
				Kind:        ports.DecisionAllowWithOverage,
				OverageRate: model.OverageRatePerUnit,
			}
			metrics.IncQuotaDecision(string(d.Kind), string(acct.Tier))
			return d
		}
		d := ports.Decision{Kind: ports.DecisionDeny, Reason: "question limit reached for this period; upgrade your plan to continue"}
		metrics.IncQuotaDecision(string(d.Kind), string(acct.Tier))
		return d
	}

	d := ports.Decision{
		Kind:      ports.DecisionAllow,
		Remaining: ceiling - acct.QuestionsUsed - requestedUnits,
	}
	metrics.IncQuotaDecision(string(d.Kind), string(acct.Tier))
	return d
}

func (q *quotaUC) Commit(acct *model.Account, units int, wasOverage bool) {
	if units <= 0 {
		return
	}
	acct.QuestionsUsed += units
	if wasOverage {
		acct.OverageQuestionsUsed += units
		metrics.AddOverageUnits(units)
	}
	acct.UpdatedAt = q.now()
}

func (q *quotaUC) Rollback(acct *model.Account, units int, wasOverage bool) {
	if units <= 0 {
		return
	}
	acct.QuestionsUsed -= units
	if acct.QuestionsUsed < 0 {
		acct.QuestionsUsed = 0
	}
	if wasOverage {
		acct.OverageQuestionsUsed -= units
		if acct.OverageQuestionsUsed < 0 {
			acct.OverageQuestionsUsed = 0
		}
	}
	acct.UpdatedAt = q.now()
}

func (q *quotaUC) RemainingUnits(acct *model.Account) (int, bool) {
	acct.RolloverIfStale(q.now())
	if acct.Unlimited() {
		return 0, true
	}
	ceiling, known := acct.Tier.Ceiling()
	if !known {
		return 0, false
	}
	remaining := ceiling - acct.QuestionsUsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining, false
}
