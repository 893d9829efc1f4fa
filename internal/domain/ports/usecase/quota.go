package usecase

import "contentforge/internal/domain/model"

type DecisionKind string

const (
	DecisionAllow            DecisionKind = "allow"
	DecisionAllowWithOverage DecisionKind = "allow_with_overage"
	DecisionDeny             DecisionKind = "deny"
)

// Decision is the governor's verdict on one reservation attempt.
// Remaining is meaningless when Unlimited is set.
type Decision struct {
	Kind        DecisionKind
	Remaining   int
	Unlimited   bool
	OverageRate float64
	Reason      string
}

func (d Decision) Allowed() bool { return d.Kind != DecisionDeny }

// QuotaGovernor is pure bookkeeping over an already-loaded account snapshot.
// It never touches the network; persisting the mutated account, and
// serializing check/commit per account, are the caller's responsibility.
type QuotaGovernor interface {
	// CheckAndReserve may mutate the account as a side effect of the lazy
	// period rollover, and only then.
	CheckAndReserve(acct *model.Account, requestedUnits int) Decision
	// Commit counts units that actually produced real output.
	Commit(acct *model.Account, units int, wasOverage bool)
	// Rollback returns units reserved at admission that turned out not to
	// count (degraded outcomes).
	Rollback(acct *model.Account, units int, wasOverage bool)
	// RemainingUnits reports the budget left this period; unlimited accounts
	// return (0, true).
	RemainingUnits(acct *model.Account) (remaining int, unlimited bool)
}
