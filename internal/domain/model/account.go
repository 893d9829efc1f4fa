package model

import (
	"time"

	"github.com/google/uuid"

	"contentforge/internal/domain"
)

type Tier string

const (
	TierFree          Tier = "free"
	TierPro           Tier = "pro"
	TierAgency        Tier = "agency"
	TierPremiumAgency Tier = "premium_agency"
	TierAdmin         Tier = "admin"
)

// OverageRatePerUnit is the per-question price charged past the included
// ceiling. Only premium_agency accounts may run into overage.
const OverageRatePerUnit = 0.25

// Ceiling returns the tier's included questions per period.
// ok is false for admin (no ceiling) and for unrecognized tiers.
func (t Tier) Ceiling() (limit int, ok bool) {
	switch t {
	case TierFree:
		return 3, true
	case TierPro:
		return 150, true
	case TierAgency:
		return 500, true
	case TierPremiumAgency:
		return 1500, true
	default:
		return 0, false
	}
}

// OverageAllowed reports whether the tier may consume past its ceiling.
func (t Tier) OverageAllowed() bool { return t == TierPremiumAgency }

// Account is the billing/entitlement record for one user. Usage counters
// accumulate over a calendar month identified by PeriodKey.
type Account struct {
	ID                   string
	Email                string
	Tier                 Tier
	QuestionsUsed        int
	PeriodKey            string
	HasUnlimitedCredits  bool
	OverageQuestionsUsed int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func NewAccount(id, email string, tier Tier, now time.Time) (*Account, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	if tier == "" {
		tier = TierFree
	}
	return &Account{
		ID:        id,
		Email:     email,
		Tier:      tier,
		PeriodKey: PeriodKeyFor(now),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// PeriodKeyFor yields the calendar-month key usage counters are scoped to.
func PeriodKeyFor(t time.Time) string { return t.UTC().Format("2006-01") }

// RolloverIfStale resets the period counter exactly once when the stored
// period no longer matches the current one. Returns true when a reset
// happened so callers know the record needs persisting.
func (a *Account) RolloverIfStale(now time.Time) bool {
	key := PeriodKeyFor(now)
	if a.PeriodKey == key {
		return false
	}
	a.PeriodKey = key
	a.QuestionsUsed = 0
	a.UpdatedAt = now
	return true
}

// Unlimited reports whether ceiling checks are bypassed entirely.
func (a *Account) Unlimited() bool {
	return a.Tier == TierAdmin || a.HasUnlimitedCredits
}
