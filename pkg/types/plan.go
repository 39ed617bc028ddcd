package types

import "strings"

// PlanTier is the unit of entitlement, ranked free < plus < pro.
type PlanTier string

const (
	PlanTierFree PlanTier = "free"
	PlanTierPlus PlanTier = "plus"
	PlanTierPro  PlanTier = "pro"
)

var planRanks = map[PlanTier]int{
	PlanTierFree: 0,
	PlanTierPlus: 1,
	PlanTierPro:  2,
}

// Rank returns the ordering of the tier; unknown tiers rank below free.
func (p PlanTier) Rank() int {
	if r, ok := planRanks[p]; ok {
		return r
	}
	return -1
}

func (p PlanTier) Valid() bool {
	_, ok := planRanks[p]
	return ok
}

// ParsePlanTier parses a tier name case-insensitively.
func ParsePlanTier(s string) (PlanTier, bool) {
	p := PlanTier(strings.ToLower(strings.TrimSpace(s)))
	if p.Valid() {
		return p, true
	}
	return "", false
}

// PricePlan maps a provider price id to a plan tier. The static table lives in
// config and is the most authoritative plan resolution input.
type PricePlan struct {
	PriceID string   `json:"price_id" mapstructure:"price_id"`
	Plan    PlanTier `json:"plan" mapstructure:"plan"`
}
