package billing

import (
	"github.com/reelcrate/reelcrate/internal/models"
	"github.com/reelcrate/reelcrate/pkg/types"
)

// planChange is what the upserter persists for the plan columns.
type planChange struct {
	Plan        types.PlanTier
	PendingPlan *types.PlanTier
}

// applyPendingChange reconciles the freshly resolved plans against the
// previously stored row. Provider deliveries are unordered, so an apparent
// downgrade that arrives with a schedule (or cancel-at-period-end) signal is
// deferred instead of applied: a stale renewal event still carrying old line
// items must not mask an upgrade that was already processed. Without any
// scheduled signal the lower plan is accepted immediately; the provider is
// the source of truth once no pending state explains the discrepancy.
func applyPendingChange(resolved resolvedPlans, cancelAtPeriodEnd bool, stored *models.Subscription) planChange {
	// absence of any resolvable plan forces free
	current := types.PlanTierFree
	if resolved.Current != nil {
		current = *resolved.Current
	}

	// the plan known to take effect at the period boundary, if any
	scheduledTarget := resolved.Scheduled
	if scheduledTarget == nil && cancelAtPeriodEnd {
		free := types.PlanTierFree
		scheduledTarget = &free
	}

	if stored == nil || current.Rank() >= stored.Plan.Rank() {
		// accept immediately; stale pending plans must not linger, so the
		// pending column follows the scheduled signal alone
		return planChange{Plan: current, PendingPlan: scheduledTarget}
	}

	// apparent downgrade
	if resolved.ScheduleSignal || cancelAtPeriodEnd {
		// deferred: keep the stored plan live until the boundary
		pending := scheduledTarget
		if pending == nil {
			// the schedule resolved to the same plan the items carry; that
			// plan is the one arriving at the boundary
			p := current
			pending = &p
		}
		return planChange{Plan: stored.Plan, PendingPlan: pending}
	}

	// no scheduled signal explains the lower plan: accept it as current
	return planChange{Plan: current, PendingPlan: nil}
}
