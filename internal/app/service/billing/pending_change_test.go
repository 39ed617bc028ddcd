package billing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reelcrate/reelcrate/internal/models"
	"github.com/reelcrate/reelcrate/pkg/types"
)

func planPtr(p types.PlanTier) *types.PlanTier { return &p }

func TestApplyPendingChange_FirstSeen(t *testing.T) {
	change := applyPendingChange(resolvedPlans{Current: planPtr(types.PlanTierPlus)}, false, nil)
	require.Equal(t, types.PlanTierPlus, change.Plan)
	require.Nil(t, change.PendingPlan)
}

func TestApplyPendingChange_UnresolvableForcesFree(t *testing.T) {
	change := applyPendingChange(resolvedPlans{}, false, nil)
	require.Equal(t, types.PlanTierFree, change.Plan)
	require.Nil(t, change.PendingPlan)
}

func TestApplyPendingChange_UpgradeAppliesImmediately(t *testing.T) {
	stored := &models.Subscription{Plan: types.PlanTierPlus, PendingPlan: planPtr(types.PlanTierFree)}

	change := applyPendingChange(resolvedPlans{Current: planPtr(types.PlanTierPro)}, false, stored)
	require.Equal(t, types.PlanTierPro, change.Plan)
	// stale pending state from before the upgrade must not survive
	require.Nil(t, change.PendingPlan)
}

func TestApplyPendingChange_SamePlanClearsStalePending(t *testing.T) {
	stored := &models.Subscription{Plan: types.PlanTierPro, PendingPlan: planPtr(types.PlanTierPlus)}

	change := applyPendingChange(resolvedPlans{Current: planPtr(types.PlanTierPro)}, false, stored)
	require.Equal(t, types.PlanTierPro, change.Plan)
	require.Nil(t, change.PendingPlan)
}

func TestApplyPendingChange_ScheduledDowngradeDeferred(t *testing.T) {
	stored := &models.Subscription{Plan: types.PlanTierPro}
	resolved := resolvedPlans{
		Current:        planPtr(types.PlanTierPro),
		Scheduled:      planPtr(types.PlanTierPlus),
		ScheduleSignal: true,
	}

	change := applyPendingChange(resolved, false, stored)
	require.Equal(t, types.PlanTierPro, change.Plan)
	require.NotNil(t, change.PendingPlan)
	require.Equal(t, types.PlanTierPlus, *change.PendingPlan)
}

func TestApplyPendingChange_StaleItemsWithScheduleSignalDeferred(t *testing.T) {
	// A stale event whose line items resolve below the stored plan but which
	// still carries a schedule for that same lower plan: the lower plan is the
	// boundary target, not the live plan.
	stored := &models.Subscription{Plan: types.PlanTierPro}
	resolved := resolvedPlans{
		Current:        planPtr(types.PlanTierPlus),
		Scheduled:      nil,
		ScheduleSignal: true,
	}

	change := applyPendingChange(resolved, false, stored)
	require.Equal(t, types.PlanTierPro, change.Plan)
	require.NotNil(t, change.PendingPlan)
	require.Equal(t, types.PlanTierPlus, *change.PendingPlan)
}

func TestApplyPendingChange_CancelAtPeriodEndDefersToFree(t *testing.T) {
	stored := &models.Subscription{Plan: types.PlanTierPlus}
	resolved := resolvedPlans{Current: planPtr(types.PlanTierPlus)}

	change := applyPendingChange(resolved, true, stored)
	require.Equal(t, types.PlanTierPlus, change.Plan)
	require.NotNil(t, change.PendingPlan)
	require.Equal(t, types.PlanTierFree, *change.PendingPlan)
}

func TestApplyPendingChange_DowngradeWithCancelSignalDeferred(t *testing.T) {
	stored := &models.Subscription{Plan: types.PlanTierPro}
	resolved := resolvedPlans{Current: planPtr(types.PlanTierFree)}

	change := applyPendingChange(resolved, true, stored)
	require.Equal(t, types.PlanTierPro, change.Plan)
	require.NotNil(t, change.PendingPlan)
	require.Equal(t, types.PlanTierFree, *change.PendingPlan)
}

func TestApplyPendingChange_DowngradeWithoutSignalAppliesImmediately(t *testing.T) {
	stored := &models.Subscription{Plan: types.PlanTierPro}
	resolved := resolvedPlans{Current: planPtr(types.PlanTierPlus)}

	change := applyPendingChange(resolved, false, stored)
	require.Equal(t, types.PlanTierPlus, change.Plan)
	require.Nil(t, change.PendingPlan)
}
