package billing

import (
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/require"

	"github.com/reelcrate/reelcrate/pkg/config"
	"github.com/reelcrate/reelcrate/pkg/types"
)

func testResolver() *planResolver {
	return newPlanResolver(&config.Config{
		Billing: config.BillingConfig{
			PricePlans: []*types.PricePlan{
				{PriceID: "price_plus_monthly", Plan: types.PlanTierPlus},
				{PriceID: "price_pro_monthly", Plan: types.PlanTierPro},
			},
		},
	})
}

func subWithItems(items ...*stripe.SubscriptionItem) *stripe.Subscription {
	return &stripe.Subscription{
		ID:    "sub_1",
		Items: &stripe.SubscriptionItemList{Data: items},
	}
}

func TestResolve_PriceTableWins(t *testing.T) {
	sub := subWithItems(&stripe.SubscriptionItem{
		Quantity: 1,
		Price: &stripe.Price{
			ID:         "price_pro_monthly",
			UnitAmount: 1999,
			// conflicting metadata must lose to the static table
			Metadata: map[string]string{"plan": "plus"},
		},
	})

	got := testResolver().Resolve(sub, time.Now())
	require.NotNil(t, got.Current)
	require.Equal(t, types.PlanTierPro, *got.Current)
	require.Equal(t, "price_pro_monthly", got.CurrentPriceID)
	require.Nil(t, got.Scheduled)
	require.False(t, got.ScheduleSignal)
}

func TestResolve_MetadataPrecedence(t *testing.T) {
	// item metadata outranks price metadata outranks product metadata
	sub := subWithItems(&stripe.SubscriptionItem{
		Quantity: 1,
		Metadata: map[string]string{"tier": "pro"},
		Price: &stripe.Price{
			ID:         "price_unknown",
			UnitAmount: 999,
			Metadata:   map[string]string{"plan": "plus"},
			Product:    &stripe.Product{Metadata: map[string]string{"plan": "free"}},
		},
	})

	got := testResolver().Resolve(sub, time.Now())
	require.NotNil(t, got.Current)
	require.Equal(t, types.PlanTierPro, *got.Current)
}

func TestResolve_ProductMetadataFallback(t *testing.T) {
	sub := subWithItems(&stripe.SubscriptionItem{
		Quantity: 1,
		Price: &stripe.Price{
			ID:         "price_unknown",
			UnitAmount: 999,
			Product:    &stripe.Product{Metadata: map[string]string{"plan_tier": "Plus"}},
		},
	})

	got := testResolver().Resolve(sub, time.Now())
	require.NotNil(t, got.Current)
	require.Equal(t, types.PlanTierPlus, *got.Current)
}

func TestResolve_ZeroAmountMeansFree(t *testing.T) {
	sub := subWithItems(&stripe.SubscriptionItem{
		Quantity: 1,
		Price:    &stripe.Price{ID: "price_comped", UnitAmount: 0},
	})

	got := testResolver().Resolve(sub, time.Now())
	require.NotNil(t, got.Current)
	require.Equal(t, types.PlanTierFree, *got.Current)
}

func TestResolve_UnresolvableItem(t *testing.T) {
	sub := subWithItems(&stripe.SubscriptionItem{
		Quantity: 1,
		Price:    &stripe.Price{ID: "price_unknown", UnitAmount: 500},
	})

	got := testResolver().Resolve(sub, time.Now())
	require.Nil(t, got.Current)
	require.Empty(t, got.CurrentPriceID)
}

func TestResolve_NewestResolvableItemWins(t *testing.T) {
	sub := subWithItems(
		&stripe.SubscriptionItem{
			Created:  100,
			Quantity: 1,
			Price:    &stripe.Price{ID: "price_plus_monthly", UnitAmount: 999},
		},
		&stripe.SubscriptionItem{
			Created:  200,
			Quantity: 1,
			Price:    &stripe.Price{ID: "price_pro_monthly", UnitAmount: 1999},
		},
	)

	got := testResolver().Resolve(sub, time.Now())
	require.NotNil(t, got.Current)
	require.Equal(t, types.PlanTierPro, *got.Current)
	require.Equal(t, "price_pro_monthly", got.CurrentPriceID)
}

func TestResolve_SkipsDeletedAndZeroQuantityItems(t *testing.T) {
	sub := subWithItems(
		&stripe.SubscriptionItem{
			Created:  300,
			Quantity: 1,
			Deleted:  true,
			Price:    &stripe.Price{ID: "price_pro_monthly", UnitAmount: 1999},
		},
		&stripe.SubscriptionItem{
			Created:  200,
			Quantity: 0,
			Price:    &stripe.Price{ID: "price_pro_monthly", UnitAmount: 1999},
		},
		&stripe.SubscriptionItem{
			Created:  100,
			Quantity: 1,
			Price:    &stripe.Price{ID: "price_plus_monthly", UnitAmount: 999},
		},
	)

	got := testResolver().Resolve(sub, time.Now())
	require.NotNil(t, got.Current)
	require.Equal(t, types.PlanTierPlus, *got.Current)
}

func TestResolve_PendingUpdatePreferredOverSchedule(t *testing.T) {
	now := time.Now()
	sub := subWithItems(&stripe.SubscriptionItem{
		Quantity: 1,
		Price:    &stripe.Price{ID: "price_pro_monthly", UnitAmount: 1999},
	})
	sub.PendingUpdate = &stripe.SubscriptionPendingUpdate{
		SubscriptionItems: []*stripe.SubscriptionItem{{
			Quantity: 1,
			Price:    &stripe.Price{ID: "price_plus_monthly", UnitAmount: 999},
		}},
	}
	sub.Schedule = &stripe.SubscriptionSchedule{
		Phases: []*stripe.SubscriptionSchedulePhase{{
			StartDate: now.Add(24 * time.Hour).Unix(),
			Items: []*stripe.SubscriptionSchedulePhaseItem{{
				Quantity: 1,
				Price:    &stripe.Price{ID: "price_pro_monthly", UnitAmount: 1999},
			}},
		}},
	}

	got := testResolver().Resolve(sub, now)
	require.NotNil(t, got.Scheduled)
	require.Equal(t, types.PlanTierPlus, *got.Scheduled)
	require.Equal(t, "price_plus_monthly", got.ScheduledPriceID)
	require.True(t, got.ScheduleSignal)
}

func TestResolve_PendingUpdateIgnoresDeletedItems(t *testing.T) {
	now := time.Now()
	sub := subWithItems(&stripe.SubscriptionItem{
		Quantity: 1,
		Price:    &stripe.Price{ID: "price_pro_monthly", UnitAmount: 1999},
	})
	sub.PendingUpdate = &stripe.SubscriptionPendingUpdate{
		SubscriptionItems: []*stripe.SubscriptionItem{
			{
				Deleted: true,
				Price:   &stripe.Price{ID: "price_plus_monthly", UnitAmount: 999},
			},
			{
				Quantity: 0,
				Price:    &stripe.Price{ID: "price_plus_monthly", UnitAmount: 999},
			},
		},
	}

	got := testResolver().Resolve(sub, now)
	require.NotNil(t, got.Current)
	require.Equal(t, types.PlanTierPro, *got.Current)
	require.Nil(t, got.Scheduled)
	require.False(t, got.ScheduleSignal)
}

func TestResolve_ScheduleNextPhaseByCurrentPhaseBoundary(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	sub := subWithItems(&stripe.SubscriptionItem{
		Quantity: 1,
		Price:    &stripe.Price{ID: "price_pro_monthly", UnitAmount: 1999},
	})
	sub.Schedule = &stripe.SubscriptionSchedule{
		CurrentPhase: &stripe.SubscriptionScheduleCurrentPhase{StartDate: 900_000, EndDate: 1_100_000},
		Phases: []*stripe.SubscriptionSchedulePhase{
			{
				StartDate: 900_000,
				EndDate:   1_100_000,
				Items: []*stripe.SubscriptionSchedulePhaseItem{{
					Quantity: 1,
					Price:    &stripe.Price{ID: "price_pro_monthly", UnitAmount: 1999},
				}},
			},
			{
				StartDate: 1_100_000,
				EndDate:   1_300_000,
				Items: []*stripe.SubscriptionSchedulePhaseItem{{
					Quantity: 1,
					Price:    &stripe.Price{ID: "price_plus_monthly", UnitAmount: 999},
				}},
			},
		},
	}

	got := testResolver().Resolve(sub, now)
	require.NotNil(t, got.Scheduled)
	require.Equal(t, types.PlanTierPlus, *got.Scheduled)
	require.True(t, got.ScheduleSignal)
}

func TestResolve_ScheduleFirstFuturePhaseWithoutCurrentPhase(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	sub := subWithItems(&stripe.SubscriptionItem{
		Quantity: 1,
		Price:    &stripe.Price{ID: "price_plus_monthly", UnitAmount: 999},
	})
	sub.Schedule = &stripe.SubscriptionSchedule{
		Phases: []*stripe.SubscriptionSchedulePhase{
			{
				StartDate: 500_000,
				Items: []*stripe.SubscriptionSchedulePhaseItem{{
					Quantity: 1,
					Price:    &stripe.Price{ID: "price_plus_monthly", UnitAmount: 999},
				}},
			},
			{
				StartDate: 1_500_000,
				Items: []*stripe.SubscriptionSchedulePhaseItem{{
					Quantity: 1,
					Price:    &stripe.Price{ID: "price_pro_monthly", UnitAmount: 1999},
				}},
			},
		},
	}

	got := testResolver().Resolve(sub, now)
	require.NotNil(t, got.Scheduled)
	require.Equal(t, types.PlanTierPro, *got.Scheduled)
}

func TestResolve_ScheduledEqualToCurrentKeepsSignalDropsValue(t *testing.T) {
	now := time.Now()
	sub := subWithItems(&stripe.SubscriptionItem{
		Quantity: 1,
		Price:    &stripe.Price{ID: "price_plus_monthly", UnitAmount: 999},
	})
	sub.Schedule = &stripe.SubscriptionSchedule{
		Phases: []*stripe.SubscriptionSchedulePhase{{
			StartDate: now.Add(24 * time.Hour).Unix(),
			Items: []*stripe.SubscriptionSchedulePhaseItem{{
				Quantity: 1,
				Price:    &stripe.Price{ID: "price_plus_monthly", UnitAmount: 999},
			}},
		}},
	}

	got := testResolver().Resolve(sub, now)
	require.NotNil(t, got.Current)
	require.Equal(t, types.PlanTierPlus, *got.Current)
	require.Nil(t, got.Scheduled)
	require.Empty(t, got.ScheduledPriceID)
	require.True(t, got.ScheduleSignal)
}
