package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanTierRankOrdering(t *testing.T) {
	require.Less(t, PlanTierFree.Rank(), PlanTierPlus.Rank())
	require.Less(t, PlanTierPlus.Rank(), PlanTierPro.Rank())
	require.Equal(t, -1, PlanTier("enterprise").Rank())
}

func TestParsePlanTier(t *testing.T) {
	cases := []struct {
		in   string
		want PlanTier
		ok   bool
	}{
		{"free", PlanTierFree, true},
		{"Plus", PlanTierPlus, true},
		{"  PRO  ", PlanTierPro, true},
		{"gold", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParsePlanTier(tc.in)
		require.Equal(t, tc.ok, ok, "input %q", tc.in)
		require.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestSubscriptionStatusClassification(t *testing.T) {
	activeLike := []SubscriptionStatus{
		SubscriptionStatusActive,
		SubscriptionStatusTrialing,
		SubscriptionStatusPastDue,
		SubscriptionStatusUnpaid,
		SubscriptionStatusIncomplete,
	}
	for _, s := range activeLike {
		require.True(t, s.IsActiveLike(), "status %s", s)
		require.False(t, s.IsTerminal(), "status %s", s)
	}

	terminal := []SubscriptionStatus{
		SubscriptionStatusCanceled,
		SubscriptionStatusIncompleteExpired,
	}
	for _, s := range terminal {
		require.True(t, s.IsTerminal(), "status %s", s)
		require.False(t, s.IsActiveLike(), "status %s", s)
	}

	// paused is neither billable nor terminal
	require.False(t, SubscriptionStatusPaused.IsActiveLike())
	require.False(t, SubscriptionStatusPaused.IsTerminal())
}
