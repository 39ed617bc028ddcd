package statistics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/reelcrate/reelcrate/internal/models"
	"github.com/reelcrate/reelcrate/pkg/tool"
	"github.com/reelcrate/reelcrate/pkg/types"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Subscription{},
		&models.SubscriptionDailySnapshot{},
	))
	return db
}

func TestGetPlanStatistics_AllRequestedItemsReturned(t *testing.T) {
	db := testDB(t)
	svc := New(db)
	ctx := context.Background()

	seed := []*models.Subscription{
		{ID: tool.GenerateUUIDV7(), UserID: "user-1", ProviderSubscriptionID: "sub_1", Plan: types.PlanTierPlus, Status: types.SubscriptionStatusActive, IsCurrent: true},
		{ID: tool.GenerateUUIDV7(), UserID: "user-2", ProviderSubscriptionID: "sub_2", Plan: types.PlanTierPro, Status: types.SubscriptionStatusActive, IsCurrent: true},
		{ID: tool.GenerateUUIDV7(), UserID: "user-3", ProviderSubscriptionID: "sub_3", Plan: types.PlanTierPro, Status: types.SubscriptionStatusCanceled, IsCurrent: false},
	}
	for _, s := range seed {
		require.NoError(t, db.Create(s).Error)
	}
	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.SaveSubscriptionDailySnapshot(ctx, seed[0], day))
	// same user and day overwrites instead of duplicating
	require.NoError(t, svc.SaveSubscriptionDailySnapshot(ctx, seed[0], day))

	res, err := svc.GetPlanStatistics(ctx, &PlanStatisticRequest{DataItems: []*PlanStatisticDataItem{
		{ID: StatisticTypeTotalPlanCount},
		{ID: StatisticTypeDailyPlanCount},
	}})
	require.NoError(t, err)
	// every requested item must be present in the response
	require.Len(t, res.DataItems, 2)
	require.Len(t, res.DataItems[StatisticTypeTotalPlanCount], 2)
	require.Len(t, res.DataItems[StatisticTypeDailyPlanCount], 1)
}

func TestGetPlanStatistics_InvalidItemSurfacesError(t *testing.T) {
	db := testDB(t)
	svc := New(db)

	_, err := svc.GetPlanStatistics(context.Background(), &PlanStatisticRequest{DataItems: []*PlanStatisticDataItem{
		{ID: StatisticTypeTotalPlanCount},
		{ID: StatisticType("bogus")},
	}})
	require.Error(t, err)
}
