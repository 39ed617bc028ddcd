package models

import (
	"time"

	"github.com/reelcrate/reelcrate/pkg/types"
)

// SubscriptionDailySnapshot is a daily copy of a user's current subscription
// state for analytics.
type SubscriptionDailySnapshot struct {
	ID                     string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID                 string                   `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:idx_user_id_snapshot_date,priority:1" json:"user_id"`
	ProviderSubscriptionID string                   `gorm:"column:provider_subscription_id;type:varchar(128)" json:"provider_subscription_id"`
	Plan                   types.PlanTier           `gorm:"column:plan;type:varchar(16);not null" json:"plan"`
	PendingPlan            *types.PlanTier          `gorm:"column:pending_plan;type:varchar(16);default:null" json:"pending_plan"`
	Status                 types.SubscriptionStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CurrentPeriodEnd       *time.Time               `gorm:"column:current_period_end;default:null" json:"current_period_end"`
	SnapshotDate           string                   `gorm:"column:snapshot_date;uniqueIndex:idx_user_id_snapshot_date,priority:2" json:"snapshot_date"`
	SnapshotCreatedAt      time.Time                `gorm:"column:snapshot_created_at" json:"snapshot_created_at"`
}

func (SubscriptionDailySnapshot) TableName() string {
	return "subscription_daily_snapshot"
}
