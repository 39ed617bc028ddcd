package models

import (
	"time"

	"github.com/reelcrate/reelcrate/pkg/types"
)

// Profile carries the user-facing entitlement. Only the plan propagator
// mutates the plan fields; request handlers outside the reconciliation
// pipeline never write them directly.
type Profile struct {
	ID       string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID   string `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex" json:"user_id"`
	Username string `gorm:"column:username;type:varchar(64);index" json:"username"`
	// Plan is what the user actually receives today.
	Plan types.PlanTier `gorm:"column:plan;type:varchar(16);not null;default:'free'" json:"plan"`
	// NextPlan and PlanExpiresAt mirror the pending subscription fields for UI display.
	NextPlan      *types.PlanTier `gorm:"column:next_plan;type:varchar(16);default:null" json:"next_plan"`
	PlanExpiresAt *time.Time      `gorm:"column:plan_expires_at;default:null" json:"plan_expires_at"`
	// CustomerID is the provider-side customer id linked to this user.
	CustomerID string    `gorm:"column:customer_id;type:varchar(128);index" json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profile"
}
