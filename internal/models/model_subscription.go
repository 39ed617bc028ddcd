package models

import (
	"time"

	"github.com/reelcrate/reelcrate/pkg/types"

	"gorm.io/datatypes"
)

// Subscription is one row per provider subscription, owned by exactly one
// local user. Rows are never hard-deleted; cancellation moves Status to a
// terminal value and Plan to free so history is preserved.
type Subscription struct {
	ID     string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:idx_user_provider_subscription,priority:1" json:"user_id"`
	// ProviderCustomerID is the provider-side customer this subscription bills.
	ProviderCustomerID string `gorm:"column:provider_customer_id;type:varchar(128);index" json:"provider_customer_id"`
	// ProviderSubscriptionID is stable for the life of the provider object.
	ProviderSubscriptionID string `gorm:"column:provider_subscription_id;type:varchar(128);not null;uniqueIndex:idx_user_provider_subscription,priority:2" json:"provider_subscription_id"`
	// Plan is the currently entitled tier.
	Plan types.PlanTier `gorm:"column:plan;type:varchar(16);not null" json:"plan"`
	// PendingPlan takes effect at CurrentPeriodEnd, or nil when no change is scheduled.
	PendingPlan *types.PlanTier          `gorm:"column:pending_plan;type:varchar(16);default:null" json:"pending_plan"`
	Status      types.SubscriptionStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`

	CurrentPeriodStart *time.Time `gorm:"column:current_period_start;default:null" json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `gorm:"column:current_period_end;default:null" json:"current_period_end"`
	CancelAt           *time.Time `gorm:"column:cancel_at;default:null" json:"cancel_at"`
	EndedAt            *time.Time `gorm:"column:ended_at;default:null" json:"ended_at"`

	// IsCurrent marks the single row the user's entitlement derives from.
	// Invariant: at most one row with IsCurrent per user.
	IsCurrent bool `gorm:"column:is_current;not null;default:false;index" json:"is_current"`

	// PriceID, PendingPriceID and Metadata are diagnostic resolution inputs,
	// not authoritative by themselves.
	PriceID        string         `gorm:"column:price_id;type:varchar(128)" json:"price_id"`
	PendingPriceID string         `gorm:"column:pending_price_id;type:varchar(128)" json:"pending_price_id"`
	Metadata       datatypes.JSON `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`

	// CreatedAt is managed by GORM and records the creation time.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is managed by GORM and records the update time.
	UpdatedAt time.Time `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// Live reports whether the row's status keeps the paid entitlement active.
func (s *Subscription) Live() bool {
	return s != nil && s.Status.IsActiveLike()
}
