package models

import (
	"time"

	"github.com/reelcrate/reelcrate/pkg/types"

	"gorm.io/datatypes"
)

// SubscriptionLog records changes to subscription rows.
// Use case: troubleshooting out-of-order or duplicate deliveries.
type SubscriptionLog struct {
	ID                     string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID                 string `gorm:"column:user_id;type:varchar(64);index:idx_user_id_id,priority:1;not null"`
	ProviderSubscriptionID string `gorm:"column:provider_subscription_id;type:varchar(128);not null"`
	// Reason is the change reason.
	Reason types.SubscriptionChangeReason `gorm:"column:reason;type:varchar(64);not null"`
	// Before stores the row before the change in JSON format.
	Before datatypes.JSONType[*Subscription] `gorm:"column:before;type:jsonb;default:'null'"`
	// After stores the row after the change in JSON format.
	After datatypes.JSONType[*Subscription] `gorm:"column:after;type:jsonb;default:'null'"`
	// Extra stores additional context such as the provider event id and type.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'"`
	CreatedAt time.Time
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
