package models

import "time"

// WebhookEvent is one idempotency ledger entry per fully-processed provider
// event. A row is created only after every downstream side effect committed;
// existence of the row is the sole gate against reprocessing.
type WebhookEvent struct {
	ID        string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EventID   string    `gorm:"column:event_id;type:varchar(128);not null;uniqueIndex" json:"event_id"`
	EventType string    `gorm:"column:event_type;type:varchar(128);not null" json:"event_type"`
	CreatedAt time.Time `json:"created_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_event"
}
