package eventledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/reelcrate/reelcrate/internal/models"
	"github.com/reelcrate/reelcrate/pkg/tool"
)

// ErrAlreadyProcessed signals that another delivery of the same event won the
// race. Callers treat it as a successful no-op.
var ErrAlreadyProcessed = errors.New("event already processed")

// Service is the idempotency ledger. The unique index on event_id is the sole
// concurrency guard against double-processing; no in-process state is kept so
// the service is safe across multiple instances.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// HasProcessed reports whether the event's side effects already committed.
func (s *Service) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("event_id = ?", eventID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check webhook event: %w", err)
	}
	return count > 0, nil
}

// MarkProcessed records the event after every downstream step succeeded.
// A duplicate insert surfaces as ErrAlreadyProcessed, not a crash.
func (s *Service) MarkProcessed(ctx context.Context, eventID, eventType string) error {
	entry := &models.WebhookEvent{
		ID:        tool.GenerateUUIDV7(),
		EventID:   eventID,
		EventType: eventType,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyProcessed
		}
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	return nil
}

var Module = fx.Options(
	fx.Provide(New),
)
