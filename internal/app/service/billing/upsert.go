package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/reelcrate/reelcrate/internal/models"
	"github.com/reelcrate/reelcrate/pkg/logctx"
	"github.com/reelcrate/reelcrate/pkg/tool"
	"github.com/reelcrate/reelcrate/pkg/types"
)

// findExisting resolves the single row to mutate. Candidate keys in order:
// (user_id, provider_subscription_id), then the local row id the provider
// carries in metadata — identifiers can shift across migrations, and the
// local id survives provider-side customer merges. Returns nil when no row
// matches.
func (s *Service) findExisting(ctx context.Context, tx *gorm.DB, userID, providerSubscriptionID, localID string) (*models.Subscription, error) {
	var row models.Subscription
	err := tx.WithContext(ctx).
		Where("user_id = ? AND provider_subscription_id = ?", userID, providerSubscriptionID).
		First(&row).Error
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load subscription by provider id: %w", err)
	}

	if localID == "" {
		return nil, nil
	}
	// the local id arrives in provider metadata; a non-uuid value would make
	// postgres reject the comparison against the uuid column and poison the
	// event across every retry
	if _, err := uuid.Parse(localID); err != nil {
		return nil, nil
	}
	err = tx.WithContext(ctx).Where("id = ?", localID).First(&row).Error
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load subscription by local id: %w", err)
	}
	return nil, nil
}

// upsertSubscription writes the row and then exclusively flags it current.
// The two-step sequence exists because a user may own several historical
// rows and exactly one must be current at a time. An insert conflict means a
// concurrent webhook for the same subscription won the race; it is resolved
// by re-reading and retrying as an update, never surfaced to the caller.
func (s *Service) upsertSubscription(ctx context.Context, row *models.Subscription, localID string, stored *models.Subscription, reason types.SubscriptionChangeReason, eventID string) (*models.Subscription, error) {
	var before *models.Subscription

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing := stored
		// re-resolve inside the transaction; the pre-read may be stale
		fresh, err := s.findExisting(ctx, tx, row.UserID, row.ProviderSubscriptionID, localID)
		if err != nil {
			return err
		}
		if fresh != nil {
			existing = fresh
		}

		if existing != nil {
			cp := *existing
			before = &cp
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
			if err := tx.WithContext(ctx).Save(row).Error; err != nil {
				return fmt.Errorf("failed to update subscription: %w", err)
			}
		} else {
			winner, err := s.insertSubscription(ctx, tx, row)
			if err != nil {
				return err
			}
			before = winner
		}

		return s.markCurrent(ctx, tx, row)
	})
	if err != nil {
		return nil, err
	}

	s.logSubscriptionChange(ctx, before, row, reason, eventID)
	return row, nil
}

// insertSubscription creates the row, recovering from a lost insert race by
// retrying as an update of the winning row. The savepoint is required: a
// unique-violation aborts the surrounding postgres transaction, and without
// rolling back to the savepoint every statement after the failed insert would
// error too. Returns the pre-image of the winning row when the race was lost,
// nil when the insert went through.
func (s *Service) insertSubscription(ctx context.Context, tx *gorm.DB, row *models.Subscription) (*models.Subscription, error) {
	row.ID = tool.GenerateUUIDV7()
	if err := tx.SavePoint("subscription_insert").Error; err != nil {
		return nil, fmt.Errorf("failed to create savepoint: %w", err)
	}
	err := tx.WithContext(ctx).Create(row).Error
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("failed to insert subscription: %w", err)
	}
	if err := tx.RollbackTo("subscription_insert").Error; err != nil {
		return nil, fmt.Errorf("failed to roll back to savepoint: %w", err)
	}
	var winner models.Subscription
	if err := tx.WithContext(ctx).
		Where("user_id = ? AND provider_subscription_id = ?", row.UserID, row.ProviderSubscriptionID).
		First(&winner).Error; err != nil {
		return nil, fmt.Errorf("failed to re-read subscription after conflict: %w", err)
	}
	cp := winner
	row.ID = winner.ID
	row.CreatedAt = winner.CreatedAt
	if err := tx.WithContext(ctx).Save(row).Error; err != nil {
		return nil, fmt.Errorf("failed to update subscription after conflict: %w", err)
	}
	return &cp, nil
}

// markCurrent sets is_current from the row's status and clears the flag on
// every other row of the same user when this one takes it.
func (s *Service) markCurrent(ctx context.Context, tx *gorm.DB, row *models.Subscription) error {
	row.IsCurrent = row.Status.IsActiveLike()
	if err := tx.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", row.ID).
		Update("is_current", row.IsCurrent).Error; err != nil {
		return fmt.Errorf("failed to set is_current: %w", err)
	}
	if !row.IsCurrent {
		return nil
	}
	if err := tx.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ? AND id <> ? AND is_current", row.UserID, row.ID).
		Update("is_current", false).Error; err != nil {
		return fmt.Errorf("failed to clear is_current on sibling rows: %w", err)
	}
	return nil
}

// logSubscriptionChange writes the change log asynchronously; errors are
// logged but not returned.
func (s *Service) logSubscriptionChange(ctx context.Context, before, after *models.Subscription, reason types.SubscriptionChangeReason, eventID string) {
	go func() {
		extra := datatypes.JSONMap{}
		if eventID != "" {
			extra["event_id"] = eventID
		}
		entry := &models.SubscriptionLog{
			ID:                     tool.GenerateUUIDV7(),
			UserID:                 after.UserID,
			ProviderSubscriptionID: after.ProviderSubscriptionID,
			Reason:                 reason,
			Before:                 datatypes.NewJSONType(before),
			After:                  datatypes.NewJSONType(after),
			Extra:                  extra,
		}
		if err := s.db.Save(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save subscription log: %v", err)
		}
	}()
}
