package billing

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/reelcrate/reelcrate/internal/models"
)

// ListUserSubscriptions returns every subscription row the user owns, newest
// first. Rows are never hard-deleted, so this is the full billing history.
func (s *Service) ListUserSubscriptions(ctx context.Context, userID string) ([]*models.Subscription, error) {
	var rows []*models.Subscription
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return rows, nil
}

// GetProfile returns the user's entitlement record, or nil when none exists.
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &profile, nil
}
