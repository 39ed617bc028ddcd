package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/reelcrate/reelcrate/internal/models"
	"github.com/reelcrate/reelcrate/pkg/logctx"
	"github.com/reelcrate/reelcrate/pkg/tool"
	"github.com/reelcrate/reelcrate/pkg/types"
)

// propagateProfilePlan recomputes the user-facing entitlement from the
// now-consistent subscription row, not from the raw event, so the two stores
// cannot drift. Cache invalidation failure is logged only; the stored plan
// matters more than immediate UI freshness.
func (s *Service) propagateProfilePlan(ctx context.Context, userID string) error {
	log := logctx.FromCtx(ctx, s.log)

	var current models.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_current", userID).
		First(&current).Error
	hasCurrent := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to load current subscription: %w", err)
	}

	plan := types.PlanTierFree
	var nextPlan *types.PlanTier
	var expiresAt *time.Time
	var customerID string
	if hasCurrent && current.Live() {
		plan = current.Plan
		customerID = current.ProviderCustomerID
		if current.PendingPlan != nil {
			nextPlan = current.PendingPlan
			expiresAt = current.CurrentPeriodEnd
		}
	}

	profile, err := s.upsertProfile(ctx, userID, plan, nextPlan, expiresAt, customerID)
	if err != nil {
		return err
	}

	log.Infow("profile_plan_propagated",
		"user_id", userID,
		"plan", plan,
		"next_plan", nextPlan,
		"plan_expires_at", expiresAt)

	if err := s.cache.InvalidatePages(ctx, userPages(profile.Username)); err != nil {
		log.Warnw("page_cache_invalidation_failed", "user_id", userID, "err", err)
	}
	return nil
}

func (s *Service) upsertProfile(ctx context.Context, userID string, plan types.PlanTier, nextPlan *types.PlanTier, expiresAt *time.Time, customerID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load profile: %w", err)
		}
		profile = models.Profile{
			ID:     tool.GenerateUUIDV7(),
			UserID: userID,
		}
	}

	profile.Plan = plan
	profile.NextPlan = nextPlan
	profile.PlanExpiresAt = expiresAt
	if customerID != "" {
		profile.CustomerID = customerID
	}

	if err := s.db.WithContext(ctx).Save(&profile).Error; err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return &profile, nil
}

// userPages lists the rendered pages whose content depends on the user's
// entitlement: dashboard, billing settings, and the public profile and
// collection pages.
func userPages(username string) []string {
	pages := []string{
		"/dashboard",
		"/settings/billing",
	}
	if username != "" {
		pages = append(pages,
			"/u/"+username,
			"/u/"+username+"/collections",
		)
	}
	return pages
}
