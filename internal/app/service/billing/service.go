package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/reelcrate/reelcrate/internal/app/service/eventledger"
	"github.com/reelcrate/reelcrate/internal/app/service/statistics"
	"github.com/reelcrate/reelcrate/internal/models"
	"github.com/reelcrate/reelcrate/pkg/config"
	"github.com/reelcrate/reelcrate/pkg/logctx"
	"github.com/reelcrate/reelcrate/pkg/metrics"
	"github.com/reelcrate/reelcrate/pkg/types"
)

// Event types the reconciliation pipeline understands. Anything else is
// acknowledged without side effects so new provider event types cannot break
// delivery.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventCheckoutCompleted   = "checkout.session.completed"
	EventCustomerCreated     = "customer.created"
)

// metadata keys consulted when mapping provider objects to local records.
const (
	metadataUserIDKey  = "user_id"
	metadataLocalIDKey = "local_subscription_id"
)

// ErrUnresolvableUser means the event carries no usable mapping to a local
// user. Such events are logged and skipped, not failed: they are usually test
// fixtures or customer objects with no local counterpart yet.
var ErrUnresolvableUser = errors.New("no local user resolvable from event")

// ProviderClient is the payment-provider surface the pipeline needs. Calls
// are synchronous and sequential; correctness depends on read-then-write
// ordering per subscription.
type ProviderClient interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]*stripe.Subscription, error)
	CancelSubscription(ctx context.Context, id string) error
}

// PageCacheInvalidator drops rendered pages for a user after their
// entitlement changed. Failures are logged, never fatal.
type PageCacheInvalidator interface {
	InvalidatePages(ctx context.Context, paths []string) error
}

// EventLedger is the idempotency gate consulted before dispatch and written
// after every side effect committed. MarkProcessed reports a lost race as
// eventledger.ErrAlreadyProcessed.
type EventLedger interface {
	HasProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string) error
}

type Service struct {
	cfg      *config.Config
	db       *gorm.DB
	log      *zap.SugaredLogger
	ledger   EventLedger
	provider ProviderClient
	cache    PageCacheInvalidator
	stats    *statistics.Service
	resolver *planResolver
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, ledger EventLedger, provider ProviderClient, cache PageCacheInvalidator, stats *statistics.Service) *Service {
	return &Service{
		cfg:      cfg,
		db:       db,
		log:      log,
		ledger:   ledger,
		provider: provider,
		cache:    cache,
		stats:    stats,
		resolver: newPlanResolver(cfg),
	}
}

// Logger exposes the service logger so handlers can enrich it per request.
func (s *Service) Logger() *zap.SugaredLogger { return s.log }

// HandleEvent runs the full pipeline for one provider event: idempotency
// check, typed dispatch, and the processed mark once every side effect has
// committed. duplicate is true when the ledger short-circuited the event.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) (duplicate bool, err error) {
	log := logctx.FromCtx(ctx, s.log)

	seen, err := s.ledger.HasProcessed(ctx, event.ID)
	if err != nil {
		return false, err
	}
	if seen {
		log.Infow("webhook_event_duplicate", "event_id", event.ID, "event_type", event.Type)
		metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), "duplicate").Inc()
		return true, nil
	}

	switch string(event.Type) {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		err = s.handleSubscriptionEvent(ctx, event)
	case EventCheckoutCompleted:
		err = s.handleCheckoutCompleted(ctx, event)
	case EventCustomerCreated:
		err = s.handleCustomerCreated(ctx, event)
	default:
		log.Infow("webhook_event_ignored", "event_id", event.ID, "event_type", event.Type)
		metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), "ignored").Inc()
	}
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), "failed").Inc()
		return false, err
	}

	if err := s.ledger.MarkProcessed(ctx, event.ID, string(event.Type)); err != nil {
		if errors.Is(err, eventledger.ErrAlreadyProcessed) {
			// a racing delivery got there first; our side effects are
			// idempotent, so this is a successful no-op
			metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), "duplicate").Inc()
			return true, nil
		}
		return false, err
	}
	metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), "processed").Inc()
	return false, nil
}

func (s *Service) handleSubscriptionEvent(ctx context.Context, event stripe.Event) error {
	var payload stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &payload); err != nil {
		return fmt.Errorf("failed to decode subscription event %s: %w", event.ID, err)
	}
	if payload.ID == "" {
		return fmt.Errorf("subscription event %s carries no subscription id", event.ID)
	}

	// The event body may be stale; fetch the authoritative expanded object.
	sub, err := s.provider.GetSubscription(ctx, payload.ID)
	if err != nil {
		return err
	}
	return s.Reconcile(ctx, sub, "", types.SubscriptionChangeReasonProviderEvent, event.ID)
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to decode checkout session event %s: %w", event.ID, err)
	}
	if session.Subscription == nil || session.Subscription.ID == "" {
		// one-time payment session, nothing for the subscription pipeline
		logctx.FromCtx(ctx, s.log).Infow("checkout_session_without_subscription", "event_id", event.ID, "session_id", session.ID)
		return nil
	}

	sub, err := s.provider.GetSubscription(ctx, session.Subscription.ID)
	if err != nil {
		return err
	}
	return s.Reconcile(ctx, sub, session.ClientReferenceID, types.SubscriptionChangeReasonCheckout, event.ID)
}

// handleCustomerCreated links the provider customer id onto the local profile.
// It never changes entitlement.
func (s *Service) handleCustomerCreated(ctx context.Context, event stripe.Event) error {
	var cust stripe.Customer
	if err := json.Unmarshal(event.Data.Raw, &cust); err != nil {
		return fmt.Errorf("failed to decode customer event %s: %w", event.ID, err)
	}
	userID := cust.Metadata[metadataUserIDKey]
	if userID == "" {
		logctx.FromCtx(ctx, s.log).Warnw("customer_without_user_metadata", "event_id", event.ID, "customer_id", cust.ID)
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Update("customer_id", cust.ID)
	if res.Error != nil {
		return fmt.Errorf("failed to link customer to profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		logctx.FromCtx(ctx, s.log).Warnw("customer_for_unknown_profile", "event_id", event.ID, "customer_id", cust.ID, "user_id", userID)
	}
	return nil
}

// ResyncSubscription re-fetches the subscription from the provider and runs
// the same reconcile path the webhook uses. Used by the admin surface when a
// delivery was missed for longer than the provider's retry window.
func (s *Service) ResyncSubscription(ctx context.Context, providerSubscriptionID string) error {
	sub, err := s.provider.GetSubscription(ctx, providerSubscriptionID)
	if err != nil {
		return err
	}
	return s.Reconcile(ctx, sub, "", types.SubscriptionChangeReasonAdminResync, "")
}

// Reconcile drives one subscription through plan resolution, pending-change
// calculation, the conflict-safe upsert, single-active enforcement and the
// profile propagation. fallbackUserID is consulted only when neither the
// subscription metadata nor a customer-linked profile identifies the user.
func (s *Service) Reconcile(ctx context.Context, sub *stripe.Subscription, fallbackUserID string, reason types.SubscriptionChangeReason, eventID string) error {
	log := logctx.FromCtx(ctx, s.log)

	userID, err := s.resolveUser(ctx, sub, fallbackUserID)
	if err != nil {
		if errors.Is(err, ErrUnresolvableUser) {
			log.Warnw("subscription_user_unresolvable",
				"provider_subscription_id", sub.ID,
				"provider_customer_id", customerID(sub),
				"event_id", eventID)
			return nil
		}
		return err
	}

	now := time.Now()
	resolved := s.resolver.Resolve(sub, now)

	row := s.buildRow(sub, userID, resolved)

	stored, err := s.findExisting(ctx, s.db, userID, sub.ID, sub.Metadata[metadataLocalIDKey])
	if err != nil {
		return err
	}

	if row.Status.IsTerminal() {
		// terminal statuses force free regardless of what resolution produced
		row.Plan = types.PlanTierFree
		row.PendingPlan = nil
	} else {
		change := applyPendingChange(resolved, sub.CancelAtPeriodEnd, stored)
		row.Plan = change.Plan
		row.PendingPlan = change.PendingPlan
	}

	saved, err := s.upsertSubscription(ctx, row, sub.Metadata[metadataLocalIDKey], stored, reason, eventID)
	if err != nil {
		return err
	}

	log.Infow("subscription_reconciled",
		"user_id", userID,
		"provider_subscription_id", sub.ID,
		"plan", saved.Plan,
		"pending_plan", saved.PendingPlan,
		"status", saved.Status,
		"is_current", saved.IsCurrent,
		"reason", reason)

	// analytics snapshot; failures never block reconciliation
	go func(snap models.Subscription) {
		if err := s.stats.SaveSubscriptionDailySnapshot(context.Background(), &snap, time.Now()); err != nil {
			s.log.Warnw("subscription_snapshot_failed", "user_id", snap.UserID, "err", err)
		}
	}(*saved)

	if saved.Live() {
		if err := s.enforceSingleActive(ctx, customerID(sub), sub.ID); err != nil {
			return err
		}
	}

	return s.propagateProfilePlan(ctx, userID)
}

// resolveUser maps the subscription to a local user: subscription metadata
// first, then the profile already linked to the customer, then the caller's
// fallback (checkout client_reference_id).
func (s *Service) resolveUser(ctx context.Context, sub *stripe.Subscription, fallbackUserID string) (string, error) {
	if uid := sub.Metadata[metadataUserIDKey]; uid != "" {
		return uid, nil
	}
	if cid := customerID(sub); cid != "" {
		var profile models.Profile
		err := s.db.WithContext(ctx).Where("customer_id = ?", cid).First(&profile).Error
		if err == nil {
			return profile.UserID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("failed to look up profile by customer: %w", err)
		}
	}
	if fallbackUserID != "" {
		return fallbackUserID, nil
	}
	return "", ErrUnresolvableUser
}

// buildRow maps provider state onto a local row. Plan fields are filled by
// the caller after the pending-change calculation.
func (s *Service) buildRow(sub *stripe.Subscription, userID string, resolved resolvedPlans) *models.Subscription {
	metaBytes, _ := json.Marshal(sub.Metadata)

	row := &models.Subscription{
		UserID:                 userID,
		ProviderCustomerID:     customerID(sub),
		ProviderSubscriptionID: sub.ID,
		Status:                 types.SubscriptionStatus(sub.Status),
		CancelAt:               unixPtr(sub.CancelAt),
		EndedAt:                unixPtr(sub.EndedAt),
		PriceID:                resolved.CurrentPriceID,
		PendingPriceID:         resolved.ScheduledPriceID,
		Metadata:               datatypes.JSON(metaBytes),
	}
	if item := newestItem(sub); item != nil {
		row.CurrentPeriodStart = unixPtr(item.CurrentPeriodStart)
		row.CurrentPeriodEnd = unixPtr(item.CurrentPeriodEnd)
	}
	return row
}

func customerID(sub *stripe.Subscription) string {
	if sub == nil || sub.Customer == nil {
		return ""
	}
	return sub.Customer.ID
}

func unixPtr(v int64) *time.Time {
	if v == 0 {
		return nil
	}
	t := time.Unix(v, 0).UTC()
	return &t
}
