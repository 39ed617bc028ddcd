package billing

import (
	"context"
	"errors"
	"net/http"

	"github.com/stripe/stripe-go/v82"

	"github.com/reelcrate/reelcrate/pkg/logctx"
	"github.com/reelcrate/reelcrate/pkg/types"
)

// enforceSingleActive cancels every other non-terminal subscription the
// provider still holds for the customer. Checkout flows can create more than
// one provider subscription for the same customer under retries or user
// double-clicks; only one must remain billable. A "resource already gone"
// answer from the provider counts as success, which makes the enforcer
// idempotent by construction.
func (s *Service) enforceSingleActive(ctx context.Context, providerCustomerID, keepSubscriptionID string) error {
	if providerCustomerID == "" {
		return nil
	}
	log := logctx.FromCtx(ctx, s.log)

	subs, err := s.provider.ListSubscriptions(ctx, providerCustomerID)
	if err != nil {
		return err
	}
	for _, other := range subs {
		if other == nil || other.ID == keepSubscriptionID {
			continue
		}
		if !types.SubscriptionStatus(other.Status).IsActiveLike() {
			continue
		}
		if err := s.provider.CancelSubscription(ctx, other.ID); err != nil {
			if isResourceGone(err) {
				log.Infow("duplicate_subscription_already_gone",
					"provider_customer_id", providerCustomerID,
					"provider_subscription_id", other.ID)
				continue
			}
			return err
		}
		log.Warnw("duplicate_subscription_canceled",
			"provider_customer_id", providerCustomerID,
			"provider_subscription_id", other.ID,
			"kept_subscription_id", keepSubscriptionID)
	}
	return nil
}

func isResourceGone(err error) bool {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		return sErr.Code == stripe.ErrorCodeResourceMissing || sErr.HTTPStatusCode == http.StatusNotFound
	}
	return false
}
