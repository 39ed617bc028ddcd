package stripeapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/reelcrate/reelcrate/pkg/config"
)

// Client wraps the Stripe SDK behind an explicitly injected handle instead of
// the SDK's global key.
type Client struct {
	api *client.API
	log *zap.SugaredLogger
}

func New(cfg *cfgpkg.Config, log *zap.SugaredLogger) *Client {
	api := &client.API{}
	api.Init(cfg.Billing.StripeSecretKey, nil)
	return &Client{api: api, log: log}
}

// subscriptionExpand lists the sub-objects plan resolution needs on every
// fetch: line items down to the product, the schedule phases, and the owning
// customer. pending_update rides along on the subscription itself.
var subscriptionExpand = []string{
	"items.data.price.product",
	"schedule",
	"customer",
}

// GetSubscription fetches the authoritative, fully-expanded subscription.
func (c *Client) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{Params: stripe.Params{Context: ctx}}
	for _, e := range subscriptionExpand {
		params.AddExpand(e)
	}
	sub, err := c.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: get subscription %s: %w", id, err)
	}
	return sub, nil
}

// ListSubscriptions returns all subscriptions the provider holds for the
// customer, regardless of status.
func (c *Client) ListSubscriptions(ctx context.Context, customerID string) ([]*stripe.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		ListParams: stripe.ListParams{Context: ctx},
		Customer:   stripe.String(customerID),
		Status:     stripe.String("all"),
	}
	var subs []*stripe.Subscription
	iter := c.api.Subscriptions.List(params)
	for iter.Next() {
		subs = append(subs, iter.Subscription())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe: list subscriptions for %s: %w", customerID, err)
	}
	return subs, nil
}

// CancelSubscription cancels the subscription immediately. Callers decide how
// to treat a resource_missing error, see IsResourceMissing.
func (c *Client) CancelSubscription(ctx context.Context, id string) error {
	_, err := c.api.Subscriptions.Cancel(id, &stripe.SubscriptionCancelParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return fmt.Errorf("stripe: cancel subscription %s: %w", id, err)
	}
	return nil
}

// IsResourceMissing reports whether err means the provider object is already
// gone.
func IsResourceMissing(err error) bool {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		return sErr.Code == stripe.ErrorCodeResourceMissing || sErr.HTTPStatusCode == http.StatusNotFound
	}
	return false
}

var Module = fx.Options(
	fx.Provide(New),
)
