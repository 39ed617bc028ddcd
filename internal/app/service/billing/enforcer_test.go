package billing

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	subs      []*stripe.Subscription
	listErr   error
	cancelErr map[string]error
	canceled  []string
}

func (f *fakeProvider) GetSubscription(_ context.Context, id string) (*stripe.Subscription, error) {
	for _, s := range f.subs {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, &stripe.Error{Code: stripe.ErrorCodeResourceMissing, HTTPStatusCode: http.StatusNotFound}
}

func (f *fakeProvider) ListSubscriptions(_ context.Context, _ string) ([]*stripe.Subscription, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.subs, nil
}

func (f *fakeProvider) CancelSubscription(_ context.Context, id string) error {
	if err := f.cancelErr[id]; err != nil {
		return err
	}
	f.canceled = append(f.canceled, id)
	return nil
}

func enforcerService(p *fakeProvider) *Service {
	return &Service{provider: p, log: zap.NewNop().Sugar()}
}

func TestEnforceSingleActive_CancelsOtherActiveSubscriptions(t *testing.T) {
	p := &fakeProvider{subs: []*stripe.Subscription{
		{ID: "sub_keep", Status: stripe.SubscriptionStatusActive},
		{ID: "sub_dupe", Status: stripe.SubscriptionStatusActive},
		{ID: "sub_trial", Status: stripe.SubscriptionStatusTrialing},
	}}

	err := enforcerService(p).enforceSingleActive(context.Background(), "cus_1", "sub_keep")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"sub_dupe", "sub_trial"}, p.canceled)
}

func TestEnforceSingleActive_SkipsTerminalSubscriptions(t *testing.T) {
	p := &fakeProvider{subs: []*stripe.Subscription{
		{ID: "sub_keep", Status: stripe.SubscriptionStatusActive},
		{ID: "sub_old", Status: stripe.SubscriptionStatusCanceled},
		{ID: "sub_dead", Status: stripe.SubscriptionStatusIncompleteExpired},
	}}

	err := enforcerService(p).enforceSingleActive(context.Background(), "cus_1", "sub_keep")
	require.NoError(t, err)
	require.Empty(t, p.canceled)
}

func TestEnforceSingleActive_ResourceGoneTolerated(t *testing.T) {
	p := &fakeProvider{
		subs: []*stripe.Subscription{
			{ID: "sub_keep", Status: stripe.SubscriptionStatusActive},
			{ID: "sub_gone", Status: stripe.SubscriptionStatusActive},
			{ID: "sub_dupe", Status: stripe.SubscriptionStatusActive},
		},
		cancelErr: map[string]error{
			"sub_gone": &stripe.Error{Code: stripe.ErrorCodeResourceMissing, HTTPStatusCode: http.StatusNotFound},
		},
	}

	err := enforcerService(p).enforceSingleActive(context.Background(), "cus_1", "sub_keep")
	require.NoError(t, err)
	require.Equal(t, []string{"sub_dupe"}, p.canceled)
}

func TestEnforceSingleActive_OtherCancelErrorFatal(t *testing.T) {
	p := &fakeProvider{
		subs: []*stripe.Subscription{
			{ID: "sub_keep", Status: stripe.SubscriptionStatusActive},
			{ID: "sub_dupe", Status: stripe.SubscriptionStatusActive},
		},
		cancelErr: map[string]error{
			"sub_dupe": &stripe.Error{Code: stripe.ErrorCodeRateLimit, HTTPStatusCode: http.StatusTooManyRequests},
		},
	}

	err := enforcerService(p).enforceSingleActive(context.Background(), "cus_1", "sub_keep")
	require.Error(t, err)
}

func TestEnforceSingleActive_ListErrorFatal(t *testing.T) {
	p := &fakeProvider{listErr: fmt.Errorf("provider unavailable")}

	err := enforcerService(p).enforceSingleActive(context.Background(), "cus_1", "sub_keep")
	require.Error(t, err)
}

func TestEnforceSingleActive_NoCustomerIsNoop(t *testing.T) {
	p := &fakeProvider{listErr: fmt.Errorf("must not be called")}

	err := enforcerService(p).enforceSingleActive(context.Background(), "", "sub_keep")
	require.NoError(t, err)
}
