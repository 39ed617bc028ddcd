package types

// SubscriptionStatus mirrors the provider's subscription lifecycle status.
type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
)

// IsActiveLike reports whether the status keeps the paid entitlement live.
// past_due and unpaid are included so a temporary payment hiccup does not
// immediately revoke access.
func (s SubscriptionStatus) IsActiveLike() bool {
	switch s {
	case SubscriptionStatusActive,
		SubscriptionStatusTrialing,
		SubscriptionStatusPastDue,
		SubscriptionStatusUnpaid,
		SubscriptionStatusIncomplete:
		return true
	}
	return false
}

// IsTerminal reports whether the subscription can never become active again.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCanceled || s == SubscriptionStatusIncompleteExpired
}

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonProviderEvent SubscriptionChangeReason = "provider_event"
	SubscriptionChangeReasonCheckout      SubscriptionChangeReason = "checkout"
	SubscriptionChangeReasonAdminResync   SubscriptionChangeReason = "admin_resync"
	SubscriptionChangeReasonEnforcer      SubscriptionChangeReason = "enforcer"
)
