package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/reelcrate/reelcrate/internal/app/service/billing"
	cfgpkg "github.com/reelcrate/reelcrate/pkg/config"
	"github.com/reelcrate/reelcrate/pkg/logctx"
)

// Stripe caps event payloads well below this; the reader bound exists so a
// misbehaving client cannot buffer unbounded bodies.
const maxWebhookBody = 1 << 20

// @Summary      Stripe Webhook
// @Description  Handles Stripe billing lifecycle events. The raw body must carry a valid Stripe-Signature header.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  handlers.WebhookAck
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/billing/webhook/stripe [post]
// ApiStripeWebhook verifies the signature, then runs the reconciliation
// pipeline. A 5xx answer makes Stripe retry delivery; idempotency at the
// ledger and upsert layers makes those retries safe.
func ApiStripeWebhook(svc *billing.Service, cfg *cfgpkg.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, svc.Logger())

		if !cfg.Billing.Configured() {
			log.Errorw("webhook_stripe_unconfigured")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "billing is not configured"})
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}

		event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), cfg.Billing.StripeWebhookSecret)
		if err != nil {
			log.Warnw("webhook_stripe_bad_signature", "err", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}

		log.Infow("webhook_stripe_received", "event_id", event.ID, "event_type", event.Type)

		duplicate, err := svc.HandleEvent(c.Request.Context(), event)
		if err != nil {
			log.Errorw("webhook_stripe_handle_error", "event_id", event.ID, "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "event processing failed"})
			return
		}

		ack := WebhookAck{Received: true}
		if duplicate {
			ack.Duplicate = true
		}
		c.JSON(http.StatusOK, ack)
	}
}

// WebhookAck is the acknowledgment body the provider expects.
type WebhookAck struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

func RegisterBillingWebhookRoutes(r gin.IRouter, svc *billing.Service, cfg *cfgpkg.Config) {
	r.POST("/webhook/stripe", ApiStripeWebhook(svc, cfg))
}
