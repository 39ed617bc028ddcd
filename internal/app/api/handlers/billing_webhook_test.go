package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reelcrate/reelcrate/internal/app/service/billing"
	cfgpkg "github.com/reelcrate/reelcrate/pkg/config"
)

func webhookRouter(cfg *cfgpkg.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := billing.NewService(cfg, nil, zap.NewNop().Sugar(), nil, nil, nil, nil)
	r := gin.New()
	RegisterBillingWebhookRoutes(r.Group("/api/v1/billing"), svc, cfg)
	return r
}

func TestApiStripeWebhook_UnconfiguredReturns503(t *testing.T) {
	r := webhookRouter(&cfgpkg.Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook/stripe", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestApiStripeWebhook_BadSignatureReturns400(t *testing.T) {
	cfg := &cfgpkg.Config{Billing: cfgpkg.BillingConfig{
		StripeSecretKey:     "sk_test_123",
		StripeWebhookSecret: "whsec_test_123",
	}}
	r := webhookRouter(cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook/stripe", bytes.NewReader([]byte(`{"id":"evt_1"}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid signature")
}
