package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reelcrate/reelcrate/internal/app/service/billing"
	"github.com/reelcrate/reelcrate/internal/app/service/statistics"
	models "github.com/reelcrate/reelcrate/internal/models"
	"github.com/reelcrate/reelcrate/pkg/response"
)

// UserSubscriptionsResponse bundles every row a user owns with the
// entitlement the profile currently displays.
type UserSubscriptionsResponse struct {
	Profile       *models.Profile        `json:"profile"`
	Subscriptions []*models.Subscription `json:"subscriptions"`
}

// @Summary      Get user subscriptions
// @Description  Returns all subscription rows and the current profile entitlement for a user.
// @Tags         Admin
// @Produce      json
// @Param        user_id path string true "Local user id"
// @Success      200  {object}  handlers.RespUserSubscriptions
// @Router       /api/v1/admin/users/{user_id}/subscriptions [get]
func ApiAdminGetUserSubscriptions(svc *billing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id"))
			return
		}
		subs, err := svc.ListUserSubscriptions(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		profile, err := svc.GetProfile(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(UserSubscriptionsResponse{Profile: profile, Subscriptions: subs}))
	}
}

// @Summary      Resync subscription
// @Description  Re-fetches the subscription from the payment provider and reconciles the local record.
// @Tags         Admin
// @Produce      json
// @Param        subscription_id path string true "Provider subscription id"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/subscriptions/{subscription_id}/resync [post]
func ApiAdminResyncSubscription(svc *billing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		subID := c.Param("subscription_id")
		if subID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing subscription_id"))
			return
		}
		if err := svc.ResyncSubscription(c.Request.Context(), subID); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Plan statistics
// @Description  Returns subscriber counts by plan and daily snapshot series.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.PlanStatisticRequest true "Requested data items and filters"
// @Success      200  {object}  handlers.RespPlanStatistic
// @Router       /api/v1/admin/statistics/plans [post]
func ApiAdminPlanStatistics(stats *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.PlanStatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if len(req.DataItems) == 0 {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "no data items requested"))
			return
		}
		res, err := stats.GetPlanStatistics(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, svc *billing.Service, stats *statistics.Service) {
	r.GET("/users/:user_id/subscriptions", ApiAdminGetUserSubscriptions(svc))
	r.POST("/subscriptions/:subscription_id/resync", ApiAdminResyncSubscription(svc))
	r.POST("/statistics/plans", ApiAdminPlanStatistics(stats))
}
