package handlers

import (
	"github.com/reelcrate/reelcrate/internal/app/service/statistics"
	"github.com/reelcrate/reelcrate/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespUserSubscriptions wraps UserSubscriptionsResponse in the standard envelope.
type RespUserSubscriptions struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    UserSubscriptionsResponse `json:"data"`
}

// RespPlanStatistic wraps PlanStatisticResponse in the standard envelope.
type RespPlanStatistic struct {
	Code    response.APIResponseCode         `json:"code"`
	Message string                           `json:"message"`
	Data    statistics.PlanStatisticResponse `json:"data"`
}
