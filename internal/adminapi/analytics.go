package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/supplychain/internal/analytics"
	"github.com/talkincode/supplychain/internal/webserver"
)

// registerAnalyticsRoutes registers the decision service proxy endpoints
func registerAnalyticsRoutes() {
	webserver.ApiPOST("/analytics/best-buy-date", bestBuyDate)
	webserver.ApiPOST("/analytics/daily-decision", dailyDecision)
	webserver.ApiPOST("/analytics/optimized-decision", optimizedDecision)
}

// bestBuyDate asks the decision service for the most profitable purchase date
// @Summary best buy date
// @Tags Analytics
// @Param request body analytics.BuyTimingRequest true "request"
// @Success 200 {object} Response
// @Router /api/v1/analytics/best-buy-date [post]
func bestBuyDate(c echo.Context) error {
	var req analytics.BuyTimingRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	res, err := GetAppContext(c).Analytics().BestBuyDate(c.Request().Context(), req)
	if err != nil {
		return handleServiceError(c, err, http.StatusBadGateway, "ANALYTICS_UNAVAILABLE", "Decision service unavailable")
	}
	return ok(c, res)
}

// dailyDecision asks whether to buy today
// @Summary daily decision
// @Tags Analytics
// @Param request body analytics.DailyDecisionRequest true "request"
// @Success 200 {object} Response
// @Router /api/v1/analytics/daily-decision [post]
func dailyDecision(c echo.Context) error {
	var req analytics.DailyDecisionRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	res, err := GetAppContext(c).Analytics().DailyDecision(c.Request().Context(), req)
	if err != nil {
		return handleServiceError(c, err, http.StatusBadGateway, "ANALYTICS_UNAVAILABLE", "Decision service unavailable")
	}
	return ok(c, res)
}

// optimizedDecision runs the scenario-based restock decision
// @Summary optimized decision
// @Tags Analytics
// @Param request body analytics.OptimizedDecisionRequest true "request"
// @Success 200 {object} Response
// @Router /api/v1/analytics/optimized-decision [post]
func optimizedDecision(c echo.Context) error {
	var req analytics.OptimizedDecisionRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	res, err := GetAppContext(c).Analytics().OptimizedDecision(c.Request().Context(), req)
	if err != nil {
		return handleServiceError(c, err, http.StatusBadGateway, "ANALYTICS_UNAVAILABLE", "Decision service unavailable")
	}
	return ok(c, res)
}
