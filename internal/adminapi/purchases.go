package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/supplychain/internal/inventory"
	"github.com/talkincode/supplychain/internal/webserver"
)

// registerPurchaseRoutes registers direct purchase endpoints
func registerPurchaseRoutes() {
	webserver.ApiPOST("/purchases", createPurchase)
}

// createPurchase buys catalog goods straight onto a shelf without an escrow order
// @Summary direct purchase
// @Tags Purchase
// @Param purchase body inventory.PurchaseRequest true "purchase"
// @Success 201 {object} Response
// @Router /api/v1/purchases [post]
func createPurchase(c echo.Context) error {
	var req inventory.PurchaseRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse purchase", err.Error())
	}
	res, err := GetAppContext(c).Purchaser().Buy(c.Request().Context(), req)
	if err != nil {
		return handleServiceError(c, err, http.StatusInternalServerError, "PURCHASE_FAILED", "Failed to complete purchase")
	}
	return c.JSON(http.StatusCreated, Response{Data: res})
}
