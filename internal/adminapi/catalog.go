package adminapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/supplychain/internal/inventory"
	"github.com/talkincode/supplychain/internal/pricing"
	"github.com/talkincode/supplychain/internal/webserver"
)

// registerCatalogRoutes registers the supplier catalog endpoints
func registerCatalogRoutes() {
	webserver.ApiGET("/catalog", listCatalog)
	webserver.ApiGET("/catalog/:id", getCatalogItem)
	webserver.ApiGET("/catalog/:id/quote", quoteCatalogItem)
}

// listCatalog lists supplier items
// @Summary list catalog
// @Tags Catalog
// @Param category query string false "category filter"
// @Success 200 {object} Response
// @Router /api/v1/catalog [get]
func listCatalog(c echo.Context) error {
	items, err := GetAppContext(c).Catalog().List(c.Request().Context(), strings.TrimSpace(c.QueryParam("category")))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query catalog", err.Error())
	}
	return ok(c, items)
}

// getCatalogItem returns one supplier item with its discount tiers
// @Summary get catalog item
// @Tags Catalog
// @Param id path string true "supplier item id"
// @Success 200 {object} Response
// @Router /api/v1/catalog/{id} [get]
func getCatalogItem(c echo.Context) error {
	item, err := GetAppContext(c).Catalog().Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleServiceError(c, err, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query catalog")
	}
	return ok(c, item)
}

// quoteCatalogItem prices a quantity of a supplier item with its bulk discount
// @Summary quote catalog item
// @Tags Catalog
// @Param id path string true "supplier item id"
// @Param quantity query int true "quantity"
// @Success 200 {object} Response
// @Router /api/v1/catalog/{id}/quote [get]
func quoteCatalogItem(c echo.Context) error {
	qty, err := strconv.ParseInt(c.QueryParam("quantity"), 10, 64)
	if err != nil || qty <= 0 {
		return fail(c, http.StatusBadRequest, "INVALID_QUANTITY", "quantity must be a positive integer", nil)
	}
	item, err := GetAppContext(c).Catalog().Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleServiceError(c, err, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query catalog")
	}
	if err := inventory.CheckAvailability(item, qty); err != nil {
		return handleServiceError(c, err, http.StatusBadRequest, "VALIDATION_ERROR", "Quantity not available")
	}
	return ok(c, pricing.QuoteFor(item, qty))
}
