package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/supplychain/internal/domain"
	"github.com/talkincode/supplychain/internal/escrow"
	"github.com/talkincode/supplychain/internal/webserver"
)

type escrowOrdersView struct {
	Owner       string         `json:"owner"`
	Orders      []domain.Order `json:"orders"`
	LastRefresh *time.Time     `json:"last_refresh,omitempty"`
	RefreshErr  string         `json:"refresh_error,omitempty"`
}

// registerEscrowRoutes registers escrow order endpoints
func registerEscrowRoutes() {
	webserver.ApiGET("/escrow/orders", listEscrowOrders)
	webserver.ApiPOST("/escrow/orders", createEscrowOrder)
	webserver.ApiPOST("/escrow/orders/refresh", refreshEscrowOrders)
	webserver.ApiGET("/escrow/orders/:id", getEscrowOrder)
	webserver.ApiPOST("/escrow/orders/:id/release", releaseEscrowOrder)
	webserver.ApiGET("/escrow/metadata", listEscrowMetadata)
	webserver.ApiGET("/escrow/logs", listEscrowLogs)
}

func escrowView(t *escrow.Tracker) escrowOrdersView {
	view := escrowOrdersView{Owner: t.Owner(), Orders: t.Orders()}
	at, err := t.LastRefresh()
	if !at.IsZero() {
		view.LastRefresh = &at
	}
	if err != nil {
		view.RefreshErr = err.Error()
	}
	return view
}

// listEscrowOrders returns the tracked pending orders with their countdowns
// @Summary list escrow orders
// @Tags Escrow
// @Success 200 {object} Response
// @Router /api/v1/escrow/orders [get]
func listEscrowOrders(c echo.Context) error {
	return ok(c, escrowView(GetAppContext(c).Tracker()))
}

// refreshEscrowOrders reloads the pending orders from the ledger
// @Summary refresh escrow orders
// @Tags Escrow
// @Success 200 {object} Response
// @Router /api/v1/escrow/orders/refresh [post]
func refreshEscrowOrders(c echo.Context) error {
	t := GetAppContext(c).Tracker()
	if err := t.Refresh(c.Request().Context()); err != nil {
		return handleServiceError(c, err, http.StatusBadGateway, "CHAIN_ERROR", "Failed to load escrow orders")
	}
	return ok(c, escrowView(t))
}

// getEscrowOrder returns one tracked order
// @Summary get escrow order
// @Tags Escrow
// @Param id path string true "order id"
// @Success 200 {object} Response
// @Router /api/v1/escrow/orders/{id} [get]
func getEscrowOrder(c echo.Context) error {
	order, found := GetAppContext(c).Tracker().Order(c.Param("id"))
	if !found {
		return handleServiceError(c, escrow.ErrOrderNotTracked, http.StatusNotFound, "ORDER_NOT_FOUND", "Escrow order not found")
	}
	return ok(c, order)
}

// createEscrowOrder opens an escrow-backed purchase order
// @Summary create escrow order
// @Tags Escrow
// @Param order body escrow.PurchaseRequest true "order"
// @Success 201 {object} Response
// @Router /api/v1/escrow/orders [post]
func createEscrowOrder(c echo.Context) error {
	var req escrow.PurchaseRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse escrow order", err.Error())
	}
	req.StoreAddress = strings.TrimSpace(req.StoreAddress)
	res, err := GetAppContext(c).Escrow().CreateOrder(c.Request().Context(), req)
	if err != nil {
		return handleServiceError(c, err, http.StatusBadGateway, "CHAIN_ERROR", "Failed to create escrow order")
	}
	return c.JSON(http.StatusCreated, Response{Data: res})
}

// releaseEscrowOrder releases the escrowed funds and credits the cached shelf placement
// @Summary release escrow order
// @Tags Escrow
// @Param id path string true "order id"
// @Success 200 {object} Response
// @Router /api/v1/escrow/orders/{id}/release [post]
func releaseEscrowOrder(c echo.Context) error {
	res, err := GetAppContext(c).Tracker().Release(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleServiceError(c, err, http.StatusBadGateway, "CHAIN_ERROR", "Failed to release escrow order")
	}
	return ok(c, res)
}

// listEscrowMetadata lists the cached shelf placements of open orders
// @Summary list escrow placements
// @Tags Escrow
// @Success 200 {object} Response
// @Router /api/v1/escrow/metadata [get]
func listEscrowMetadata(c echo.Context) error {
	metas, err := GetAppContext(c).Escrow().Metadata()
	if err != nil {
		return fail(c, http.StatusInternalServerError, "METADATA_ERROR", "Failed to read escrow placements", err.Error())
	}
	return ok(c, metas)
}

// listEscrowLogs pages the escrow audit log, or returns the log of one order
// @Summary list escrow logs
// @Tags Escrow
// @Param order_id query string false "order id"
// @Param page query int false "page number"
// @Param pageSize query int false "page size"
// @Success 200 {object} Response
// @Router /api/v1/escrow/logs [get]
func listEscrowLogs(c echo.Context) error {
	repo := GetAppContext(c).OrderLogs()
	ctx := c.Request().Context()
	if orderID := strings.TrimSpace(c.QueryParam("order_id")); orderID != "" {
		logs, err := repo.GetByOrderID(ctx, orderID)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query escrow logs", err.Error())
		}
		return ok(c, logs)
	}
	page, pageSize := parsePagination(c)
	logs, total, err := repo.List(ctx, page, pageSize)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query escrow logs", err.Error())
	}
	return paged(c, logs, total, page, pageSize)
}
