package adminapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/supplychain/internal/domain"
	"github.com/talkincode/supplychain/internal/inventory"
	"github.com/talkincode/supplychain/internal/pricing"
	"github.com/talkincode/supplychain/internal/webserver"
	"github.com/talkincode/supplychain/pkg/common"
	"go.uber.org/zap"
)

type storePayload struct {
	Name       string `json:"name" validate:"required,min=1,max=200"`
	ShelfCount int    `json:"shelf_count" validate:"omitempty,min=1,max=64"`
}

type shelfItemPayload struct {
	Name       string  `json:"name" validate:"required,min=1,max=200"`
	Price      float64 `json:"price" validate:"gte=0"`
	Quantity   int64   `json:"quantity" validate:"required,min=1"`
	SupplierID int64   `json:"supplier_id" validate:"gte=0"`
	Threshold  uint64  `json:"threshold"`
	Restock    uint64  `json:"restock_amount"`
	OnChain    bool    `json:"on_chain"`
}

// registerStoreRoutes registers store and shelf endpoints
func registerStoreRoutes() {
	webserver.ApiGET("/stores", listStores)
	webserver.ApiPOST("/stores", createStore)
	webserver.ApiPOST("/stores/sync", syncStores)
	webserver.ApiGET("/stores/:id", getStore)
	webserver.ApiGET("/stores/:id/summary", getStoreSummary)
	webserver.ApiGET("/stores/:id/export.csv", exportStore)
	webserver.ApiPOST("/stores/:id/shelves/:shelfId/items", addShelfItem)
}

// listStores lists the local stores, newest first
// @Summary list stores
// @Tags Store
// @Param page query int false "page number"
// @Param pageSize query int false "page size"
// @Param q query string false "store name filter"
// @Success 200 {object} Response
// @Router /api/v1/stores [get]
func listStores(c echo.Context) error {
	page, pageSize := parsePagination(c)
	q := strings.ToLower(strings.TrimSpace(c.QueryParam("q")))

	db := GetDB(c).Model(&domain.Store{})
	if q != "" {
		db = db.Where("LOWER(name) LIKE ?", "%"+q+"%")
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query stores", err.Error())
	}

	var rows []domain.Store
	if err := db.Preload("Shelves.Items").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query stores", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

// getStore returns one store with its shelves and items
// @Summary get store
// @Tags Store
// @Param id path string true "store id"
// @Success 200 {object} Response
// @Router /api/v1/stores/{id} [get]
func getStore(c echo.Context) error {
	store, err := GetAppContext(c).Inventory().Store(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleServiceError(c, err, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query store")
	}
	return ok(c, store)
}

// createStore creates the shop on the ledger and records it locally
// @Summary create store
// @Tags Store
// @Param store body storePayload true "store"
// @Success 201 {object} Response
// @Router /api/v1/stores [post]
func createStore(c echo.Context) error {
	var payload storePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse store", err.Error())
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	if payload.ShelfCount == 0 {
		payload.ShelfCount = domain.DefaultShelfCount
	}

	appCtx := GetAppContext(c)
	ctx := c.Request().Context()
	signer := appCtx.Signer()
	created, err := appCtx.Gateway().CreateShopOnChain(ctx, signer, payload.Name, payload.ShelfCount)
	if err != nil {
		return handleServiceError(c, err, http.StatusBadGateway, "CHAIN_ERROR", "Failed to create store on the ledger")
	}

	store, err := appCtx.Inventory().CreateStore(ctx, created.Digest, payload.Name, created.ShopID, signer.Address(), payload.ShelfCount)
	if err != nil {
		return handleServiceError(c, err, http.StatusInternalServerError, "DATABASE_ERROR", "Store created on the ledger but could not be saved")
	}
	return c.JSON(http.StatusCreated, Response{Data: store})
}

// syncStores imports the ledger stores of the account that are unknown locally
// @Summary sync stores
// @Tags Store
// @Success 200 {object} Response
// @Router /api/v1/stores/sync [post]
func syncStores(c echo.Context) error {
	n, err := GetAppContext(c).SyncStores(c.Request().Context())
	if err != nil {
		return handleServiceError(c, err, http.StatusBadGateway, "CHAIN_ERROR", "Failed to load stores from the ledger")
	}
	return ok(c, map[string]int{"imported": n})
}

// getStoreSummary returns the stock summary of a store
// @Summary store summary
// @Tags Store
// @Param id path string true "store id"
// @Success 200 {object} Response
// @Router /api/v1/stores/{id}/summary [get]
func getStoreSummary(c echo.Context) error {
	store, err := GetAppContext(c).Inventory().Store(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleServiceError(c, err, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query store")
	}
	return ok(c, inventory.Summarize(store))
}

// exportStore writes the shelf items of a store as CSV
// @Summary export store
// @Tags Store
// @Param id path string true "store id"
// @Produce text/csv
// @Router /api/v1/stores/{id}/export.csv [get]
func exportStore(c echo.Context) error {
	store, err := GetAppContext(c).Inventory().Store(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleServiceError(c, err, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query store")
	}
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=store-%s.csv", common.SafeFileName(store.Name)))
	c.Response().WriteHeader(http.StatusOK)
	return inventory.ExportCSV(c.Response(), store)
}

// addShelfItem stocks an item line on a shelf, optionally registering it on the ledger first
// @Summary add shelf item
// @Tags Store
// @Param id path string true "store id"
// @Param shelfId path string true "shelf id"
// @Param item body shelfItemPayload true "item"
// @Success 200 {object} Response
// @Router /api/v1/stores/{id}/shelves/{shelfId}/items [post]
func addShelfItem(c echo.Context) error {
	var payload shelfItemPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse item", err.Error())
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	appCtx := GetAppContext(c)
	ctx := c.Request().Context()
	storeID, shelfID := c.Param("id"), c.Param("shelfId")
	store, err := appCtx.Inventory().Store(ctx, storeID)
	if err != nil {
		return handleServiceError(c, err, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query store")
	}
	idx := store.FindShelf(shelfID)
	if idx < 0 {
		return handleServiceError(c, domain.ErrShelfNotFound, http.StatusNotFound, "SHELF_NOT_FOUND", "Shelf not found")
	}

	var digest string
	if payload.OnChain {
		if store.Address == "" {
			return fail(c, http.StatusPreconditionFailed, "NO_LEDGER_ADDRESS", "Store has no ledger object id", nil)
		}
		digest, err = appCtx.Gateway().AddItemOnChain(ctx, appCtx.Signer(), store.Address, store.Shelves[idx].Position,
			payload.Name, payload.SupplierID, uint64(pricing.ToMinorUnits(payload.Price)), uint64(payload.Quantity),
			payload.Threshold, payload.Restock)
		if err != nil {
			return handleServiceError(c, err, http.StatusBadGateway, "CHAIN_ERROR", "Failed to add item on the ledger")
		}
	}

	item := domain.Item{
		ID:       common.UUID(),
		Name:     payload.Name,
		Price:    payload.Price,
		Quantity: payload.Quantity,
	}
	if payload.SupplierID > 0 {
		item.Supplier = domain.SupplierName(payload.SupplierID)
	}
	shelf, err := appCtx.Inventory().CreditShelf(ctx, storeID, shelfID, item)
	if err != nil {
		return handleServiceError(c, err, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to save shelf item")
	}
	if digest != "" {
		zap.L().Info("shelf item registered on the ledger",
			zap.String("store", storeID),
			zap.String("digest", digest),
			zap.String("namespace", "adminapi"))
	}
	return ok(c, map[string]interface{}{"shelf": shelf, "digest": digest})
}
