package adminapi

import (
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/supplychain/internal/analytics"
	"github.com/talkincode/supplychain/internal/app"
	"github.com/talkincode/supplychain/internal/catalog"
	"github.com/talkincode/supplychain/internal/chain"
	"github.com/talkincode/supplychain/internal/domain"
	"github.com/talkincode/supplychain/internal/escrow"
	"github.com/talkincode/supplychain/internal/webserver"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Response is the success envelope
type Response struct {
	Data interface{} `json:"data"`
	Meta *PageMeta   `json:"meta,omitempty"`
}

// PageMeta describes one page of a list
type PageMeta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// ErrorResponse is the error envelope
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

var initOnce sync.Once

// Init registers every admin api route; it must run before the admin server is built
func Init() {
	initOnce.Do(func() {
		registerStoreRoutes()
		registerCatalogRoutes()
		registerPurchaseRoutes()
		registerEscrowRoutes()
		registerWalletRoutes()
		registerAnalyticsRoutes()
		registerSystemRoutes()
	})
}

// GetAppContext returns the application context attached by the admin server
func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(webserver.AppContextKey).(app.AppContext)
}

// GetDB returns the application database
func GetDB(c echo.Context) *gorm.DB {
	return GetAppContext(c).DB().WithContext(c.Request().Context())
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Data: data})
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, Response{
		Data: data,
		Meta: &PageMeta{Total: total, Page: page, PageSize: pageSize},
	})
}

func fail(c echo.Context, status int, code, message string, details interface{}) error {
	return c.JSON(status, ErrorResponse{Error: code, Message: message, Details: details})
}

// parsePagination reads page and pageSize, defaulting to 1 and 20
func parsePagination(c echo.Context) (int, int) {
	page := 1
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	pageSize := 20
	if ps, err := strconv.Atoi(c.QueryParam("pageSize")); err == nil && ps > 0 && ps <= 500 {
		pageSize = ps
	}
	return page, pageSize
}

func handleValidationError(c echo.Context, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]map[string]string, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, map[string]string{
				"field": fe.Field(),
				"rule":  fe.Tag(),
			})
		}
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", details)
	}
	return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
}

// handleServiceError maps domain, ledger and analytics errors to responses.
// Errors it does not recognize are answered with status and code.
func handleServiceError(c echo.Context, err error, status int, code, message string) error {
	var verr *domain.ValidationError
	var apiErr *analytics.ApiError
	switch {
	case errors.As(err, &verr):
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error(), map[string]string{"field": verr.Field})
	case errors.Is(err, domain.ErrStoreNotFound):
		return fail(c, http.StatusNotFound, "STORE_NOT_FOUND", "Store not found", nil)
	case errors.Is(err, domain.ErrShelfNotFound):
		return fail(c, http.StatusNotFound, "SHELF_NOT_FOUND", "Shelf not found", nil)
	case errors.Is(err, domain.ErrItemNotFound):
		return fail(c, http.StatusNotFound, "ITEM_NOT_FOUND", "Supplier item not found", nil)
	case errors.Is(err, escrow.ErrOrderNotTracked):
		return fail(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Escrow order not found", nil)
	case errors.Is(err, catalog.ErrInsufficientStock):
		return fail(c, http.StatusConflict, "INSUFFICIENT_STOCK", "Not enough supplier stock", nil)
	case errors.Is(err, escrow.ErrReleaseInFlight):
		return fail(c, http.StatusConflict, "RELEASE_IN_FLIGHT", "A release of this order is already running", nil)
	case chain.IsInsufficientBalance(err):
		return fail(c, http.StatusPaymentRequired, "INSUFFICIENT_BALANCE", err.Error(), nil)
	case errors.Is(err, chain.ErrNoSigner):
		return fail(c, http.StatusPreconditionFailed, "NO_SIGNER", "No signer is connected", nil)
	case errors.Is(err, chain.ErrConfigMissing):
		return fail(c, http.StatusPreconditionFailed, "CONFIG_MISSING", "Ledger package is not configured", nil)
	case errors.As(err, &apiErr):
		return fail(c, http.StatusBadGateway, "ANALYTICS_ERROR", apiErr.Error(), map[string]interface{}{"status": apiErr.StatusCode})
	case chain.IsTransactionAborted(err):
		return fail(c, http.StatusBadGateway, "TRANSACTION_ABORTED", err.Error(), nil)
	}
	zap.L().Error(message, zap.Error(err), zap.String("namespace", "adminapi"))
	return fail(c, status, code, message, err.Error())
}
