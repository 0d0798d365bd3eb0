package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/supplychain/internal/chain"
	"github.com/talkincode/supplychain/internal/pricing"
	"github.com/talkincode/supplychain/internal/webserver"
)

type coinView struct {
	ObjectID string `json:"object_id"`
	Balance  int64  `json:"balance"`
	Display  string `json:"display"`
}

// registerWalletRoutes registers wallet endpoints
func registerWalletRoutes() {
	webserver.ApiGET("/wallet/coins", listWalletCoins)
}

// listWalletCoins lists the coins of the account, largest first
// @Summary list wallet coins
// @Tags Wallet
// @Param owner query string false "account address, defaults to the tracked account"
// @Success 200 {object} Response
// @Router /api/v1/wallet/coins [get]
func listWalletCoins(c echo.Context) error {
	appCtx := GetAppContext(c)
	owner := strings.TrimSpace(c.QueryParam("owner"))
	if owner == "" {
		owner = appCtx.Tracker().Owner()
	}
	if owner == "" {
		return handleServiceError(c, chain.ErrNoSigner, http.StatusPreconditionFailed, "NO_SIGNER", "No account configured")
	}
	coins, err := appCtx.Gateway().Coins(c.Request().Context(), owner)
	if err != nil {
		return handleServiceError(c, err, http.StatusBadGateway, "CHAIN_ERROR", "Failed to list coins")
	}
	rows := make([]coinView, 0, len(coins))
	for _, coin := range coins {
		rows = append(rows, coinView{
			ObjectID: coin.CoinObjectID,
			Balance:  coin.Amount(),
			Display:  pricing.FormatMinorUnits(coin.Amount()),
		})
	}
	return ok(c, rows)
}
