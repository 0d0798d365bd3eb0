package app

import (
	"context"

	"github.com/talkincode/supplychain/internal/catalog"
	"go.uber.org/zap"
)

// checkCatalog seeds the supplier catalog entries that are missing
func (a *Application) checkCatalog() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	if err := a.catalog.Seed(context.Background(), catalog.DefaultItems()); err != nil {
		zap.L().Error("failed to seed supplier catalog", zap.Error(err), zap.String("namespace", "catalog"))
		return
	}
	zap.L().Debug("supplier catalog checked", zap.String("namespace", "catalog"))
}
