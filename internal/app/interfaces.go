package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/talkincode/supplychain/config"
	"github.com/talkincode/supplychain/internal/analytics"
	"github.com/talkincode/supplychain/internal/catalog"
	"github.com/talkincode/supplychain/internal/chain"
	"github.com/talkincode/supplychain/internal/escrow"
	"github.com/talkincode/supplychain/internal/inventory"
	"gorm.io/gorm"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
	// Jobs lists the scheduled jobs by name
	Jobs() []JobInfo
	// RunJob runs a scheduled job immediately
	RunJob(name string) error
}

// ChainProvider provides ledger access. Signer is nil when no signer bridge is configured.
type ChainProvider interface {
	Gateway() *chain.Gateway
	Signer() chain.Signer
}

// InventoryProvider provides the catalog and the local inventory
type InventoryProvider interface {
	Catalog() catalog.Repository
	Inventory() *inventory.Service
	Purchaser() *inventory.Purchaser
}

// EscrowProvider provides escrow order tracking and purchasing
type EscrowProvider interface {
	Tracker() *escrow.Tracker
	Escrow() *escrow.Service
	OrderLogs() escrow.OrderLogRepository
}

// AnalyticsProvider provides the decision service client
type AnalyticsProvider interface {
	Analytics() *analytics.Client
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SchedulerProvider
	ChainProvider
	InventoryProvider
	EscrowProvider
	AnalyticsProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
	// SyncStores imports the ledger stores of the configured account that are unknown locally
	SyncStores(ctx context.Context) (int, error)
}
