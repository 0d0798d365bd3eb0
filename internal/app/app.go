package app

import (
	"context"
	"fmt"
	"os"
	"path"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"github.com/asaskevich/EventBus"
	"github.com/juju/clock"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/supplychain/config"
	"github.com/talkincode/supplychain/internal/analytics"
	"github.com/talkincode/supplychain/internal/catalog"
	"github.com/talkincode/supplychain/internal/chain"
	"github.com/talkincode/supplychain/internal/domain"
	"github.com/talkincode/supplychain/internal/escrow"
	"github.com/talkincode/supplychain/internal/inventory"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Application struct {
	appConfig *config.AppConfig
	gormDB    *gorm.DB
	sched     *cron.Cron
	jobs      map[string]*scheduledJob
	bus       EventBus.Bus
	clock     clock.Clock

	gateway   *chain.Gateway
	signer    chain.Signer
	catalog   catalog.Repository
	inventory *inventory.Service
	purchaser *inventory.Purchaser
	meta      escrow.MetadataStore
	tracker   *escrow.Tracker
	escrowSvc *escrow.Service
	orderLogs escrow.OrderLogRepository
	analytics *analytics.Client
}

// Ensure Application implements all interfaces
var (
	_ DBProvider        = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ ChainProvider     = (*Application)(nil)
	_ InventoryProvider = (*Application)(nil)
	_ EscrowProvider    = (*Application)(nil)
	_ AnalyticsProvider = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

func (a *Application) Init(cfg *config.AppConfig) {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	// Initialize zap logger
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	// Build logger with file rotation if enabled
	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	} else {
		logger, err = zapConfig.Build(zap.AddCaller(), zap.AddCallerSkip(1))
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)

	// Initialize database connection
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	a.gormDB = getDatabase(cfg.Database, cfg.System.Workdir)
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	// Ledger access; signing is only available when a signer bridge is configured
	ledger := chain.NewRPCClient(cfg.Chain.RpcUrl, cfg.Chain.RequestTimeout)
	var signer chain.Signer
	if cfg.Chain.SignerUrl != "" {
		signer = chain.NewRemoteSigner(cfg.Chain.SignerUrl, cfg.Chain.SignerAddress, cfg.Chain.FinalityTimeout)
	} else {
		zap.L().Warn("no signer bridge configured, ledger writes are disabled", zap.String("namespace", "chain"))
	}

	if err := a.Setup(a.gormDB, ledger, signer, clock.WallClock); err != nil {
		panic(err)
	}

	// wait for database initialization to complete
	go func() {
		time.Sleep(3 * time.Second)
		a.checkCatalog()
	}()

	a.initJob()
}

// Setup wires the domain services on db, ledger and signer. signer may be nil.
func (a *Application) Setup(db *gorm.DB, ledger chain.Ledger, signer chain.Signer, clk clock.Clock) error {
	cfg := a.appConfig
	a.gormDB = db
	a.signer = signer
	a.clock = clk
	a.bus = EventBus.New()

	a.gateway = chain.NewGateway(ledger, chain.Options{
		PackageID:       cfg.Chain.PackageID,
		ClockObjectID:   cfg.Chain.ClockObjectID,
		GasBuffer:       cfg.Chain.GasBuffer,
		GasBudget:       cfg.Chain.GasBudget,
		FinalityTimeout: cfg.Chain.FinalityTimeout,
		Workers:         cfg.Chain.Workers,
	}, clk)

	a.catalog = catalog.NewGormRepository(db)
	a.inventory = inventory.NewService(inventory.NewGormStoreRepository(db))
	a.purchaser = inventory.NewPurchaser(db, a.catalog, a.inventory)

	if err := os.MkdirAll(path.Dir(cfg.MetadataPath()), 0o755); err != nil {
		return err
	}
	meta, err := escrow.OpenMetadataStore(cfg.MetadataPath())
	if err != nil {
		return err
	}
	a.meta = meta

	a.orderLogs = escrow.NewGormOrderLogRepository(db)
	if err := escrow.NewAuditLogger(a.orderLogs).Subscribe(a.bus); err != nil {
		return err
	}

	owner := cfg.Escrow.Owner
	if owner == "" {
		owner = cfg.Chain.SignerAddress
	}
	a.tracker = escrow.NewTracker(escrow.TrackerConfig{
		Ledger:    a.gateway,
		Signer:    signer,
		Owner:     owner,
		Meta:      a.meta,
		Inventory: a.inventory,
		Bus:       a.bus,
		Clock:     clk,
	})
	a.escrowSvc = escrow.NewService(escrow.ServiceConfig{
		Gateway: a.gateway,
		Signer:  signer,
		Catalog: a.catalog,
		Stores:  a.inventory,
		Meta:    a.meta,
		Tracker: a.tracker,
		Bus:     a.bus,
		Clock:   clk,
	})
	a.analytics = analytics.NewClient(cfg.Analytics.BaseUrl, cfg.Analytics.Timeout)
	return nil
}

func getDatabase(cfg config.DBConfig, workdir string) *gorm.DB {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if cfg.Debug {
		gcfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dbfile := cfg.Name
		if !path.IsAbs(dbfile) {
			dbfile = path.Join(workdir, "data", dbfile)
		}
		dialector = sqlite.Open(dbfile)
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name, time.Local.String())
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		panic(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	if cfg.Type == "sqlite" {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxConn)
		sqlDB.SetMaxIdleConns(cfg.IdleConn)
	}
	return db
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	if track {
		if err := a.gormDB.Debug().Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
			return err
		}
	} else {
		if err := a.gormDB.Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
			return err
		}
	}
	return nil
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
	a.checkCatalog()
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

// Bus returns the application event bus
func (a *Application) Bus() EventBus.Bus {
	return a.bus
}

func (a *Application) Gateway() *chain.Gateway {
	return a.gateway
}

// Signer returns the configured signer, nil when writes are disabled
func (a *Application) Signer() chain.Signer {
	return a.signer
}

func (a *Application) Catalog() catalog.Repository {
	return a.catalog
}

func (a *Application) Inventory() *inventory.Service {
	return a.inventory
}

func (a *Application) Purchaser() *inventory.Purchaser {
	return a.purchaser
}

func (a *Application) Tracker() *escrow.Tracker {
	return a.tracker
}

func (a *Application) Escrow() *escrow.Service {
	return a.escrowSvc
}

func (a *Application) OrderLogs() escrow.OrderLogRepository {
	return a.orderLogs
}

func (a *Application) Analytics() *analytics.Client {
	return a.analytics
}

// StartBackgroundJobs starts the escrow tracker loops
func (a *Application) StartBackgroundJobs(ctx context.Context) {
	if a.tracker.Owner() == "" {
		zap.L().Warn("escrow tracker not started, no account configured", zap.String("namespace", "escrow"))
		return
	}
	a.tracker.Start(ctx, a.appConfig.Escrow.TickInterval, a.appConfig.Escrow.RefreshInterval)
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.tracker != nil {
		a.tracker.Stop()
	}
	if a.bus != nil {
		a.bus.WaitAsync()
	}
	if a.meta != nil {
		_ = a.meta.Close()
	}
	_ = zap.L().Sync()
}
