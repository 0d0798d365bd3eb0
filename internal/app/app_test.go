package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/supplychain/config"
	"github.com/talkincode/supplychain/internal/chain"
	"github.com/talkincode/supplychain/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type emptyLedger struct{}

func (emptyLedger) OwnedObjects(context.Context, string, string, int) (*chain.ObjectsPage, error) {
	return &chain.ObjectsPage{}, nil
}

func (emptyLedger) GetObject(context.Context, string) (*chain.ObjectResponse, error) {
	return &chain.ObjectResponse{}, nil
}

func (emptyLedger) GetTransactionBlock(_ context.Context, digest string) (*chain.TransactionBlockResponse, error) {
	return &chain.TransactionBlockResponse{Digest: digest}, nil
}

func (emptyLedger) GetCoins(context.Context, string, string, string, int) (*chain.CoinsPage, error) {
	return &chain.CoinsPage{}, nil
}

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T, mutate func(cfg *config.AppConfig)) (*Application, *testclock.Clock) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultAppConfig()
	cfg.System.Workdir = dir
	cfg.Chain.PackageID = "0xab"
	if mutate != nil {
		mutate(cfg)
	}
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "app.db")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	clk := testclock.NewClock(epoch)
	a := NewApplication(cfg)
	require.NoError(t, a.Setup(db, emptyLedger{}, nil, clk))
	require.NoError(t, a.MigrateDB(false))
	t.Cleanup(func() {
		a.Release()
		_ = sqlDB.Close()
	})
	return a, clk
}

func TestSetupWiring(t *testing.T) {
	a, _ := newTestApp(t, nil)
	assert.NotNil(t, a.Gateway())
	assert.Nil(t, a.Signer())
	assert.NotNil(t, a.Catalog())
	assert.NotNil(t, a.Inventory())
	assert.NotNil(t, a.Purchaser())
	assert.NotNil(t, a.Tracker())
	assert.NotNil(t, a.Escrow())
	assert.NotNil(t, a.OrderLogs())
	assert.Equal(t, "http://localhost:8000", a.Analytics().BaseURL())
	assert.Equal(t, "", a.Tracker().Owner())
	assert.FileExists(t, a.Config().MetadataPath())
}

func TestTrackerOwnerFromConfig(t *testing.T) {
	a, _ := newTestApp(t, func(cfg *config.AppConfig) {
		cfg.Chain.SignerAddress = "0xsigner"
	})
	assert.Equal(t, "0xsigner", a.Tracker().Owner())

	b, _ := newTestApp(t, func(cfg *config.AppConfig) {
		cfg.Chain.SignerAddress = "0xsigner"
		cfg.Escrow.Owner = "0xshop"
	})
	assert.Equal(t, "0xshop", b.Tracker().Owner())
}

func TestCheckCatalogSeeds(t *testing.T) {
	a, _ := newTestApp(t, nil)
	a.checkCatalog()
	a.checkCatalog()
	items, err := a.Catalog().List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, items, 4)
}

func TestSchedClearExpireData(t *testing.T) {
	a, clk := newTestApp(t, func(cfg *config.AppConfig) {
		cfg.Escrow.MetadataTTLDays = 30
	})
	require.NoError(t, a.meta.Put(domain.OrderMeta{OrderID: "0xold", CreatedAt: epoch.AddDate(0, 0, -31)}))
	require.NoError(t, a.meta.Put(domain.OrderMeta{OrderID: "0xnew", CreatedAt: epoch.AddDate(0, 0, -1)}))
	require.NoError(t, a.DB().Create(&domain.EscrowOrderLog{
		ID: 1, OrderID: "0xold", Action: "created", CreatedAt: clk.Now().AddDate(-2, 0, 0),
	}).Error)

	a.SchedClearExpireData()

	metas, err := a.meta.List()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "0xnew", metas[0].OrderID)

	var logs int64
	require.NoError(t, a.DB().Model(&domain.EscrowOrderLog{}).Count(&logs).Error)
	assert.Zero(t, logs)
}

func TestSyncStores(t *testing.T) {
	a, _ := newTestApp(t, nil)
	_, err := a.SyncStores(context.Background())
	assert.ErrorIs(t, err, chain.ErrNoSigner)

	b, _ := newTestApp(t, func(cfg *config.AppConfig) {
		cfg.Escrow.Owner = "0xowner"
	})
	n, err := b.SyncStores(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestJobs(t *testing.T) {
	a, _ := newTestApp(t, nil)
	jobs := a.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, JobClearExpireData, jobs[0].Name)
	assert.Equal(t, "@daily", jobs[0].Spec)
	assert.Equal(t, JobSyncStores, jobs[1].Name)
	assert.Equal(t, "@every 5m", jobs[1].Spec)

	assert.NoError(t, a.RunJob(JobSyncStores))
	assert.ErrorIs(t, a.RunJob("nope"), ErrJobNotFound)
}
