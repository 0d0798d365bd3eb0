package adminapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/juju/clock/testclock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/supplychain/config"
	"github.com/talkincode/supplychain/internal/app"
	"github.com/talkincode/supplychain/internal/catalog"
	"github.com/talkincode/supplychain/internal/chain"
	"github.com/talkincode/supplychain/internal/webserver"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const testPkg = "0xab"

type stubLedger struct {
	mu     sync.Mutex
	coins  []chain.Coin
	blocks map[string]*chain.TransactionBlockResponse
}

func (l *stubLedger) OwnedObjects(context.Context, string, string, int) (*chain.ObjectsPage, error) {
	return &chain.ObjectsPage{}, nil
}

func (l *stubLedger) GetObject(context.Context, string) (*chain.ObjectResponse, error) {
	return &chain.ObjectResponse{}, nil
}

func (l *stubLedger) GetTransactionBlock(_ context.Context, digest string) (*chain.TransactionBlockResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if block, ok := l.blocks[digest]; ok {
		return block, nil
	}
	return &chain.TransactionBlockResponse{Digest: digest}, nil
}

func (l *stubLedger) GetCoins(context.Context, string, string, string, int) (*chain.CoinsPage, error) {
	return &chain.CoinsPage{Data: l.coins}, nil
}

// scriptedSigner answers each submission with the next queued response
type scriptedSigner struct {
	mu        sync.Mutex
	responses []*chain.TransactionBlockResponse
}

func (s *scriptedSigner) Address() string { return "0xowner" }

func (s *scriptedSigner) SignAndExecute(_ context.Context, _ *chain.Transaction) (*chain.TransactionBlockResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responses) == 0 {
		return nil, &chain.RPCError{Code: -1, Message: "no scripted response"}
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func (s *scriptedSigner) push(resp *chain.TransactionBlockResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, resp)
}

func success(digest string) *chain.TransactionBlockResponse {
	return &chain.TransactionBlockResponse{
		Digest:  digest,
		Effects: &chain.TransactionEffects{Status: chain.ExecutionStatus{Status: "success"}},
	}
}

type fixture struct {
	app    *app.Application
	echo   *echo.Echo
	ledger *stubLedger
}

func newFixture(t *testing.T, signer chain.Signer, mutate func(cfg *config.AppConfig)) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultAppConfig()
	cfg.System.Workdir = dir
	cfg.Chain.PackageID = testPkg
	if mutate != nil {
		mutate(cfg)
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "test.db")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	ledger := &stubLedger{blocks: map[string]*chain.TransactionBlockResponse{}}
	if s, ok := signer.(*scriptedSigner); ok {
		for _, resp := range s.responses {
			ledger.blocks[resp.Digest] = resp
		}
	}
	application := app.NewApplication(cfg)
	require.NoError(t, application.Setup(db, ledger, signer, testclock.NewClock(time.UnixMilli(1_700_000_000_000))))
	require.NoError(t, application.MigrateDB(false))
	require.NoError(t, application.Catalog().Seed(context.Background(), catalog.DefaultItems()))
	t.Cleanup(func() {
		application.Release()
		_ = sqlDB.Close()
	})

	Init()
	e := webserver.NewAdminServer(application, "127.0.0.1", 0, false).Echo()
	return &fixture{app: application, echo: e, ledger: ledger}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, webserver.ApiPrefix+path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) createLocalStore(t *testing.T) {
	t.Helper()
	_, err := f.app.Inventory().CreateStore(context.Background(), "0xdigest1", "Corner", "0xshop1", "0xowner", 2)
	require.NoError(t, err)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestCatalogEndpoints(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(t, http.MethodGet, "/catalog?category=Fruits", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "s1", list.Data[0].ID)

	rec = f.do(t, http.MethodGet, "/catalog/s1/quote?quantity=12", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var quote struct {
		Data struct {
			DiscountPct float64 `json:"discount_pct"`
			TotalMinor  int64   `json:"total_minor"`
		} `json:"data"`
	}
	decode(t, rec, &quote)
	assert.Equal(t, 5.0, quote.Data.DiscountPct)
	assert.Equal(t, int64(11_400_000_000), quote.Data.TotalMinor)

	rec = f.do(t, http.MethodGet, "/catalog/s1/quote?quantity=500", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/catalog/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDirectPurchase(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.createLocalStore(t)

	rec := f.do(t, http.MethodPost, "/purchases", map[string]interface{}{
		"store_id":         "0xdigest1",
		"shelf_id":         "0xdigest1-shelf-0",
		"supplier_item_id": "s1",
		"quantity":         12,
		"price":            1.5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	item, err := f.app.Catalog().Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(88), item.QtyAvailable)

	rec = f.do(t, http.MethodGet, "/stores/0xdigest1/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		Data struct {
			Units int64 `json:"units"`
			Lines int   `json:"lines"`
		} `json:"data"`
	}
	decode(t, rec, &summary)
	assert.Equal(t, int64(12), summary.Data.Units)
	assert.Equal(t, 1, summary.Data.Lines)

	rec = f.do(t, http.MethodGet, "/stores/0xdigest1/export.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Apples")
}

func TestDirectPurchaseRejections(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.createLocalStore(t)

	rec := f.do(t, http.MethodPost, "/purchases", map[string]interface{}{
		"store_id": "0xdigest1", "shelf_id": "0xdigest1-shelf-0", "supplier_item_id": "s1", "quantity": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/purchases", map[string]interface{}{
		"store_id": "0xdigest1", "shelf_id": "0xdigest1-shelf-0", "supplier_item_id": "zz", "quantity": 1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/purchases", map[string]interface{}{
		"store_id": "missing", "shelf_id": "missing-shelf-0", "supplier_item_id": "s1", "quantity": 1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	item, err := f.app.Catalog().Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), item.QtyAvailable)
}

func TestCreateStoreWithoutSigner(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec := f.do(t, http.MethodPost, "/stores", map[string]interface{}{"name": "Corner", "shelf_count": 2})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Contains(t, rec.Body.String(), "NO_SIGNER")
}

func TestCreateStoreOnLedger(t *testing.T) {
	signer := &scriptedSigner{}
	block := success("0xdigest9")
	block.ObjectChanges = []chain.ObjectChange{{Type: "created", ObjectType: testPkg + "::supplychain::Shop", ObjectID: "0xshop9"}}
	signer.push(block)
	f := newFixture(t, signer, nil)

	rec := f.do(t, http.MethodPost, "/stores", map[string]interface{}{"name": "Corner", "shelf_count": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	store, err := f.app.Inventory().Store(context.Background(), "0xdigest9")
	require.NoError(t, err)
	assert.Equal(t, "0xshop9", store.Address)
	assert.Equal(t, "0xowner", store.Owner)
	assert.Len(t, store.Shelves, 2)

	rec = f.do(t, http.MethodGet, "/stores?q=corn", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Meta PageMeta `json:"meta"`
	}
	decode(t, rec, &list)
	assert.Equal(t, int64(1), list.Meta.Total)

	rec = f.do(t, http.MethodPost, "/stores", map[string]interface{}{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddShelfItem(t *testing.T) {
	signer := &scriptedSigner{}
	signer.push(success("0xadd1"))
	f := newFixture(t, signer, nil)
	f.createLocalStore(t)

	rec := f.do(t, http.MethodPost, "/stores/0xdigest1/shelves/0xdigest1-shelf-1/items", map[string]interface{}{
		"name": "Milk", "price": 4, "quantity": 5, "supplier_id": 3, "on_chain": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "0xadd1")

	store, err := f.app.Inventory().Store(context.Background(), "0xdigest1")
	require.NoError(t, err)
	require.Len(t, store.Shelves[1].Items, 1)
	assert.Equal(t, "Nike", store.Shelves[1].Items[0].Supplier)

	rec = f.do(t, http.MethodPost, "/stores/0xdigest1/shelves/nope/items", map[string]interface{}{
		"name": "Milk", "price": 4, "quantity": 5,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEscrowOrderLifecycle(t *testing.T) {
	signer := &scriptedSigner{}
	created := success("0xcreate1")
	created.Events = []chain.Event{{
		Type:       testPkg + "::supplychain::OrderCreatedEvent",
		ParsedJSON: map[string]interface{}{"order_id": "0xorder1"},
	}}
	signer.push(created)
	signer.push(success("0xrelease1"))
	f := newFixture(t, signer, nil)
	f.createLocalStore(t)
	f.ledger.coins = []chain.Coin{{CoinObjectID: "0xgas", Balance: "20000000000"}}

	rec := f.do(t, http.MethodPost, "/escrow/orders", map[string]interface{}{
		"store_id":         "0xdigest1",
		"shelf_id":         "0xdigest1-shelf-0",
		"supplier_item_id": "s1",
		"quantity":         12,
		"price":            1.5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "0xorder1")

	rec = f.do(t, http.MethodGet, "/escrow/orders/0xorder1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"pending"`)

	rec = f.do(t, http.MethodGet, "/escrow/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "0xorder1")

	rec = f.do(t, http.MethodGet, "/escrow/metadata", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "0xdigest1-shelf-0")

	rec = f.do(t, http.MethodPost, "/escrow/orders/0xorder1/release", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "0xrelease1")

	store, err := f.app.Inventory().Store(context.Background(), "0xdigest1")
	require.NoError(t, err)
	require.Len(t, store.Shelves[0].Items, 1)
	assert.Equal(t, int64(12), store.Shelves[0].Items[0].Quantity)

	rec = f.do(t, http.MethodGet, "/escrow/orders/0xorder1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.app.Bus().WaitAsync()
	rec = f.do(t, http.MethodGet, "/escrow/logs?order_id=0xorder1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "released")
}

func TestEscrowOrderInsufficientBalance(t *testing.T) {
	f := newFixture(t, &scriptedSigner{}, nil)
	f.createLocalStore(t)
	f.ledger.coins = []chain.Coin{{CoinObjectID: "0xsmall", Balance: "1000"}}

	rec := f.do(t, http.MethodPost, "/escrow/orders", map[string]interface{}{
		"store_id":         "0xdigest1",
		"shelf_id":         "0xdigest1-shelf-0",
		"supplier_item_id": "s1",
		"quantity":         12,
		"coin_id":          "0xsmall",
		"coin_balance":     20_000_000_000,
	})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), "INSUFFICIENT_BALANCE")

	item, err := f.app.Catalog().Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), item.QtyAvailable)
}

func TestWalletCoins(t *testing.T) {
	f := newFixture(t, &scriptedSigner{}, nil)
	f.ledger.coins = []chain.Coin{
		{CoinObjectID: "0xsmall", Balance: "1000000000"},
		{CoinObjectID: "0xbig", Balance: "5000000000"},
	}
	rec := f.do(t, http.MethodGet, "/wallet/coins", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Data []coinView `json:"data"`
	}
	decode(t, rec, &out)
	require.Len(t, out.Data, 2)
	assert.Equal(t, "0xbig", out.Data[0].ObjectID)
	assert.Equal(t, "5.00", out.Data[0].Display)
}

func TestAnalyticsProxy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/strategy/daily-decision":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"action":"BUY"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()
	f := newFixture(t, nil, func(cfg *config.AppConfig) { cfg.Analytics.BaseUrl = srv.URL })

	rec := f.do(t, http.MethodPost, "/analytics/daily-decision", map[string]interface{}{"daily_demand": 10, "stock": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "BUY")

	rec = f.do(t, http.MethodPost, "/analytics/best-buy-date", map[string]interface{}{
		"item": "Apples", "start_date": "2024-03-01", "months_ahead": 3,
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "ANALYTICS_ERROR")

	rec = f.do(t, http.MethodPost, "/analytics/best-buy-date", map[string]interface{}{"item": "Apples"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSystemEndpoints(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(t, http.MethodGet, "/system/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), app.JobSyncStores)
	assert.Contains(t, rec.Body.String(), app.JobClearExpireData)

	rec = f.do(t, http.MethodPost, "/system/jobs/clear_expire_data/run", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, "/system/jobs/unknown/run", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/system/tables", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"sc_supplier_item"`))

	rec = f.do(t, http.MethodPost, "/stores/sync", nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}
