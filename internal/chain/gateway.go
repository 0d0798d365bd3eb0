package chain

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/talkincode/supplychain/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ModuleName is the Move module holding the shop and escrow entry points
const ModuleName = "supplychain"

// DefaultGasBuffer is the amount in MIST kept aside for gas when checking an escrow funding coin
const DefaultGasBuffer int64 = 10_000_000

// Options configures a Gateway
type Options struct {
	PackageID       string        // address of the published supplychain package
	ClockObjectID   string        // shared clock object, 0x6 on Sui
	GasBuffer       int64         // MIST reserved for gas on top of an escrow total
	GasBudget       uint64        // gas budget set on every transaction
	FinalityTimeout time.Duration // how long to wait for a submitted transaction to be indexed
	PollInterval    time.Duration // delay between finality lookups
	Workers         int           // concurrent object lookups when loading stores
	PageSize        int
}

func (o *Options) setDefaults() {
	if o.ClockObjectID == "" {
		o.ClockObjectID = "0x6"
	}
	if o.GasBuffer <= 0 {
		o.GasBuffer = DefaultGasBuffer
	}
	if o.GasBudget == 0 {
		o.GasBudget = 50_000_000
	}
	if o.FinalityTimeout <= 0 {
		o.FinalityTimeout = 30 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.PageSize <= 0 {
		o.PageSize = 50
	}
}

// Gateway turns local intents into ledger transactions and ledger objects into local entities
type Gateway struct {
	ledger Ledger
	opts   Options
	clock  clock.Clock
	group  singleflight.Group
}

// NewGateway creates a gateway reading from ledger; clk is the time source for countdowns and finality polling
func NewGateway(ledger Ledger, opts Options, clk clock.Clock) *Gateway {
	opts.setDefaults()
	if clk == nil {
		clk = clock.WallClock
	}
	return &Gateway{ledger: ledger, opts: opts, clock: clk}
}

// Options returns the effective gateway options
func (g *Gateway) Options() Options {
	return g.opts
}

func (g *Gateway) target(function string) string {
	return g.opts.PackageID + "::" + ModuleName + "::" + function
}

func (g *Gateway) structType(name string) string {
	return g.opts.PackageID + "::" + ModuleName + "::" + name
}

func (g *Gateway) ready(signer Signer) error {
	if signer == nil {
		return ErrNoSigner
	}
	if g.opts.PackageID == "" {
		return ErrConfigMissing
	}
	return nil
}

// execute signs tx, checks the response and waits until the ledger serves the transaction
func (g *Gateway) execute(ctx context.Context, signer Signer, tx *Transaction, action string) (*TransactionBlockResponse, error) {
	tx.Sender = signer.Address()
	if tx.GasBudget == 0 {
		tx.GasBudget = g.opts.GasBudget
	}
	resp, err := signer.SignAndExecute(ctx, tx)
	if err != nil {
		zap.L().Error("transaction submission failed",
			zap.String("action", action),
			zap.Error(err),
			zap.String("namespace", "chain"),
		)
		return nil, errors.Wrapf(err, "%s: submit", action)
	}
	if err := CheckResponse(resp); err != nil {
		zap.L().Warn("transaction rejected",
			zap.String("action", action),
			zap.Error(err),
			zap.String("namespace", "chain"),
		)
		return nil, err
	}
	final, err := g.WaitForTransaction(ctx, resp.Digest)
	if err != nil {
		return nil, err
	}
	if final.Effects != nil {
		if err := CheckResponse(final); err != nil {
			return nil, err
		}
	}
	zap.L().Info("transaction finalized",
		zap.String("action", action),
		zap.String("digest", resp.Digest),
		zap.String("namespace", "chain"),
	)
	return final, nil
}

// WaitForTransaction polls the ledger until digest can be read back, or the finality timeout passes
func (g *Gateway) WaitForTransaction(ctx context.Context, digest string) (*TransactionBlockResponse, error) {
	var block *TransactionBlockResponse
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			b, err := g.ledger.GetTransactionBlock(ctx, digest)
			if err != nil {
				return err
			}
			block = b
			return nil
		},
		IsFatalError: func(error) bool {
			return ctx.Err() != nil
		},
		Attempts:    -1,
		Delay:       g.opts.PollInterval,
		MaxDuration: g.opts.FinalityTimeout,
		Clock:       g.clock,
		Stop:        ctx.Done(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ctx.Err(), "wait for transaction %s", digest)
		}
		return nil, errors.Wrapf(retry.LastError(err), "wait for transaction %s", digest)
	}
	if block.Digest == "" {
		block.Digest = digest
	}
	return block, nil
}

// ShopCreated is the result of CreateShopOnChain
type ShopCreated struct {
	Digest string `json:"digest"`
	ShopID string `json:"shop_id,omitempty"`
}

// CreateShopOnChain submits create_shop(name, shelfCount) and waits for finality
func (g *Gateway) CreateShopOnChain(ctx context.Context, signer Signer, name string, shelfCount int) (*ShopCreated, error) {
	if err := g.ready(signer); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	if shelfCount < 1 {
		shelfCount = domain.DefaultShelfCount
	}

	tx := NewTransaction()
	tx.MoveCall(g.target("create_shop"), nil, tx.PureString(name), tx.PureU64(uint64(shelfCount)))

	block, err := g.execute(ctx, signer, tx, "create_shop")
	if err != nil {
		return nil, err
	}
	res := &ShopCreated{Digest: block.Digest}
	for _, change := range block.ObjectChanges {
		if change.Type == "created" && SameStructType(change.ObjectType, g.structType("Shop")) {
			res.ShopID = change.ObjectID
			break
		}
	}
	return res, nil
}

// AddItemOnChain submits add_item for one shelf line of a shop
func (g *Gateway) AddItemOnChain(ctx context.Context, signer Signer, shopID string, shelfIndex int, name string, supplierID int64, price, quantity, threshold, restockAmount uint64) (string, error) {
	if err := g.ready(signer); err != nil {
		return "", err
	}
	if shopID == "" {
		return "", domain.NewValidationError("shop_id", "is required")
	}
	if shelfIndex < 0 {
		return "", domain.NewValidationError("shelf_index", "must not be negative")
	}

	tx := NewTransaction()
	tx.MoveCall(g.target("add_item"), nil,
		tx.Object(shopID),
		tx.PureU64(uint64(shelfIndex)),
		tx.PureString(name),
		tx.PureU64(uint64(supplierID)),
		tx.PureU64(price),
		tx.PureU64(quantity),
		tx.PureU64(threshold),
		tx.PureU64(restockAmount),
	)
	block, err := g.execute(ctx, signer, tx, "add_item")
	if err != nil {
		return "", err
	}
	return block.Digest, nil
}

// ownedObjects walks every page of objects owned by owner
func (g *Gateway) ownedObjects(ctx context.Context, owner string) ([]ObjectData, error) {
	var out []ObjectData
	cursor := ""
	for {
		page, err := g.ledger.OwnedObjects(ctx, owner, cursor, g.opts.PageSize)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Data {
			if obj.Data != nil {
				out = append(out, *obj.Data)
			}
		}
		if !page.HasNextPage || page.NextCursor == nil || *page.NextCursor == "" {
			return out, nil
		}
		cursor = *page.NextCursor
	}
}

// fillContent re-fetches objects the owned-objects listing returned without content
func (g *Gateway) fillContent(ctx context.Context, objects []ObjectData) error {
	var missing []int
	for i := range objects {
		if objects[i].Content == nil {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	pool, err := ants.NewPool(g.opts.Workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, idx := range missing {
		idx := idx
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			resp, err := g.ledger.GetObject(ctx, objects[idx].ObjectID)
			if err != nil || resp.Data == nil {
				zap.L().Warn("object content lookup failed",
					zap.String("object_id", objects[idx].ObjectID),
					zap.Error(err),
					zap.String("namespace", "chain"),
				)
				return
			}
			objects[idx].Content = resp.Data.Content
		})
		if submitErr != nil {
			wg.Done()
			return submitErr
		}
	}
	wg.Wait()
	return nil
}

// ownedOfType returns the owned objects of one supplychain struct type, with content
func (g *Gateway) ownedOfType(ctx context.Context, owner, name string) ([]ObjectData, error) {
	if g.opts.PackageID == "" {
		return nil, ErrConfigMissing
	}
	objects, err := g.ownedObjects(ctx, owner)
	if err != nil {
		return nil, errors.Wrapf(err, "list objects of %s", owner)
	}
	want := g.structType(name)
	matched := make([]ObjectData, 0, len(objects))
	for _, obj := range objects {
		if SameStructType(obj.ObjectType(), want) {
			matched = append(matched, obj)
		}
	}
	if err := g.fillContent(ctx, matched); err != nil {
		return nil, err
	}
	return matched, nil
}

// LoadStoresFromChain returns the Shop objects owned by owner as stores.
// Concurrent calls for the same owner share one ledger round trip.
func (g *Gateway) LoadStoresFromChain(ctx context.Context, owner string) ([]domain.Store, error) {
	v, err, _ := g.group.Do("stores:"+owner, func() (interface{}, error) {
		objects, err := g.ownedOfType(ctx, owner, "Shop")
		if err != nil {
			return nil, err
		}
		stores := make([]domain.Store, 0, len(objects))
		for i := range objects {
			store, err := DecodeShop(&objects[i], owner)
			if err != nil {
				zap.L().Warn("skip undecodable shop", zap.Error(err), zap.String("namespace", "chain"))
				continue
			}
			stores = append(stores, *store)
		}
		return stores, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Store), nil
}

// LoadOrdersFromChain returns the escrow orders owned by owner, oldest first, with countdowns computed
func (g *Gateway) LoadOrdersFromChain(ctx context.Context, owner string) ([]domain.Order, error) {
	v, err, _ := g.group.Do("orders:"+owner, func() (interface{}, error) {
		objects, err := g.ownedOfType(ctx, owner, "Order")
		if err != nil {
			return nil, err
		}
		now := g.clock.Now()
		orders := make([]domain.Order, 0, len(objects))
		for i := range objects {
			order, err := DecodeOrder(&objects[i], now)
			if err != nil {
				zap.L().Warn("skip undecodable order", zap.Error(err), zap.String("namespace", "chain"))
				continue
			}
			orders = append(orders, *order)
		}
		sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt < orders[j].CreatedAt })
		return orders, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Order), nil
}

// Coins lists the SUI coins of owner, largest balance first
func (g *Gateway) Coins(ctx context.Context, owner string) ([]Coin, error) {
	var coins []Coin
	cursor := ""
	for {
		page, err := g.ledger.GetCoins(ctx, owner, SuiCoinType, cursor, g.opts.PageSize)
		if err != nil {
			return nil, errors.Wrapf(err, "list coins of %s", owner)
		}
		coins = append(coins, page.Data...)
		if !page.HasNextPage || page.NextCursor == nil || *page.NextCursor == "" {
			break
		}
		cursor = *page.NextCursor
	}
	sort.SliceStable(coins, func(i, j int) bool { return coins[i].Amount() > coins[j].Amount() })
	return coins, nil
}

// EscrowOrderRequest describes an escrow-backed purchase order
type EscrowOrderRequest struct {
	StoreAddress string      `json:"store_address"`
	SupplierID   int64       `json:"supplier_id"`
	ItemName     string      `json:"item_name"`
	Quantity     int64       `json:"quantity"`
	TotalPrice   int64       `json:"total_price"` // MIST
	Coin         FundingCoin `json:"coin"`
}

// EscrowOrderCreated is the result of CreateEscrowOrder
type EscrowOrderCreated struct {
	Digest  string `json:"digest"`
	OrderID string `json:"order_id"`
}

// CheckFunding verifies that coin covers total plus the gas buffer
func (g *Gateway) CheckFunding(coin FundingCoin, total int64) error {
	if coin.Balance < total+g.opts.GasBuffer {
		return &InsufficientBalanceError{
			CoinID:    coin.ObjectID,
			Balance:   coin.Balance,
			Required:  total,
			GasBuffer: g.opts.GasBuffer,
		}
	}
	return nil
}

// CreateEscrowOrder locks TotalPrice from the funding coin in a new order object transferred to
// the store, waits for finality and recovers the order id from the OrderCreatedEvent.
// Every local check runs before anything is sent.
func (g *Gateway) CreateEscrowOrder(ctx context.Context, signer Signer, req EscrowOrderRequest) (*EscrowOrderCreated, error) {
	if err := g.ready(signer); err != nil {
		return nil, err
	}
	switch {
	case req.StoreAddress == "":
		return nil, domain.NewValidationError("store_address", "is required")
	case strings.TrimSpace(req.ItemName) == "":
		return nil, domain.NewValidationError("item_name", "is required")
	case req.Quantity <= 0:
		return nil, domain.NewValidationError("quantity", "must be positive")
	case req.TotalPrice <= 0:
		return nil, domain.NewValidationError("total_price", "must be positive")
	}
	if err := g.CheckFunding(req.Coin, req.TotalPrice); err != nil {
		return nil, err
	}

	tx := NewTransaction()
	source := tx.Gas()
	if req.Coin.ObjectID != "" {
		source = tx.Object(req.Coin.ObjectID)
	}
	escrow := tx.SplitCoins(source, tx.PureU64(uint64(req.TotalPrice)))[0]
	order := tx.MoveCall(g.target("create_order"), nil,
		tx.PureAddress(req.StoreAddress),
		tx.PureU64(uint64(req.SupplierID)),
		tx.PureBytes([]byte(req.ItemName)),
		tx.PureU64(uint64(req.Quantity)),
		tx.PureU64(uint64(req.TotalPrice)),
		escrow,
		tx.Object(g.opts.ClockObjectID),
	)
	tx.TransferObjects([]Argument{order}, tx.PureAddress(req.StoreAddress))

	block, err := g.execute(ctx, signer, tx, "create_order")
	if err != nil {
		return nil, err
	}
	orderID := g.orderIDFromEvents(block.Events)
	if orderID == "" {
		return nil, errors.Wrapf(ErrOrderEventMissing, "transaction %s", block.Digest)
	}
	zap.L().Info("escrow order created",
		zap.String("order_id", orderID),
		zap.String("digest", block.Digest),
		zap.String("store", req.StoreAddress),
		zap.Int64("total_price", req.TotalPrice),
		zap.String("namespace", "chain"),
	)
	return &EscrowOrderCreated{Digest: block.Digest, OrderID: orderID}, nil
}

func (g *Gateway) orderIDFromEvents(events []Event) string {
	want := g.structType("OrderCreatedEvent")
	for _, ev := range events {
		if !SameStructType(ev.Type, want) {
			continue
		}
		if id := cast.ToString(ev.ParsedJSON["order_id"]); id != "" {
			return id
		}
	}
	return ""
}

// ReleaseEscrow submits release_escrow(orderID, clock). The time lock is enforced by the ledger only.
func (g *Gateway) ReleaseEscrow(ctx context.Context, signer Signer, orderID string) (string, error) {
	if err := g.ready(signer); err != nil {
		return "", err
	}
	if orderID == "" {
		return "", domain.NewValidationError("order_id", "is required")
	}
	tx := NewTransaction()
	tx.MoveCall(g.target("release_escrow"), nil, tx.Object(orderID), tx.Object(g.opts.ClockObjectID))
	block, err := g.execute(ctx, signer, tx, "release_escrow")
	if err != nil {
		return "", err
	}
	return block.Digest, nil
}
