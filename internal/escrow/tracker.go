package escrow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/juju/clock"
	"github.com/talkincode/supplychain/internal/chain"
	"github.com/talkincode/supplychain/internal/domain"
	"github.com/talkincode/supplychain/pkg/common"
	"go.uber.org/zap"
)

// ErrReleaseInFlight is returned when a release of the same order is already running
var ErrReleaseInFlight = errors.New("escrow release already in flight")

// ErrOrderNotTracked is returned for order ids the tracker does not know
var ErrOrderNotTracked = errors.New("escrow order not tracked")

// Default loop intervals
const (
	DefaultTickInterval    = time.Second
	DefaultRefreshInterval = 5 * time.Second
)

// localGrace is how long an order added with Track survives refreshes that do not return it yet
const localGrace = 30 * time.Second

// OrderLedger is the part of the chain gateway the tracker needs
type OrderLedger interface {
	LoadOrdersFromChain(ctx context.Context, owner string) ([]domain.Order, error)
	ReleaseEscrow(ctx context.Context, signer chain.Signer, orderID string) (string, error)
}

// ShelfCreditor applies released goods to the local inventory
type ShelfCreditor interface {
	CreditShelf(ctx context.Context, storeID, shelfID string, items ...domain.Item) (*domain.Shelf, error)
}

// ReleaseResult is the outcome of a successful on-chain release
type ReleaseResult struct {
	OrderID     string       `json:"order_id"`
	Digest      string       `json:"digest"`
	Credited    bool         `json:"credited"`
	StoreID     string       `json:"store_id,omitempty"`
	ShelfID     string       `json:"shelf_id,omitempty"`
	Item        *domain.Item `json:"item,omitempty"`
	CreditError string       `json:"credit_error,omitempty"`
}

// Tracker keeps the pending escrow orders of one account, their countdowns, and reconciles
// the local inventory when an order is released
type Tracker struct {
	ledger    OrderLedger
	signer    chain.Signer
	owner     string
	meta      MetadataStore
	inventory ShelfCreditor
	bus       EventBus.Bus
	clock     clock.Clock

	mu          sync.RWMutex
	orders      map[string]*domain.Order
	local       map[string]time.Time // ids added by Track and not yet seen on the ledger
	releasing   map[string]struct{}
	lastRefresh time.Time
	lastErr     error

	stopChan chan struct{}
	stopOnce sync.Once
}

// TrackerConfig holds the collaborators of a Tracker
type TrackerConfig struct {
	Ledger    OrderLedger
	Signer    chain.Signer
	Owner     string
	Meta      MetadataStore
	Inventory ShelfCreditor
	Bus       EventBus.Bus
	Clock     clock.Clock
}

// NewTracker creates a tracker; a nil clock means wall clock time
func NewTracker(cfg TrackerConfig) *Tracker {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	owner := cfg.Owner
	if owner == "" && cfg.Signer != nil {
		owner = cfg.Signer.Address()
	}
	return &Tracker{
		ledger:    cfg.Ledger,
		signer:    cfg.Signer,
		owner:     owner,
		meta:      cfg.Meta,
		inventory: cfg.Inventory,
		bus:       cfg.Bus,
		clock:     clk,
		orders:    make(map[string]*domain.Order),
		local:     make(map[string]time.Time),
		releasing: make(map[string]struct{}),
		stopChan:  make(chan struct{}),
	}
}

// Owner returns the account whose orders are tracked
func (t *Tracker) Owner() string {
	return t.owner
}

// Start runs an initial refresh, then recomputes countdowns every tick and reloads from the
// ledger every refresh until Stop is called or ctx is done
func (t *Tracker) Start(ctx context.Context, tick, refresh time.Duration) {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	go t.loop(ctx, tick, refresh)

	zap.L().Info("escrow tracker started",
		zap.String("owner", t.owner),
		zap.Duration("tick_interval", tick),
		zap.Duration("refresh_interval", refresh),
		zap.String("namespace", "escrow"),
	)
}

// Stop ends the tracker loops
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopChan)
		zap.L().Info("escrow tracker stopped", zap.String("namespace", "escrow"))
	})
}

func (t *Tracker) loop(ctx context.Context, tick, refresh time.Duration) {
	t.safeRefresh(ctx)
	tickC := t.clock.After(tick)
	refreshC := t.clock.After(refresh)
	for {
		select {
		case <-tickC:
			t.tick()
			tickC = t.clock.After(tick)
		case <-refreshC:
			t.safeRefresh(ctx)
			refreshC = t.clock.After(refresh)
		case <-t.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (t *Tracker) safeRefresh(ctx context.Context) {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Errorf("escrow refresh panic: %v\n%s", err, debug.Stack())
		}
	}()
	if err := t.Refresh(ctx); err != nil {
		zap.L().Warn("escrow refresh failed",
			zap.String("owner", t.owner),
			zap.Error(err),
			zap.String("namespace", "escrow"),
		)
	}
}

// tick recomputes every countdown from the current time
func (t *Tracker) tick() {
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, order := range t.orders {
		order.Recompute(now)
	}
}

// Refresh reloads the owner's orders from the ledger and merges them by id: known orders are
// updated in place, new ones added, and orders the ledger no longer returns are dropped.
// On error the tracked set is left unchanged.
func (t *Tracker) Refresh(ctx context.Context) error {
	if t.owner == "" {
		return chain.ErrNoSigner
	}
	loaded, err := t.ledger.LoadOrdersFromChain(ctx, t.owner)
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastRefresh = now
	t.lastErr = err
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(loaded))
	for i := range loaded {
		order := loaded[i]
		seen[order.ID] = struct{}{}
		delete(t.local, order.ID)
		if existing, ok := t.orders[order.ID]; ok {
			*existing = order
			existing.Recompute(now)
			continue
		}
		order.Recompute(now)
		t.orders[order.ID] = &order
	}
	for id := range t.orders {
		if _, ok := seen[id]; ok {
			continue
		}
		if added, ok := t.local[id]; ok && now.Sub(added) < localGrace {
			continue
		}
		if _, busy := t.releasing[id]; busy {
			continue
		}
		delete(t.orders, id)
		delete(t.local, id)
	}
	return nil
}

// Track adds an order created by this process without waiting for the next refresh.
// The order stays pending until a refresh brings in the ledger copy with its release delay.
func (t *Tracker) Track(order domain.Order) {
	if order.ID == "" {
		return
	}
	now := t.clock.Now()
	order.AwaitingLedger = true
	order.Recompute(now)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.orders[order.ID]; ok {
		return
	}
	t.orders[order.ID] = &order
	t.local[order.ID] = now
}

// Orders returns a snapshot of the tracked orders, oldest first
func (t *Tracker) Orders() []domain.Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Order, 0, len(t.orders))
	for _, order := range t.orders {
		out = append(out, *order)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out
}

// Order returns one tracked order
func (t *Tracker) Order(orderID string) (domain.Order, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	order, ok := t.orders[orderID]
	if !ok {
		return domain.Order{}, false
	}
	return *order, true
}

// LastRefresh returns the time and error of the last ledger reload
func (t *Tracker) LastRefresh() (time.Time, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastRefresh, t.lastErr
}

// Release submits the release of orderID. The time lock is left to the ledger. On failure the
// order stays tracked and the error is returned. On success the cached placement, when present,
// is consumed and one item is credited to the cached shelf; the order then leaves the tracked set.
func (t *Tracker) Release(ctx context.Context, orderID string) (*ReleaseResult, error) {
	if orderID == "" {
		return nil, domain.NewValidationError("order_id", "is required")
	}
	t.mu.Lock()
	if _, busy := t.releasing[orderID]; busy {
		t.mu.Unlock()
		return nil, ErrReleaseInFlight
	}
	t.releasing[orderID] = struct{}{}
	var order *domain.Order
	if o, ok := t.orders[orderID]; ok {
		oc := *o
		order = &oc
	}
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.releasing, orderID)
		t.mu.Unlock()
	}()

	digest, err := t.ledger.ReleaseEscrow(ctx, t.signer, orderID)
	if err != nil {
		zap.L().Error("escrow release failed",
			zap.String("order_id", orderID),
			zap.Error(err),
			zap.String("namespace", "escrow"),
		)
		publish(t.bus, TopicOrderReleaseFailed, OrderEvent{
			OrderID: orderID,
			Action:  "release_failed",
			Status:  "failure",
			Err:     err.Error(),
		})
		return nil, err
	}

	res := &ReleaseResult{OrderID: orderID, Digest: digest}
	if t.meta != nil {
		t.reconcile(ctx, order, res)
	}

	t.mu.Lock()
	delete(t.orders, orderID)
	delete(t.local, orderID)
	t.mu.Unlock()

	zap.L().Info("escrow released",
		zap.String("order_id", orderID),
		zap.String("digest", digest),
		zap.Bool("credited", res.Credited),
		zap.String("namespace", "escrow"),
	)
	publish(t.bus, TopicOrderReleased, OrderEvent{
		OrderID: orderID,
		Digest:  digest,
		Action:  "released",
		Status:  "success",
		Payload: res,
	})
	return res, nil
}

// reconcile consumes the cached placement of a released order and credits the goods.
// A placement that no longer resolves is dropped; any other credit failure keeps it cached.
func (t *Tracker) reconcile(ctx context.Context, order *domain.Order, res *ReleaseResult) {
	found, err := t.meta.Consume(res.OrderID, func(meta *domain.OrderMeta) error {
		if meta.StoreID == "" || meta.ShelfID == "" || t.inventory == nil {
			return nil
		}
		supplierID := meta.SupplierID
		if order != nil {
			supplierID = order.SupplierID
		}
		item := domain.Item{
			ID:       common.UUID(),
			Name:     meta.ItemName,
			Price:    meta.Price,
			Quantity: meta.Quantity,
			Supplier: strconv.FormatInt(supplierID, 10),
		}
		res.StoreID, res.ShelfID = meta.StoreID, meta.ShelfID
		_, err := t.inventory.CreditShelf(ctx, meta.StoreID, meta.ShelfID, item)
		switch {
		case err == nil:
			res.Item = &item
			res.Credited = true
			return nil
		case errors.Is(err, domain.ErrStoreNotFound), errors.Is(err, domain.ErrShelfNotFound):
			res.CreditError = err.Error()
			return nil
		default:
			return err
		}
	})
	if err != nil {
		res.CreditError = fmt.Sprintf("credit shelf: %v", err)
		zap.L().Error("escrow reconciliation failed, placement kept",
			zap.String("order_id", res.OrderID),
			zap.Error(err),
			zap.String("namespace", "escrow"),
		)
		return
	}
	if !found {
		zap.L().Info("no cached placement for released order",
			zap.String("order_id", res.OrderID),
			zap.String("namespace", "escrow"),
		)
	}
}
