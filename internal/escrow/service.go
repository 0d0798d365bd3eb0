package escrow

import (
	"context"
	"fmt"

	"github.com/asaskevich/EventBus"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/juju/clock"
	"github.com/talkincode/supplychain/internal/catalog"
	"github.com/talkincode/supplychain/internal/chain"
	"github.com/talkincode/supplychain/internal/domain"
	"github.com/talkincode/supplychain/internal/inventory"
	"github.com/talkincode/supplychain/internal/pricing"
	"go.uber.org/zap"
)

// OrderCreator is the part of the chain gateway that opens escrow orders
type OrderCreator interface {
	// Coins lists the SUI coins of owner, largest first
	Coins(ctx context.Context, owner string) ([]chain.Coin, error)
	CreateEscrowOrder(ctx context.Context, signer chain.Signer, req chain.EscrowOrderRequest) (*chain.EscrowOrderCreated, error)
}

// StoreLookup resolves local stores
type StoreLookup interface {
	Store(ctx context.Context, id string) (*domain.Store, error)
}

// PurchaseRequest buys catalog goods through an escrow order. The goods land on ShelfID once
// the order is released. StoreAddress defaults to the tracked account so the order shows up in
// its pending list. CoinID picks the funding coin; without it the order is paid from the gas coin.
type PurchaseRequest struct {
	StoreID        string  `json:"store_id"`
	ShelfID        string  `json:"shelf_id"`
	SupplierItemID string  `json:"supplier_item_id"`
	Quantity       int64   `json:"quantity"`
	Price          float64 `json:"price"`
	StoreAddress   string  `json:"store_address"`
	CoinID         string  `json:"coin_id"`
}

// Validate checks the request fields that do not need the catalog
func (r PurchaseRequest) Validate() error {
	return domain.AsValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.StoreID, validation.Required),
		validation.Field(&r.ShelfID, validation.Required),
		validation.Field(&r.SupplierItemID, validation.Required),
		validation.Field(&r.Quantity, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Price, validation.Min(0.0)),
	))
}

// PurchaseResult is the outcome of an escrow purchase
type PurchaseResult struct {
	OrderID string           `json:"order_id"`
	Digest  string           `json:"digest"`
	Quote   pricing.Quote    `json:"quote"`
	Meta    domain.OrderMeta `json:"meta"`
}

// Service opens escrow orders for catalog purchases
type Service struct {
	gateway OrderCreator
	signer  chain.Signer
	catalog catalog.Repository
	stores  StoreLookup
	meta    MetadataStore
	tracker *Tracker
	bus     EventBus.Bus
	clock   clock.Clock
}

// ServiceConfig holds the collaborators of a Service
type ServiceConfig struct {
	Gateway OrderCreator
	Signer  chain.Signer
	Catalog catalog.Repository
	Stores  StoreLookup
	Meta    MetadataStore
	Tracker *Tracker
	Bus     EventBus.Bus
	Clock   clock.Clock
}

// NewService creates an escrow purchase service
func NewService(cfg ServiceConfig) *Service {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	return &Service{
		gateway: cfg.Gateway,
		signer:  cfg.Signer,
		catalog: cfg.Catalog,
		stores:  cfg.Stores,
		meta:    cfg.Meta,
		tracker: cfg.Tracker,
		bus:     cfg.Bus,
		clock:   clk,
	}
}

// CreateOrder validates and prices the purchase, opens the escrow order on the ledger, caches the
// shelf placement for the release, decrements supplier stock and starts tracking the order
func (s *Service) CreateOrder(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.signer == nil {
		return nil, chain.ErrNoSigner
	}
	store, err := s.stores.Store(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}
	if store.FindShelf(req.ShelfID) < 0 {
		return nil, domain.ErrShelfNotFound
	}
	item, err := s.catalog.Get(ctx, req.SupplierItemID)
	if err != nil {
		return nil, err
	}
	if err := inventory.CheckAvailability(item, req.Quantity); err != nil {
		return nil, err
	}

	quote := pricing.QuoteFor(item, req.Quantity)
	storeAddress := req.StoreAddress
	if storeAddress == "" && s.tracker != nil {
		storeAddress = s.tracker.Owner()
	}
	if storeAddress == "" {
		storeAddress = s.signer.Address()
	}

	coin, err := s.fundingCoin(ctx, req.CoinID)
	if err != nil {
		return nil, err
	}

	created, err := s.gateway.CreateEscrowOrder(ctx, s.signer, chain.EscrowOrderRequest{
		StoreAddress: storeAddress,
		SupplierID:   item.SupplierID,
		ItemName:     item.Name,
		Quantity:     req.Quantity,
		TotalPrice:   quote.TotalMinor,
		Coin:         coin,
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	meta := domain.OrderMeta{
		OrderID:    created.OrderID,
		StoreID:    req.StoreID,
		ShelfID:    req.ShelfID,
		ItemName:   item.Name,
		Quantity:   req.Quantity,
		Price:      req.Price,
		SupplierID: item.SupplierID,
		CreatedAt:  now,
	}
	res := &PurchaseResult{OrderID: created.OrderID, Digest: created.Digest, Quote: quote, Meta: meta}

	if err := s.meta.Put(meta); err != nil {
		zap.L().Error("escrow order created but placement not cached",
			zap.String("order_id", created.OrderID),
			zap.Error(err),
			zap.String("namespace", "escrow"),
		)
		return res, fmt.Errorf("cache placement of %s: %w", created.OrderID, err)
	}
	if err := s.catalog.Decrement(ctx, item.ID, req.Quantity); err != nil {
		zap.L().Warn("supplier stock not decremented after escrow order",
			zap.String("supplier_item", item.ID),
			zap.String("order_id", created.OrderID),
			zap.Error(err),
			zap.String("namespace", "escrow"),
		)
	}

	if s.tracker != nil {
		s.tracker.Track(domain.Order{
			ID:           created.OrderID,
			StoreAddress: storeAddress,
			SupplierID:   item.SupplierID,
			ItemName:     item.Name,
			Quantity:     req.Quantity,
			TotalPrice:   quote.TotalMinor,
			CreatedAt:    now.UnixMilli(),
		})
	}

	publish(s.bus, TopicOrderCreated, OrderEvent{
		OrderID: created.OrderID,
		Digest:  created.Digest,
		Action:  "created",
		Status:  "success",
		Payload: res,
	})
	zap.L().Info("escrow purchase opened",
		zap.String("order_id", created.OrderID),
		zap.String("supplier_item", item.ID),
		zap.Int64("quantity", req.Quantity),
		zap.String("total", quote.TotalDisplay),
		zap.String("namespace", "escrow"),
	)
	return res, nil
}

// fundingCoin reads the balance of the paying coin from the ledger. A named coin must belong to
// the signer. Without one the largest coin stands in for the gas coin.
func (s *Service) fundingCoin(ctx context.Context, coinID string) (chain.FundingCoin, error) {
	owner := s.signer.Address()
	coins, err := s.gateway.Coins(ctx, owner)
	if err != nil {
		return chain.FundingCoin{}, err
	}
	if coinID == "" {
		if len(coins) == 0 {
			return chain.FundingCoin{}, nil
		}
		return chain.FundingCoin{Balance: coins[0].Amount()}, nil
	}
	for _, c := range coins {
		if c.CoinObjectID == coinID {
			return chain.FundingCoin{ObjectID: coinID, Balance: c.Amount()}, nil
		}
	}
	return chain.FundingCoin{}, domain.NewValidationError("coin_id", "coin %s is not owned by %s", coinID, owner)
}

// Metadata lists the cached placements of unreleased orders
func (s *Service) Metadata() ([]domain.OrderMeta, error) {
	return s.meta.List()
}
