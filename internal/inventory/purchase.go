package inventory

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/talkincode/supplychain/internal/catalog"
	"github.com/talkincode/supplychain/internal/domain"
	"github.com/talkincode/supplychain/internal/pricing"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PurchaseRequest buys Quantity units of a catalog item onto a shelf, to be sold at Price
type PurchaseRequest struct {
	StoreID        string  `json:"store_id"`
	ShelfID        string  `json:"shelf_id"`
	SupplierItemID string  `json:"supplier_item_id"`
	Quantity       int64   `json:"quantity"`
	Price          float64 `json:"price"`
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

// CheckAvailability rejects quantities the catalog entry cannot cover
func CheckAvailability(item *domain.SupplierItem, quantity int64) error {
	if quantity <= 0 {
		return domain.NewValidationError("quantity", "must be positive")
	}
	if quantity > item.QtyAvailable {
		return domain.NewValidationError("quantity", "only %d %s available", item.QtyAvailable, item.Name)
	}
	return nil
}

// PurchaseResult is the outcome of a direct purchase
type PurchaseResult struct {
	Item  domain.Item   `json:"item"`
	Quote pricing.Quote `json:"quote"`
	Shelf *domain.Shelf `json:"shelf"`
}

// Purchaser runs simulated supplier purchases straight into the local inventory
type Purchaser struct {
	db        *gorm.DB
	catalog   catalog.Repository
	inventory *Service
}

// NewPurchaser creates a purchaser; db is used to make the stock decrement and the shelf credit atomic
func NewPurchaser(db *gorm.DB, catalogRepo catalog.Repository, inventory *Service) *Purchaser {
	return &Purchaser{db: db, catalog: catalogRepo, inventory: inventory}
}

// Buy validates the request, prices it with the bulk discount, credits the shelf and
// decrements supplier stock in one database transaction.
func (p *Purchaser) Buy(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	supplierItem, err := p.catalog.Get(ctx, req.SupplierItemID)
	if err != nil {
		return nil, err
	}
	if err := CheckAvailability(supplierItem, req.Quantity); err != nil {
		return nil, err
	}

	quote := pricing.QuoteFor(supplierItem, req.Quantity)
	unitCost, discount := quote.UnitCost, quote.DiscountPct
	item := domain.Item{
		Name:               supplierItem.Name,
		Price:              req.Price,
		Quantity:           req.Quantity,
		UnitCost:           &unitCost,
		DiscountAppliedPct: &discount,
		Supplier:           supplierItem.ID,
	}

	var shelf *domain.Shelf
	p.inventory.mu.Lock()
	defer p.inventory.mu.Unlock()
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := catalog.NewGormRepository(tx).Decrement(ctx, supplierItem.ID, req.Quantity); err != nil {
			return err
		}
		items := []domain.Item{item}
		credited, err := p.inventory.credit(ctx, NewGormStoreRepository(tx), req.StoreID, req.ShelfID, items)
		if err != nil {
			return err
		}
		shelf = credited
		if i := shelf.FindLine(item); i >= 0 {
			item = shelf.Items[i]
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("purchase %s: %w", supplierItem.ID, err)
	}

	zap.L().Info("supplier purchase completed",
		zap.String("supplier_item", supplierItem.ID),
		zap.Int64("quantity", req.Quantity),
		zap.Float64("discount_pct", discount),
		zap.String("store_id", req.StoreID),
		zap.String("shelf_id", req.ShelfID),
		zap.String("namespace", "inventory"),
	)
	return &PurchaseResult{Item: item, Quote: quote, Shelf: shelf}, nil
}
