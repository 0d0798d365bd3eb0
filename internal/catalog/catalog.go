package catalog

import (
	"context"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/talkincode/supplychain/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInsufficientStock is returned when a purchase exceeds qtyAvailable
var ErrInsufficientStock = errors.New("insufficient supplier stock")

// DefaultItems is the static supplier catalog seeded on first start
func DefaultItems() []domain.SupplierItem {
	return []domain.SupplierItem{
		{
			ID: "s1", SupplierID: 1, Name: "Apples", Category: "Fruits",
			UnitCost: 1, BaseRetailPrice: 1.5, QtyAvailable: 100, Img: "/img/apples.png",
			BulkDiscounts: []domain.BulkDiscount{{MinQty: 10, DiscountPct: 5}, {MinQty: 50, DiscountPct: 10}},
		},
		{
			ID: "s2", SupplierID: 1, Name: "Oranges", Category: "Fruits",
			UnitCost: 2, BaseRetailPrice: 2.8, QtyAvailable: 50, Img: "/img/oranges.png",
			BulkDiscounts: []domain.BulkDiscount{{MinQty: 20, DiscountPct: 8}},
		},
		{
			ID: "s3", SupplierID: 3, Name: "Milk", Category: "Dairy",
			UnitCost: 3, BaseRetailPrice: 4, QtyAvailable: 30, Img: "/img/milk.png",
			BulkDiscounts: []domain.BulkDiscount{{MinQty: 10, DiscountPct: 5}},
		},
		{
			ID: "s4", SupplierID: 2, Name: "Battery Pack", Category: "Electronics",
			UnitCost: 12.5, BaseRetailPrice: 18, QtyAvailable: 20, Img: "/img/battery.png",
			BulkDiscounts: []domain.BulkDiscount{{MinQty: 5, DiscountPct: 3}, {MinQty: 10, DiscountPct: 7}},
		},
	}
}

// Validate checks a catalog entry before it is stored
func Validate(item *domain.SupplierItem) error {
	err := validation.ValidateStruct(item,
		validation.Field(&item.ID, validation.Required),
		validation.Field(&item.Name, validation.Required),
		validation.Field(&item.UnitCost, validation.Min(0.0)),
		validation.Field(&item.QtyAvailable, validation.Min(int64(0))),
	)
	if err != nil {
		return domain.AsValidationError(err)
	}
	for _, tier := range item.BulkDiscounts {
		if tier.MinQty < 1 {
			return domain.NewValidationError("bulk_discounts", "min_qty must be positive")
		}
		if tier.DiscountPct < 0 || tier.DiscountPct > 100 {
			return domain.NewValidationError("bulk_discounts", "discount_pct must be within 0..100")
		}
	}
	return nil
}

// Repository gives access to the supplier catalog
type Repository interface {
	// List returns catalog entries, optionally restricted to one category
	List(ctx context.Context, category string) ([]domain.SupplierItem, error)

	// Get returns one catalog entry with its discount tiers
	Get(ctx context.Context, id string) (*domain.SupplierItem, error)

	// Decrement lowers qtyAvailable, failing with ErrInsufficientStock when not enough is left
	Decrement(ctx context.Context, id string, qty int64) error

	// Seed inserts the given entries that are not yet present
	Seed(ctx context.Context, items []domain.SupplierItem) error
}

// GormRepository is the GORM implementation of Repository
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a catalog repository on db
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) List(ctx context.Context, category string) ([]domain.SupplierItem, error) {
	var items []domain.SupplierItem
	q := r.db.WithContext(ctx).Preload("BulkDiscounts")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	err := q.Order("id ASC").Find(&items).Error
	return items, err
}

func (r *GormRepository) Get(ctx context.Context, id string) (*domain.SupplierItem, error) {
	var item domain.SupplierItem
	err := r.db.WithContext(ctx).Preload("BulkDiscounts").Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepository) Decrement(ctx context.Context, id string, qty int64) error {
	res := r.db.WithContext(ctx).Model(&domain.SupplierItem{}).
		Where("id = ? AND qty_available >= ?", id, qty).
		Update("qty_available", gorm.Expr("qty_available - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		r.db.WithContext(ctx).Model(&domain.SupplierItem{}).Where("id = ?", id).Count(&count)
		if count == 0 {
			return domain.ErrItemNotFound
		}
		return ErrInsufficientStock
	}
	return nil
}

func (r *GormRepository) Seed(ctx context.Context, items []domain.SupplierItem) error {
	var inserted int
	for i := range items {
		if err := Validate(&items[i]); err != nil {
			return err
		}
		var count int64
		if err := r.db.WithContext(ctx).Model(&domain.SupplierItem{}).Where("id = ?", items[i].ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := r.db.WithContext(ctx).Create(&items[i]).Error; err != nil {
			return err
		}
		inserted++
	}
	zap.L().Info("supplier catalog seeded",
		zap.Int("entries", len(items)),
		zap.Int("inserted", inserted),
		zap.String("namespace", "catalog"),
	)
	return nil
}
