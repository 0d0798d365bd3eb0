package inventory

import (
	"context"
	"errors"

	"github.com/talkincode/supplychain/internal/domain"
	"gorm.io/gorm"
)

// StoreRepository handles database operations for stores, shelves and items
type StoreRepository interface {
	// Create inserts a store together with its shelves and items
	Create(ctx context.Context, store *domain.Store) error

	// Exists reports whether a store id is known locally
	Exists(ctx context.Context, id string) (bool, error)

	// ExistsByAddress reports whether a local store records address as its ledger object id
	ExistsByAddress(ctx context.Context, address string) (bool, error)

	// Get retrieves one store with shelves ordered by position
	Get(ctx context.Context, id string) (*domain.Store, error)

	// List retrieves every store with shelves and items
	List(ctx context.Context) ([]domain.Store, error)

	// SaveShelfItems upserts the items of one shelf
	SaveShelfItems(ctx context.Context, shelfID string, items []domain.Item) error
}

// GormStoreRepository is the GORM implementation of StoreRepository
type GormStoreRepository struct {
	db *gorm.DB
}

// NewGormStoreRepository creates a new GORM-based repository
func NewGormStoreRepository(db *gorm.DB) *GormStoreRepository {
	return &GormStoreRepository{db: db}
}

func (r *GormStoreRepository) withShelves(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Shelves", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Shelves.Items", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC, price ASC") })
}

func (r *GormStoreRepository) Create(ctx context.Context, store *domain.Store) error {
	return r.db.WithContext(ctx).Create(store).Error
}

func (r *GormStoreRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Store{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *GormStoreRepository) ExistsByAddress(ctx context.Context, address string) (bool, error) {
	if address == "" {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Store{}).Where("address = ?", address).Count(&count).Error
	return count > 0, err
}

func (r *GormStoreRepository) Get(ctx context.Context, id string) (*domain.Store, error) {
	var store domain.Store
	err := r.withShelves(ctx).Where("id = ?", id).First(&store).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *GormStoreRepository) List(ctx context.Context) ([]domain.Store, error) {
	var stores []domain.Store
	err := r.withShelves(ctx).Order("created_at ASC").Find(&stores).Error
	return stores, err
}

func (r *GormStoreRepository) SaveShelfItems(ctx context.Context, shelfID string, items []domain.Item) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range items {
			items[i].ShelfID = shelfID
			if err := tx.Save(&items[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
