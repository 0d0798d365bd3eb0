package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/talkincode/supplychain/internal/domain"
	"github.com/talkincode/supplychain/pkg/common"
	"go.uber.org/zap"
)

// Service keeps the local copy of stores and applies inventory credits to it
type Service struct {
	repo StoreRepository
	mu   sync.Mutex // serializes load-fold-save cycles
}

// NewService creates an inventory service on repo
func NewService(repo StoreRepository) *Service {
	return &Service{repo: repo}
}

// CreateStore records a store created on the ledger with shelfCount empty shelves
func (s *Service) CreateStore(ctx context.Context, id, name, address, owner string, shelfCount int) (*domain.Store, error) {
	name = strings.TrimSpace(name)
	if id == "" {
		return nil, domain.NewValidationError("id", "is required")
	}
	if name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	if shelfCount <= 0 {
		shelfCount = domain.DefaultShelfCount
	}
	now := time.Now()
	store := &domain.Store{
		ID:        id,
		Name:      name,
		Address:   address,
		Owner:     owner,
		Shelves:   domain.NewShelves(id, shelfCount),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, store); err != nil {
		return nil, fmt.Errorf("create store %s: %w", id, err)
	}
	zap.L().Info("store created",
		zap.String("store_id", id),
		zap.String("name", name),
		zap.Int("shelves", shelfCount),
		zap.String("namespace", "inventory"),
	)
	return store, nil
}

// ImportStores inserts ledger stores that are unknown locally; known stores are left as they are.
// A store created here is keyed by its creation digest and records the shop object id as its
// address, so a ledger store also counts as known when its id matches a local address.
// It returns the number of stores inserted.
func (s *Service) ImportStores(ctx context.Context, stores []domain.Store) (int, error) {
	var inserted int
	for i := range stores {
		store := stores[i]
		known, err := s.known(ctx, store.ID)
		if err != nil {
			return inserted, err
		}
		if known {
			continue
		}
		now := time.Now()
		store.CreatedAt, store.UpdatedAt = now, now
		for hi := range store.Shelves {
			store.Shelves[hi].StoreID = store.ID
			for ii := range store.Shelves[hi].Items {
				if store.Shelves[hi].Items[ii].ID == "" {
					store.Shelves[hi].Items[ii].ID = common.UUID()
				}
			}
		}
		if err := s.repo.Create(ctx, &store); err != nil {
			return inserted, fmt.Errorf("import store %s: %w", store.ID, err)
		}
		inserted++
	}
	if inserted > 0 {
		zap.L().Info("stores imported from ledger",
			zap.Int("inserted", inserted),
			zap.String("namespace", "inventory"),
		)
	}
	return inserted, nil
}

func (s *Service) known(ctx context.Context, id string) (bool, error) {
	exists, err := s.repo.Exists(ctx, id)
	if err != nil || exists {
		return exists, err
	}
	return s.repo.ExistsByAddress(ctx, id)
}

// Stores returns every local store
func (s *Service) Stores(ctx context.Context) ([]domain.Store, error) {
	return s.repo.List(ctx)
}

// Store returns one local store
func (s *Service) Store(ctx context.Context, id string) (*domain.Store, error) {
	return s.repo.Get(ctx, id)
}

// CreditShelf merges items into a shelf and persists the result.
// Items without an id get a fresh one. An unknown store or shelf leaves the
// inventory untouched and returns ErrStoreNotFound or ErrShelfNotFound.
func (s *Service) CreditShelf(ctx context.Context, storeID, shelfID string, items ...domain.Item) (*domain.Shelf, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credit(ctx, s.repo, storeID, shelfID, items)
}

func (s *Service) credit(ctx context.Context, repo StoreRepository, storeID, shelfID string, items []domain.Item) (*domain.Shelf, error) {
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = common.UUID()
		}
	}

	var stores []domain.Store
	store, err := repo.Get(ctx, storeID)
	switch {
	case errors.Is(err, domain.ErrStoreNotFound):
	case err != nil:
		return nil, err
	default:
		stores = []domain.Store{*store}
	}
	updated, applied := AddItemToShelf(stores, storeID, shelfID, items...)
	if !applied {
		err := domain.ErrShelfNotFound
		if len(stores) == 0 {
			err = domain.ErrStoreNotFound
		}
		zap.L().Warn("inventory credit skipped, placement does not resolve",
			zap.String("store_id", storeID),
			zap.String("shelf_id", shelfID),
			zap.Error(err),
			zap.String("namespace", "inventory"),
		)
		return nil, err
	}

	shelf := findShelf(updated, storeID, shelfID)
	if err := repo.SaveShelfItems(ctx, shelfID, shelf.Items); err != nil {
		return nil, fmt.Errorf("save shelf %s: %w", shelfID, err)
	}
	zap.L().Info("shelf credited",
		zap.String("store_id", storeID),
		zap.String("shelf_id", shelfID),
		zap.Int("incoming", len(items)),
		zap.Int("lines", len(shelf.Items)),
		zap.String("namespace", "inventory"),
	)
	return shelf, nil
}

func findShelf(stores []domain.Store, storeID, shelfID string) *domain.Shelf {
	for i := range stores {
		if stores[i].ID != storeID {
			continue
		}
		if hi := stores[i].FindShelf(shelfID); hi >= 0 {
			return &stores[i].Shelves[hi]
		}
	}
	return nil
}
