package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/supplychain/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) *GormRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "catalog.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Tables...))
	repo := NewGormRepository(db)
	require.NoError(t, repo.Seed(context.Background(), DefaultItems()))
	return repo
}

func TestSeedIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Seed(ctx, DefaultItems()))

	items, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, items, 4)

	apples, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, apples.BulkDiscounts, 2)
}

func TestListByCategory(t *testing.T) {
	repo := newTestRepo(t)
	fruits, err := repo.List(context.Background(), "Fruits")
	require.NoError(t, err)
	require.Len(t, fruits, 2)
	assert.Equal(t, "Apples", fruits[0].Name)
	assert.Equal(t, "Oranges", fruits[1].Name)
}

func TestGetUnknown(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestDecrement(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Decrement(ctx, "s3", 12))
	milk, err := repo.Get(ctx, "s3")
	require.NoError(t, err)
	assert.Equal(t, int64(18), milk.QtyAvailable)

	assert.ErrorIs(t, repo.Decrement(ctx, "s3", 19), ErrInsufficientStock)
	assert.ErrorIs(t, repo.Decrement(ctx, "missing", 1), domain.ErrItemNotFound)

	require.NoError(t, repo.Decrement(ctx, "s3", 18))
	milk, err = repo.Get(ctx, "s3")
	require.NoError(t, err)
	assert.Equal(t, int64(0), milk.QtyAvailable)
}

func TestValidate(t *testing.T) {
	item := DefaultItems()[0]
	assert.NoError(t, Validate(&item))

	item.Name = ""
	err := Validate(&item)
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))

	item = DefaultItems()[0]
	item.BulkDiscounts = append(item.BulkDiscounts, domain.BulkDiscount{MinQty: 0, DiscountPct: 5})
	assert.True(t, domain.IsValidationError(Validate(&item)))
}
