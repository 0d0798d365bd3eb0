package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/supplychain/internal/domain"
)

func sampleStores() []domain.Store {
	store := domain.Store{ID: "0xabc", Name: "Corner Shop", Shelves: domain.NewShelves("0xabc", 3)}
	store.Shelves[0].Items = []domain.Item{{ID: "i1", Name: "Apples", Price: 1, Quantity: 3}}
	other := domain.Store{ID: "0xdef", Name: "Other", Shelves: domain.NewShelves("0xdef", 1)}
	return []domain.Store{store, other}
}

func TestAddItemToShelfMergesSameLine(t *testing.T) {
	stores := sampleStores()
	out, applied := AddItemToShelf(stores, "0xabc", "0xabc-shelf-0", domain.Item{ID: "i2", Name: "Apples", Price: 1, Quantity: 5})
	require.True(t, applied)

	items := out[0].Shelves[0].Items
	require.Len(t, items, 1)
	assert.Equal(t, int64(8), items[0].Quantity)
	assert.Equal(t, "i1", items[0].ID)

	// input collection is not mutated
	assert.Equal(t, int64(3), stores[0].Shelves[0].Items[0].Quantity)
}

func TestAddItemToShelfAppendsDifferentPrice(t *testing.T) {
	out, applied := AddItemToShelf(sampleStores(), "0xabc", "0xabc-shelf-0", domain.Item{ID: "i2", Name: "Apples", Price: 1.5, Quantity: 5})
	require.True(t, applied)

	items := out[0].Shelves[0].Items
	require.Len(t, items, 2)
	assert.Equal(t, int64(3), items[0].Quantity)
	assert.Equal(t, 1.5, items[1].Price)
	assert.Equal(t, int64(5), items[1].Quantity)
}

func TestAddItemToShelfFoldsBatch(t *testing.T) {
	out, applied := AddItemToShelf(sampleStores(), "0xabc", "0xabc-shelf-1",
		domain.Item{ID: "a", Name: "Milk", Price: 4, Quantity: 2},
		domain.Item{ID: "b", Name: "Milk", Price: 4, Quantity: 3},
		domain.Item{ID: "c", Name: "Oranges", Price: 3, Quantity: 1},
	)
	require.True(t, applied)
	items := out[0].Shelves[1].Items
	require.Len(t, items, 2)
	assert.Equal(t, int64(5), items[0].Quantity)
	assert.Equal(t, "Oranges", items[1].Name)
}

func TestAddItemToShelfUnresolved(t *testing.T) {
	stores := sampleStores()
	incoming := domain.Item{ID: "x", Name: "Apples", Price: 1, Quantity: 1}

	out, applied := AddItemToShelf(stores, "0xmissing", "0xabc-shelf-0", incoming)
	assert.False(t, applied)
	assert.Equal(t, stores, out)

	out, applied = AddItemToShelf(stores, "0xabc", "0xabc-shelf-9", incoming)
	assert.False(t, applied)
	assert.Equal(t, stores, out)
}

func TestAddItemToShelfLeavesOtherStores(t *testing.T) {
	stores := sampleStores()
	out, applied := AddItemToShelf(stores, "0xdef", "0xdef-shelf-0", domain.Item{ID: "x", Name: "Milk", Price: 4, Quantity: 1})
	require.True(t, applied)
	assert.Equal(t, stores[0], out[0])
	assert.Len(t, out[1].Shelves[0].Items, 1)
	assert.Empty(t, stores[1].Shelves[0].Items)
}
