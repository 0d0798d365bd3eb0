package inventory

import "github.com/talkincode/supplychain/internal/domain"

// AddItemToShelf folds items into the shelf shelfID of store storeID and returns
// a new store collection; the input slice is left untouched. An incoming item
// sharing name and price with an existing entry adds to its quantity, any other
// item is appended. When the store or shelf does not resolve the collection is
// returned unchanged and applied is false.
func AddItemToShelf(stores []domain.Store, storeID, shelfID string, items ...domain.Item) (out []domain.Store, applied bool) {
	out = make([]domain.Store, len(stores))
	copy(out, stores)

	si := -1
	for i := range out {
		if out[i].ID == storeID {
			si = i
			break
		}
	}
	if si < 0 {
		return out, false
	}
	hi := out[si].FindShelf(shelfID)
	if hi < 0 {
		return out, false
	}

	store := out[si]
	store.Shelves = make([]domain.Shelf, len(stores[si].Shelves))
	copy(store.Shelves, stores[si].Shelves)

	shelf := store.Shelves[hi]
	shelf.Items = MergeItems(shelf.Items, items...)
	store.Shelves[hi] = shelf
	out[si] = store
	return out, true
}

// MergeItems returns a copy of existing with incoming folded in by (name, price)
func MergeItems(existing []domain.Item, incoming ...domain.Item) []domain.Item {
	merged := make([]domain.Item, len(existing), len(existing)+len(incoming))
	copy(merged, existing)
	for _, in := range incoming {
		found := false
		for i := range merged {
			if merged[i].SameLine(in) {
				merged[i].Quantity += in.Quantity
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, in)
		}
	}
	return merged
}
