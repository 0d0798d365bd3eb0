package domain

import (
	"fmt"
	"time"
)

// DefaultShelfCount is used when a store is created without an explicit shelf count
const DefaultShelfCount = 3

// Store is a shop container. ID is assigned by the ledger: the creating
// transaction digest, or the Shop object id for stores loaded from chain.
type Store struct {
	ID        string    `json:"id" gorm:"primaryKey;size:128"`
	Name      string    `json:"name" gorm:"index"`
	Address   string    `json:"address" gorm:"size:128"` // Shop object id on the ledger, if known
	Owner     string    `json:"owner" gorm:"index;size:128"`
	Shelves   []Shelf   `json:"shelves" gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Store) TableName() string {
	return "sc_store"
}

// FindShelf returns the index of the shelf with the given id, or -1
func (s *Store) FindShelf(shelfID string) int {
	for i := range s.Shelves {
		if s.Shelves[i].ID == shelfID {
			return i
		}
	}
	return -1
}

// Shelf holds the items of one store shelf. The shelf count is fixed when the store is created.
type Shelf struct {
	ID       string `json:"id" gorm:"primaryKey;size:160"`
	StoreID  string `json:"store_id" gorm:"index;size:128"`
	Position int    `json:"position"`
	Items    []Item `json:"items" gorm:"foreignKey:ShelfID;constraint:OnDelete:CASCADE"`
}

// TableName Specify table name
func (Shelf) TableName() string {
	return "sc_shelf"
}

// FindLine returns the index of the entry item merges into, or -1
func (s *Shelf) FindLine(item Item) int {
	for i := range s.Items {
		if s.Items[i].SameLine(item) {
			return i
		}
	}
	return -1
}

// ShelfID builds the id of the i-th shelf of a store
func ShelfID(storeID string, i int) string {
	return fmt.Sprintf("%s-shelf-%d", storeID, i)
}

// NewShelves creates count empty shelves for a store, at least one
func NewShelves(storeID string, count int) []Shelf {
	if count < 1 {
		count = 1
	}
	shelves := make([]Shelf, 0, count)
	for i := 0; i < count; i++ {
		shelves = append(shelves, Shelf{ID: ShelfID(storeID, i), StoreID: storeID, Position: i})
	}
	return shelves
}

// Item is a stocked product line on a shelf.
// Within one shelf there is at most one item per (Name, Price).
type Item struct {
	ID                 string   `json:"id" gorm:"primaryKey;size:64"`
	ShelfID            string   `json:"shelf_id" gorm:"index;size:160"`
	Name               string   `json:"name" gorm:"index"`
	Price              float64  `json:"price"`
	Quantity           int64    `json:"quantity"`
	UnitCost           *float64 `json:"unit_cost,omitempty"`
	DiscountAppliedPct *float64 `json:"discount_applied_pct,omitempty"`
	Supplier           string   `json:"supplier,omitempty" gorm:"size:64"`
}

// TableName Specify table name
func (Item) TableName() string {
	return "sc_item"
}

// SameLine reports whether two items merge into one shelf entry
func (i Item) SameLine(o Item) bool {
	return i.Name == o.Name && i.Price == o.Price
}
