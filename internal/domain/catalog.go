package domain

// SupplierItem is a supplier catalog entry. QtyAvailable only ever goes down.
type SupplierItem struct {
	ID              string         `json:"id" gorm:"primaryKey;size:32"`
	SupplierID      int64          `json:"supplier_id" gorm:"index"` // supplier reference used on the ledger
	Name            string         `json:"name" gorm:"index"`
	Category        string         `json:"category" gorm:"index;size:64"`
	UnitCost        float64        `json:"unit_cost"`
	BaseRetailPrice float64        `json:"base_retail_price"`
	QtyAvailable    int64          `json:"qty_available"`
	Img             string         `json:"img" gorm:"size:1024"`
	BulkDiscounts   []BulkDiscount `json:"bulk_discounts" gorm:"foreignKey:SupplierItemID;constraint:OnDelete:CASCADE"`
}

// TableName Specify table name
func (SupplierItem) TableName() string {
	return "sc_supplier_item"
}

// BulkDiscount is a (minimum quantity, discount percentage) tier
type BulkDiscount struct {
	ID             int64   `json:"-" gorm:"primaryKey;autoIncrement"`
	SupplierItemID string  `json:"-" gorm:"index;size:32"`
	MinQty         int64   `json:"min_qty"`
	DiscountPct    float64 `json:"discount_pct"`
}

// TableName Specify table name
func (BulkDiscount) TableName() string {
	return "sc_bulk_discount"
}

// SupplierNames maps ledger supplier ids to display names
var SupplierNames = map[int64]string{
	1: "Apple",
	2: "Samsung",
	3: "Nike",
}

// SupplierName returns the display name of a supplier id
func SupplierName(id int64) string {
	if name, ok := SupplierNames[id]; ok {
		return name
	}
	return "Unknown"
}
