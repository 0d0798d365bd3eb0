package domain

var Tables = []interface{}{
	// Inventory
	&Store{},
	&Shelf{},
	&Item{},
	// Catalog
	&SupplierItem{},
	&BulkDiscount{},
	// Escrow
	&EscrowOrderLog{},
}
