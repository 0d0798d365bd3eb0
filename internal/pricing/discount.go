package pricing

import (
	"github.com/shopspring/decimal"
	"github.com/talkincode/supplychain/internal/domain"
)

// MinorUnitExp is the number of decimal places between SUI and MIST
const MinorUnitExp = 9

// ApplyDiscount returns the largest discount percentage among the tiers whose
// minimum quantity is reached, or 0 when no tier qualifies. Tiers need not be sorted.
func ApplyDiscount(item *domain.SupplierItem, quantity int64) float64 {
	if item == nil {
		return 0
	}
	var best float64
	for _, tier := range item.BulkDiscounts {
		if tier.MinQty <= quantity && tier.DiscountPct > best {
			best = tier.DiscountPct
		}
	}
	return best
}

// DiscountedUnitCost returns unitCost * (1 - pct/100)
func DiscountedUnitCost(unitCost, pct float64) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100)))
	return decimal.NewFromFloat(unitCost).Mul(factor)
}

// Quote is the cost breakdown of buying a quantity of a catalog item
type Quote struct {
	ItemID       string  `json:"item_id"`
	Quantity     int64   `json:"quantity"`
	DiscountPct  float64 `json:"discount_pct"`
	UnitCost     float64 `json:"unit_cost"`
	Total        float64 `json:"total"`
	TotalMinor   int64   `json:"total_minor"`
	TotalDisplay string  `json:"total_display"`
}

// QuoteFor prices quantity units of item with its bulk discount applied
func QuoteFor(item *domain.SupplierItem, quantity int64) Quote {
	pct := ApplyDiscount(item, quantity)
	unit := DiscountedUnitCost(item.UnitCost, pct)
	total := unit.Mul(decimal.NewFromInt(quantity))
	minor := total.Shift(MinorUnitExp).IntPart()
	return Quote{
		ItemID:       item.ID,
		Quantity:     quantity,
		DiscountPct:  pct,
		UnitCost:     unit.InexactFloat64(),
		Total:        total.InexactFloat64(),
		TotalMinor:   minor,
		TotalDisplay: FormatMinorUnits(minor),
	}
}

// EscrowTotal is the minor-unit amount locked in escrow for quantity units of item
func EscrowTotal(item *domain.SupplierItem, quantity int64) int64 {
	return QuoteFor(item, quantity).TotalMinor
}

// ToMinorUnits converts a SUI amount to MIST, truncating sub-MIST fractions
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(MinorUnitExp).IntPart()
}

// FormatMinorUnits renders a MIST amount as SUI with two decimals
func FormatMinorUnits(mist int64) string {
	return decimal.New(mist, -MinorUnitExp).StringFixed(2)
}

// FromMinorUnits converts a MIST amount to SUI
func FromMinorUnits(mist int64) float64 {
	return decimal.New(mist, -MinorUnitExp).InexactFloat64()
}
