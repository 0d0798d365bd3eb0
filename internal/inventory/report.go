package inventory

import (
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"
	"github.com/talkincode/supplychain/internal/domain"
)

type itemRow struct {
	StoreID     string  `csv:"store_id"`
	StoreName   string  `csv:"store_name"`
	ShelfID     string  `csv:"shelf_id"`
	ItemID      string  `csv:"item_id"`
	Name        string  `csv:"name"`
	Price       float64 `csv:"price"`
	Quantity    int64   `csv:"quantity"`
	UnitCost    string  `csv:"unit_cost"`
	DiscountPct string  `csv:"discount_pct"`
	Supplier    string  `csv:"supplier"`
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// ExportCSV writes one row per shelf item of store
func ExportCSV(w io.Writer, store *domain.Store) error {
	rows := make([]*itemRow, 0)
	for _, shelf := range store.Shelves {
		for _, item := range shelf.Items {
			rows = append(rows, &itemRow{
				StoreID:     store.ID,
				StoreName:   store.Name,
				ShelfID:     shelf.ID,
				ItemID:      item.ID,
				Name:        item.Name,
				Price:       item.Price,
				Quantity:    item.Quantity,
				UnitCost:    optional(item.UnitCost),
				DiscountPct: optional(item.DiscountAppliedPct),
				Supplier:    item.Supplier,
			})
		}
	}
	return gocsv.Marshal(rows, w)
}

// Summary aggregates the stock of a store
type Summary struct {
	StoreID     string  `json:"store_id"`
	Shelves     int     `json:"shelves"`
	Lines       int     `json:"lines"`
	Units       int64   `json:"units"`
	StockValue  float64 `json:"stock_value"`
	MeanPrice   float64 `json:"mean_price"`
	MedianPrice float64 `json:"median_price"`
	MaxPrice    float64 `json:"max_price"`
}

// Summarize computes line counts, units, retail stock value and price statistics
func Summarize(store *domain.Store) Summary {
	sum := Summary{StoreID: store.ID, Shelves: len(store.Shelves)}
	var prices stats.Float64Data
	for _, shelf := range store.Shelves {
		for _, item := range shelf.Items {
			sum.Lines++
			sum.Units += item.Quantity
			sum.StockValue += item.Price * float64(item.Quantity)
			prices = append(prices, item.Price)
		}
	}
	if len(prices) == 0 {
		return sum
	}
	sum.MeanPrice, _ = prices.Mean()
	sum.MedianPrice, _ = prices.Median()
	sum.MaxPrice, _ = prices.Max()
	return sum
}
