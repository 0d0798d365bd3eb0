package chain

import (
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/talkincode/supplychain/internal/domain"
	"github.com/talkincode/supplychain/internal/pricing"
)

type moveUID struct {
	ID string `mapstructure:"id"`
}

type moveItem struct {
	Name       interface{} `mapstructure:"name"`
	Quantity   int64       `mapstructure:"quantity"`
	Price      int64       `mapstructure:"price"`
	SupplierID string      `mapstructure:"supplier_id"`
}

type moveShelf struct {
	Items []moveItem `mapstructure:"items"`
}

type moveShop struct {
	ID      moveUID     `mapstructure:"id"`
	Name    interface{} `mapstructure:"name"`
	Shelves []moveShelf `mapstructure:"shelves"`
}

type moveOrder struct {
	ID           moveUID     `mapstructure:"id"`
	StoreAddress string      `mapstructure:"store_address"`
	SupplierID   int64       `mapstructure:"supplier_id"`
	ItemName     interface{} `mapstructure:"item_name"`
	Quantity     int64       `mapstructure:"quantity"`
	TotalPrice   int64       `mapstructure:"total_price"`
	CreatedAt    int64       `mapstructure:"created_at"`
	ReleaseDelay int64       `mapstructure:"release_delay"`
}

// unwrapFields replaces nested {type, fields} struct wrappers with their fields
func unwrapFields(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if fields, ok := val["fields"].(map[string]interface{}); ok {
			if _, typed := val["type"]; typed {
				return unwrapFields(fields)
			}
		}
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = unwrapFields(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = unwrapFields(item)
		}
		return out
	default:
		return v
	}
}

func decodeFields(fields map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(unwrapFields(fields))
}

// DecodeBytes turns a Move byte vector (or an already decoded string) into text
func DecodeBytes(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case []interface{}:
		b := make([]byte, 0, len(val))
		for _, c := range val {
			n, err := cast.ToUint8E(c)
			if err != nil {
				return ""
			}
			b = append(b, n)
		}
		return string(b)
	case map[string]interface{}:
		if inner, ok := val["bytes"]; ok {
			return DecodeBytes(inner)
		}
	}
	return cast.ToString(v)
}

// DecodeShop converts a Shop object into a Store owned by owner
func DecodeShop(obj *ObjectData, owner string) (*domain.Store, error) {
	if obj == nil || obj.Content == nil {
		return nil, errors.New("shop object has no content")
	}
	var shop moveShop
	if err := decodeFields(obj.Content.Fields, &shop); err != nil {
		return nil, errors.Wrapf(err, "decode shop %s", obj.ObjectID)
	}
	id := obj.ObjectID
	if id == "" {
		id = shop.ID.ID
	}
	store := &domain.Store{
		ID:      id,
		Name:    DecodeBytes(shop.Name),
		Address: id,
		Owner:   owner,
		Shelves: make([]domain.Shelf, 0, len(shop.Shelves)),
	}
	for i, shelf := range shop.Shelves {
		s := domain.Shelf{ID: domain.ShelfID(id, i), StoreID: id, Position: i}
		for _, item := range shelf.Items {
			s.Items = append(s.Items, domain.Item{
				Name:     DecodeBytes(item.Name),
				Price:    pricing.FromMinorUnits(item.Price),
				Quantity: item.Quantity,
				Supplier: item.SupplierID,
			})
		}
		store.Shelves = append(store.Shelves, s)
	}
	return store, nil
}

// DecodeOrder converts an Order object and computes its countdown at now
func DecodeOrder(obj *ObjectData, now time.Time) (*domain.Order, error) {
	if obj == nil || obj.Content == nil {
		return nil, errors.New("order object has no content")
	}
	var mo moveOrder
	if err := decodeFields(obj.Content.Fields, &mo); err != nil {
		return nil, errors.Wrapf(err, "decode order %s", obj.ObjectID)
	}
	id := obj.ObjectID
	if id == "" {
		id = mo.ID.ID
	}
	order := &domain.Order{
		ID:           id,
		StoreAddress: mo.StoreAddress,
		SupplierID:   mo.SupplierID,
		ItemName:     DecodeBytes(mo.ItemName),
		Quantity:     mo.Quantity,
		TotalPrice:   mo.TotalPrice,
		CreatedAt:    mo.CreatedAt,
		ReleaseDelay: mo.ReleaseDelay,
	}
	order.Recompute(now)
	return order, nil
}

// NormalizeAddress lower-cases an address and strips leading zeros so short and long forms compare equal
func NormalizeAddress(addr string) string {
	a := strings.ToLower(strings.TrimSpace(addr))
	a = strings.TrimPrefix(a, "0x")
	a = strings.TrimLeft(a, "0")
	return "0x" + a
}

// SameStructType compares two fully qualified Move struct types, ignoring address padding
func SameStructType(a, b string) bool {
	pa := strings.SplitN(a, "::", 2)
	pb := strings.SplitN(b, "::", 2)
	if len(pa) != 2 || len(pb) != 2 {
		return a == b
	}
	return NormalizeAddress(pa[0]) == NormalizeAddress(pb[0]) && pa[1] == pb[1]
}
