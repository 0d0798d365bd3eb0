package domain

import (
	"fmt"
	"time"
)

// OrderState is the local lifecycle state of an escrow order
type OrderState string

const (
	OrderPending    OrderState = "pending"
	OrderReleasable OrderState = "releasable"
	OrderReleased   OrderState = "released"
)

// Order is an escrow order object owned by the connected account on the ledger.
// CreatedAt and ReleaseDelay are milliseconds and never change after creation.
// AwaitingLedger marks an order opened by this process whose ledger copy has not been
// loaded yet; its release delay and countdown are unknown until then.
type Order struct {
	ID               string     `json:"id"`
	StoreAddress     string     `json:"store_address"`
	SupplierID       int64      `json:"supplier_id"`
	ItemName         string     `json:"item_name"`
	Quantity         int64      `json:"quantity"`
	TotalPrice       int64      `json:"total_price"` // MIST
	CreatedAt        int64      `json:"created_at"`
	ReleaseDelay     int64      `json:"release_delay"`
	TimeUntilRelease int64      `json:"time_until_release"`
	State            OrderState `json:"state"`
	AwaitingLedger   bool       `json:"awaiting_ledger,omitempty"`
}

// RemainingAt returns max(0, release_delay - (now - created_at)) in milliseconds
func (o *Order) RemainingAt(now time.Time) int64 {
	remaining := o.ReleaseDelay - (now.UnixMilli() - o.CreatedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Recompute refreshes the countdown and the pending/releasable state.
// A released order is terminal and left untouched. An order awaiting its
// ledger copy stays pending.
func (o *Order) Recompute(now time.Time) {
	if o.State == OrderReleased {
		return
	}
	if o.AwaitingLedger {
		o.TimeUntilRelease = 0
		o.State = OrderPending
		return
	}
	o.TimeUntilRelease = o.RemainingAt(now)
	if o.TimeUntilRelease > 0 {
		o.State = OrderPending
	} else {
		o.State = OrderReleasable
	}
}

// FormatCountdown renders a countdown as whole seconds rounded up, or "Ready!"
func FormatCountdown(ms int64) string {
	seconds := (ms + 999) / 1000
	if seconds <= 0 {
		return "Ready!"
	}
	return fmt.Sprintf("%ds", seconds)
}

// OrderMeta is the local placement record of an escrow order, needed at release
// time because the ledger Order object does not know the target shelf.
type OrderMeta struct {
	OrderID    string    `json:"order_id"`
	StoreID    string    `json:"store_id"`
	ShelfID    string    `json:"shelf_id"`
	ItemName   string    `json:"item_name"`
	Quantity   int64     `json:"quantity"`
	Price      float64   `json:"price"`
	SupplierID int64     `json:"supplier_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// EscrowOrderLog Audit trail for escrow order operations
type EscrowOrderLog struct {
	ID         int64     `json:"id,string" gorm:"primaryKey"`
	OrderID    string    `json:"order_id" gorm:"index;size:128"`
	Action     string    `json:"action"` // "created", "released", "release_failed"
	Status     string    `json:"status"` // "success", "failure"
	Digest     string    `json:"digest" gorm:"size:128"`
	Payload    string    `json:"payload" gorm:"type:text"`
	ErrorMsg   string    `json:"error_msg"`
	ExecutedAt time.Time `json:"executed_at"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}

// TableName specifies the table name
func (EscrowOrderLog) TableName() string {
	return "sc_escrow_order_log"
}
