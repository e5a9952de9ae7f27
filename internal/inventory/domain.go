package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockLevel tracks the quantity of one inventory item at one location.
// At most one row exists per (item, location) pair; rows are created lazily
// on first receipt into that location.
type StockLevel struct {
	ID               uuid.UUID       `json:"id"`
	ItemID           uuid.UUID       `json:"item_id"`
	LocationID       uuid.UUID       `json:"location_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	ReservedQuantity decimal.Decimal `json:"reserved_quantity"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Available is the quantity not held by reservations.
func (s StockLevel) Available() decimal.Decimal {
	return s.Quantity.Sub(s.ReservedQuantity)
}

// ReceiptApplication carries the stock effect of one approved goods receipt.
// Each line references the inventory item resolved from its purchase order
// item, the net received quantity (received minus damaged) and the purchase
// price from the order line.
type ReceiptApplication struct {
	ReceiptID     uuid.UUID
	ReceiptNumber string
	Lines         []ApplicationLine
}

// ApplicationLine is one item-level stock contribution.
type ApplicationLine struct {
	ItemID    uuid.UUID
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// CostEvent is one historical stock increase, used to replay the moving
// average from scratch.
type CostEvent struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// ItemValuation pairs the stored average with stock on hand.
type ItemValuation struct {
	ItemID          uuid.UUID       `json:"item_id"`
	AverageUnitCost decimal.Decimal `json:"average_unit_cost"`
	TotalStock      decimal.Decimal `json:"total_stock"`
}

// ReplayAverageCost folds receipt history into a weighted average, in order.
// The incremental value maintained by ApplyReceipt must equal this replay.
func ReplayAverageCost(events []CostEvent) decimal.Decimal {
	qty := decimal.Zero
	avg := decimal.Zero
	for _, e := range events {
		if !e.Quantity.IsPositive() {
			continue
		}
		total := qty.Add(e.Quantity)
		avg = qty.Mul(avg).Add(e.Quantity.Mul(e.UnitPrice)).Div(total)
		qty = total
	}
	return avg
}
