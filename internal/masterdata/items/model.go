package items

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryItem is a catalog entry. UnitPrice is the reference list price and
// plays no part in valuation; AverageUnitCost is the moving weighted average
// maintained exclusively by the inventory valuation engine.
type InventoryItem struct {
	ID              uuid.UUID       `json:"id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Unit            string          `json:"unit"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	AverageUnitCost decimal.Decimal `json:"average_unit_cost"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
