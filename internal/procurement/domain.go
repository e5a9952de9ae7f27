package procurement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// POStatus is the purchase order lifecycle state.
type POStatus string

const (
	POStatusCreated           POStatus = "Created"
	POStatusApproved          POStatus = "Approved"
	POStatusPartiallyReceived POStatus = "PartiallyReceived"
	POStatusFullyReceived     POStatus = "FullyReceived"
	POStatusClosed            POStatus = "Closed"
	POStatusClosedWithIssues  POStatus = "ClosedWithIssues"
	POStatusCancelled         POStatus = "Cancelled"
)

// receivableStatuses are the order states that accept goods receipts.
var receivableStatuses = map[POStatus]struct{}{
	POStatusCreated:           {},
	POStatusApproved:          {},
	POStatusPartiallyReceived: {},
}

// Receivable reports whether goods can still be booked against the order.
func (s POStatus) Receivable() bool {
	_, ok := receivableStatuses[s]
	return ok
}

// GRStatus is the goods receipt lifecycle state.
type GRStatus string

const (
	GRStatusPending  GRStatus = "Pending"
	GRStatusApproved GRStatus = "Approved"
	// GRStatusCompleted is reserved for a future put-away step; no transition
	// produces it today.
	GRStatusCompleted GRStatus = "Completed"
	GRStatusRejected  GRStatus = "Rejected"
)

// PurchaseOrder is an order placed with a supplier.
type PurchaseOrder struct {
	ID                   uuid.UUID           `json:"id"`
	OrderNumber          string              `json:"order_number"`
	SupplierID           uuid.UUID           `json:"supplier_id"`
	Status               POStatus            `json:"status"`
	OrderDate            time.Time           `json:"order_date"`
	ExpectedDeliveryDate *time.Time          `json:"expected_delivery_date,omitempty"`
	Notes                string              `json:"notes,omitempty"`
	TotalAmount          decimal.Decimal     `json:"total_amount"`
	CreatedBy            uuid.UUID           `json:"created_by"`
	ApprovedBy           *uuid.UUID          `json:"approved_by,omitempty"`
	ApprovedAt           *time.Time          `json:"approved_at,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
	Items                []PurchaseOrderItem `json:"items"`
}

// PurchaseOrderItem is one order line. ReceivedQuantity accumulates the net
// usable quantity booked by receipts (received minus damaged).
type PurchaseOrderItem struct {
	ID               uuid.UUID       `json:"id"`
	PurchaseOrderID  uuid.UUID       `json:"purchase_order_id"`
	ItemID           uuid.UUID       `json:"item_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
	LineTotal        decimal.Decimal `json:"line_total"`
}

// GoodsReceipt records a delivery booked against a purchase order.
type GoodsReceipt struct {
	ID               uuid.UUID          `json:"id"`
	ReceiptNumber    string             `json:"receipt_number"`
	PurchaseOrderID  uuid.UUID          `json:"purchase_order_id"`
	Status           GRStatus           `json:"status"`
	ReceivedDate     time.Time          `json:"received_date"`
	ReceivedBy       uuid.UUID          `json:"received_by"`
	IsFinalReceipt   bool               `json:"is_final_receipt"`
	HasDiscrepancies bool               `json:"has_discrepancies"`
	DiscrepancyNotes string             `json:"discrepancy_notes,omitempty"`
	ApprovedBy       *uuid.UUID         `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time         `json:"approved_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	Items            []GoodsReceiptItem `json:"items"`
}

// GoodsReceiptItem is one receipt line against an order line. Shortfall is
// declared by the receiver against the delivery note, not computed.
type GoodsReceiptItem struct {
	ID                uuid.UUID       `json:"id"`
	ReceiptID         uuid.UUID       `json:"receipt_id"`
	POItemID          uuid.UUID       `json:"po_item_id"`
	QuantityReceived  decimal.Decimal `json:"quantity_received"`
	QuantityDamaged   decimal.Decimal `json:"quantity_damaged"`
	QuantityShortfall decimal.Decimal `json:"quantity_shortfall"`
	Condition         string          `json:"condition,omitempty"`
	Notes             string          `json:"notes,omitempty"`
}

// NetQuantity is the usable quantity on the line.
func (i GoodsReceiptItem) NetQuantity() decimal.Decimal {
	return i.QuantityReceived.Sub(i.QuantityDamaged)
}

// Discrepant reports damage or declared shortfall on the line.
func (i GoodsReceiptItem) Discrepant() bool {
	return i.QuantityDamaged.IsPositive() || i.QuantityShortfall.IsPositive()
}
