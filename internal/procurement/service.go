package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmsync/farmsync/internal/inventory"
	"github.com/farmsync/farmsync/internal/shared"
)

// OrderRepository is the persistence surface the service depends on.
type OrderRepository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListOrders(ctx context.Context, status *POStatus) ([]PurchaseOrder, error)
	GetOrder(ctx context.Context, id uuid.UUID) (PurchaseOrder, error)
	AvailableForReceiving(ctx context.Context) ([]PurchaseOrder, error)
	PendingApprovalOrders(ctx context.Context) ([]PurchaseOrder, error)
	ListReceipts(ctx context.Context, poID *uuid.UUID) ([]GoodsReceipt, error)
	GetReceipt(ctx context.Context, id uuid.UUID) (GoodsReceipt, error)
	PendingApprovalReceipts(ctx context.Context) ([]GoodsReceipt, error)
}

// InventoryPort posts approved receipt quantities into stock. ApplyReceipt
// must be idempotent per receipt number: a repeated call for an already
// posted receipt is a no-op.
type InventoryPort interface {
	ApplyReceipt(ctx context.Context, app inventory.ReceiptApplication) error
}

// ReceiptLocker serialises receipt operations per purchase order.
type ReceiptLocker interface {
	Acquire(ctx context.Context, poID uuid.UUID) (func(), error)
}

// Auditor records who did what.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements the purchase order and goods receipt engines.
type Service struct {
	logger    *slog.Logger
	repo      OrderRepository
	inventory InventoryPort
	locks     ReceiptLocker
	audit     Auditor
}

func NewService(logger *slog.Logger, repo OrderRepository, inv InventoryPort, locks ReceiptLocker, audit Auditor) *Service {
	return &Service{logger: logger, repo: repo, inventory: inv, locks: locks, audit: audit}
}

// OrderLineInput is one requested order line.
type OrderLineInput struct {
	ItemID    uuid.UUID       `json:"item_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateOrderInput carries a new purchase order.
type CreateOrderInput struct {
	SupplierID           uuid.UUID        `json:"supplier_id" validate:"required"`
	OrderDate            *time.Time       `json:"order_date"`
	ExpectedDeliveryDate *time.Time       `json:"expected_delivery_date"`
	Notes                string           `json:"notes" validate:"max=2000"`
	Items                []OrderLineInput `json:"items" validate:"required,min=1"`
}

// UpdateOrderInput replaces the mutable fields of an unapproved order.
type UpdateOrderInput struct {
	ExpectedDeliveryDate *time.Time       `json:"expected_delivery_date"`
	Notes                string           `json:"notes" validate:"max=2000"`
	Items                []OrderLineInput `json:"items" validate:"required,min=1"`
}

func validateLines(lines []OrderLineInput) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: order requires at least one item", shared.ErrInvalidArgument)
	}
	for _, line := range lines {
		if !line.Quantity.IsPositive() {
			return fmt.Errorf("%w: item quantity must be positive", shared.ErrInvalidArgument)
		}
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: unit price cannot be negative", shared.ErrInvalidArgument)
		}
	}
	return nil
}

func buildLines(poID uuid.UUID, lines []OrderLineInput) ([]PurchaseOrderItem, decimal.Decimal) {
	items := make([]PurchaseOrderItem, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		lineTotal := line.Quantity.Mul(line.UnitPrice)
		total = total.Add(lineTotal)
		items = append(items, PurchaseOrderItem{
			ID:              uuid.New(),
			PurchaseOrderID: poID,
			ItemID:          line.ItemID,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			LineTotal:       lineTotal,
		})
	}
	return items, total
}

func checkLineItemsExist(ctx context.Context, tx TxRepository, lines []OrderLineInput) error {
	for _, line := range lines {
		ok, err := tx.ItemExists(ctx, line.ItemID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: inventory item %s", shared.ErrNotFound, line.ItemID)
		}
	}
	return nil
}

// CreateOrder registers a new purchase order in Created status with a
// generated order number.
func (s *Service) CreateOrder(ctx context.Context, actorID uuid.UUID, input CreateOrderInput) (PurchaseOrder, error) {
	if err := validateLines(input.Items); err != nil {
		return PurchaseOrder{}, err
	}

	var created PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.SupplierExists(ctx, input.SupplierID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: active supplier %s", shared.ErrNotFound, input.SupplierID)
		}
		if err := checkLineItemsExist(ctx, tx, input.Items); err != nil {
			return err
		}

		number, err := tx.NextOrderNumber(ctx)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		orderDate := now
		if input.OrderDate != nil {
			orderDate = *input.OrderDate
		}
		po := PurchaseOrder{
			ID:                   uuid.New(),
			OrderNumber:          number,
			SupplierID:           input.SupplierID,
			Status:               POStatusCreated,
			OrderDate:            orderDate,
			ExpectedDeliveryDate: input.ExpectedDeliveryDate,
			Notes:                input.Notes,
			CreatedBy:            actorID,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		po.Items, po.TotalAmount = buildLines(po.ID, input.Items)
		if err := tx.InsertPurchaseOrder(ctx, po); err != nil {
			return err
		}
		created = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actorID, "purchase_order.created", created.ID, map[string]any{"order_number": created.OrderNumber})
	return created, nil
}

// UpdateOrder replaces the lines and editable fields of an order that has not
// been approved yet.
func (s *Service) UpdateOrder(ctx context.Context, actorID, id uuid.UUID, input UpdateOrderInput) (PurchaseOrder, error) {
	if err := validateLines(input.Items); err != nil {
		return PurchaseOrder{}, err
	}

	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPurchaseOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if po.Status != POStatusCreated {
			return fmt.Errorf("%w: only orders in Created status can be edited", shared.ErrInvalidState)
		}
		if err := checkLineItemsExist(ctx, tx, input.Items); err != nil {
			return err
		}

		po.ExpectedDeliveryDate = input.ExpectedDeliveryDate
		po.Notes = input.Notes
		po.Items, po.TotalAmount = buildLines(po.ID, input.Items)
		if err := tx.ReplaceOrderItems(ctx, po.ID, po.Items); err != nil {
			return err
		}
		if err := tx.UpdatePurchaseOrderHeader(ctx, po); err != nil {
			return err
		}
		updated = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actorID, "purchase_order.updated", updated.ID, nil)
	return updated, nil
}

// ApproveOrder moves a Created order to Approved.
func (s *Service) ApproveOrder(ctx context.Context, actorID, id uuid.UUID) (PurchaseOrder, error) {
	po, err := s.transition(ctx, id, func(po *PurchaseOrder) error {
		if po.Status != POStatusCreated {
			return fmt.Errorf("%w: only orders in Created status can be approved", shared.ErrInvalidState)
		}
		now := time.Now().UTC()
		po.Status = POStatusApproved
		po.ApprovedBy = &actorID
		po.ApprovedAt = &now
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actorID, "purchase_order.approved", po.ID, nil)
	return po, nil
}

// CancelOrder voids an order that has not received any goods.
func (s *Service) CancelOrder(ctx context.Context, actorID, id uuid.UUID) (PurchaseOrder, error) {
	po, err := s.transition(ctx, id, func(po *PurchaseOrder) error {
		if po.Status != POStatusCreated && po.Status != POStatusApproved {
			return fmt.Errorf("%w: order cannot be cancelled after receiving started", shared.ErrInvalidState)
		}
		po.Status = POStatusCancelled
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actorID, "purchase_order.cancelled", po.ID, nil)
	return po, nil
}

// CloseOrder archives a fully received order.
func (s *Service) CloseOrder(ctx context.Context, actorID, id uuid.UUID) (PurchaseOrder, error) {
	po, err := s.transition(ctx, id, func(po *PurchaseOrder) error {
		if po.Status != POStatusFullyReceived {
			return fmt.Errorf("%w: only fully received orders can be closed", shared.ErrInvalidState)
		}
		po.Status = POStatusClosed
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actorID, "purchase_order.closed", po.ID, nil)
	return po, nil
}

// DeleteOrder removes an order that never left Created status.
func (s *Service) DeleteOrder(ctx context.Context, actorID, id uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPurchaseOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if po.Status != POStatusCreated {
			return fmt.Errorf("%w: only orders in Created status can be deleted", shared.ErrInvalidState)
		}
		return tx.DeletePurchaseOrder(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "purchase_order.deleted", id, nil)
	return nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, mutate func(*PurchaseOrder) error) (PurchaseOrder, error) {
	var result PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPurchaseOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(&po); err != nil {
			return err
		}
		if err := tx.UpdatePurchaseOrderHeader(ctx, po); err != nil {
			return err
		}
		result = po
		return nil
	})
	return result, err
}

// Orders lists purchase orders, optionally filtered by status.
func (s *Service) Orders(ctx context.Context, status *POStatus) ([]PurchaseOrder, error) {
	return s.repo.ListOrders(ctx, status)
}

// Order fetches one purchase order.
func (s *Service) Order(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	return s.repo.GetOrder(ctx, id)
}

// AvailableForReceiving lists orders that still accept deliveries.
func (s *Service) AvailableForReceiving(ctx context.Context) ([]PurchaseOrder, error) {
	return s.repo.AvailableForReceiving(ctx)
}

// PendingApprovalOrders lists orders awaiting approval.
func (s *Service) PendingApprovalOrders(ctx context.Context) ([]PurchaseOrder, error) {
	return s.repo.PendingApprovalOrders(ctx)
}

// recomputeOrderStatus derives the order status from its lines after a
// receipt has been applied. A final receipt closes the order; short lines on
// a final receipt surface as ClosedWithIssues.
func recomputeOrderStatus(po *PurchaseOrder, isFinal bool) {
	allReceived := true
	anyReceived := false
	for _, item := range po.Items {
		if item.ReceivedQuantity.IsPositive() {
			anyReceived = true
		}
		if item.ReceivedQuantity.LessThan(item.Quantity) {
			allReceived = false
		}
	}
	switch {
	case isFinal && !allReceived:
		po.Status = POStatusClosedWithIssues
	case allReceived:
		po.Status = POStatusFullyReceived
	case anyReceived:
		po.Status = POStatusPartiallyReceived
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "procurement",
		EntityID: entityID.String(),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
