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

// ReceiptLineInput is one delivered line. Shortfall is what the receiver
// declares missing against the delivery note.
type ReceiptLineInput struct {
	POItemID          uuid.UUID       `json:"po_item_id" validate:"required"`
	QuantityReceived  decimal.Decimal `json:"quantity_received"`
	QuantityDamaged   decimal.Decimal `json:"quantity_damaged"`
	QuantityShortfall decimal.Decimal `json:"quantity_shortfall"`
	Condition         string          `json:"condition" validate:"max=100"`
	Notes             string          `json:"notes" validate:"max=2000"`
}

// CreateReceiptInput carries one physical delivery against a purchase order.
type CreateReceiptInput struct {
	PurchaseOrderID  uuid.UUID          `json:"purchase_order_id" validate:"required"`
	ReceivedDate     *time.Time         `json:"received_date"`
	IsFinalReceipt   bool               `json:"is_final_receipt"`
	DiscrepancyNotes string             `json:"discrepancy_notes" validate:"max=2000"`
	Items            []ReceiptLineInput `json:"items" validate:"required,min=1"`
}

func validateReceiptLines(lines []ReceiptLineInput) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: receipt requires at least one item", shared.ErrInvalidArgument)
	}
	for _, line := range lines {
		if line.QuantityReceived.IsNegative() || line.QuantityDamaged.IsNegative() || line.QuantityShortfall.IsNegative() {
			return fmt.Errorf("%w: receipt quantities cannot be negative", shared.ErrInvalidArgument)
		}
		if line.QuantityDamaged.GreaterThan(line.QuantityReceived) {
			return fmt.Errorf("%w: damaged quantity exceeds received quantity", shared.ErrInvalidArgument)
		}
	}
	return nil
}

// CreateReceipt books a delivery against a purchase order. Receipts without
// discrepancies auto-approve and post stock immediately; discrepant receipts
// wait in Pending for review, with only the order lines' received quantities
// updated.
func (s *Service) CreateReceipt(ctx context.Context, actorID uuid.UUID, input CreateReceiptInput) (GoodsReceipt, error) {
	if err := validateReceiptLines(input.Items); err != nil {
		return GoodsReceipt{}, err
	}

	hasDiscrepancies := false
	for _, line := range input.Items {
		if line.QuantityDamaged.IsPositive() || line.QuantityShortfall.IsPositive() {
			hasDiscrepancies = true
			break
		}
	}
	if input.IsFinalReceipt && !hasDiscrepancies {
		return GoodsReceipt{}, fmt.Errorf("%w: final receipt flag requires discrepancies", shared.ErrInvalidArgument)
	}

	release, err := s.locks.Acquire(ctx, input.PurchaseOrderID)
	if err != nil {
		return GoodsReceipt{}, err
	}
	defer release()

	var (
		receipt     GoodsReceipt
		application inventory.ReceiptApplication
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPurchaseOrderForUpdate(ctx, input.PurchaseOrderID)
		if err != nil {
			return err
		}
		if !po.Status.Receivable() {
			return fmt.Errorf("%w: order in status %s does not accept receipts", shared.ErrInvalidState, po.Status)
		}

		orderLines := make(map[uuid.UUID]*PurchaseOrderItem, len(po.Items))
		for i := range po.Items {
			orderLines[po.Items[i].ID] = &po.Items[i]
		}

		number, err := tx.NextReceiptNumber(ctx)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		receivedDate := now
		if input.ReceivedDate != nil {
			receivedDate = *input.ReceivedDate
		}
		receipt = GoodsReceipt{
			ID:               uuid.New(),
			ReceiptNumber:    number,
			PurchaseOrderID:  po.ID,
			Status:           GRStatusPending,
			ReceivedDate:     receivedDate,
			ReceivedBy:       actorID,
			IsFinalReceipt:   input.IsFinalReceipt,
			HasDiscrepancies: hasDiscrepancies,
			DiscrepancyNotes: input.DiscrepancyNotes,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if !hasDiscrepancies {
			receipt.Status = GRStatusApproved
			receipt.ApprovedBy = &actorID
			receipt.ApprovedAt = &now
		}

		for _, line := range input.Items {
			orderLine, ok := orderLines[line.POItemID]
			if !ok {
				return fmt.Errorf("%w: order line %s does not belong to order %s", shared.ErrInvalidArgument, line.POItemID, po.OrderNumber)
			}
			net := line.QuantityReceived.Sub(line.QuantityDamaged)
			if orderLine.ReceivedQuantity.Add(net).GreaterThan(orderLine.Quantity) {
				return fmt.Errorf("%w: receipt exceeds ordered quantity on line %s", shared.ErrInvalidArgument, line.POItemID)
			}
			receipt.Items = append(receipt.Items, GoodsReceiptItem{
				ID:                uuid.New(),
				ReceiptID:         receipt.ID,
				POItemID:          line.POItemID,
				QuantityReceived:  line.QuantityReceived,
				QuantityDamaged:   line.QuantityDamaged,
				QuantityShortfall: line.QuantityShortfall,
				Condition:         line.Condition,
				Notes:             line.Notes,
			})
		}

		if err := tx.InsertGoodsReceipt(ctx, receipt); err != nil {
			return err
		}
		if err := applyReceivedQuantities(ctx, tx, orderLines, receipt.Items); err != nil {
			return err
		}

		if receipt.Status == GRStatusApproved {
			recomputeOrderStatus(&po, receipt.IsFinalReceipt)
			if err := tx.UpdatePurchaseOrderHeader(ctx, po); err != nil {
				return err
			}
			application = buildApplication(receipt, orderLines)
		}
		return nil
	})
	if err != nil {
		return GoodsReceipt{}, err
	}

	if receipt.Status == GRStatusApproved {
		// The receipt is committed at this point; a failed posting is
		// resumed by approving the receipt again.
		if err := s.inventory.ApplyReceipt(ctx, application); err != nil {
			s.logger.Error("stock application failed after auto-approval",
				slog.String("receipt", receipt.ReceiptNumber), slog.Any("error", err))
			return GoodsReceipt{}, fmt.Errorf("stock application for %s failed: %w", receipt.ReceiptNumber, err)
		}
	}
	s.recordAudit(ctx, actorID, "goods_receipt.created", receipt.ID, map[string]any{
		"receipt_number": receipt.ReceiptNumber,
		"status":         string(receipt.Status),
	})
	return receipt, nil
}

// ApproveReceipt releases a pending receipt: stock is posted and the order
// status recomputed with the receipt's stored final flag. Approving a receipt
// that is already Approved resumes the stock application instead of failing,
// so a caller can retry when the posting broke down after the approval
// committed; the inventory side deduplicates on the receipt number.
func (s *Service) ApproveReceipt(ctx context.Context, actorID, id uuid.UUID) (GoodsReceipt, error) {
	existing, err := s.repo.GetReceipt(ctx, id)
	if err != nil {
		return GoodsReceipt{}, err
	}

	release, err := s.locks.Acquire(ctx, existing.PurchaseOrderID)
	if err != nil {
		return GoodsReceipt{}, err
	}
	defer release()

	var (
		receipt     GoodsReceipt
		application inventory.ReceiptApplication
		wasPending  bool
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		gr, err := tx.GetGoodsReceiptForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if gr.Status != GRStatusPending && gr.Status != GRStatusApproved {
			return fmt.Errorf("%w: only pending receipts can be approved", shared.ErrInvalidState)
		}

		po, err := tx.GetPurchaseOrderForUpdate(ctx, gr.PurchaseOrderID)
		if err != nil {
			return err
		}
		orderLines := make(map[uuid.UUID]*PurchaseOrderItem, len(po.Items))
		for i := range po.Items {
			orderLines[po.Items[i].ID] = &po.Items[i]
		}

		if gr.Status == GRStatusPending {
			wasPending = true
			now := time.Now().UTC()
			gr.Status = GRStatusApproved
			gr.ApprovedBy = &actorID
			gr.ApprovedAt = &now
			if err := tx.UpdateGoodsReceiptHeader(ctx, gr); err != nil {
				return err
			}
			// Received quantities were already booked when the receipt was
			// created; only the status derivation runs here.
			recomputeOrderStatus(&po, gr.IsFinalReceipt)
			if err := tx.UpdatePurchaseOrderHeader(ctx, po); err != nil {
				return err
			}
		}

		receipt = gr
		application = buildApplication(gr, orderLines)
		return nil
	})
	if err != nil {
		return GoodsReceipt{}, err
	}

	if err := s.inventory.ApplyReceipt(ctx, application); err != nil {
		s.logger.Error("stock application failed after approval",
			slog.String("receipt", receipt.ReceiptNumber), slog.Any("error", err))
		return GoodsReceipt{}, fmt.Errorf("stock application for %s failed: %w", receipt.ReceiptNumber, err)
	}
	if wasPending {
		s.recordAudit(ctx, actorID, "goods_receipt.approved", receipt.ID, nil)
	}
	return receipt, nil
}

// RejectReceipt declines a pending receipt. Stock and order status are left
// untouched; the reason is kept with the discrepancy notes.
func (s *Service) RejectReceipt(ctx context.Context, actorID, id uuid.UUID, reason string) (GoodsReceipt, error) {
	var receipt GoodsReceipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		gr, err := tx.GetGoodsReceiptForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if gr.Status != GRStatusPending {
			return fmt.Errorf("%w: only pending receipts can be rejected", shared.ErrInvalidState)
		}
		gr.Status = GRStatusRejected
		if reason != "" {
			if gr.DiscrepancyNotes != "" {
				gr.DiscrepancyNotes += "; "
			}
			gr.DiscrepancyNotes += "rejected: " + reason
		}
		if err := tx.UpdateGoodsReceiptHeader(ctx, gr); err != nil {
			return err
		}
		receipt = gr
		return nil
	})
	if err != nil {
		return GoodsReceipt{}, err
	}
	s.recordAudit(ctx, actorID, "goods_receipt.rejected", receipt.ID, map[string]any{"reason": reason})
	return receipt, nil
}

// Receipts lists goods receipts, optionally scoped to one order.
func (s *Service) Receipts(ctx context.Context, poID *uuid.UUID) ([]GoodsReceipt, error) {
	return s.repo.ListReceipts(ctx, poID)
}

// Receipt fetches one goods receipt.
func (s *Service) Receipt(ctx context.Context, id uuid.UUID) (GoodsReceipt, error) {
	return s.repo.GetReceipt(ctx, id)
}

// PendingApprovalReceipts lists the approval queue.
func (s *Service) PendingApprovalReceipts(ctx context.Context) ([]GoodsReceipt, error) {
	return s.repo.PendingApprovalReceipts(ctx)
}

// applyReceivedQuantities increments each order line by the receipt line's
// net quantity, clamped non-negative, and mirrors the change on the in-memory
// order so the status derivation sees it.
func applyReceivedQuantities(ctx context.Context, tx TxRepository, orderLines map[uuid.UUID]*PurchaseOrderItem, items []GoodsReceiptItem) error {
	for _, item := range items {
		net := item.NetQuantity()
		if net.IsNegative() {
			net = decimal.Zero
		}
		orderLine := orderLines[item.POItemID]
		orderLine.ReceivedQuantity = orderLine.ReceivedQuantity.Add(net)
		if err := tx.UpdateItemReceivedQuantity(ctx, orderLine.ID, orderLine.ReceivedQuantity); err != nil {
			return err
		}
	}
	return nil
}

func buildApplication(receipt GoodsReceipt, orderLines map[uuid.UUID]*PurchaseOrderItem) inventory.ReceiptApplication {
	app := inventory.ReceiptApplication{
		ReceiptID:     receipt.ID,
		ReceiptNumber: receipt.ReceiptNumber,
	}
	for _, item := range receipt.Items {
		orderLine, ok := orderLines[item.POItemID]
		if !ok {
			continue
		}
		app.Lines = append(app.Lines, inventory.ApplicationLine{
			ItemID:    orderLine.ItemID,
			Quantity:  item.NetQuantity(),
			UnitPrice: orderLine.UnitPrice,
		})
	}
	return app
}
