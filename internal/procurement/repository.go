package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/farmsync/farmsync/internal/platform/db"
	"github.com/farmsync/farmsync/internal/shared"
)

// Repository provides PostgreSQL backed persistence for orders and receipts.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations that must share one transaction.
type TxRepository interface {
	NextOrderNumber(ctx context.Context) (string, error)
	NextReceiptNumber(ctx context.Context) (string, error)
	SupplierExists(ctx context.Context, id uuid.UUID) (bool, error)
	ItemExists(ctx context.Context, id uuid.UUID) (bool, error)
	InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) error
	GetPurchaseOrderForUpdate(ctx context.Context, id uuid.UUID) (PurchaseOrder, error)
	UpdatePurchaseOrderHeader(ctx context.Context, po PurchaseOrder) error
	ReplaceOrderItems(ctx context.Context, poID uuid.UUID, items []PurchaseOrderItem) error
	UpdateItemReceivedQuantity(ctx context.Context, itemID uuid.UUID, received decimal.Decimal) error
	DeletePurchaseOrder(ctx context.Context, id uuid.UUID) error
	InsertGoodsReceipt(ctx context.Context, receipt GoodsReceipt) error
	GetGoodsReceiptForUpdate(ctx context.Context, id uuid.UUID) (GoodsReceipt, error)
	UpdateGoodsReceiptHeader(ctx context.Context, receipt GoodsReceipt) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn inside one repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const orderColumns = `id, order_number, supplier_id, status, order_date, expected_delivery_date, notes,
	total_amount, created_by, approved_by, approved_at, created_at, updated_at`

const receiptColumns = `id, receipt_number, purchase_order_id, status, received_date, received_by,
	is_final_receipt, has_discrepancies, discrepancy_notes, approved_by, approved_at, created_at, updated_at`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	var total pgtype.Numeric
	err := row.Scan(&po.ID, &po.OrderNumber, &po.SupplierID, &po.Status, &po.OrderDate, &po.ExpectedDeliveryDate,
		&po.Notes, &total, &po.CreatedBy, &po.ApprovedBy, &po.ApprovedAt, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.TotalAmount = db.NumericToDecimal(total)
	return po, nil
}

func scanReceipt(row pgx.Row) (GoodsReceipt, error) {
	var gr GoodsReceipt
	err := row.Scan(&gr.ID, &gr.ReceiptNumber, &gr.PurchaseOrderID, &gr.Status, &gr.ReceivedDate, &gr.ReceivedBy,
		&gr.IsFinalReceipt, &gr.HasDiscrepancies, &gr.DiscrepancyNotes, &gr.ApprovedBy, &gr.ApprovedAt, &gr.CreatedAt, &gr.UpdatedAt)
	if err != nil {
		return GoodsReceipt{}, err
	}
	return gr, nil
}

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadOrderItems(ctx context.Context, q rowQuerier, poID uuid.UUID) ([]PurchaseOrderItem, error) {
	rows, err := q.Query(ctx, `SELECT id, purchase_order_id, item_id, quantity, unit_price, received_quantity, line_total
		FROM purchase_order_items WHERE purchase_order_id = $1 ORDER BY created_at ASC`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PurchaseOrderItem
	for rows.Next() {
		var item PurchaseOrderItem
		var qty, price, received, lineTotal pgtype.Numeric
		if err := rows.Scan(&item.ID, &item.PurchaseOrderID, &item.ItemID, &qty, &price, &received, &lineTotal); err != nil {
			return nil, err
		}
		item.Quantity = db.NumericToDecimal(qty)
		item.UnitPrice = db.NumericToDecimal(price)
		item.ReceivedQuantity = db.NumericToDecimal(received)
		item.LineTotal = db.NumericToDecimal(lineTotal)
		items = append(items, item)
	}
	return items, rows.Err()
}

func loadReceiptItems(ctx context.Context, q rowQuerier, receiptID uuid.UUID) ([]GoodsReceiptItem, error) {
	rows, err := q.Query(ctx, `SELECT id, receipt_id, po_item_id, quantity_received, quantity_damaged,
		quantity_shortfall, condition, notes
		FROM goods_receipt_items WHERE receipt_id = $1`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []GoodsReceiptItem
	for rows.Next() {
		var item GoodsReceiptItem
		var received, damaged, shortfall pgtype.Numeric
		if err := rows.Scan(&item.ID, &item.ReceiptID, &item.POItemID, &received, &damaged, &shortfall, &item.Condition, &item.Notes); err != nil {
			return nil, err
		}
		item.QuantityReceived = db.NumericToDecimal(received)
		item.QuantityDamaged = db.NumericToDecimal(damaged)
		item.QuantityShortfall = db.NumericToDecimal(shortfall)
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListOrders returns orders newest-first, optionally filtered by status.
func (r *Repository) ListOrders(ctx context.Context, status *POStatus) ([]PurchaseOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM purchase_orders`
	var args []any
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`
	return r.listOrders(ctx, query, args...)
}

// AvailableForReceiving lists approved and partially received orders,
// oldest-first so the longest outstanding order surfaces on top.
func (r *Repository) AvailableForReceiving(ctx context.Context) ([]PurchaseOrder, error) {
	return r.listOrders(ctx, `SELECT `+orderColumns+` FROM purchase_orders
		WHERE status = ANY($1) ORDER BY created_at ASC`,
		[]string{string(POStatusApproved), string(POStatusPartiallyReceived)})
}

// PendingApprovalOrders lists orders waiting for approval, oldest-first.
func (r *Repository) PendingApprovalOrders(ctx context.Context) ([]PurchaseOrder, error) {
	return r.listOrders(ctx, `SELECT `+orderColumns+` FROM purchase_orders
		WHERE status = $1 ORDER BY created_at ASC`, POStatusCreated)
}

func (r *Repository) listOrders(ctx context.Context, query string, args ...any) ([]PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, po)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range orders {
		items, err := loadOrderItems(ctx, r.pool, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// GetOrder returns one order with its lines.
func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1`, id)
	po, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, fmt.Errorf("%w: purchase order", shared.ErrNotFound)
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Items, err = loadOrderItems(ctx, r.pool, po.ID)
	return po, err
}

// ListReceipts returns receipts newest-first, optionally scoped to one order.
func (r *Repository) ListReceipts(ctx context.Context, poID *uuid.UUID) ([]GoodsReceipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM goods_receipts`
	var args []any
	if poID != nil {
		query += ` WHERE purchase_order_id = $1`
		args = append(args, *poID)
	}
	query += ` ORDER BY created_at DESC`
	return r.listReceipts(ctx, query, args...)
}

// PendingApprovalReceipts lists discrepant receipts waiting for review,
// oldest-first.
func (r *Repository) PendingApprovalReceipts(ctx context.Context) ([]GoodsReceipt, error) {
	return r.listReceipts(ctx, `SELECT `+receiptColumns+` FROM goods_receipts
		WHERE status = $1 AND has_discrepancies ORDER BY created_at ASC`, GRStatusPending)
}

func (r *Repository) listReceipts(ctx context.Context, query string, args ...any) ([]GoodsReceipt, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []GoodsReceipt
	for rows.Next() {
		gr, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, gr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range receipts {
		items, err := loadReceiptItems(ctx, r.pool, receipts[i].ID)
		if err != nil {
			return nil, err
		}
		receipts[i].Items = items
	}
	return receipts, nil
}

// GetReceipt returns one receipt with its lines.
func (r *Repository) GetReceipt(ctx context.Context, id uuid.UUID) (GoodsReceipt, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+receiptColumns+` FROM goods_receipts WHERE id = $1`, id)
	gr, err := scanReceipt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return GoodsReceipt{}, fmt.Errorf("%w: goods receipt", shared.ErrNotFound)
	}
	if err != nil {
		return GoodsReceipt{}, err
	}
	gr.Items, err = loadReceiptItems(ctx, r.pool, gr.ID)
	return gr, err
}

// nextDocumentNumber derives the successor of the highest existing document
// number: PREFIX-YYYY-NNNN with a four digit zero padded sequence. A last
// number from an earlier year, or no number at all, resets the sequence to
// 0001 for the given year.
func nextDocumentNumber(prefix string, year int, last string) string {
	seq := 0
	var lastYear, lastSeq int
	if n, err := fmt.Sscanf(last, prefix+"-%d-%d", &lastYear, &lastSeq); err == nil && n == 2 && lastYear == year {
		seq = lastSeq
	}
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq+1)
}

// nextNumber generates the next document number for a prefix with a yearly
// sequence, e.g. PO-2026-0001. An advisory lock on the prefix+year serialises
// concurrent generators within the transaction. Zero padded sequences order
// lexicographically, so MAX over the year's numbers is the latest one.
func nextNumber(ctx context.Context, tx pgx.Tx, table, column, prefix string) (string, error) {
	year := time.Now().UTC().Year()
	scope := fmt.Sprintf("%s-%d", prefix, year)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, scope); err != nil {
		return "", err
	}
	var last string
	query := fmt.Sprintf(`SELECT COALESCE(MAX(%s), '') FROM %s WHERE %s LIKE $1`, column, table, column)
	if err := tx.QueryRow(ctx, query, scope+"-%").Scan(&last); err != nil {
		return "", err
	}
	return nextDocumentNumber(prefix, year, last), nil
}

func (t *txRepo) NextOrderNumber(ctx context.Context) (string, error) {
	return nextNumber(ctx, t.tx, "purchase_orders", "order_number", "PO")
}

func (t *txRepo) NextReceiptNumber(ctx context.Context) (string, error) {
	return nextNumber(ctx, t.tx, "goods_receipts", "receipt_number", "GR")
}

func (t *txRepo) SupplierExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM suppliers WHERE id = $1 AND is_active)`, id).Scan(&exists)
	return exists, err
}

func (t *txRepo) ItemExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inventory_items WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (t *txRepo) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO purchase_orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		po.ID, po.OrderNumber, po.SupplierID, po.Status, po.OrderDate, po.ExpectedDeliveryDate, po.Notes,
		db.DecimalToNumeric(po.TotalAmount), po.CreatedBy, po.ApprovedBy, po.ApprovedAt, po.CreatedAt, po.UpdatedAt)
	if err != nil {
		return err
	}
	return t.insertOrderItems(ctx, po.Items)
}

func (t *txRepo) insertOrderItems(ctx context.Context, items []PurchaseOrderItem) error {
	for _, item := range items {
		_, err := t.tx.Exec(ctx, `INSERT INTO purchase_order_items
			(id, purchase_order_id, item_id, quantity, unit_price, received_quantity, line_total, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			item.ID, item.PurchaseOrderID, item.ItemID, db.DecimalToNumeric(item.Quantity),
			db.DecimalToNumeric(item.UnitPrice), db.DecimalToNumeric(item.ReceivedQuantity),
			db.DecimalToNumeric(item.LineTotal), time.Now().UTC())
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) GetPurchaseOrderForUpdate(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, id)
	po, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, fmt.Errorf("%w: purchase order", shared.ErrNotFound)
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Items, err = loadOrderItems(ctx, t.tx, po.ID)
	return po, err
}

func (t *txRepo) UpdatePurchaseOrderHeader(ctx context.Context, po PurchaseOrder) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status = $1, expected_delivery_date = $2, notes = $3,
		total_amount = $4, approved_by = $5, approved_at = $6, updated_at = $7 WHERE id = $8`,
		po.Status, po.ExpectedDeliveryDate, po.Notes, db.DecimalToNumeric(po.TotalAmount),
		po.ApprovedBy, po.ApprovedAt, time.Now().UTC(), po.ID)
	return err
}

func (t *txRepo) ReplaceOrderItems(ctx context.Context, poID uuid.UUID, items []PurchaseOrderItem) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE purchase_order_id = $1`, poID); err != nil {
		return err
	}
	return t.insertOrderItems(ctx, items)
}

func (t *txRepo) UpdateItemReceivedQuantity(ctx context.Context, itemID uuid.UUID, received decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_order_items SET received_quantity = $1 WHERE id = $2`,
		db.DecimalToNumeric(received), itemID)
	return err
}

func (t *txRepo) DeletePurchaseOrder(ctx context.Context, id uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE purchase_order_id = $1`, id); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id = $1`, id)
	return err
}

func (t *txRepo) InsertGoodsReceipt(ctx context.Context, receipt GoodsReceipt) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO goods_receipts (`+receiptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		receipt.ID, receipt.ReceiptNumber, receipt.PurchaseOrderID, receipt.Status, receipt.ReceivedDate,
		receipt.ReceivedBy, receipt.IsFinalReceipt, receipt.HasDiscrepancies, receipt.DiscrepancyNotes,
		receipt.ApprovedBy, receipt.ApprovedAt, receipt.CreatedAt, receipt.UpdatedAt)
	if err != nil {
		return err
	}
	for _, item := range receipt.Items {
		_, err := t.tx.Exec(ctx, `INSERT INTO goods_receipt_items
			(id, receipt_id, po_item_id, quantity_received, quantity_damaged, quantity_shortfall, condition, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			item.ID, item.ReceiptID, item.POItemID, db.DecimalToNumeric(item.QuantityReceived),
			db.DecimalToNumeric(item.QuantityDamaged), db.DecimalToNumeric(item.QuantityShortfall),
			item.Condition, item.Notes)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) GetGoodsReceiptForUpdate(ctx context.Context, id uuid.UUID) (GoodsReceipt, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+receiptColumns+` FROM goods_receipts WHERE id = $1 FOR UPDATE`, id)
	gr, err := scanReceipt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return GoodsReceipt{}, fmt.Errorf("%w: goods receipt", shared.ErrNotFound)
	}
	if err != nil {
		return GoodsReceipt{}, err
	}
	gr.Items, err = loadReceiptItems(ctx, t.tx, gr.ID)
	return gr, err
}

func (t *txRepo) UpdateGoodsReceiptHeader(ctx context.Context, receipt GoodsReceipt) error {
	_, err := t.tx.Exec(ctx, `UPDATE goods_receipts SET status = $1, has_discrepancies = $2, discrepancy_notes = $3,
		approved_by = $4, approved_at = $5, updated_at = $6 WHERE id = $7`,
		receipt.Status, receipt.HasDiscrepancies, receipt.DiscrepancyNotes,
		receipt.ApprovedBy, receipt.ApprovedAt, time.Now().UTC(), receipt.ID)
	return err
}
