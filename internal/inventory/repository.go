package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/farmsync/farmsync/internal/platform/db"
)

// ErrStockNotFound signals a missing stock row for (item, location).
var ErrStockNotFound = errors.New("inventory: stock level not found")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetStockLevelForUpdate(ctx context.Context, itemID, locationID uuid.UUID) (StockLevel, error)
	InsertStockLevel(ctx context.Context, level StockLevel) error
	UpdateStockQuantity(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error
	GetAverageCostForUpdate(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error)
	UpdateAverageCost(ctx context.Context, itemID uuid.UUID, avg decimal.Decimal) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
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

// StockByItem lists stock rows for one item across locations.
func (r *Repository) StockByItem(ctx context.Context, itemID uuid.UUID) ([]StockLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, location_id, quantity, reserved_quantity, updated_at
		FROM stock_levels WHERE item_id = $1 ORDER BY updated_at DESC`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		level, err := scanStockLevel(rows)
		if err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, rows.Err()
}

// ListStockLevels returns every stock row, newest movement first.
func (r *Repository) ListStockLevels(ctx context.Context) ([]StockLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, location_id, quantity, reserved_quantity, updated_at
		FROM stock_levels ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		level, err := scanStockLevel(rows)
		if err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, rows.Err()
}

// Valuation returns the stored average cost and the summed stock for an item.
func (r *Repository) Valuation(ctx context.Context, itemID uuid.UUID) (ItemValuation, error) {
	var avg, total pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT i.average_unit_cost, COALESCE(SUM(s.quantity), 0)
		FROM inventory_items i
		LEFT JOIN stock_levels s ON s.item_id = i.id
		WHERE i.id = $1
		GROUP BY i.average_unit_cost`, itemID).Scan(&avg, &total)
	if errors.Is(err, pgx.ErrNoRows) {
		return ItemValuation{}, ErrStockNotFound
	}
	if err != nil {
		return ItemValuation{}, err
	}
	return ItemValuation{
		ItemID:          itemID,
		AverageUnitCost: db.NumericToDecimal(avg),
		TotalStock:      db.NumericToDecimal(total),
	}, nil
}

// CostHistory replays approved receipt lines for one item in approval order.
func (r *Repository) CostHistory(ctx context.Context, itemID uuid.UUID) ([]CostEvent, error) {
	rows, err := r.pool.Query(ctx, `SELECT gri.quantity_received - gri.quantity_damaged, poi.unit_price
		FROM goods_receipt_items gri
		JOIN goods_receipts gr ON gr.id = gri.receipt_id
		JOIN purchase_order_items poi ON poi.id = gri.po_item_id
		WHERE poi.item_id = $1 AND gr.status = 'Approved'
		ORDER BY gr.approved_at ASC NULLS LAST, gr.created_at ASC`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []CostEvent
	for rows.Next() {
		var qty, price pgtype.Numeric
		if err := rows.Scan(&qty, &price); err != nil {
			return nil, err
		}
		events = append(events, CostEvent{
			Quantity:  db.NumericToDecimal(qty),
			UnitPrice: db.NumericToDecimal(price),
		})
	}
	return events, rows.Err()
}

// ListItemIDs returns ids of items carrying stock, for the valuation audit.
func (r *Repository) ListItemIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT item_id FROM stock_levels`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanStockLevel(row pgx.Row) (StockLevel, error) {
	var level StockLevel
	var qty, reserved pgtype.Numeric
	if err := row.Scan(&level.ID, &level.ItemID, &level.LocationID, &qty, &reserved, &level.UpdatedAt); err != nil {
		return StockLevel{}, err
	}
	level.Quantity = db.NumericToDecimal(qty)
	level.ReservedQuantity = db.NumericToDecimal(reserved)
	return level, nil
}

func (t *txRepo) GetStockLevelForUpdate(ctx context.Context, itemID, locationID uuid.UUID) (StockLevel, error) {
	row := t.tx.QueryRow(ctx, `SELECT id, item_id, location_id, quantity, reserved_quantity, updated_at
		FROM stock_levels WHERE item_id = $1 AND location_id = $2 FOR UPDATE`, itemID, locationID)
	level, err := scanStockLevel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockLevel{}, ErrStockNotFound
	}
	return level, err
}

func (t *txRepo) InsertStockLevel(ctx context.Context, level StockLevel) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO stock_levels (id, item_id, location_id, quantity, reserved_quantity, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		level.ID, level.ItemID, level.LocationID, db.DecimalToNumeric(level.Quantity), db.DecimalToNumeric(level.ReservedQuantity), level.UpdatedAt)
	return err
}

func (t *txRepo) UpdateStockQuantity(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `UPDATE stock_levels SET quantity = $1, updated_at = $2 WHERE id = $3`,
		db.DecimalToNumeric(quantity), time.Now().UTC(), id)
	return err
}

func (t *txRepo) GetAverageCostForUpdate(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error) {
	var avg pgtype.Numeric
	err := t.tx.QueryRow(ctx, `SELECT average_unit_cost FROM inventory_items WHERE id = $1 FOR UPDATE`, itemID).Scan(&avg)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, ErrStockNotFound
	}
	if err != nil {
		return decimal.Decimal{}, err
	}
	return db.NumericToDecimal(avg), nil
}

func (t *txRepo) UpdateAverageCost(ctx context.Context, itemID uuid.UUID, avg decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `UPDATE inventory_items SET average_unit_cost = $1, updated_at = $2 WHERE id = $3`,
		db.DecimalToNumeric(avg), time.Now().UTC(), itemID)
	return err
}
