package items

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmsync/farmsync/internal/platform/db"
	mdshared "github.com/farmsync/farmsync/internal/masterdata/shared"
	"github.com/farmsync/farmsync/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters mdshared.ListFilters) ([]InventoryItem, int, error)
	Get(ctx context.Context, id uuid.UUID) (InventoryItem, error)
	Create(ctx context.Context, item InventoryItem) (InventoryItem, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const itemColumns = `id, sku, name, unit, unit_price, average_unit_cost, is_active, created_at, updated_at`

func scanItem(row pgx.Row) (InventoryItem, error) {
	var it InventoryItem
	var price, avg pgtype.Numeric
	err := row.Scan(&it.ID, &it.SKU, &it.Name, &it.Unit, &price, &avg, &it.IsActive, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return InventoryItem{}, err
	}
	it.UnitPrice = db.NumericToDecimal(price)
	it.AverageUnitCost = db.NumericToDecimal(avg)
	return it, nil
}

func (r *repository) List(ctx context.Context, filters mdshared.ListFilters) ([]InventoryItem, int, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM inventory_items WHERE 1=1`
	args := []any{}
	countArgs := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		cond := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR sku ILIKE $` + strconv.Itoa(argCount) + `)`
		query += cond
		countQuery += cond
		args = append(args, "%"+filters.Search+"%")
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name ASC`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []InventoryItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, it)
	}
	return result, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (InventoryItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id)
	it, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return InventoryItem{}, shared.ErrNotFound
	}
	return it, err
}

func (r *repository) Create(ctx context.Context, item InventoryItem) (InventoryItem, error) {
	now := time.Now().UTC()
	item.ID = uuid.New()
	item.CreatedAt = now
	item.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `INSERT INTO inventory_items (id, sku, name, unit, unit_price, average_unit_cost, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.SKU, item.Name, item.Unit, db.DecimalToNumeric(item.UnitPrice), db.DecimalToNumeric(item.AverageUnitCost), item.IsActive, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return InventoryItem{}, err
	}
	return item, nil
}
