package locations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmsync/farmsync/internal/shared"
)

type Repository interface {
	List(ctx context.Context) ([]Location, error)
	ListActive(ctx context.Context) ([]Location, error)
	Get(ctx context.Context, id uuid.UUID) (Location, error)
	Create(ctx context.Context, location Location) (Location, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const locationColumns = `id, name, description, is_active, created_at, updated_at`

func (r *repository) list(ctx context.Context, query string, args ...any) ([]Location, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.IsActive, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func (r *repository) List(ctx context.Context) ([]Location, error) {
	return r.list(ctx, `SELECT `+locationColumns+` FROM inventory_locations ORDER BY created_at ASC`)
}

func (r *repository) ListActive(ctx context.Context) ([]Location, error) {
	return r.list(ctx, `SELECT `+locationColumns+` FROM inventory_locations WHERE is_active ORDER BY created_at ASC`)
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Location, error) {
	var l Location
	err := r.pool.QueryRow(ctx, `SELECT `+locationColumns+` FROM inventory_locations WHERE id = $1`, id).
		Scan(&l.ID, &l.Name, &l.Description, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, shared.ErrNotFound
	}
	return l, err
}

func (r *repository) Create(ctx context.Context, location Location) (Location, error) {
	now := time.Now().UTC()
	location.ID = uuid.New()
	location.CreatedAt = now
	location.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `INSERT INTO inventory_locations (id, name, description, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		location.ID, location.Name, location.Description, location.IsActive, location.CreatedAt, location.UpdatedAt)
	if err != nil {
		return Location{}, err
	}
	return location, nil
}
