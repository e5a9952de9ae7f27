package items

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	mdshared "github.com/farmsync/farmsync/internal/masterdata/shared"
	"github.com/farmsync/farmsync/internal/shared"
)

// CreateItemInput carries catalog fields for a new item.
type CreateItemInput struct {
	SKU       string          `json:"sku" validate:"required,max=50"`
	Name      string          `json:"name" validate:"required,max=200"`
	Unit      string          `json:"unit" validate:"required,max=20"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]InventoryItem, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (InventoryItem, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, input CreateItemInput) (InventoryItem, error) {
	if strings.TrimSpace(input.SKU) == "" || strings.TrimSpace(input.Name) == "" {
		return InventoryItem{}, fmt.Errorf("%w: sku and name are required", shared.ErrInvalidArgument)
	}
	if input.UnitPrice.IsNegative() {
		return InventoryItem{}, fmt.Errorf("%w: unit price may not be negative", shared.ErrInvalidArgument)
	}
	return s.repo.Create(ctx, InventoryItem{
		SKU:       input.SKU,
		Name:      input.Name,
		Unit:      input.Unit,
		UnitPrice: input.UnitPrice,
		IsActive:  true,
	})
}
