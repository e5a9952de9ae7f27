package suppliers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	mdshared "github.com/farmsync/farmsync/internal/masterdata/shared"
	"github.com/farmsync/farmsync/internal/shared"
)

// CreateSupplierInput carries the mutable supplier fields.
type CreateSupplierInput struct {
	Name          string `json:"name" validate:"required,max=200"`
	ContactPerson string `json:"contact_person" validate:"max=200"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone" validate:"max=50"`
	Address       string `json:"address" validate:"max=500"`
	TaxNumber     string `json:"tax_number" validate:"max=50"`
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Supplier, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) ListActive(ctx context.Context, filters mdshared.ListFilters) ([]Supplier, int, error) {
	active := true
	filters.IsActive = &active
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Supplier, error) {
	return s.repo.Get(ctx, id)
}

// Create persists a new active supplier. Supplier names are unique
// case-insensitively.
func (s *Service) Create(ctx context.Context, input CreateSupplierInput, createdBy uuid.UUID) (Supplier, error) {
	if err := s.validate(input); err != nil {
		return Supplier{}, err
	}
	existing, err := s.repo.GetByFoldedName(ctx, foldName(input.Name))
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return Supplier{}, err
	}
	if err == nil && existing.ID != uuid.Nil {
		return Supplier{}, fmt.Errorf("%w: supplier %q already exists", shared.ErrConflict, input.Name)
	}
	supplier := Supplier{
		Name:          input.Name,
		ContactPerson: input.ContactPerson,
		Email:         input.Email,
		Phone:         input.Phone,
		Address:       input.Address,
		TaxNumber:     input.TaxNumber,
		IsActive:      true,
		CreatedBy:     createdBy,
	}
	created, err := s.repo.Create(ctx, supplier)
	if errors.Is(err, shared.ErrConflict) {
		return Supplier{}, fmt.Errorf("%w: supplier %q already exists", shared.ErrConflict, input.Name)
	}
	return created, err
}

// Update changes supplier contact fields; a rename may not collide with a
// different supplier's name.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input CreateSupplierInput) (Supplier, error) {
	if err := s.validate(input); err != nil {
		return Supplier{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Supplier{}, fmt.Errorf("%w: supplier %s", shared.ErrNotFound, id)
	}
	existing, err := s.repo.GetByFoldedName(ctx, foldName(input.Name))
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return Supplier{}, err
	}
	if err == nil && existing.ID != id {
		return Supplier{}, fmt.Errorf("%w: supplier %q already exists", shared.ErrConflict, input.Name)
	}
	current.Name = input.Name
	current.ContactPerson = input.ContactPerson
	current.Email = input.Email
	current.Phone = input.Phone
	current.Address = input.Address
	current.TaxNumber = input.TaxNumber
	if err := s.repo.Update(ctx, id, current); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return Supplier{}, fmt.Errorf("%w: supplier %q already exists", shared.ErrConflict, input.Name)
		}
		return Supplier{}, err
	}
	return s.repo.Get(ctx, id)
}

// Deactivate soft-disables a supplier. The sanctioned alternative to deletion
// once purchase orders reference it.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id, false)
}

// Activate re-enables a supplier.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id, true)
}

// Delete removes a supplier that has never been used on a purchase order.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return fmt.Errorf("%w: supplier %s", shared.ErrNotFound, id)
	}
	count, err := s.repo.CountPurchaseOrders(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: supplier has existing purchase orders, deactivate instead", shared.ErrConflict)
	}
	return s.repo.Delete(ctx, id)
}
