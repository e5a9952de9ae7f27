package suppliers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	mdshared "github.com/farmsync/farmsync/internal/masterdata/shared"
	"github.com/farmsync/farmsync/internal/shared"
)

type memorySupplierRepo struct {
	suppliers map[uuid.UUID]Supplier
	poCounts  map[uuid.UUID]int
}

func newMemorySupplierRepo() *memorySupplierRepo {
	return &memorySupplierRepo{
		suppliers: make(map[uuid.UUID]Supplier),
		poCounts:  make(map[uuid.UUID]int),
	}
}

func (r *memorySupplierRepo) List(ctx context.Context, filters mdshared.ListFilters) ([]Supplier, int, error) {
	var result []Supplier
	for _, s := range r.suppliers {
		if filters.IsActive != nil && s.IsActive != *filters.IsActive {
			continue
		}
		result = append(result, s)
	}
	return result, len(result), nil
}

func (r *memorySupplierRepo) Get(ctx context.Context, id uuid.UUID) (Supplier, error) {
	s, ok := r.suppliers[id]
	if !ok {
		return Supplier{}, shared.ErrNotFound
	}
	return s, nil
}

func (r *memorySupplierRepo) GetByFoldedName(ctx context.Context, folded string) (Supplier, error) {
	for _, s := range r.suppliers {
		if foldName(s.Name) == folded {
			return s, nil
		}
	}
	return Supplier{}, shared.ErrNotFound
}

func (r *memorySupplierRepo) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	supplier.ID = uuid.New()
	r.suppliers[supplier.ID] = supplier
	return supplier, nil
}

func (r *memorySupplierRepo) Update(ctx context.Context, id uuid.UUID, supplier Supplier) error {
	if _, ok := r.suppliers[id]; !ok {
		return shared.ErrNotFound
	}
	supplier.ID = id
	r.suppliers[id] = supplier
	return nil
}

func (r *memorySupplierRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	s, ok := r.suppliers[id]
	if !ok {
		return shared.ErrNotFound
	}
	s.IsActive = active
	r.suppliers[id] = s
	return nil
}

func (r *memorySupplierRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.suppliers[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.suppliers, id)
	return nil
}

func (r *memorySupplierRepo) CountPurchaseOrders(ctx context.Context, id uuid.UUID) (int, error) {
	return r.poCounts[id], nil
}

func TestCreateSupplierStartsActive(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), CreateSupplierInput{Name: "Greenfield Seeds"}, uuid.New())
	require.NoError(t, err)
	require.True(t, created.IsActive)
	require.NotEqual(t, uuid.Nil, created.ID)
}

func TestCreateSupplierDuplicateNameCaseInsensitive(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateSupplierInput{Name: "Greenfield Seeds"}, uuid.New())
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateSupplierInput{Name: "GREENFIELD seeds"}, uuid.New())
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateSupplierDuplicateNameNonASCIIFold(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := NewService(repo)
	ctx := context.Background()

	// Case folding equates forms plain lowercasing misses (ß folds to ss).
	_, err := svc.Create(ctx, CreateSupplierInput{Name: "Großhof Agrar"}, uuid.New())
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateSupplierInput{Name: "GROSSHOF AGRAR"}, uuid.New())
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestUpdateSupplierRenameCollision(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := NewService(repo)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateSupplierInput{Name: "AgriCo"}, uuid.New())
	require.NoError(t, err)
	second, err := svc.Create(ctx, CreateSupplierInput{Name: "FarmParts"}, uuid.New())
	require.NoError(t, err)

	_, err = svc.Update(ctx, second.ID, CreateSupplierInput{Name: "agrico"})
	require.ErrorIs(t, err, shared.ErrConflict)

	// Renaming to its own name is fine.
	_, err = svc.Update(ctx, first.ID, CreateSupplierInput{Name: "AgriCo", Phone: "555-0101"})
	require.NoError(t, err)
}

func TestUpdateSupplierNotFound(t *testing.T) {
	svc := NewService(newMemorySupplierRepo())
	_, err := svc.Update(context.Background(), uuid.New(), CreateSupplierInput{Name: "Ghost"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteSupplierBlockedByPurchaseOrders(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateSupplierInput{Name: "AgriCo"}, uuid.New())
	require.NoError(t, err)
	repo.poCounts[created.ID] = 1

	err = svc.Delete(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	// Deactivation remains available.
	require.NoError(t, svc.Deactivate(ctx, created.ID))
	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}

func TestDeleteSupplierWithoutOrders(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateSupplierInput{Name: "AgriCo"}, uuid.New())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID))

	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateSupplierRequiresName(t *testing.T) {
	svc := NewService(newMemorySupplierRepo())
	_, err := svc.Create(context.Background(), CreateSupplierInput{Name: "   "}, uuid.New())
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}
