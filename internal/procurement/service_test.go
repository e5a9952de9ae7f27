package procurement

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/farmsync/farmsync/internal/inventory"
	"github.com/farmsync/farmsync/internal/shared"
)

type memoryProcRepo struct {
	orders    map[uuid.UUID]*PurchaseOrder
	orderSeq  []uuid.UUID
	receipts  map[uuid.UUID]*GoodsReceipt
	rcptSeq   []uuid.UUID
	suppliers map[uuid.UUID]bool
	items     map[uuid.UUID]bool
	lastPO    string
	lastGR    string
}

func newMemoryProcRepo() *memoryProcRepo {
	return &memoryProcRepo{
		orders:    map[uuid.UUID]*PurchaseOrder{},
		receipts:  map[uuid.UUID]*GoodsReceipt{},
		suppliers: map[uuid.UUID]bool{},
		items:     map[uuid.UUID]bool{},
	}
}

func (m *memoryProcRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryProcRepo) NextOrderNumber(context.Context) (string, error) {
	m.lastPO = nextDocumentNumber("PO", time.Now().UTC().Year(), m.lastPO)
	return m.lastPO, nil
}

func (m *memoryProcRepo) NextReceiptNumber(context.Context) (string, error) {
	m.lastGR = nextDocumentNumber("GR", time.Now().UTC().Year(), m.lastGR)
	return m.lastGR, nil
}

func (m *memoryProcRepo) SupplierExists(_ context.Context, id uuid.UUID) (bool, error) {
	return m.suppliers[id], nil
}

func (m *memoryProcRepo) ItemExists(_ context.Context, id uuid.UUID) (bool, error) {
	return m.items[id], nil
}

func copyOrder(po *PurchaseOrder) PurchaseOrder {
	out := *po
	out.Items = append([]PurchaseOrderItem(nil), po.Items...)
	return out
}

func copyReceipt(gr *GoodsReceipt) GoodsReceipt {
	out := *gr
	out.Items = append([]GoodsReceiptItem(nil), gr.Items...)
	return out
}

func (m *memoryProcRepo) InsertPurchaseOrder(_ context.Context, po PurchaseOrder) error {
	stored := copyOrder(&po)
	m.orders[po.ID] = &stored
	m.orderSeq = append(m.orderSeq, po.ID)
	return nil
}

func (m *memoryProcRepo) GetPurchaseOrderForUpdate(_ context.Context, id uuid.UUID) (PurchaseOrder, error) {
	po, ok := m.orders[id]
	if !ok {
		return PurchaseOrder{}, fmt.Errorf("%w: purchase order", shared.ErrNotFound)
	}
	return copyOrder(po), nil
}

func (m *memoryProcRepo) UpdatePurchaseOrderHeader(_ context.Context, po PurchaseOrder) error {
	stored := m.orders[po.ID]
	stored.Status = po.Status
	stored.ExpectedDeliveryDate = po.ExpectedDeliveryDate
	stored.Notes = po.Notes
	stored.TotalAmount = po.TotalAmount
	stored.ApprovedBy = po.ApprovedBy
	stored.ApprovedAt = po.ApprovedAt
	return nil
}

func (m *memoryProcRepo) ReplaceOrderItems(_ context.Context, poID uuid.UUID, items []PurchaseOrderItem) error {
	m.orders[poID].Items = append([]PurchaseOrderItem(nil), items...)
	return nil
}

func (m *memoryProcRepo) UpdateItemReceivedQuantity(_ context.Context, itemID uuid.UUID, received decimal.Decimal) error {
	for _, po := range m.orders {
		for i := range po.Items {
			if po.Items[i].ID == itemID {
				po.Items[i].ReceivedQuantity = received
				return nil
			}
		}
	}
	return fmt.Errorf("%w: order line", shared.ErrNotFound)
}

func (m *memoryProcRepo) DeletePurchaseOrder(_ context.Context, id uuid.UUID) error {
	delete(m.orders, id)
	return nil
}

func (m *memoryProcRepo) InsertGoodsReceipt(_ context.Context, receipt GoodsReceipt) error {
	stored := copyReceipt(&receipt)
	m.receipts[receipt.ID] = &stored
	m.rcptSeq = append(m.rcptSeq, receipt.ID)
	return nil
}

func (m *memoryProcRepo) GetGoodsReceiptForUpdate(_ context.Context, id uuid.UUID) (GoodsReceipt, error) {
	gr, ok := m.receipts[id]
	if !ok {
		return GoodsReceipt{}, fmt.Errorf("%w: goods receipt", shared.ErrNotFound)
	}
	return copyReceipt(gr), nil
}

func (m *memoryProcRepo) UpdateGoodsReceiptHeader(_ context.Context, receipt GoodsReceipt) error {
	stored := m.receipts[receipt.ID]
	stored.Status = receipt.Status
	stored.HasDiscrepancies = receipt.HasDiscrepancies
	stored.DiscrepancyNotes = receipt.DiscrepancyNotes
	stored.ApprovedBy = receipt.ApprovedBy
	stored.ApprovedAt = receipt.ApprovedAt
	return nil
}

func (m *memoryProcRepo) ListOrders(_ context.Context, status *POStatus) ([]PurchaseOrder, error) {
	var out []PurchaseOrder
	for i := len(m.orderSeq) - 1; i >= 0; i-- {
		po, ok := m.orders[m.orderSeq[i]]
		if !ok {
			continue
		}
		if status != nil && po.Status != *status {
			continue
		}
		out = append(out, copyOrder(po))
	}
	return out, nil
}

func (m *memoryProcRepo) GetOrder(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	return m.GetPurchaseOrderForUpdate(ctx, id)
}

func (m *memoryProcRepo) AvailableForReceiving(_ context.Context) ([]PurchaseOrder, error) {
	var out []PurchaseOrder
	for _, id := range m.orderSeq {
		po, ok := m.orders[id]
		if !ok {
			continue
		}
		if po.Status == POStatusApproved || po.Status == POStatusPartiallyReceived {
			out = append(out, copyOrder(po))
		}
	}
	return out, nil
}

func (m *memoryProcRepo) PendingApprovalOrders(_ context.Context) ([]PurchaseOrder, error) {
	var out []PurchaseOrder
	for _, id := range m.orderSeq {
		if po := m.orders[id]; po != nil && po.Status == POStatusCreated {
			out = append(out, copyOrder(po))
		}
	}
	return out, nil
}

func (m *memoryProcRepo) ListReceipts(_ context.Context, poID *uuid.UUID) ([]GoodsReceipt, error) {
	var out []GoodsReceipt
	for i := len(m.rcptSeq) - 1; i >= 0; i-- {
		gr := m.receipts[m.rcptSeq[i]]
		if poID != nil && gr.PurchaseOrderID != *poID {
			continue
		}
		out = append(out, copyReceipt(gr))
	}
	return out, nil
}

func (m *memoryProcRepo) GetReceipt(ctx context.Context, id uuid.UUID) (GoodsReceipt, error) {
	return m.GetGoodsReceiptForUpdate(ctx, id)
}

func (m *memoryProcRepo) PendingApprovalReceipts(_ context.Context) ([]GoodsReceipt, error) {
	var out []GoodsReceipt
	for _, id := range m.rcptSeq {
		if gr := m.receipts[id]; gr.Status == GRStatusPending && gr.HasDiscrepancies {
			out = append(out, copyReceipt(gr))
		}
	}
	return out, nil
}

// fakeInventory honours the InventoryPort contract: repeat applications for
// the same receipt number are no-ops.
type fakeInventory struct {
	applications []inventory.ReceiptApplication
	applied      map[string]bool
	failErr      error
}

func (f *fakeInventory) ApplyReceipt(_ context.Context, app inventory.ReceiptApplication) error {
	if f.failErr != nil {
		return f.failErr
	}
	if f.applied == nil {
		f.applied = map[string]bool{}
	}
	if f.applied[app.ReceiptNumber] {
		return nil
	}
	f.applied[app.ReceiptNumber] = true
	f.applications = append(f.applications, app)
	return nil
}

type noopLocks struct{}

func (noopLocks) Acquire(context.Context, uuid.UUID) (func(), error) {
	return func() {}, nil
}

type procFixture struct {
	repo *memoryProcRepo
	inv  *fakeInventory
	svc  *Service
}

func newProcFixture() *procFixture {
	repo := newMemoryProcRepo()
	inv := &fakeInventory{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &procFixture{
		repo: repo,
		inv:  inv,
		svc:  NewService(logger, repo, inv, noopLocks{}, nil),
	}
}

func (f *procFixture) addSupplier() uuid.UUID {
	id := uuid.New()
	f.repo.suppliers[id] = true
	return id
}

func (f *procFixture) addItem() uuid.UUID {
	id := uuid.New()
	f.repo.items[id] = true
	return id
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *procFixture) createOrder(t *testing.T, lines ...OrderLineInput) PurchaseOrder {
	t.Helper()
	supplierID := f.addSupplier()
	if len(lines) == 0 {
		lines = []OrderLineInput{{ItemID: f.addItem(), Quantity: dec("100"), UnitPrice: dec("10.00")}}
	}
	po, err := f.svc.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{
		SupplierID: supplierID,
		Items:      lines,
	})
	require.NoError(t, err)
	return po
}

func TestCreateOrderComputesTotal(t *testing.T) {
	f := newProcFixture()
	itemA, itemB := f.addItem(), f.addItem()

	po := f.createOrder(t,
		OrderLineInput{ItemID: itemA, Quantity: dec("100"), UnitPrice: dec("10.00")},
		OrderLineInput{ItemID: itemB, Quantity: dec("4"), UnitPrice: dec("2.50")},
	)

	require.Equal(t, POStatusCreated, po.Status)
	require.True(t, po.TotalAmount.Equal(dec("1010.00")), "got %s", po.TotalAmount)
	require.Len(t, po.Items, 2)
	for _, item := range po.Items {
		require.True(t, item.ReceivedQuantity.IsZero())
	}
	require.Equal(t, fmt.Sprintf("PO-%d-0001", time.Now().UTC().Year()), po.OrderNumber)
}

func TestCreateOrderUnknownSupplier(t *testing.T) {
	f := newProcFixture()
	_, err := f.svc.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{
		SupplierID: uuid.New(),
		Items:      []OrderLineInput{{ItemID: f.addItem(), Quantity: dec("1"), UnitPrice: dec("1")}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateOrderUnknownItem(t *testing.T) {
	f := newProcFixture()
	_, err := f.svc.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{
		SupplierID: f.addSupplier(),
		Items:      []OrderLineInput{{ItemID: uuid.New(), Quantity: dec("1"), UnitPrice: dec("1")}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateOrderRejectsBadLines(t *testing.T) {
	f := newProcFixture()
	supplierID := f.addSupplier()

	_, err := f.svc.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{SupplierID: supplierID})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = f.svc.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{
		SupplierID: supplierID,
		Items:      []OrderLineInput{{ItemID: f.addItem(), Quantity: dec("0"), UnitPrice: dec("1")}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestOrderNumberSequence(t *testing.T) {
	f := newProcFixture()
	first := f.createOrder(t)
	second := f.createOrder(t)
	year := time.Now().UTC().Year()
	require.Equal(t, fmt.Sprintf("PO-%d-0001", year), first.OrderNumber)
	require.Equal(t, fmt.Sprintf("PO-%d-0002", year), second.OrderNumber)
}

func TestUpdateOrderReplacesLines(t *testing.T) {
	f := newProcFixture()
	po := f.createOrder(t)
	newItem := f.addItem()

	updated, err := f.svc.UpdateOrder(context.Background(), uuid.New(), po.ID, UpdateOrderInput{
		Items: []OrderLineInput{{ItemID: newItem, Quantity: dec("5"), UnitPrice: dec("3.00")}},
	})
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	require.Equal(t, newItem, updated.Items[0].ItemID)
	require.True(t, updated.TotalAmount.Equal(dec("15.00")))
}

func TestUpdateOrderOnlyWhileCreated(t *testing.T) {
	f := newProcFixture()
	po := f.createOrder(t)
	_, err := f.svc.ApproveOrder(context.Background(), uuid.New(), po.ID)
	require.NoError(t, err)

	_, err = f.svc.UpdateOrder(context.Background(), uuid.New(), po.ID, UpdateOrderInput{
		Items: []OrderLineInput{{ItemID: f.addItem(), Quantity: dec("1"), UnitPrice: dec("1")}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestApproveOrderRecordsApprover(t *testing.T) {
	f := newProcFixture()
	po := f.createOrder(t)
	approver := uuid.New()

	approved, err := f.svc.ApproveOrder(context.Background(), approver, po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	require.Equal(t, approver, *approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)

	_, err = f.svc.ApproveOrder(context.Background(), approver, po.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestDeleteOrderOnlyWhileCreated(t *testing.T) {
	f := newProcFixture()
	po := f.createOrder(t)
	_, err := f.svc.ApproveOrder(context.Background(), uuid.New(), po.ID)
	require.NoError(t, err)
	require.ErrorIs(t, f.svc.DeleteOrder(context.Background(), uuid.New(), po.ID), shared.ErrInvalidState)

	fresh := f.createOrder(t)
	require.NoError(t, f.svc.DeleteOrder(context.Background(), uuid.New(), fresh.ID))
	_, err = f.svc.Order(context.Background(), fresh.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCancelOrder(t *testing.T) {
	f := newProcFixture()
	po := f.createOrder(t)

	cancelled, err := f.svc.CancelOrder(context.Background(), uuid.New(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusCancelled, cancelled.Status)

	approvedPO := f.createOrder(t)
	_, err = f.svc.ApproveOrder(context.Background(), uuid.New(), approvedPO.ID)
	require.NoError(t, err)
	_, err = f.svc.CancelOrder(context.Background(), uuid.New(), approvedPO.ID)
	require.NoError(t, err)

	receivedPO := f.createOrder(t)
	f.repo.orders[receivedPO.ID].Status = POStatusPartiallyReceived
	_, err = f.svc.CancelOrder(context.Background(), uuid.New(), receivedPO.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCloseOrderRequiresFullyReceived(t *testing.T) {
	f := newProcFixture()
	po := f.createOrder(t)
	_, err := f.svc.CloseOrder(context.Background(), uuid.New(), po.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	f.repo.orders[po.ID].Status = POStatusFullyReceived
	closed, err := f.svc.CloseOrder(context.Background(), uuid.New(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusClosed, closed.Status)
}

func TestOrderQueries(t *testing.T) {
	f := newProcFixture()
	first := f.createOrder(t)
	second := f.createOrder(t)
	_, err := f.svc.ApproveOrder(context.Background(), uuid.New(), second.ID)
	require.NoError(t, err)

	pending, err := f.svc.PendingApprovalOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, first.ID, pending[0].ID)

	receivable, err := f.svc.AvailableForReceiving(context.Background())
	require.NoError(t, err)
	require.Len(t, receivable, 1)
	require.Equal(t, second.ID, receivable[0].ID)

	status := POStatusApproved
	approved, err := f.svc.Orders(context.Background(), &status)
	require.NoError(t, err)
	require.Len(t, approved, 1)
}
