package procurement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/farmsync/farmsync/internal/shared"
)

func (f *procFixture) approvedOrder(t *testing.T, lines ...OrderLineInput) PurchaseOrder {
	t.Helper()
	po := f.createOrder(t, lines...)
	po, err := f.svc.ApproveOrder(context.Background(), uuid.New(), po.ID)
	require.NoError(t, err)
	return po
}

func TestCleanReceiptAutoApproves(t *testing.T) {
	f := newProcFixture()
	po := f.approvedOrder(t)

	receipt, err := f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
		PurchaseOrderID: po.ID,
		Items: []ReceiptLineInput{{
			POItemID:         po.Items[0].ID,
			QuantityReceived: dec("100"),
		}},
	})
	require.NoError(t, err)
	require.Equal(t, GRStatusApproved, receipt.Status)
	require.False(t, receipt.HasDiscrepancies)
	require.NotNil(t, receipt.ApprovedAt)
	require.Equal(t, fmt.Sprintf("GR-%d-0001", time.Now().UTC().Year()), receipt.ReceiptNumber)

	stored, err := f.svc.Order(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusFullyReceived, stored.Status)
	require.True(t, stored.Items[0].ReceivedQuantity.Equal(dec("100")))

	require.Len(t, f.inv.applications, 1)
	app := f.inv.applications[0]
	require.Equal(t, receipt.ReceiptNumber, app.ReceiptNumber)
	require.Len(t, app.Lines, 1)
	require.True(t, app.Lines[0].Quantity.Equal(dec("100")))
	require.True(t, app.Lines[0].UnitPrice.Equal(dec("10.00")))
}

func TestPartialCleanReceipt(t *testing.T) {
	f := newProcFixture()
	po := f.approvedOrder(t)

	receipt, err := f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
		PurchaseOrderID: po.ID,
		Items: []ReceiptLineInput{{
			POItemID:         po.Items[0].ID,
			QuantityReceived: dec("40"),
		}},
	})
	require.NoError(t, err)
	require.Equal(t, GRStatusApproved, receipt.Status)

	stored, err := f.svc.Order(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusPartiallyReceived, stored.Status)
	require.True(t, stored.Items[0].ReceivedQuantity.Equal(dec("40")))
}

func TestDiscrepantReceiptStaysPending(t *testing.T) {
	f := newProcFixture()
	po := f.approvedOrder(t)

	receipt, err := f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
		PurchaseOrderID: po.ID,
		Items: []ReceiptLineInput{{
			POItemID:         po.Items[0].ID,
			QuantityReceived: dec("100"),
			QuantityDamaged:  dec("10"),
			Condition:        "crates crushed in transit",
		}},
	})
	require.NoError(t, err)
	require.Equal(t, GRStatusPending, receipt.Status)
	require.True(t, receipt.HasDiscrepancies)

	// Received quantity moves net of damage, nothing else does.
	stored, err := f.svc.Order(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusApproved, stored.Status)
	require.True(t, stored.Items[0].ReceivedQuantity.Equal(dec("90")))
	require.Empty(t, f.inv.applications)
}

func TestApproveFinalReceiptClosesWithIssues(t *testing.T) {
	f := newProcFixture()
	po := f.approvedOrder(t)

	receipt, err := f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
		PurchaseOrderID: po.ID,
		IsFinalReceipt:  true,
		Items: []ReceiptLineInput{{
			POItemID:         po.Items[0].ID,
			QuantityReceived: dec("100"),
			QuantityDamaged:  dec("10"),
		}},
	})
	require.NoError(t, err)
	require.Equal(t, GRStatusPending, receipt.Status)

	approver := uuid.New()
	approved, err := f.svc.ApproveReceipt(context.Background(), approver, receipt.ID)
	require.NoError(t, err)
	require.Equal(t, GRStatusApproved, approved.Status)
	require.Equal(t, approver, *approved.ApprovedBy)

	stored, err := f.svc.Order(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusClosedWithIssues, stored.Status)

	require.Len(t, f.inv.applications, 1)
	require.True(t, f.inv.applications[0].Lines[0].Quantity.Equal(dec("90")))
}

func TestReapproveApprovedReceiptDoesNotDoublePost(t *testing.T) {
	f := newProcFixture()
	po := f.approvedOrder(t)

	receipt, err := f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
		PurchaseOrderID: po.ID,
		Items:           []ReceiptLineInput{{POItemID: po.Items[0].ID, QuantityReceived: dec("100")}},
	})
	require.NoError(t, err)
	require.Equal(t, GRStatusApproved, receipt.Status)
	require.Len(t, f.inv.applications, 1)

	again, err := f.svc.ApproveReceipt(context.Background(), uuid.New(), receipt.ID)
	require.NoError(t, err)
	require.Equal(t, GRStatusApproved, again.Status)
	require.Len(t, f.inv.applications, 1)

	stored, err := f.svc.Order(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusFullyReceived, stored.Status)
	require.True(t, stored.Items[0].ReceivedQuantity.Equal(dec("100")))
}

func TestApproveReceiptRetriesAfterStockFailure(t *testing.T) {
	f := newProcFixture()
	po := f.approvedOrder(t)

	receipt, err := f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
		PurchaseOrderID: po.ID,
		IsFinalReceipt:  true,
		Items: []ReceiptLineInput{{
			POItemID:         po.Items[0].ID,
			QuantityReceived: dec("100"),
			QuantityDamaged:  dec("10"),
		}},
	})
	require.NoError(t, err)
	require.Equal(t, GRStatusPending, receipt.Status)

	approver := uuid.New()
	f.inv.failErr = errors.New("stock store down")
	_, err = f.svc.ApproveReceipt(context.Background(), approver, receipt.ID)
	require.Error(t, err)

	// The approval committed, the posting did not.
	stored, err := f.svc.Receipt(context.Background(), receipt.ID)
	require.NoError(t, err)
	require.Equal(t, GRStatusApproved, stored.Status)
	require.Empty(t, f.inv.applications)

	// Approving again resumes the stock application.
	f.inv.failErr = nil
	resumed, err := f.svc.ApproveReceipt(context.Background(), approver, receipt.ID)
	require.NoError(t, err)
	require.Equal(t, GRStatusApproved, resumed.Status)
	require.Len(t, f.inv.applications, 1)
	require.True(t, f.inv.applications[0].Lines[0].Quantity.Equal(dec("90")))

	order, err := f.svc.Order(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusClosedWithIssues, order.Status)
}

func TestAutoApprovedStockFailureResumedByApprove(t *testing.T) {
	f := newProcFixture()
	po := f.approvedOrder(t)

	f.inv.failErr = errors.New("stock store down")
	_, err := f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
		PurchaseOrderID: po.ID,
		Items:           []ReceiptLineInput{{POItemID: po.Items[0].ID, QuantityReceived: dec("100")}},
	})
	require.Error(t, err)

	// The receipt committed as Approved before the posting failed.
	list, err := f.svc.Receipts(context.Background(), &po.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, GRStatusApproved, list[0].Status)
	require.Empty(t, f.inv.applications)

	f.inv.failErr = nil
	_, err = f.svc.ApproveReceipt(context.Background(), uuid.New(), list[0].ID)
	require.NoError(t, err)
	require.Len(t, f.inv.applications, 1)
	require.True(t, f.inv.applications[0].Lines[0].Quantity.Equal(dec("100")))
}

func TestRejectReceipt(t *testing.T) {
	f := newProcFixture()
	po := f.approvedOrder(t)

	receipt, err := f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
		PurchaseOrderID:  po.ID,
		DiscrepancyNotes: "two crates missing",
		Items: []ReceiptLineInput{{
			POItemID:          po.Items[0].ID,
			QuantityReceived:  dec("80"),
			QuantityShortfall: dec("20"),
		}},
	})
	require.NoError(t, err)
	require.Equal(t, GRStatusPending, receipt.Status)

	rejected, err := f.svc.RejectReceipt(context.Background(), uuid.New(), receipt.ID, "supplier to redeliver")
	require.NoError(t, err)
	require.Equal(t, GRStatusRejected, rejected.Status)
	require.Equal(t, "two crates missing; rejected: supplier to redeliver", rejected.DiscrepancyNotes)
	require.Empty(t, f.inv.applications)

	_, err = f.svc.RejectReceipt(context.Background(), uuid.New(), receipt.ID, "again")
	require.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = f.svc.ApproveReceipt(context.Background(), uuid.New(), receipt.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestFinalFlagRequiresDiscrepancies(t *testing.T) {
	f := newProcFixture()
	po := f.approvedOrder(t)

	_, err := f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
		PurchaseOrderID: po.ID,
		IsFinalReceipt:  true,
		Items:           []ReceiptLineInput{{POItemID: po.Items[0].ID, QuantityReceived: dec("100")}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestReceiptRejectsOverReceipt(t *testing.T) {
	f := newProcFixture()
	po := f.approvedOrder(t)

	_, err := f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
		PurchaseOrderID: po.ID,
		Items:           []ReceiptLineInput{{POItemID: po.Items[0].ID, QuantityReceived: dec("150")}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestReceiptValidation(t *testing.T) {
	f := newProcFixture()
	po := f.approvedOrder(t)

	_, err := f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
		PurchaseOrderID: po.ID,
	})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
		PurchaseOrderID: po.ID,
		Items: []ReceiptLineInput{{
			POItemID:         po.Items[0].ID,
			QuantityReceived: dec("5"),
			QuantityDamaged:  dec("6"),
		}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
		PurchaseOrderID: po.ID,
		Items:           []ReceiptLineInput{{POItemID: uuid.New(), QuantityReceived: dec("5")}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestReceiptAgainstClosedOrder(t *testing.T) {
	f := newProcFixture()
	po := f.approvedOrder(t)
	f.repo.orders[po.ID].Status = POStatusCancelled

	_, err := f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
		PurchaseOrderID: po.ID,
		Items:           []ReceiptLineInput{{POItemID: po.Items[0].ID, QuantityReceived: dec("10")}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestReceiptUnknownOrder(t *testing.T) {
	f := newProcFixture()
	_, err := f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
		PurchaseOrderID: uuid.New(),
		Items:           []ReceiptLineInput{{POItemID: uuid.New(), QuantityReceived: dec("10")}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPendingApprovalQueueOldestFirst(t *testing.T) {
	f := newProcFixture()
	po := f.approvedOrder(t, OrderLineInput{ItemID: f.addItem(), Quantity: dec("100"), UnitPrice: dec("1.00")})

	first, err := f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
		PurchaseOrderID: po.ID,
		Items: []ReceiptLineInput{{
			POItemID: po.Items[0].ID, QuantityReceived: dec("10"), QuantityDamaged: dec("1"),
		}},
	})
	require.NoError(t, err)
	second, err := f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
		PurchaseOrderID: po.ID,
		Items: []ReceiptLineInput{{
			POItemID: po.Items[0].ID, QuantityReceived: dec("10"), QuantityDamaged: dec("2"),
		}},
	})
	require.NoError(t, err)

	queue, err := f.svc.PendingApprovalReceipts(context.Background())
	require.NoError(t, err)
	require.Len(t, queue, 2)
	require.Equal(t, first.ID, queue[0].ID)
	require.Equal(t, second.ID, queue[1].ID)
}

func TestMultipleReceiptsCompleteOrder(t *testing.T) {
	f := newProcFixture()
	po := f.approvedOrder(t)

	for i := 0; i < 2; i++ {
		_, err := f.svc.CreateReceipt(context.Background(), uuid.New(), CreateReceiptInput{
			PurchaseOrderID: po.ID,
			Items:           []ReceiptLineInput{{POItemID: po.Items[0].ID, QuantityReceived: dec("50")}},
		})
		require.NoError(t, err)
	}

	stored, err := f.svc.Order(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusFullyReceived, stored.Status)
	require.True(t, stored.Items[0].ReceivedQuantity.Equal(dec("100")))
	require.Len(t, f.inv.applications, 2)
}
