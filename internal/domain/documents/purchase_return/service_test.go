package purchase_return_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/catalog"
	"stockcore/internal/domain/documents/doctest"
	pr "stockcore/internal/domain/documents/purchase_return"
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/infrastructure/storage/memory"
)

type suite struct {
	env      *doctest.Env
	svc      *pr.Service
	supplier id.ID
}

func newSuite(t *testing.T) *suite {
	e := doctest.New(t)
	return &suite{
		env: e,
		svc: pr.NewService(pr.Deps{
			Repo:        memory.NewDocumentRepo("PurchaseReturn", pr.New),
			Numerator:   e.Numerator,
			Locks:       e.Locks,
			Events:      e.Events,
			Coordinator: e.Coordinator,
			Directory:   e.Directory,
		}),
		supplier: id.New(),
	}
}

func (s *suite) create(t *testing.T, refund bool, items ...pr.ItemInput) *pr.PurchaseReturn {
	t.Helper()
	doc, err := s.svc.Create(context.Background(), pr.CreateInput{
		WarehouseID:   s.env.Warehouse,
		SupplierID:    s.supplier,
		Reason:        pr.ReasonDefective,
		RequestRefund: refund,
		Items:         items,
	}, "buyer")
	require.NoError(t, err)
	return doc
}

func (s *suite) item(loc id.ID, units int64, cost string) pr.ItemInput {
	c := types.MustMoney(cost)
	return pr.ItemInput{ProductID: s.env.Product, LocationID: id.Ptr(loc), Quantity: types.Units(units), UnitCost: &c}
}

func (s *suite) approve(t *testing.T, docID id.ID) {
	t.Helper()
	ctx := context.Background()
	_, err := s.svc.Submit(ctx, docID, "buyer")
	require.NoError(t, err)
	_, err = s.svc.Approve(ctx, docID, "manager")
	require.NoError(t, err)
}

func TestProcess_DeductsEveryLineAsReturn(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)
	s.env.Stock(t, s.env.LocA, 10)
	s.env.Stock(t, s.env.LocB, 10)

	doc := s.create(t, false, s.item(s.env.LocA, 4, "1.50"), s.item(s.env.LocB, 2, "3.00"))
	assert.Regexp(t, `^PR-\d{4}-\d+$`, doc.Number)
	s.approve(t, doc.ID)

	doc, err := s.svc.Process(ctx, doc.ID, "storekeeper")
	require.NoError(t, err)
	assert.Equal(t, pr.StatusCompleted, doc.Status)
	require.NotNil(t, doc.ProcessedAt)
	for _, it := range doc.Items {
		assert.True(t, it.StockAdjusted)
		require.NotNil(t, it.MovementID)
	}

	a := s.env.Level(t, s.env.Key(s.env.LocA))
	assert.Equal(t, types.Units(6), a.Quantity)
	assert.Equal(t, types.Units(0), a.Reserved)
	assert.Equal(t, types.Units(8), s.env.Level(t, s.env.Key(s.env.LocB)).Quantity)

	kind := stock.KindReturn
	mvs, err := s.env.Coordinator.Movements(ctx, stock.MovementFilter{Kind: &kind})
	require.NoError(t, err)
	require.Len(t, mvs, 2)
	for _, mv := range mvs {
		assert.Equal(t, doc.ID, mv.Recorder.ID)
		assert.True(t, mv.Delta < 0)
	}
	s.env.Verify(t, s.env.Key(s.env.LocA), s.env.Key(s.env.LocB))
}

func TestProcess_ShortfallLeavesLedgerUnchanged(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)
	s.env.Stock(t, s.env.LocA, 10)
	s.env.Stock(t, s.env.LocB, 1)

	doc := s.create(t, false, s.item(s.env.LocA, 4, "1.50"), s.item(s.env.LocB, 2, "3.00"))
	s.approve(t, doc.ID)

	_, err := s.svc.Process(ctx, doc.ID, "storekeeper")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeInsufficientStock))

	a := s.env.Level(t, s.env.Key(s.env.LocA))
	assert.Equal(t, types.Units(10), a.Quantity)
	assert.Equal(t, types.Units(0), a.Reserved)

	got, err := s.svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, pr.StatusApproved, got.Status)
	assert.False(t, got.Items[0].StockAdjusted)
}

func TestRefund_SucceedsOnce(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)
	s.env.Stock(t, s.env.LocA, 10)

	doc := s.create(t, true, s.item(s.env.LocA, 4, "1.50"), s.item(s.env.LocA, 2, "3.25"))
	s.approve(t, doc.ID)

	// refund before processing is not allowed
	_, err := s.svc.Refund(ctx, doc.ID, "accountant")
	assert.True(t, apperror.Is(err, apperror.CodeInvalidStateTransition))

	_, err = s.svc.Process(ctx, doc.ID, "storekeeper")
	require.NoError(t, err)

	doc, err = s.svc.Refund(ctx, doc.ID, "accountant")
	require.NoError(t, err)
	assert.True(t, doc.RefundProcessed)
	require.NotNil(t, doc.RefundAmount)
	assert.True(t, types.MustMoney("12.50").Equal(*doc.RefundAmount), "got %s", doc.RefundAmount)
	assert.Equal(t, pr.StatusCompleted, doc.Status)

	_, err = s.svc.Refund(ctx, doc.ID, "accountant")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeInvalidStateTransition))
}

func TestRefund_RequiresRequest(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)
	s.env.Stock(t, s.env.LocA, 10)

	doc := s.create(t, false, s.item(s.env.LocA, 1, "1.00"))
	s.approve(t, doc.ID)
	_, err := s.svc.Process(ctx, doc.ID, "storekeeper")
	require.NoError(t, err)

	_, err = s.svc.Refund(ctx, doc.ID, "accountant")
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}

func TestCreateFromPurchaseOrder(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)
	po := catalog.PurchaseOrder{
		ID:          id.New(),
		Number:      "PO-7",
		SupplierID:  s.supplier,
		WarehouseID: s.env.Warehouse,
		OrderedAt:   time.Now().UTC(),
		Lines:       []catalog.PurchaseOrderLine{{ProductID: s.env.Product, Ordered: types.Units(20), UnitCost: types.MustMoney("4.00")}},
	}
	s.env.Directory.PutPurchaseOrder(po)

	doc, err := s.svc.CreateFromPurchaseOrder(ctx, po.ID, map[id.ID]types.Quantity{s.env.Product: types.Units(3)}, pr.ReasonExcess, true, "buyer")
	require.NoError(t, err)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, s.supplier, doc.SupplierID)
	require.NotNil(t, doc.PurchaseOrderID)
	assert.True(t, types.MustMoney("12").Equal(doc.Total()))

	_, err = s.svc.CreateFromPurchaseOrder(ctx, po.ID, map[id.ID]types.Quantity{s.env.Product: types.Units(21)}, pr.ReasonExcess, false, "buyer")
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	_, err = s.svc.CreateFromPurchaseOrder(ctx, po.ID, map[id.ID]types.Quantity{id.New(): types.Units(1)}, pr.ReasonExcess, false, "buyer")
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}

func TestCreate_DefaultsUnitCostToCostPrice(t *testing.T) {
	s := newSuite(t)
	doc := s.create(t, false, pr.ItemInput{ProductID: s.env.Product, Quantity: types.Units(2)})
	assert.True(t, types.MustMoney("2.50").Equal(doc.Items[0].UnitCost))
}

func TestRejectAndCancel(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)

	doc := s.create(t, false, s.item(s.env.LocA, 1, "1.00"))
	_, err := s.svc.Submit(ctx, doc.ID, "buyer")
	require.NoError(t, err)
	doc, err = s.svc.Reject(ctx, doc.ID, "supplier refused", "manager")
	require.NoError(t, err)
	assert.Equal(t, pr.StatusRejected, doc.Status)

	_, err = s.svc.Process(ctx, doc.ID, "storekeeper")
	assert.True(t, apperror.Is(err, apperror.CodeInvalidStateTransition))

	other := s.create(t, false, s.item(s.env.LocA, 1, "1.00"))
	s.approve(t, other.ID)
	other, err = s.svc.Cancel(ctx, other.ID, "buyer")
	require.NoError(t, err)
	assert.Equal(t, pr.StatusCancelled, other.Status)
}

func TestProcess_UnlocatedLineTakesStoredStock(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)
	s.env.Stock(t, s.env.LocA, 10)

	in := s.item(s.env.LocA, 4, "1.50")
	in.LocationID = nil
	doc := s.create(t, false, in)
	s.approve(t, doc.ID)

	doc, err := s.svc.Process(ctx, doc.ID, "storekeeper")
	require.NoError(t, err)
	assert.Equal(t, pr.StatusCompleted, doc.Status)
	assert.True(t, doc.Items[0].StockAdjusted)
	require.NotNil(t, doc.Items[0].MovementID)

	a := s.env.Level(t, s.env.Key(s.env.LocA))
	assert.Equal(t, types.Units(6), a.Quantity)
	assert.Equal(t, types.Units(0), a.Reserved)
	s.env.Verify(t, s.env.Key(s.env.LocA))
}

func TestCreateFromPurchaseOrder_ProcessesAgainstStoredStock(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)
	s.env.Stock(t, s.env.LocA, 2)
	time.Sleep(time.Millisecond)
	s.env.Stock(t, s.env.LocB, 5)
	po := catalog.PurchaseOrder{
		ID:          id.New(),
		Number:      "PO-8",
		SupplierID:  s.supplier,
		WarehouseID: s.env.Warehouse,
		OrderedAt:   time.Now().UTC(),
		Lines:       []catalog.PurchaseOrderLine{{ProductID: s.env.Product, Ordered: types.Units(10), UnitCost: types.MustMoney("4.00")}},
	}
	s.env.Directory.PutPurchaseOrder(po)

	doc, err := s.svc.CreateFromPurchaseOrder(ctx, po.ID, map[id.ID]types.Quantity{s.env.Product: types.Units(4)}, pr.ReasonExcess, false, "buyer")
	require.NoError(t, err)
	assert.Nil(t, doc.Items[0].LocationID)
	s.approve(t, doc.ID)

	doc, err = s.svc.Process(ctx, doc.ID, "storekeeper")
	require.NoError(t, err)
	assert.Equal(t, pr.StatusCompleted, doc.Status)

	// oldest location first
	assert.Equal(t, types.Units(0), s.env.Level(t, s.env.Key(s.env.LocA)).Quantity)
	assert.Equal(t, types.Units(3), s.env.Level(t, s.env.Key(s.env.LocB)).Quantity)

	kind := stock.KindReturn
	mvs, err := s.env.Coordinator.Movements(ctx, stock.MovementFilter{Kind: &kind})
	require.NoError(t, err)
	assert.Len(t, mvs, 2)
	s.env.Verify(t, s.env.Key(s.env.LocA), s.env.Key(s.env.LocB))
}
