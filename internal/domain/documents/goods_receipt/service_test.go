package goods_receipt_test

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
	gr "stockcore/internal/domain/documents/goods_receipt"
	"stockcore/internal/domain/putaway"
	"stockcore/internal/domain/registers/batch"
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/infrastructure/storage/memory"
)

type suite struct {
	env *doctest.Env
	svc *gr.Service
}

func newSuite(t *testing.T) *suite {
	e := doctest.New(t)
	return &suite{
		env: e,
		svc: gr.NewService(gr.Deps{
			Repo:        memory.NewDocumentRepo("GoodsReceipt", gr.New),
			Numerator:   e.Numerator,
			Locks:       e.Locks,
			Events:      e.Events,
			Coordinator: e.Coordinator,
			Batches:     e.Batches,
			Planner:     e.Planner,
			Directory:   e.Directory,
		}),
	}
}

func (s *suite) create(t *testing.T, items ...gr.ItemInput) *gr.GoodsReceipt {
	t.Helper()
	doc, err := s.svc.Create(context.Background(), gr.CreateInput{WarehouseID: s.env.Warehouse, Items: items}, "receiver")
	require.NoError(t, err)
	return doc
}

func (s *suite) item(units int64) gr.ItemInput {
	cost := types.MustMoney("3.00")
	return gr.ItemInput{ProductID: s.env.Product, ReceivedQuantity: types.Units(units), UnitCost: &cost}
}

// inspecting moves a fresh receipt to INSPECTING.
func (s *suite) inspecting(t *testing.T, items ...gr.ItemInput) *gr.GoodsReceipt {
	t.Helper()
	ctx := context.Background()
	doc := s.create(t, items...)
	_, err := s.svc.Submit(ctx, doc.ID, "receiver")
	require.NoError(t, err)
	doc, err = s.svc.StartInspection(ctx, doc.ID, "inspector")
	require.NoError(t, err)
	return doc
}

func (s *suite) inspect(t *testing.T, doc *gr.GoodsReceipt, line int, accepted, rejected int64) *gr.GoodsReceipt {
	t.Helper()
	doc, err := s.svc.InspectItem(context.Background(), doc.ID, gr.InspectInput{
		LineID:   doc.Items[line].LineID,
		Accepted: types.Units(accepted),
		Rejected: types.Units(rejected),
		Reason:   "dented",
	}, "inspector")
	require.NoError(t, err)
	return doc
}

func TestGoodsReceipt_InspectAndPutAway(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)

	expires := time.Now().UTC().AddDate(0, 3, 0)
	lot := s.item(5)
	lot.BatchNumber = " LOT-42 "
	lot.ExpiresAt = &expires

	doc := s.inspecting(t, s.item(10), lot)
	assert.Equal(t, gr.StatusInspecting, doc.Status)
	assert.Equal(t, "inspector", doc.InspectorID)

	doc = s.inspect(t, doc, 0, 8, 2)
	doc = s.inspect(t, doc, 1, 5, 0)
	assert.Equal(t, gr.InspectionPartial, doc.Items[0].InspectionStatus)
	assert.Equal(t, gr.InspectionApproved, doc.Items[1].InspectionStatus)

	doc, err := s.svc.CompleteInspection(ctx, doc.ID, "inspector")
	require.NoError(t, err)
	assert.Equal(t, gr.StatusPartiallyApproved, doc.Status)

	// no rules: everything falls back to the first active location
	doc, err = s.svc.PutAway(ctx, doc.ID, gr.PutAwayInput{}, "storekeeper")
	require.NoError(t, err)
	assert.Equal(t, gr.StatusCompleted, doc.Status)
	for _, it := range doc.Items {
		assert.True(t, it.PutAway)
		require.NotNil(t, it.LocationID)
		assert.Equal(t, s.env.LocA, *it.LocationID)
		require.NotNil(t, it.MovementID)
	}
	assert.Equal(t, types.Units(13), s.env.Level(t, s.env.Key(s.env.LocA)).Quantity)

	require.NotNil(t, doc.Items[1].BatchID)
	b, err := s.env.Batches.GetByNumber(ctx, "LOT-42")
	require.NoError(t, err)
	assert.Equal(t, *doc.Items[1].BatchID, b.ID)
	assert.Equal(t, batch.QualityReleased, b.QualityStatus)
	levels, err := s.env.Batches.Levels(ctx, batch.LevelFilter{BatchID: &b.ID})
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, types.Units(5), levels[0].Quantity)

	kind := stock.KindReceive
	mvs, err := s.env.Coordinator.Movements(ctx, stock.MovementFilter{DocumentID: &doc.ID, Kind: &kind})
	require.NoError(t, err)
	require.Len(t, mvs, 2)
	for _, mv := range mvs {
		require.NotNil(t, mv.UnitCost)
		assert.True(t, types.MustMoney("3.00").Equal(*mv.UnitCost))
	}
	s.env.Verify(t, s.env.Key(s.env.LocA))
}

func TestCompleteInspection_RequiresEveryItem(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)
	doc := s.inspecting(t, s.item(10), s.item(4))
	s.inspect(t, doc, 0, 10, 0)

	_, err := s.svc.CompleteInspection(ctx, doc.ID, "inspector")
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	got, err := s.svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, gr.StatusInspecting, got.Status)
}

func TestInspectItem_QuantitiesMustAddUp(t *testing.T) {
	s := newSuite(t)
	doc := s.inspecting(t, s.item(10))
	_, err := s.svc.InspectItem(context.Background(), doc.ID, gr.InspectInput{
		LineID:   doc.Items[0].LineID,
		Accepted: types.Units(6),
		Rejected: types.Units(3),
	}, "inspector")
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}

func TestCompleteInspection_AllRejected(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)
	doc := s.inspecting(t, s.item(10))
	s.inspect(t, doc, 0, 0, 10)

	doc, err := s.svc.CompleteInspection(ctx, doc.ID, "inspector")
	require.NoError(t, err)
	assert.Equal(t, gr.StatusRejected, doc.Status)

	_, err = s.svc.PutAway(ctx, doc.ID, gr.PutAwayInput{}, "storekeeper")
	assert.True(t, apperror.Is(err, apperror.CodeInvalidStateTransition))
	assert.Equal(t, types.Units(0), s.env.Level(t, s.env.Key(s.env.LocA)).Quantity)
}

func TestPutAway_LineByLineWithOverride(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)
	doc := s.inspecting(t, s.item(2), s.item(3))
	doc = s.inspect(t, doc, 0, 2, 0)
	doc = s.inspect(t, doc, 1, 3, 0)
	doc, err := s.svc.CompleteInspection(ctx, doc.ID, "inspector")
	require.NoError(t, err)
	require.Equal(t, gr.StatusApproved, doc.Status)

	first := doc.Items[0].LineID
	doc, err = s.svc.PutAway(ctx, doc.ID, gr.PutAwayInput{LineID: &first, LocationID: id.Ptr(s.env.LocB)}, "storekeeper")
	require.NoError(t, err)
	assert.Equal(t, gr.StatusApproved, doc.Status)
	assert.Equal(t, types.Units(2), s.env.Level(t, s.env.Key(s.env.LocB)).Quantity)

	// the same line cannot be stored twice
	_, err = s.svc.PutAway(ctx, doc.ID, gr.PutAwayInput{LineID: &first}, "storekeeper")
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	second := doc.Items[1].LineID
	doc, err = s.svc.PutAway(ctx, doc.ID, gr.PutAwayInput{LineID: &second}, "storekeeper")
	require.NoError(t, err)
	assert.Equal(t, gr.StatusCompleted, doc.Status)
}

func TestPutAway_OverrideOutsideWarehouseLeavesLedgerUntouched(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)
	doc := s.inspecting(t, s.item(2))
	doc = s.inspect(t, doc, 0, 2, 0)
	doc, err := s.svc.CompleteInspection(ctx, doc.ID, "inspector")
	require.NoError(t, err)

	line := doc.Items[0].LineID
	_, err = s.svc.PutAway(ctx, doc.ID, gr.PutAwayInput{LineID: &line, LocationID: id.Ptr(s.env.RemoteLocA)}, "storekeeper")
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	got, err := s.svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, got.Items[0].PutAway)
	assert.Equal(t, gr.StatusApproved, got.Status)
}

func TestPutAway_FollowsRules(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)
	_, err := s.env.Planner.CreateRule(ctx, putaway.CreateRuleInput{
		WarehouseID: s.env.Warehouse,
		Name:        "widgets to A-02",
		Priority:    10,
		Active:      true,
		Strategy:    putaway.FixedLocation{LocationID: s.env.LocB},
	})
	require.NoError(t, err)

	doc := s.inspecting(t, s.item(7))
	doc = s.inspect(t, doc, 0, 7, 0)
	_, err = s.svc.CompleteInspection(ctx, doc.ID, "inspector")
	require.NoError(t, err)

	doc, err = s.svc.PutAway(ctx, doc.ID, gr.PutAwayInput{}, "storekeeper")
	require.NoError(t, err)
	assert.Equal(t, s.env.LocB, *doc.Items[0].LocationID)
	assert.Equal(t, types.Units(7), s.env.Level(t, s.env.Key(s.env.LocB)).Quantity)
}

func TestCreateFromPurchaseOrder(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)
	po := catalog.PurchaseOrder{
		ID:          id.New(),
		Number:      "PO-1",
		SupplierID:  id.New(),
		WarehouseID: s.env.Warehouse,
		Lines:       []catalog.PurchaseOrderLine{{ProductID: s.env.Product, Ordered: types.Units(12), UnitCost: types.MustMoney("1.10")}},
	}
	s.env.Directory.PutPurchaseOrder(po)

	doc, err := s.svc.CreateFromPurchaseOrder(ctx, po.ID, map[id.ID]types.Quantity{s.env.Product: types.Units(11)}, "receiver")
	require.NoError(t, err)
	assert.Regexp(t, `^GR-\d{4}-\d{5}$`, doc.Number)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, types.Units(12), doc.Items[0].OrderedQuantity)
	assert.Equal(t, types.Units(11), doc.Items[0].ReceivedQuantity)
	assert.Equal(t, po.SupplierID, *doc.SupplierID)
}

func TestCancel_OnlyBeforeInspection(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)

	draft := s.create(t, s.item(1))
	draft, err := s.svc.Cancel(ctx, draft.ID, "receiver")
	require.NoError(t, err)
	assert.Equal(t, gr.StatusCancelled, draft.Status)

	doc := s.inspecting(t, s.item(1))
	_, err = s.svc.Cancel(ctx, doc.ID, "receiver")
	assert.True(t, apperror.Is(err, apperror.CodeInvalidStateTransition))
}

func TestCreate_UnknownProduct(t *testing.T) {
	s := newSuite(t)
	_, err := s.svc.Create(context.Background(), gr.CreateInput{
		WarehouseID: s.env.Warehouse,
		Items:       []gr.ItemInput{{ProductID: id.New(), ReceivedQuantity: types.Units(1)}},
	}, "receiver")
	assert.True(t, apperror.IsNotFound(err))
}
