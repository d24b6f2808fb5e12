package documents_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/fsm"
	"stockcore/internal/core/id"
	"stockcore/internal/core/keylock"
	"stockcore/internal/core/numerator"
	"stockcore/internal/domain"
	"stockcore/internal/domain/documents"
	"stockcore/internal/domain/events"
	"stockcore/internal/infrastructure/storage/memory"
)

type noteStatus string

const (
	noteOpen   noteStatus = "OPEN"
	noteReview noteStatus = "REVIEW"
	noteDone   noteStatus = "DONE"
)

// note is a minimal document: Title must stay non-empty.
type note struct {
	entity.BaseDocument
	Status      noteStatus `json:"status"`
	WarehouseID id.ID      `json:"warehouseId"`
	Title       string     `json:"title"`
	Touched     int        `json:"touched"`
}

func (n *note) Validate(context.Context) error {
	if n.Title == "" {
		return apperror.NewValidation("title is required")
	}
	return nil
}

func (n *note) Header() *entity.BaseDocument { return &n.BaseDocument }
func (n *note) DocumentType() string         { return "Note" }
func (n *note) StatusName() string           { return string(n.Status) }
func (n *note) CurrentStatus() noteStatus    { return n.Status }
func (n *note) SetStatus(s noteStatus)       { n.Status = s }
func (n *note) Warehouses() []id.ID          { return []id.ID{n.WarehouseID} }

var noteTable = fsm.New("Note",
	fsm.Edge[noteStatus]{Event: "review", From: []noteStatus{noteOpen}, To: []noteStatus{noteReview}},
	fsm.Edge[noteStatus]{Event: "touch", From: []noteStatus{noteReview}, To: []noteStatus{noteReview}},
	fsm.Edge[noteStatus]{Event: "finish", From: []noteStatus{noteReview}, To: []noteStatus{noteDone, noteReview}},
)

type harness struct {
	engine *documents.Engine[noteStatus, *note]
	repo   documents.Repository[*note]
	events *events.Recorder
}

func newHarness(repo documents.Repository[*note]) *harness {
	if repo == nil {
		repo = memory.NewDocumentRepo("Note", func() *note { return &note{} })
	}
	rec := &events.Recorder{}
	return &harness{
		engine: documents.NewEngine(documents.Config[noteStatus]{
			Entity:   "Note",
			Prefix:   "NT",
			Strategy: numerator.StrategyCached,
			Initial:  noteOpen,
		}, noteTable, repo, numerator.NewMemory(), keylock.New(), rec),
		repo:   repo,
		events: rec,
	}
}

func (h *harness) create(t *testing.T) *note {
	t.Helper()
	n := &note{BaseDocument: entity.NewBaseDocument("author"), Title: "count aisle 4", WarehouseID: id.New()}
	require.NoError(t, h.engine.Create(context.Background(), n, "author"))
	return n
}

func TestCreate_NumbersAndStamps(t *testing.T) {
	h := newHarness(nil)
	first := h.create(t)
	second := h.create(t)

	assert.Equal(t, noteOpen, first.Status)
	assert.Equal(t, 1, first.Version)
	assert.Regexp(t, `^NT-\d{4}-00001$`, first.Number)
	assert.Regexp(t, `^NT-\d{4}-00002$`, second.Number)
	require.Len(t, first.History, 1)
	assert.Equal(t, "create", first.History[0].Event)
	assert.Equal(t, string(noteOpen), first.History[0].To)
	assert.Empty(t, h.events.Events())
}

func TestCreate_InvalidDocumentIsNotStored(t *testing.T) {
	h := newHarness(nil)
	n := &note{BaseDocument: entity.NewBaseDocument("author")}
	err := h.engine.Create(context.Background(), n, "author")
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	_, err = h.engine.Get(context.Background(), n.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreate_BeforeHookAborts(t *testing.T) {
	h := newHarness(nil)
	h.engine.Hooks().OnBeforeCreate(func(_ context.Context, n *note) error {
		return apperror.NewValidation("no notes today")
	})
	n := &note{BaseDocument: entity.NewBaseDocument("author"), Title: "x"}
	assert.Error(t, h.engine.Create(context.Background(), n, "author"))
	assert.Empty(t, n.Number)
}

func TestFire_TransitionsAndPublishes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	n := h.create(t)

	var seen []noteStatus
	h.engine.Hooks().OnAfterTransition(func(_ context.Context, d *note) error {
		seen = append(seen, d.Status)
		return nil
	})

	got, err := h.engine.Fire(ctx, n.ID, "review", "reviewer", nil)
	require.NoError(t, err)
	assert.Equal(t, noteReview, got.Status)
	assert.Equal(t, 2, got.Version)
	require.Len(t, got.History, 2)
	assert.Equal(t, "reviewer", got.History[1].ActorID)

	evs := h.events.Events(events.TypeDocumentTransitioned)
	require.Len(t, evs, 1)
	var payload events.TransitionPayload
	require.NoError(t, json.Unmarshal(evs[0].Payload, &payload))
	assert.Equal(t, "review", payload.Event)
	assert.Equal(t, string(noteOpen), payload.From)
	assert.Equal(t, string(noteReview), payload.To)
	assert.Equal(t, n.Number, payload.Number)

	// a self-loop is stamped but not published
	got, err = h.engine.Fire(ctx, n.ID, "touch", "reviewer",
		func(_ context.Context, d *note, _ *documents.Undos) (noteStatus, error) {
			d.Touched++
			return "", nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Touched)
	assert.Len(t, got.History, 3)
	assert.Len(t, h.events.Events(events.TypeDocumentTransitioned), 1)
	assert.Equal(t, []noteStatus{noteReview, noteReview}, seen)
}

func TestFire_RejectsEdgeFromWrongStatus(t *testing.T) {
	h := newHarness(nil)
	n := h.create(t)

	called := false
	_, err := h.engine.Fire(context.Background(), n.ID, "finish", "x",
		func(context.Context, *note, *documents.Undos) (noteStatus, error) {
			called = true
			return "", nil
		})
	assert.True(t, apperror.Is(err, apperror.CodeInvalidStateTransition))
	assert.False(t, called)
}

func TestFire_EffectTargetSelectsAmongAllowed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	n := h.create(t)
	_, err := h.engine.Fire(ctx, n.ID, "review", "x", nil)
	require.NoError(t, err)

	got, err := h.engine.Fire(ctx, n.ID, "finish", "x",
		func(context.Context, *note, *documents.Undos) (noteStatus, error) { return noteReview, nil })
	require.NoError(t, err)
	assert.Equal(t, noteReview, got.Status)

	_, err = h.engine.Fire(ctx, n.ID, "finish", "x",
		func(context.Context, *note, *documents.Undos) (noteStatus, error) { return noteOpen, nil })
	assert.True(t, apperror.Is(err, apperror.CodeInvariantViolation))
}

func TestFire_FailureRunsUndosNewestFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	n := h.create(t)

	var order []int
	boom := errors.New("ledger refused")
	_, err := h.engine.Fire(ctx, n.ID, "review", "x",
		func(_ context.Context, d *note, undo *documents.Undos) (noteStatus, error) {
			d.Title = "changed"
			undo.Add(func(context.Context) error { order = append(order, 1); return nil })
			undo.Add(func(context.Context) error { order = append(order, 2); return nil })
			return "", boom
		})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{2, 1}, order)

	stored, err := h.engine.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, noteOpen, stored.Status)
	assert.Equal(t, "count aisle 4", stored.Title)
	assert.Empty(t, h.events.Events())
}

func TestFire_ValidationFailureCompensates(t *testing.T) {
	h := newHarness(nil)
	n := h.create(t)

	undone := false
	_, err := h.engine.Fire(context.Background(), n.ID, "review", "x",
		func(_ context.Context, d *note, undo *documents.Undos) (noteStatus, error) {
			d.Title = ""
			undo.Add(func(context.Context) error { undone = true; return nil })
			return "", nil
		})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
	assert.True(t, undone)
}

// staleRepo fails every update as if another writer got there first.
type staleRepo struct {
	documents.Repository[*note]
}

func (r staleRepo) Update(_ context.Context, n *note) error {
	return apperror.NewConcurrentModification("Note", n.ID)
}

func TestFire_SaveFailureCompensates(t *testing.T) {
	h := newHarness(staleRepo{memory.NewDocumentRepo("Note", func() *note { return &note{} })})
	n := h.create(t)

	undone := false
	_, err := h.engine.Fire(context.Background(), n.ID, "review", "x",
		func(_ context.Context, _ *note, undo *documents.Undos) (noteStatus, error) {
			undo.Add(func(context.Context) error { undone = true; return nil })
			return "", nil
		})
	assert.True(t, apperror.Is(err, apperror.CodeConcurrentModification))
	assert.True(t, undone)
}

func TestFire_CompensationFailureIsReported(t *testing.T) {
	h := newHarness(nil)
	n := h.create(t)

	_, err := h.engine.Fire(context.Background(), n.ID, "review", "x",
		func(_ context.Context, _ *note, undo *documents.Undos) (noteStatus, error) {
			undo.Add(func(context.Context) error { return errors.New("reverse failed") })
			return "", apperror.NewValidation("second line invalid")
		})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
	assert.True(t, apperror.Is(err, apperror.CodeInternal))
}

func TestUndos_RunsEveryStep(t *testing.T) {
	var u documents.Undos
	ran := 0
	u.Add(func(context.Context) error { ran++; return errors.New("a") })
	u.Add(func(context.Context) error { ran++; return errors.New("b") })
	err := u.Run(context.Background())
	assert.Equal(t, 2, ran)
	assert.ErrorContains(t, err, "a")
	assert.ErrorContains(t, err, "b")
	assert.Equal(t, 0, u.Len())
}

func TestList_FiltersByWarehouse(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	a := h.create(t)
	h.create(t)

	res, err := h.engine.List(ctx, domain.ListFilter{WarehouseID: &a.WarehouseID})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, a.ID, res.Items[0].ID)
	assert.Equal(t, 50, res.Limit)
}
