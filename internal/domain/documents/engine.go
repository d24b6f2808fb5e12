// Package documents runs the document workflows: one generic engine drives
// every document kind through its transition table, and each kind supplies
// per-edge ledger effects.
package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/fsm"
	"stockcore/internal/core/id"
	"stockcore/internal/core/keylock"
	"stockcore/internal/core/numerator"
	"stockcore/internal/domain"
	"stockcore/internal/domain/events"
	"stockcore/pkg/logger"
)

// Record is the status-agnostic view of a document used by storage.
type Record interface {
	entity.Validatable
	Header() *entity.BaseDocument
	DocumentType() string
	StatusName() string
	// Warehouses lists every warehouse the document touches, for list filtering.
	Warehouses() []id.ID
}

// Document is a Record with a typed status.
type Document[S ~string] interface {
	Record
	CurrentStatus() S
	SetStatus(S)
}

// Repository persists one document kind. Update is optimistic: it fails with
// ConcurrentModification unless the stored version equals the document's,
// and bumps the version on success.
type Repository[D any] interface {
	Create(ctx context.Context, doc D) error
	Get(ctx context.Context, docID id.ID) (D, error)
	Update(ctx context.Context, doc D) error
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[D], error)
}

// Undo reverses one applied ledger step.
type Undo func(ctx context.Context) error

// Undos collects the compensations of a transition in the order the steps ran.
type Undos struct {
	steps []Undo
}

// Add registers the compensation of a step that succeeded.
func (u *Undos) Add(step Undo) {
	u.steps = append(u.steps, step)
}

// Len reports how many steps are registered.
func (u *Undos) Len() int { return len(u.steps) }

// Run executes the compensations newest first. Every step runs even if an earlier one fails.
func (u *Undos) Run(ctx context.Context) error {
	var errs []error
	for i := len(u.steps) - 1; i >= 0; i-- {
		if err := u.steps[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	u.steps = nil
	return errors.Join(errs...)
}

// Effect mutates the loaded document and applies ledger changes for one edge.
// It returns the target status; the empty status selects the edge's default.
// Every ledger step that succeeded must be registered on undo before the
// effect returns, so a later failure can be compensated.
type Effect[D any, S ~string] func(ctx context.Context, doc D, undo *Undos) (S, error)

// Config names a document kind.
type Config[S ~string] struct {
	// Entity is the document type name used in errors and events
	Entity string
	// Prefix is the numerator prefix (GR, PL, ...)
	Prefix   string
	Strategy numerator.Strategy
	Initial  S
}

// Engine runs transitions of one document kind.
type Engine[S ~string, D Document[S]] struct {
	cfg       Config[S]
	table     *fsm.Table[S]
	repo      Repository[D]
	numerator numerator.Generator
	locks     *keylock.Table
	events    events.Publisher
	hooks     *domain.HookRegistry[D]
	tracer    trace.Tracer
	now       func() time.Time
}

func NewEngine[S ~string, D Document[S]](
	cfg Config[S],
	table *fsm.Table[S],
	repo Repository[D],
	gen numerator.Generator,
	locks *keylock.Table,
	pub events.Publisher,
) *Engine[S, D] {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Engine[S, D]{
		cfg:       cfg,
		table:     table,
		repo:      repo,
		numerator: gen,
		locks:     locks,
		events:    pub,
		hooks:     domain.NewHookRegistry[D](),
		tracer:    otel.Tracer("stockcore/documents"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Hooks returns the hook registry for registering callbacks.
func (e *Engine[S, D]) Hooks() *domain.HookRegistry[D] { return e.hooks }

func lockName(docID id.ID) string { return "doc/" + docID.String() }

// Create numbers, validates and stores a new document in the initial status.
func (e *Engine[S, D]) Create(ctx context.Context, doc D, actorID string) error {
	if err := e.hooks.RunBeforeCreate(ctx, doc); err != nil {
		return err
	}

	now := e.now()
	h := doc.Header()
	if id.IsNil(h.ID) {
		h.BaseEntity = entity.NewBaseEntity()
	}
	if h.Version == 0 {
		h.Version = 1
	}
	h.CreatedAt, h.CreatedBy = now, actorID
	doc.SetStatus(e.cfg.Initial)
	h.Stamp("create", "", string(e.cfg.Initial), actorID, now)

	if err := doc.Validate(ctx); err != nil {
		return err
	}

	if h.Number == "" {
		cfg := numerator.DefaultConfig(e.cfg.Prefix)
		number, err := e.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: e.cfg.Strategy}, now)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		h.Number = number
	}

	if err := e.repo.Create(ctx, doc); err != nil {
		return fmt.Errorf("create %s: %w", e.cfg.Entity, err)
	}

	if err := e.hooks.RunAfterCreate(ctx, doc); err != nil {
		logger.Warn(ctx, "after-create hook failed", "entity", e.cfg.Entity, "error", err)
	}

	logger.Info(ctx, "document created",
		"entity", e.cfg.Entity,
		"id", h.ID,
		"number", h.Number)
	return nil
}

// Get loads a document.
func (e *Engine[S, D]) Get(ctx context.Context, docID id.ID) (D, error) {
	return e.repo.Get(ctx, docID)
}

// List returns a page of documents.
func (e *Engine[S, D]) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[D], error) {
	filter.Normalize()
	return e.repo.List(ctx, filter)
}

// Fire runs event on the document under its lock. The flow is: load, check
// the edge, run the effect, resolve the target, stamp, save. If anything after
// the first ledger step fails, the registered undos run before the error
// returns and the stored document is left untouched.
func (e *Engine[S, D]) Fire(ctx context.Context, docID id.ID, event, actorID string, effect Effect[D, S]) (D, error) {
	var zero D

	ctx, span := e.tracer.Start(ctx, "documents."+e.cfg.Entity+"."+event,
		trace.WithAttributes(
			attribute.String("document.id", docID.String()),
			attribute.String("document.event", event),
		))
	defer span.End()

	unlock := e.locks.Lock(lockName(docID))
	defer unlock()

	doc, err := e.repo.Get(ctx, docID)
	if err != nil {
		return zero, err
	}
	from := doc.CurrentStatus()
	if err := e.table.Check(event, from); err != nil {
		return zero, err
	}

	var undo Undos
	var target S
	if effect != nil {
		if target, err = effect(ctx, doc, &undo); err != nil {
			return zero, e.abort(ctx, span, doc, event, &undo, err)
		}
	}

	to, err := e.table.Resolve(event, target)
	if err != nil {
		return zero, e.abort(ctx, span, doc, event, &undo, err)
	}

	h := doc.Header()
	doc.SetStatus(to)
	h.Stamp(event, string(from), string(to), actorID, e.now())

	if err := doc.Validate(ctx); err != nil {
		return zero, e.abort(ctx, span, doc, event, &undo, err)
	}
	if err := e.repo.Update(ctx, doc); err != nil {
		return zero, e.abort(ctx, span, doc, event, &undo, fmt.Errorf("save %s: %w", e.cfg.Entity, err))
	}

	if from != to {
		e.publish(ctx, doc, event, string(from), string(to), actorID)
	}
	if err := e.hooks.Run(ctx, domain.AfterTransition, doc); err != nil {
		logger.Warn(ctx, "after-transition hook failed", "entity", e.cfg.Entity, "error", err)
	}

	span.SetAttributes(attribute.String("document.from", string(from)), attribute.String("document.to", string(to)))
	logger.Info(ctx, "document transitioned",
		"entity", e.cfg.Entity,
		"number", h.Number,
		"event", event,
		"from", from,
		"to", to,
		"actor_id", actorID,
		"ledger_steps", undo.Len())
	return doc, nil
}

func (e *Engine[S, D]) abort(ctx context.Context, span trace.Span, doc D, event string, undo *Undos, cause error) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())

	steps := undo.Len()
	if steps == 0 {
		return cause
	}
	if err := undo.Run(ctx); err != nil {
		logger.Error(ctx, "transition compensation failed",
			"entity", e.cfg.Entity,
			"number", doc.Header().Number,
			"event", event,
			"cause", cause,
			"error", err)
		return errors.Join(cause, apperror.NewInternal(err).WithDetail("compensation", "failed"))
	}
	logger.Warn(ctx, "transition compensated",
		"entity", e.cfg.Entity,
		"number", doc.Header().Number,
		"event", event,
		"steps", steps,
		"cause", cause)
	return cause
}

func (e *Engine[S, D]) publish(ctx context.Context, doc D, event, from, to, actorID string) {
	h := doc.Header()
	ev, err := events.New(events.TypeDocumentTransitioned, doc.DocumentType(), h.ID, events.TransitionPayload{
		DocumentType: doc.DocumentType(),
		DocumentID:   h.ID,
		Number:       h.Number,
		Event:        event,
		From:         from,
		To:           to,
		ActorID:      actorID,
		Version:      h.Version,
	})
	if err != nil {
		logger.Error(ctx, "build transition event", "error", err)
		return
	}
	e.events.Publish(ctx, ev)
}

// Ref returns the ledger back-reference of a document.
func Ref(doc Record) entity.DocumentRef {
	h := doc.Header()
	return entity.DocumentRef{Type: doc.DocumentType(), ID: h.ID, Number: h.Number}
}
