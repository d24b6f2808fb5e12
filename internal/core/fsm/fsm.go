// Package fsm provides a transition-table state machine shared by every document kind.
package fsm

import (
	"slices"

	"stockcore/internal/core/apperror"
)

// Edge is one named transition: the event is allowed from any of From and
// may land on any of To. To[0] is the default target.
type Edge[S ~string] struct {
	Event string
	From  []S
	To    []S
}

// Table is an immutable set of edges for one document kind.
type Table[S ~string] struct {
	entity string
	edges  map[string]Edge[S]
	order  []string
}

// New builds a table. Duplicate event names panic: tables are package-level values.
func New[S ~string](entity string, edges ...Edge[S]) *Table[S] {
	t := &Table[S]{entity: entity, edges: make(map[string]Edge[S], len(edges))}
	for _, e := range edges {
		if _, dup := t.edges[e.Event]; dup {
			panic("fsm: duplicate event " + e.Event + " in " + entity)
		}
		if len(e.To) == 0 {
			panic("fsm: event " + e.Event + " has no target in " + entity)
		}
		t.edges[e.Event] = e
		t.order = append(t.order, e.Event)
	}
	return t
}

// Entity returns the document kind the table describes.
func (t *Table[S]) Entity() string { return t.entity }

// Can reports whether event may fire from state.
func (t *Table[S]) Can(event string, from S) bool {
	e, ok := t.edges[event]
	return ok && slices.Contains(e.From, from)
}

// Check returns InvalidStateTransition when event may not fire from state.
func (t *Table[S]) Check(event string, from S) error {
	e, ok := t.edges[event]
	if !ok || !slices.Contains(e.From, from) {
		err := apperror.NewInvalidStateTransition(t.entity, event, string(from))
		if ok {
			allowed := make([]string, len(e.From))
			for i, s := range e.From {
				allowed[i] = string(s)
			}
			err = err.WithDetail("allowed", allowed)
		}
		return err
	}
	return nil
}

// Default returns the default target of event.
func (t *Table[S]) Default(event string) S {
	return t.edges[event].To[0]
}

// Resolve validates a computed target. An empty target selects the default.
func (t *Table[S]) Resolve(event string, to S) (S, error) {
	e, ok := t.edges[event]
	if !ok {
		return to, apperror.NewInvariantViolation("unknown event " + event + " for " + t.entity)
	}
	if to == "" {
		return e.To[0], nil
	}
	if !slices.Contains(e.To, to) {
		return to, apperror.NewInvariantViolation("event " + event + " of " + t.entity + " cannot land on " + string(to))
	}
	return to, nil
}

// Events lists the events that may fire from state, in table order.
func (t *Table[S]) Events(from S) []string {
	var out []string
	for _, name := range t.order {
		if slices.Contains(t.edges[name].From, from) {
			out = append(out, name)
		}
	}
	return out
}
