// Package events carries notifications out of the stock core. Publishing never
// blocks a ledger critical section: the Dispatcher queues events and delivers
// them to sinks on its own goroutines.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// Type names an event kind.
type Type string

const (
	TypeStockLow             Type = "STOCK_LOW"
	TypeDocumentTransitioned Type = "DOCUMENT_TRANSITIONED"
	TypeBatchExpiring        Type = "BATCH_EXPIRING"
	TypeBatchExpired         Type = "BATCH_EXPIRED"
)

// Event is one notification. Payload is JSON so the event survives the outbox round trip unchanged.
type Event struct {
	ID            id.ID           `json:"id"`
	Type          Type            `json:"type"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   id.ID           `json:"aggregateId"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Payload       json.RawMessage `json:"payload"`
}

// New builds an event with a fresh id and the payload encoded as JSON.
func New(t Type, aggregateType string, aggregateID id.ID, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Event{
		ID:            id.New(),
		Type:          t,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    time.Now().UTC(),
		Payload:       raw,
	}, nil
}

// StockLowPayload is published when a product's available quantity in a
// warehouse falls to or below its reorder point.
type StockLowPayload struct {
	ProductID    id.ID          `json:"productId"`
	SKU          string         `json:"sku,omitempty"`
	WarehouseID  id.ID          `json:"warehouseId"`
	Available    types.Quantity `json:"available"`
	ReorderPoint types.Quantity `json:"reorderPoint"`
}

// TransitionPayload is published after every committed document transition.
type TransitionPayload struct {
	DocumentType string `json:"documentType"`
	DocumentID   id.ID  `json:"documentId"`
	Number       string `json:"number"`
	Event        string `json:"event"`
	From         string `json:"from"`
	To           string `json:"to"`
	ActorID      string `json:"actorId,omitempty"`
	Version      int    `json:"version"`
}

// BatchExpiryPayload is published by the expiry scan.
type BatchExpiryPayload struct {
	BatchID         id.ID          `json:"batchId"`
	BatchNumber     string         `json:"batchNumber"`
	ProductID       id.ID          `json:"productId"`
	WarehouseID     id.ID          `json:"warehouseId"`
	ExpiresAt       time.Time      `json:"expiresAt"`
	DaysRemaining   int            `json:"daysRemaining"`
	CurrentQuantity types.Quantity `json:"currentQuantity"`
}

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Recorder keeps published events in memory. Used by tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events, optionally restricted to types.
func (r *Recorder) Events(only ...Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if len(only) == 0 || containsType(only, e.Type) {
			out = append(out, e)
		}
	}
	return out
}

func containsType(ts []Type, t Type) bool {
	for _, x := range ts {
		if x == t {
			return true
		}
	}
	return false
}
