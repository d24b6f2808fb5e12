package entity

import (
	"time"

	"stockcore/internal/core/id"
)

// Transition is one entry of a document's status history.
type Transition struct {
	Event   string    `json:"event"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	ActorID string    `json:"actorId,omitempty"`
	At      time.Time `json:"at"`
}

// DocumentRef links a ledger row back to the document that caused it.
type DocumentRef struct {
	Type   string `db:"document_type" json:"documentType,omitempty"`
	ID     id.ID  `db:"document_id" json:"documentId"`
	Number string `db:"document_number" json:"documentNumber,omitempty"`
}

// IsZero reports whether the reference points nowhere (manual operations).
func (r DocumentRef) IsZero() bool {
	return id.IsNil(r.ID) && r.Type == ""
}
