package entity

import (
	"time"

	"stockcore/internal/core/id"
)

// MovementBase contains the fields shared by every append-only ledger row.
type MovementBase struct {
	// ID is the movement reference id
	ID id.ID `db:"id" json:"id"`

	// Sequence orders movements of one ledger key; it is gap-free and starts at 1
	Sequence int64 `db:"sequence" json:"sequence"`

	// Recorder is the originating document
	Recorder DocumentRef `db:"-" json:"recorder"`

	ActorID   string    `db:"actor_id" json:"actorId,omitempty"`
	Notes     string    `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewMovementBase creates a MovementBase with a fresh ID and timestamp.
// The sequence is assigned by the ledger under the key lock.
func NewMovementBase(recorder DocumentRef, actorID, notes string) MovementBase {
	return MovementBase{
		ID:        id.New(),
		Recorder:  recorder,
		ActorID:   actorID,
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
	}
}
