package entity

import (
	"context"
	"time"

	"stockcore/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without storage access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

///////////////////
// Base Entity   //
///////////////////

// BaseEntity contains the identity and optimistic-lock version shared by stored entities.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Version for optimistic locking (incremented by the repository on each update)
	Version int `db:"version" json:"version"`
}

// NewBaseEntity creates a new BaseEntity with generated ID.
func NewBaseEntity() BaseEntity {
	return BaseEntity{
		ID:      id.New(),
		Version: 1,
	}
}

// GetID returns the entity ID.
func (b *BaseEntity) GetID() id.ID { return b.ID }

// GetVersion returns the optimistic-lock version.
func (b *BaseEntity) GetVersion() int { return b.Version }

// SetVersion updates the version number (used by repository after save).
func (b *BaseEntity) SetVersion(v int) {
	b.Version = v
}

///////////////
// Documents //
///////////////

// BaseDocument extends BaseEntity with the number and audit fields every document carries.
type BaseDocument struct {
	BaseEntity

	// Number is the human-readable document number, unique per kind
	Number string `db:"number" json:"number"`

	Comment string `db:"comment" json:"comment,omitempty"`

	// Audit fields
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy,omitempty"`

	// History records every transition the document went through.
	History []Transition `db:"-" json:"history,omitempty"`
}

// NewBaseDocument creates a new BaseDocument with generated ID and timestamps.
func NewBaseDocument(actorID string) BaseDocument {
	now := time.Now().UTC()
	return BaseDocument{
		BaseEntity: NewBaseEntity(),
		CreatedAt:  now,
		UpdatedAt:  now,
		CreatedBy:  actorID,
		UpdatedBy:  actorID,
	}
}

// GetNumber returns the document number.
func (b *BaseDocument) GetNumber() string { return b.Number }

// Touch updates the UpdatedAt timestamp and the last editor.
func (b *BaseDocument) Touch(actorID string, at time.Time) {
	b.UpdatedAt = at
	b.UpdatedBy = actorID
}

// Stamp appends a transition record and touches the document.
func (b *BaseDocument) Stamp(event, from, to, actorID string, at time.Time) {
	b.History = append(b.History, Transition{
		Event:   event,
		From:    from,
		To:      to,
		ActorID: actorID,
		At:      at,
	})
	b.Touch(actorID, at)
}

// TransitionAt returns when the document last entered status, if it ever did.
func (b *BaseDocument) TransitionAt(status string) (time.Time, bool) {
	for i := len(b.History) - 1; i >= 0; i-- {
		if b.History[i].To == status {
			return b.History[i].At, true
		}
	}
	return time.Time{}, false
}
