package dto

import (
	"stockcore/internal/core/entity"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/allocation"
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/domain/reservation"
)

// PlanResponse is an advisory allocation plan.
type PlanResponse struct {
	allocation.Plan
	Allocated types.Quantity `json:"allocated"`
	Shortfall types.Quantity `json:"shortfall"`
}

func NewPlanResponse(p allocation.Plan) PlanResponse {
	return PlanResponse{Plan: p, Allocated: p.Allocated(), Shortfall: p.Shortfall()}
}

// CommitReservationRequest reserves a plan, usually one returned by /plan.
type CommitReservationRequest struct {
	Plan      allocation.Plan    `json:"plan"`
	Reference entity.DocumentRef `json:"reference"`
	Notes     string             `json:"notes,omitempty"`
}

func (r CommitReservationRequest) Op(actorID string) reservation.Op {
	return reservation.Op{Recorder: r.Reference, ActorID: actorID, Notes: r.Notes}
}

// DrawRequest consumes or releases reserved quantity. A nil Line draws the
// handle's lines in plan order.
type DrawRequest struct {
	Quantity types.Quantity     `json:"quantity" binding:"required"`
	Line     *int               `json:"line,omitempty"`
	Kind     stock.MovementKind `json:"kind,omitempty"`
	Notes    string             `json:"notes,omitempty"`
}

// MovementKind defaults consumption to PICK.
func (r DrawRequest) MovementKind() stock.MovementKind {
	if r.Kind == "" {
		return stock.KindPick
	}
	return r.Kind
}

// HandleResponse is a reservation handle with its booked movements.
type HandleResponse struct {
	*reservation.Handle
	Movements []stock.Movement `json:"movements,omitempty"`
}
