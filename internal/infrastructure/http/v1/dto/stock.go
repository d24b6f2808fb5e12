package dto

import (
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/domain/reservation"
)

// KeyQuery narrows stock queries to a product, warehouse or location.
type KeyQuery struct {
	ProductID   string `form:"productId"`
	WarehouseID string `form:"warehouseId"`
	LocationID  string `form:"locationId"`
}

func (q KeyQuery) parse() (productID, warehouseID, locationID *id.ID, err error) {
	if productID, err = parseID("productId", q.ProductID); err != nil {
		return
	}
	if warehouseID, err = parseID("warehouseId", q.WarehouseID); err != nil {
		return
	}
	locationID, err = parseID("locationId", q.LocationID)
	return
}

// ToLevelFilter converts the query into a level filter.
func (q KeyQuery) ToLevelFilter() (stock.LevelFilter, error) {
	productID, warehouseID, locationID, err := q.parse()
	if err != nil {
		return stock.LevelFilter{}, err
	}
	return stock.LevelFilter{ProductID: productID, WarehouseID: warehouseID, LocationID: locationID}, nil
}

// MovementQuery filters the movement history. Dates are RFC 3339.
type MovementQuery struct {
	KeyQuery
	Kind       string `form:"kind"`
	DocumentID string `form:"documentId"`
	FromDate   string `form:"fromDate"`
	ToDate     string `form:"toDate"`
	Limit      int    `form:"limit" binding:"omitempty,min=0,max=1000"`
	Offset     int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts the query into a movement filter.
func (q MovementQuery) ToFilter() (stock.MovementFilter, error) {
	productID, warehouseID, locationID, err := q.parse()
	if err != nil {
		return stock.MovementFilter{}, err
	}
	f := stock.MovementFilter{
		ProductID:   productID,
		WarehouseID: warehouseID,
		LocationID:  locationID,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}
	if f.Limit == 0 {
		f.Limit = 100
	}
	if f.DocumentID, err = parseID("documentId", q.DocumentID); err != nil {
		return f, err
	}
	if q.Kind != "" {
		kind := stock.MovementKind(q.Kind)
		if !kind.Valid() {
			return f, apperror.NewValidation("unknown movement kind").WithDetail("kind", q.Kind)
		}
		f.Kind = &kind
	}
	if f.FromDate, err = parseTime("fromDate", q.FromDate); err != nil {
		return f, err
	}
	if f.ToDate, err = parseTime("toDate", q.ToDate); err != nil {
		return f, err
	}
	return f, nil
}

// TurnoverQuery asks for period totals of a product and/or warehouse.
type TurnoverQuery struct {
	ProductID   string `form:"productId"`
	WarehouseID string `form:"warehouseId"`
	FromDate    string `form:"fromDate"`
	ToDate      string `form:"toDate"`
}

func (q TurnoverQuery) ToFilter() (stock.TurnoverFilter, error) {
	var f stock.TurnoverFilter
	var err error
	if f.ProductID, err = parseID("productId", q.ProductID); err != nil {
		return f, err
	}
	if f.WarehouseID, err = parseID("warehouseId", q.WarehouseID); err != nil {
		return f, err
	}
	from, err := parseTime("fromDate", q.FromDate)
	if err != nil {
		return f, err
	}
	if from == nil {
		return f, apperror.NewValidation("fromDate is required")
	}
	f.FromDate = *from
	to, err := parseTime("toDate", q.ToDate)
	if err != nil {
		return f, err
	}
	f.ToDate = time.Now().UTC()
	if to != nil {
		f.ToDate = *to
	}
	return f, nil
}

func parseTime(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperror.NewValidation("invalid date").WithDetail("parameter", name).WithCause(err)
	}
	return &t, nil
}

// KeyRequest addresses one ledger key.
type KeyRequest struct {
	ProductID   id.ID  `json:"productId" binding:"required"`
	WarehouseID id.ID  `json:"warehouseId" binding:"required"`
	LocationID  *id.ID `json:"locationId,omitempty"`
}

func (r KeyRequest) Key() stock.Key {
	return stock.NewKey(r.ProductID, r.WarehouseID, r.LocationID)
}

// AdjustmentRequest is a manual stock correction.
type AdjustmentRequest struct {
	KeyRequest
	BatchID  *id.ID         `json:"batchId,omitempty"`
	Delta    types.Quantity `json:"delta" binding:"required"`
	UnitCost *types.Money   `json:"unitCost,omitempty"`
	Notes    string         `json:"notes,omitempty"`
}

func (r AdjustmentRequest) ToInput(actorID string) reservation.AdjustInput {
	return reservation.AdjustInput{
		ProductID:   r.ProductID,
		WarehouseID: r.WarehouseID,
		LocationID:  r.LocationID,
		BatchID:     r.BatchID,
		Delta:       r.Delta,
		UnitCost:    r.UnitCost,
		Op:          reservation.Op{ActorID: actorID, Notes: r.Notes},
	}
}

// LevelResponse adds the derived available quantity to a level.
type LevelResponse struct {
	stock.Level
	Available types.Quantity `json:"available"`
}

func NewLevelResponse(l stock.Level) LevelResponse {
	return LevelResponse{Level: l, Available: l.Available()}
}

func NewLevelResponses(levels []stock.Level) []LevelResponse {
	out := make([]LevelResponse, len(levels))
	for i, l := range levels {
		out[i] = NewLevelResponse(l)
	}
	return out
}

// VerifyResponse reports a successful replay check.
type VerifyResponse struct {
	Key        stock.Key `json:"key"`
	Consistent bool      `json:"consistent"`
}
