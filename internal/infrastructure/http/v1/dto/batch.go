package dto

import (
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/domain/registers/batch"
)

// CreateBatchRequest registers a batch header.
type CreateBatchRequest struct {
	BatchNumber    string              `json:"batchNumber" binding:"required"`
	ProductID      id.ID               `json:"productId" binding:"required"`
	WarehouseID    id.ID               `json:"warehouseId" binding:"required"`
	ManufacturedAt *time.Time          `json:"manufacturedAt,omitempty"`
	ExpiresAt      *time.Time          `json:"expiresAt,omitempty"`
	QualityStatus  batch.QualityStatus `json:"qualityStatus,omitempty"`
	Notes          string              `json:"notes,omitempty"`
}

func (r CreateBatchRequest) ToInput() batch.CreateInput {
	return batch.CreateInput{
		BatchNumber:    r.BatchNumber,
		ProductID:      r.ProductID,
		WarehouseID:    r.WarehouseID,
		ManufacturedAt: r.ManufacturedAt,
		ExpiresAt:      r.ExpiresAt,
		QualityStatus:  r.QualityStatus,
		Notes:          r.Notes,
	}
}

// QualityRequest moves a batch to another quality status.
type QualityRequest struct {
	Status batch.QualityStatus `json:"status" binding:"required"`
}

// ExpiringQuery sets the look-ahead window in days.
type ExpiringQuery struct {
	Days int `form:"days" binding:"omitempty,min=0,max=3650"`
}
