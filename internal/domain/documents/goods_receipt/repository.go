package goods_receipt

import "stockcore/internal/domain/documents"

// Repository persists goods receipts.
type Repository = documents.Repository[*GoodsReceipt]

// New returns an empty document for decoding.
func New() *GoodsReceipt { return &GoodsReceipt{} }
