// Package app assembles the inventory core over a storage driver.
package app

import (
	"stockcore/internal/core/keylock"
	"stockcore/internal/core/numerator"
	"stockcore/internal/core/tx"
	"stockcore/internal/domain/allocation"
	"stockcore/internal/domain/catalog"
	"stockcore/internal/domain/documents/goods_receipt"
	"stockcore/internal/domain/documents/picking"
	"stockcore/internal/domain/documents/purchase_return"
	"stockcore/internal/domain/documents/transfer"
	"stockcore/internal/domain/events"
	"stockcore/internal/domain/putaway"
	"stockcore/internal/domain/registers/batch"
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/domain/reservation"
	v1 "stockcore/internal/infrastructure/http/v1"
	"stockcore/internal/infrastructure/storage/memory"
	"stockcore/internal/infrastructure/storage/postgres"
	"stockcore/internal/infrastructure/storage/postgres/catalog_repo"
	"stockcore/internal/infrastructure/storage/postgres/document_repo"
	"stockcore/internal/infrastructure/storage/postgres/register_repo"
	pgnumerator "stockcore/pkg/numerator"
)

// Storage is everything the core persists or reads through.
type Storage struct {
	TxManager tx.Manager
	Numerator numerator.Generator
	Directory catalog.Directory

	Stock   stock.Repository
	Batches batch.Repository
	Handles reservation.HandleRepository
	Rules   putaway.RuleRepository

	GoodsReceipts   goods_receipt.Repository
	PickingLists    picking.Repository
	Shipments       picking.ShipmentRepository
	Transfers       transfer.Repository
	PurchaseReturns purchase_return.Repository
}

// MemoryStorage keeps everything in process. directory supplies the
// collaborator catalogs.
func MemoryStorage(directory catalog.Directory) Storage {
	return Storage{
		TxManager:       tx.Direct{},
		Numerator:       numerator.NewMemory(),
		Directory:       directory,
		Stock:           memory.NewStockRepo(),
		Batches:         memory.NewBatchRepo(),
		Handles:         memory.NewHandleRepo(),
		Rules:           memory.NewRuleRepo(),
		GoodsReceipts:   memory.NewDocumentRepo("GoodsReceipt", goods_receipt.New),
		PickingLists:    memory.NewDocumentRepo("PickingList", picking.NewPickingListDoc),
		Shipments:       memory.NewDocumentRepo("Shipment", picking.NewShipmentDoc),
		Transfers:       memory.NewDocumentRepo("Transfer", transfer.New),
		PurchaseReturns: memory.NewDocumentRepo("PurchaseReturn", purchase_return.New),
	}
}

// PostgresStorage persists through pool. Every repository joins the
// transaction TxManager keeps in the context.
func PostgresStorage(pool *postgres.Pool, txm *postgres.TxManager) Storage {
	return Storage{
		TxManager: txm,
		Numerator: pgnumerator.New(pool),
		Directory: catalog_repo.NewDirectory(txm),
		Stock:     register_repo.NewStockRepo(txm),
		Batches:   register_repo.NewBatchRepo(txm),
		Handles:   register_repo.NewHandleRepo(txm),
		Rules:     catalog_repo.NewRuleRepo(txm),
		GoodsReceipts: document_repo.NewRepo(txm, document_repo.GoodsReceiptsTable,
			"GoodsReceipt", goods_receipt.New),
		PickingLists: document_repo.NewRepo(txm, document_repo.PickingListsTable,
			"PickingList", picking.NewPickingListDoc),
		Shipments: document_repo.NewRepo(txm, document_repo.ShipmentsTable,
			"Shipment", picking.NewShipmentDoc),
		Transfers: document_repo.NewRepo(txm, document_repo.TransfersTable,
			"Transfer", transfer.New),
		PurchaseReturns: document_repo.NewRepo(txm, document_repo.PurchaseReturnsTable,
			"PurchaseReturn", purchase_return.New),
	}
}

// Core is the wired inventory core.
type Core struct {
	Locks       *keylock.Table
	Ledger      *stock.Ledger
	Batches     *batch.Registry
	Coordinator *reservation.Coordinator
	Planner     *putaway.Planner

	GoodsReceipts   *goods_receipt.Service
	Picking         *picking.Service
	Transfers       *transfer.Service
	PurchaseReturns *purchase_return.Service
}

// NewCore wires the components over s. pub receives every domain event.
func NewCore(s Storage, pub events.Publisher) *Core {
	if pub == nil {
		pub = events.Nop{}
	}
	locks := keylock.New()
	ledger := stock.NewLedger(s.Stock, s.TxManager, locks)
	registry := batch.NewRegistry(s.Batches, s.TxManager, locks)
	ledger.AttachBatches(registry)

	resolver := allocation.NewResolver(ledger, registry)
	coordinator := reservation.NewCoordinator(ledger, resolver, s.Handles, s.Directory, locks, pub)
	planner := putaway.NewPlanner(s.Rules, s.Directory, ledger)

	return &Core{
		Locks:       locks,
		Ledger:      ledger,
		Batches:     registry,
		Coordinator: coordinator,
		Planner:     planner,
		GoodsReceipts: goods_receipt.NewService(goods_receipt.Deps{
			Repo:        s.GoodsReceipts,
			Numerator:   s.Numerator,
			Locks:       locks,
			Events:      pub,
			Coordinator: coordinator,
			Batches:     registry,
			Planner:     planner,
			Directory:   s.Directory,
		}),
		Picking: picking.NewService(picking.Deps{
			Lists:       s.PickingLists,
			Shipments:   s.Shipments,
			Numerator:   s.Numerator,
			Locks:       locks,
			Events:      pub,
			Coordinator: coordinator,
			Directory:   s.Directory,
		}),
		Transfers: transfer.NewService(transfer.Deps{
			Repo:        s.Transfers,
			Numerator:   s.Numerator,
			Locks:       locks,
			Events:      pub,
			Coordinator: coordinator,
			Directory:   s.Directory,
		}),
		PurchaseReturns: purchase_return.NewService(purchase_return.Deps{
			Repo:        s.PurchaseReturns,
			Numerator:   s.Numerator,
			Locks:       locks,
			Events:      pub,
			Coordinator: coordinator,
			Directory:   s.Directory,
		}),
	}
}

// Services is the API view of the core.
func (c *Core) Services() v1.Services {
	return v1.Services{
		Coordinator:     c.Coordinator,
		Batches:         c.Batches,
		Planner:         c.Planner,
		GoodsReceipts:   c.GoodsReceipts,
		Picking:         c.Picking,
		Transfers:       c.Transfers,
		PurchaseReturns: c.PurchaseReturns,
	}
}
