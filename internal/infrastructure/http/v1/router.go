// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/domain/documents/goods_receipt"
	"stockcore/internal/domain/documents/picking"
	"stockcore/internal/domain/documents/purchase_return"
	"stockcore/internal/domain/documents/transfer"
	"stockcore/internal/domain/putaway"
	"stockcore/internal/domain/registers/batch"
	"stockcore/internal/domain/reservation"
	"stockcore/internal/infrastructure/http/v1/handlers"
	"stockcore/internal/infrastructure/http/v1/middleware"
	"stockcore/pkg/logger"
)

// Services are the core components the API exposes.
type Services struct {
	Coordinator     *reservation.Coordinator
	Batches         *batch.Registry
	Planner         *putaway.Planner
	GoodsReceipts   *goods_receipt.Service
	Picking         *picking.Service
	Transfers       *transfer.Service
	PurchaseReturns *purchase_return.Service
}

// RouterConfig holds router configuration.
type RouterConfig struct {
	Logger   *logger.Logger
	Services Services

	// StorageDriver and Storage feed the health check; Storage is nil for memory
	StorageDriver string
	Storage       handlers.Pinger

	// TokenValidator checks bearer tokens; nil disables authentication
	TokenValidator middleware.TokenValidator

	// Audit serves transition history when set
	Audit handlers.AuditReader

	// ExpiringWindowDays is the default window of /batches/expiring
	ExpiringWindowDays int

	// Development keeps gin in debug mode
	Development bool
}

// NewRouter creates and configures the gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// ErrorHandler sits outside Recovery so a recovered panic is still rendered
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.StorageDriver, cfg.Storage)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/live", healthHandler.Live)

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.TokenValidator))

	base := handlers.NewBaseHandler()
	svc := cfg.Services

	Mount(api, map[string]RouteRegistrar{
		"/stock":         handlers.NewStockHandler(base, svc.Coordinator),
		"/reservations":  handlers.NewReservationHandler(base, svc.Coordinator),
		"/batches":       handlers.NewBatchHandler(base, svc.Batches, cfg.ExpiringWindowDays),
		"/putaway-rules": handlers.NewPutawayRuleHandler(base, svc.Planner),
	})

	Mount(api.Group("/documents"), map[string]RouteRegistrar{
		"/goods-receipts":   handlers.NewGoodsReceiptHandler(base, svc.GoodsReceipts),
		"/picking-lists":    handlers.NewPickingListHandler(base, svc.Picking),
		"/shipments":        handlers.NewShipmentHandler(base, svc.Picking),
		"/transfers":        handlers.NewTransferHandler(base, svc.Transfers),
		"/purchase-returns": handlers.NewPurchaseReturnHandler(base, svc.PurchaseReturns),
	})

	if cfg.Audit != nil {
		api.GET("/audit/:documentId", handlers.NewAuditHandler(base, cfg.Audit).History)
	}

	return router
}
