// Package main provides a CLI tool for seeding the collaborator catalogs
// (products, warehouses, locations, purchase orders) from a fixtures file.
package main

import (
	"context"
	"fmt"
	"os"

	"stockcore/internal/core/id"
	"stockcore/internal/domain/auth"
	"stockcore/internal/infrastructure/storage/memory"
	"stockcore/internal/infrastructure/storage/postgres"
	"stockcore/pkg/config"
	"stockcore/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}
	if cfg.Storage.Driver != config.DriverPostgres {
		log.Fatal("seeding needs STORAGE_DRIVER=postgres")
	}

	path := cfg.Storage.FixturesPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	if path == "" {
		log.Fatal("fixtures path required: pass it as an argument or set STORAGE_FIXTURES")
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Storage.DSN))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("connected to database")

	fx, err := memory.ReadFixtures(path)
	if err != nil {
		log.Fatalw("failed to read fixtures", "error", err)
	}

	txm := postgres.NewTxManager(pool)
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return seedCatalogs(ctx, txm.GetQuerier(ctx), fx)
	})
	if err != nil {
		log.Fatalw("failed to seed catalogs", "error", err)
	}
	log.Infow("catalogs seeded",
		"products", len(fx.Products),
		"warehouses", len(fx.Warehouses),
		"locations", len(fx.Locations),
		"purchase_orders", len(fx.PurchaseOrders),
	)

	// A development token, so the API can be tried right after seeding
	if cfg.Auth.JWTSecret != "" {
		jwtCfg := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
		jwtCfg.Issuer = cfg.Auth.Issuer
		token, expiresAt, err := auth.NewJWTService(jwtCfg).GenerateAccessToken(id.New().String(), "seed@stockcore.local")
		if err != nil {
			log.Fatalw("failed to issue token", "error", err)
		}
		log.Infow("development token issued", "expires_at", expiresAt)
		fmt.Println(token)
	}

	log.Info("seeding completed successfully")
}

func seedCatalogs(ctx context.Context, q postgres.Querier, fx memory.Fixtures) error {
	for _, w := range fx.Warehouses {
		_, err := q.Exec(ctx, `
			INSERT INTO cat_warehouses (id, code, name, is_active)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, name = EXCLUDED.name, is_active = EXCLUDED.is_active
		`, w.ID, w.Code, w.Name, w.Active)
		if err != nil {
			return fmt.Errorf("warehouse %s: %w", w.Code, err)
		}
	}

	for _, l := range fx.Locations {
		_, err := q.Exec(ctx, `
			INSERT INTO cat_locations (id, warehouse_id, code, zone, capacity, is_active, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				code = EXCLUDED.code, zone = EXCLUDED.zone, capacity = EXCLUDED.capacity,
				is_active = EXCLUDED.is_active, sort_order = EXCLUDED.sort_order
		`, l.ID, l.WarehouseID, l.Code, l.Zone, l.Capacity, l.Active, l.SortOrder)
		if err != nil {
			return fmt.Errorf("location %s: %w", l.Code, err)
		}
	}

	for _, p := range fx.Products {
		_, err := q.Exec(ctx, `
			INSERT INTO cat_products (id, sku, name, reorder_point, cost_price, abc_class)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				sku = EXCLUDED.sku, name = EXCLUDED.name, reorder_point = EXCLUDED.reorder_point,
				cost_price = EXCLUDED.cost_price, abc_class = EXCLUDED.abc_class
		`, p.ID, p.SKU, p.Name, p.ReorderPoint, p.CostPrice, p.ABCClass)
		if err != nil {
			return fmt.Errorf("product %s: %w", p.SKU, err)
		}
	}

	for _, po := range fx.PurchaseOrders {
		_, err := q.Exec(ctx, `
			INSERT INTO doc_purchase_orders (id, number, supplier_id, warehouse_id, ordered_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, po.ID, po.Number, po.SupplierID, po.WarehouseID, po.OrderedAt)
		if err != nil {
			return fmt.Errorf("purchase order %s: %w", po.Number, err)
		}
		if _, err := q.Exec(ctx, `DELETE FROM doc_purchase_order_lines WHERE order_id = $1`, po.ID); err != nil {
			return fmt.Errorf("purchase order %s lines: %w", po.Number, err)
		}
		for i, line := range po.Lines {
			_, err := q.Exec(ctx, `
				INSERT INTO doc_purchase_order_lines (order_id, line_no, product_id, ordered_quantity, unit_cost)
				VALUES ($1, $2, $3, $4, $5)
			`, po.ID, i+1, line.ProductID, line.Ordered, line.UnitCost)
			if err != nil {
				return fmt.Errorf("purchase order %s line %d: %w", po.Number, i+1, err)
			}
		}
	}
	return nil
}
