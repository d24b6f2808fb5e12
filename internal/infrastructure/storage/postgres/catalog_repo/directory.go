// Package catalog_repo provides PostgreSQL read access to the collaborator
// catalogs (products, warehouses, locations, purchase orders) and the
// put-away rule store.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/catalog"
	"stockcore/internal/infrastructure/storage/postgres"
)

const (
	productsTable           = "cat_products"
	warehousesTable         = "cat_warehouses"
	locationsTable          = "cat_locations"
	purchaseOrdersTable     = "doc_purchase_orders"
	purchaseOrderLinesTable = "doc_purchase_order_lines"
)

// Directory implements catalog.Directory. The stock core never writes these tables.
type Directory struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func NewDirectory(txm *postgres.TxManager) *Directory {
	return &Directory{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ catalog.Directory = (*Directory)(nil)

// getOne scans a single row of table into dest.
func (d *Directory) getOne(ctx context.Context, dest any, entity, table string, cols []string, entityID id.ID) error {
	sql, args, err := d.builder.Select(cols...).From(table).Where(squirrel.Eq{"id": entityID}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, d.txm.GetQuerier(ctx), dest, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound(entity, entityID)
		}
		return fmt.Errorf("get %s: %w", entity, err)
	}
	return nil
}

var (
	productColumns   = []string{"id", "sku", "name", "reorder_point", "cost_price", "abc_class"}
	warehouseColumns = []string{"id", "code", "name", "is_active"}
	locationColumns  = []string{"id", "warehouse_id", "code", "zone", "capacity", "is_active", "sort_order"}
)

func (d *Directory) Product(ctx context.Context, productID id.ID) (*catalog.Product, error) {
	var p catalog.Product
	if err := d.getOne(ctx, &p, "product", productsTable, productColumns, productID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *Directory) Warehouse(ctx context.Context, warehouseID id.ID) (*catalog.Warehouse, error) {
	var w catalog.Warehouse
	if err := d.getOne(ctx, &w, "warehouse", warehousesTable, warehouseColumns, warehouseID); err != nil {
		return nil, err
	}
	return &w, nil
}

func (d *Directory) Location(ctx context.Context, locationID id.ID) (*catalog.Location, error) {
	var l catalog.Location
	if err := d.getOne(ctx, &l, "location", locationsTable, locationColumns, locationID); err != nil {
		return nil, err
	}
	return &l, nil
}

func (d *Directory) Locations(ctx context.Context, warehouseID id.ID) ([]catalog.Location, error) {
	sql, args, err := d.builder.Select(locationColumns...).
		From(locationsTable).
		Where(squirrel.Eq{"warehouse_id": warehouseID}).
		OrderBy("sort_order", "code").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []catalog.Location
	if err := pgxscan.Select(ctx, d.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select locations: %w", err)
	}
	return out, nil
}

func (d *Directory) PurchaseOrder(ctx context.Context, orderID id.ID) (*catalog.PurchaseOrder, error) {
	var po catalog.PurchaseOrder
	cols := []string{"id", "number", "supplier_id", "warehouse_id", "ordered_at"}
	if err := d.getOne(ctx, &po, "purchase order", purchaseOrdersTable, cols, orderID); err != nil {
		return nil, err
	}

	sql, args, err := d.builder.Select("product_id", "ordered_quantity", "unit_cost").
		From(purchaseOrderLinesTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, d.txm.GetQuerier(ctx), &po.Lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select purchase order lines: %w", err)
	}
	return &po, nil
}
