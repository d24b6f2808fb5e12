package cache

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/catalog"
	"stockcore/internal/infrastructure/storage/memory"
)

// countingDirectory counts the lookups that reach the source.
type countingDirectory struct {
	*memory.Directory
	products  atomic.Int32
	locations atomic.Int32
}

func (c *countingDirectory) Product(ctx context.Context, productID id.ID) (*catalog.Product, error) {
	c.products.Add(1)
	return c.Directory.Product(ctx, productID)
}

func (c *countingDirectory) Locations(ctx context.Context, warehouseID id.ID) ([]catalog.Location, error) {
	c.locations.Add(1)
	return c.Directory.Locations(ctx, warehouseID)
}

func newSource() (*countingDirectory, id.ID, id.ID) {
	src := &countingDirectory{Directory: memory.NewDirectory()}
	productID, warehouseID := id.New(), id.New()
	src.PutProduct(catalog.Product{ID: productID, SKU: "SKU-1", Name: "Widget"})
	src.PutWarehouse(catalog.Warehouse{ID: warehouseID, Code: "WH1", Active: true})
	src.PutLocation(catalog.Location{ID: id.New(), WarehouseID: warehouseID, Code: "A-01", Active: true, SortOrder: 1})
	return src, productID, warehouseID
}

func TestDirectory_CachesLookups(t *testing.T) {
	ctx := context.Background()
	src, productID, warehouseID := newSource()
	d := NewDirectory(src)

	for i := 0; i < 3; i++ {
		p, err := d.Product(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, "SKU-1", p.SKU)

		locs, err := d.Locations(ctx, warehouseID)
		require.NoError(t, err)
		require.Len(t, locs, 1)
	}
	assert.Equal(t, int32(1), src.products.Load())
	assert.Equal(t, int32(1), src.locations.Load())

	// locations listed once are served by Location too
	locs, _ := d.Locations(ctx, warehouseID)
	l, err := d.Location(ctx, locs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "A-01", l.Code)
}

func TestDirectory_DoesNotCacheMisses(t *testing.T) {
	ctx := context.Background()
	src, _, _ := newSource()
	d := NewDirectory(src)

	missing := id.New()
	_, err := d.Product(ctx, missing)
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))

	src.PutProduct(catalog.Product{ID: missing, SKU: "SKU-2"})
	p, err := d.Product(ctx, missing)
	require.NoError(t, err)
	assert.Equal(t, "SKU-2", p.SKU)
}

func TestDirectory_ReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	src, productID, warehouseID := newSource()
	d := NewDirectory(src)

	p, err := d.Product(ctx, productID)
	require.NoError(t, err)
	p.SKU = "mutated"

	locs, err := d.Locations(ctx, warehouseID)
	require.NoError(t, err)
	locs[0].Code = "mutated"

	p, _ = d.Product(ctx, productID)
	assert.Equal(t, "SKU-1", p.SKU)
	locs, _ = d.Locations(ctx, warehouseID)
	assert.Equal(t, "A-01", locs[0].Code)
}

func TestDirectory_Invalidate(t *testing.T) {
	ctx := context.Background()
	src, productID, warehouseID := newSource()
	d := NewDirectory(src)

	_, err := d.Product(ctx, productID)
	require.NoError(t, err)
	_, err = d.Locations(ctx, warehouseID)
	require.NoError(t, err)

	src.PutProduct(catalog.Product{ID: productID, SKU: "SKU-1B"})
	d.Invalidate("cat_products:" + productID.String())
	p, err := d.Product(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, "SKU-1B", p.SKU)
	assert.Equal(t, int32(2), src.products.Load())

	// a new location drops every cached location list
	src.PutLocation(catalog.Location{ID: id.New(), WarehouseID: warehouseID, Code: "A-02", Active: true, SortOrder: 2})
	d.Invalidate("cat_locations:" + id.New().String())
	locs, err := d.Locations(ctx, warehouseID)
	require.NoError(t, err)
	assert.Len(t, locs, 2)

	d.Invalidate("")
	_, err = d.Product(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, int32(3), src.products.Load())
}

func TestDirectory_StopWithoutListen(t *testing.T) {
	d := NewDirectory(memory.NewDirectory())
	assert.NotPanics(t, d.Stop)
}
