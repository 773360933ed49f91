package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ucpify/ucpify/internal/catalog"
)

const listItemsSQL = `SELECT id, title, description, price, sku FROM catalog_items ORDER BY id`

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
// Rows are written by catalog-ingest and read once at server startup.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ListItems returns every ingested catalog item.
func (r *CatalogRepository) ListItems(ctx context.Context) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, listItemsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing catalog items: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Item, error) {
		var it catalog.Item
		err := row.Scan(&it.ID, &it.Title, &it.Description, &it.Price, &it.SKU)
		return it, err
	})
}

// InsertItems bulk loads items with COPY, replacing rows that already exist.
// Used by catalog-ingest.
func (r *CatalogRepository) InsertItems(ctx context.Context, items []catalog.Item) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE catalog_items_load
		(LIKE catalog_items INCLUDING ALL) ON COMMIT DROP`); err != nil {
		return 0, fmt.Errorf("creating load table: %w", err)
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"catalog_items_load"},
		[]string{"id", "title", "description", "price", "sku"},
		pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
			it := items[i]
			return []any{it.ID, it.Title, it.Description, it.Price, it.SKU}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copying catalog items: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO catalog_items (id, title, description, price, sku)
		SELECT id, title, description, price, sku FROM catalog_items_load
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, description = EXCLUDED.description,
		    price = EXCLUDED.price, sku = EXCLUDED.sku`); err != nil {
		return 0, fmt.Errorf("merging catalog items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing catalog load: %w", err)
	}
	return copied, nil
}
