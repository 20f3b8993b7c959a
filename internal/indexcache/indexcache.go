// Package indexcache manages the INDEX_CACHE table sources use to skip
// items they have already enqueued, grounded on
// infobserve/common/index_cache.py's query-once/write-once-per-cycle
// contract.
package indexcache

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Cache manages the cached source ids for a single source tag.
type Cache struct {
	pool   *pgxpool.Pool
	source string
}

func New(pool *pgxpool.Pool, source string) *Cache {
	return &Cache{pool: pool, source: source}
}

// Query returns every source_id already cached for this cache's source,
// once per poll cycle — callers diff their freshly fetched batch
// against this set rather than querying per-item.
func (c *Cache) Query(ctx context.Context) (map[string]struct{}, error) {
	rows, err := c.pool.Query(ctx, `SELECT source_id FROM index_cache WHERE source = $1`, c.source)
	if err != nil {
		return nil, fmt.Errorf("indexcache: query: %w", err)
	}
	defer rows.Close()

	cached := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("indexcache: scan: %w", err)
		}
		cached[id] = struct{}{}
	}
	return cached, rows.Err()
}

// Update bulk-inserts newly-seen source ids in a single round trip,
// the Go analogue of asyncpg's copy_records_to_table. Duplicate ids
// (e.g. a retry after a partial cycle) are ignored rather than failing
// the whole batch, relying on the unique (source, source_id)
// constraint SPEC_FULL.md adds.
func (c *Cache) Update(ctx context.Context, sourceIDs []string) error {
	if len(sourceIDs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		rows = append(rows, []any{c.source, id})
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("indexcache: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, row := range rows {
		_, err := tx.Exec(ctx,
			`INSERT INTO index_cache (source, source_id) VALUES ($1, $2) ON CONFLICT (source, source_id) DO NOTHING`,
			row[0], row[1])
		if err != nil {
			return fmt.Errorf("indexcache: insert: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("indexcache: commit: %w", err)
	}
	return nil
}
