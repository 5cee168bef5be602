package sqlite

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/healthlog/internal/stats"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

const typeStatsQuery = `
SELECT t.id, t.name, COUNT(e.id), 0
FROM types t
LEFT JOIN log_entries e ON e.type_id = t.id
GROUP BY t.id, t.name`

const categoryStatsQuery = `
SELECT c.id, c.name, COUNT(DISTINCT lei.entry_id), 0
FROM categories c
LEFT JOIN items i ON i.category_id = c.id
LEFT JOIN log_entry_items lei ON lei.item_id = i.id
WHERE c.type_id = ?
GROUP BY c.id, c.name`

// Bundles are listed under a category when at least one of their item
// members belongs to it. A bundle's count is the number of distinct entries
// holding an item expanded from that bundle.
const itemStatsQuery = `
SELECT i.id, i.name, COUNT(DISTINCT lei.entry_id), 0
FROM items i
LEFT JOIN log_entry_items lei ON lei.item_id = i.id
WHERE i.category_id = ?
GROUP BY i.id, i.name
UNION ALL
SELECT b.id, b.name,
       (SELECT COUNT(DISTINCT src.entry_id) FROM log_entry_items src WHERE src.source_bundle_id = b.id),
       1
FROM bundles b
WHERE EXISTS (
    SELECT 1 FROM bundle_members bm
    JOIN items mi ON mi.id = bm.item_id
    WHERE bm.bundle_id = b.id AND mi.category_id = ?
)`

// GetTypeStats returns the number of entries per type. Types without
// entries are included with a zero count.
func (b *Backend) GetTypeStats(ctx context.Context) ([]types.UsageStat, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return b.queryStats(ctx, "type stats", typeStatsQuery)
}

// GetCategoryStats returns, for each category of typeID, the number of
// distinct entries holding one of its items.
func (b *Backend) GetCategoryStats(ctx context.Context, typeID string) ([]types.UsageStat, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return b.queryStats(ctx, "category stats", categoryStatsQuery, typeID)
}

// GetItemStats returns usage of the items of categoryID together with the
// bundles that draw on them.
func (b *Backend) GetItemStats(ctx context.Context, categoryID string) ([]types.UsageStat, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return b.queryStats(ctx, "item stats", itemStatsQuery, categoryID, categoryID)
}

func (b *Backend) queryStats(ctx context.Context, op, query string, args ...any) ([]types.UsageStat, error) {
	rows, err := b.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, op)
	}
	defer rows.Close()

	out := []types.UsageStat{}
	for rows.Next() {
		var (
			s        types.UsageStat
			isBundle int
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Count, &isBundle); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", op, err)
		}
		s.IsBundle = isBundle == 1
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", op, err)
	}
	stats.Sort(out)
	return out, nil
}
