// This file implements the catalog repository: types, categories, items and
// their quantifiers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mesh-intelligence/healthlog/internal/seed"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

// GetOrCreateType returns the id of the type named name, creating it when
// missing. New types are appended after the existing display order.
func (b *Backend) GetOrCreateType(ctx context.Context, name string) (string, error) {
	release, err := b.acquire()
	if err != nil {
		return "", err
	}
	defer release()
	return b.getOrCreateType(ctx, name)
}

func (b *Backend) getOrCreateType(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", types.ErrInvalidName
	}
	id, _, err := b.getOrCreate(ctx,
		"SELECT id FROM types WHERE name = ?", []any{name},
		`INSERT INTO types (id, name, display_order, color)
		 VALUES (?, ?, (SELECT COALESCE(MAX(display_order) + 1, 0) FROM types), ?)
		 ON CONFLICT(name) DO NOTHING`,
		func(id string) []any { return []any{id, name, seed.DefaultColor} },
	)
	if err != nil {
		return "", mapError(err, "get or create type "+name)
	}
	return id, nil
}

// EnsureType returns the id of the type named t.Name, creating it with t's
// display order and color when missing.
func (b *Backend) EnsureType(ctx context.Context, t types.Type) (string, bool, error) {
	release, err := b.acquire()
	if err != nil {
		return "", false, err
	}
	defer release()

	name := strings.TrimSpace(t.Name)
	if name == "" {
		return "", false, types.ErrInvalidName
	}
	color := strings.TrimSpace(t.Color)
	if color == "" {
		color = seed.DefaultColor
	}
	id, created, err := b.getOrCreate(ctx,
		"SELECT id FROM types WHERE name = ?", []any{name},
		"INSERT INTO types (id, name, display_order, color) VALUES (?, ?, ?, ?) ON CONFLICT(name) DO NOTHING",
		func(id string) []any { return []any{id, name, t.DisplayOrder, color} },
	)
	if err != nil {
		return "", false, mapError(err, "ensure type "+name)
	}
	return id, created, nil
}

// GetOrCreateCategory returns the id of the category named name under typeID,
// creating it when missing.
func (b *Backend) GetOrCreateCategory(ctx context.Context, name, typeID string) (string, error) {
	release, err := b.acquire()
	if err != nil {
		return "", err
	}
	defer release()
	return b.getOrCreateCategory(ctx, name, typeID)
}

func (b *Backend) getOrCreateCategory(ctx context.Context, name, typeID string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", types.ErrInvalidName
	}
	if typeID == "" {
		return "", types.ErrInvalidID
	}
	id, _, err := b.getOrCreate(ctx,
		"SELECT id FROM categories WHERE type_id = ? AND name = ?", []any{typeID, name},
		"INSERT INTO categories (id, type_id, name) VALUES (?, ?, ?) ON CONFLICT(type_id, name) DO NOTHING",
		func(id string) []any { return []any{id, typeID, name} },
	)
	if err != nil {
		return "", mapError(err, "get or create category "+name)
	}
	return id, nil
}

// GetOrCreateItem returns the id of the item named name under categoryID and
// whether it was created by this call.
func (b *Backend) GetOrCreateItem(ctx context.Context, name, categoryID string) (string, bool, error) {
	release, err := b.acquire()
	if err != nil {
		return "", false, err
	}
	defer release()
	return b.getOrCreateItem(ctx, name, categoryID)
}

func (b *Backend) getOrCreateItem(ctx context.Context, name, categoryID string) (string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, types.ErrInvalidName
	}
	if categoryID == "" {
		return "", false, types.ErrInvalidID
	}
	id, created, err := b.getOrCreate(ctx,
		"SELECT id FROM items WHERE category_id = ? AND name = ?", []any{categoryID, name},
		"INSERT INTO items (id, category_id, name) VALUES (?, ?, ?) ON CONFLICT(category_id, name) DO NOTHING",
		func(id string) []any { return []any{id, categoryID, name} },
	)
	if err != nil {
		return "", false, mapError(err, "get or create item "+name)
	}
	return id, created, nil
}

// getOrCreate runs lookup, inserts with a fresh id when nothing matched, and
// looks up again. The insert ignores uniqueness conflicts, so a row created
// between the lookup and the insert is returned rather than duplicated.
func (b *Backend) getOrCreate(ctx context.Context, lookup string, lookupArgs []any, insert string, insertArgs func(id string) []any) (string, bool, error) {
	q := b.q(ctx)

	var id string
	err := q.QueryRowContext(ctx, lookup, lookupArgs...).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, err
	}

	res, err := q.ExecContext(ctx, insert, insertArgs(newID())...)
	if err != nil {
		return "", false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if err := q.QueryRowContext(ctx, lookup, lookupArgs...).Scan(&id); err != nil {
		return "", false, err
	}
	return id, n == 1, nil
}

// InsertCatalogItem resolves or creates the item's type, category and item,
// then adds the quantifiers the item does not already define. Existing
// quantifiers are left untouched.
func (b *Backend) InsertCatalogItem(ctx context.Context, in types.ItemInput) (id string, err error) {
	release, err := b.acquire()
	if err != nil {
		return "", err
	}
	defer release()

	if err := in.Validate(); err != nil {
		return "", err
	}

	defer func(start time.Time) { b.metrics.ObserveWrite("insert_catalog_item", start, err) }(time.Now())

	err = b.runInTx(ctx, func(ctx context.Context) error {
		typeID, err := b.getOrCreateType(ctx, in.TypeName)
		if err != nil {
			return err
		}
		categoryID, err := b.getOrCreateCategory(ctx, in.CategoryName, typeID)
		if err != nil {
			return err
		}
		itemID, created, err := b.getOrCreateItem(ctx, in.Name, categoryID)
		if err != nil {
			return err
		}
		if created && in.Description != "" {
			if _, err := b.q(ctx).ExecContext(ctx,
				"UPDATE items SET description = ? WHERE id = ?", in.Description, itemID,
			); err != nil {
				return mapError(err, "setting item description")
			}
		}
		for _, qi := range in.Quantifiers {
			if _, err := b.q(ctx).ExecContext(ctx,
				`INSERT INTO item_quantifiers (id, item_id, name, min_value, max_value, units)
				 VALUES (?, ?, ?, ?, ?, ?)
				 ON CONFLICT(item_id, name) DO NOTHING`,
				newID(), itemID, strings.TrimSpace(qi.Name), nullFloat(qi.MinValue), nullFloat(qi.MaxValue), nullString(qi.Units),
			); err != nil {
				return mapError(err, "inserting quantifier "+qi.Name)
			}
		}
		id = itemID
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpsertItem creates or updates an item in one transaction. The type and
// category are resolved by name and created when missing. When in.ID is empty
// an existing item with the same name in the category is updated in place.
// The item's quantifiers are replaced by in.Quantifiers: definitions whose
// name matches an existing one keep their id (and recorded values), the rest
// are inserted, and any existing definition not named in the input is
// deleted along with its recorded values.
func (b *Backend) UpsertItem(ctx context.Context, in types.ItemInput) (id string, err error) {
	release, err := b.acquire()
	if err != nil {
		return "", err
	}
	defer release()

	if err := in.Validate(); err != nil {
		return "", err
	}

	defer func(start time.Time) { b.metrics.ObserveWrite("upsert_item", start, err) }(time.Now())

	err = b.runInTx(ctx, func(ctx context.Context) error {
		q := b.q(ctx)

		typeID, err := b.getOrCreateType(ctx, in.TypeName)
		if err != nil {
			return err
		}
		categoryID, err := b.getOrCreateCategory(ctx, in.CategoryName, typeID)
		if err != nil {
			return err
		}

		itemID := in.ID
		if itemID == "" {
			err := q.QueryRowContext(ctx,
				"SELECT id FROM items WHERE category_id = ? AND name = ?", categoryID, strings.TrimSpace(in.Name),
			).Scan(&itemID)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return mapError(err, "looking up item")
			}
			if itemID == "" {
				itemID = newID()
			}
		}

		if _, err := q.ExecContext(ctx,
			`INSERT INTO items (id, category_id, name, description) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				category_id = excluded.category_id,
				name = excluded.name,
				description = excluded.description`,
			itemID, categoryID, strings.TrimSpace(in.Name), nullString(in.Description),
		); err != nil {
			return mapError(err, "upserting item "+in.Name)
		}

		if err := b.replaceQuantifiers(ctx, itemID, in.Quantifiers); err != nil {
			return err
		}
		id = itemID
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// replaceQuantifiers makes the item's quantifier set equal to defs.
func (b *Backend) replaceQuantifiers(ctx context.Context, itemID string, defs []types.QuantifierInput) error {
	q := b.q(ctx)

	existing, err := b.loadQuantifiers(ctx, itemID)
	if err != nil {
		return err
	}
	byName := make(map[string]string, len(existing))
	for _, eq := range existing {
		byName[strings.ToLower(eq.Name)] = eq.ID
	}

	keep := make(map[string]bool, len(defs))
	for _, d := range defs {
		name := strings.TrimSpace(d.Name)
		if qid, ok := byName[strings.ToLower(name)]; ok {
			keep[qid] = true
			if _, err := q.ExecContext(ctx,
				"UPDATE item_quantifiers SET name = ?, min_value = ?, max_value = ?, units = ? WHERE id = ?",
				name, nullFloat(d.MinValue), nullFloat(d.MaxValue), nullString(d.Units), qid,
			); err != nil {
				return mapError(err, "updating quantifier "+name)
			}
			continue
		}
		if _, err := q.ExecContext(ctx,
			"INSERT INTO item_quantifiers (id, item_id, name, min_value, max_value, units) VALUES (?, ?, ?, ?, ?, ?)",
			newID(), itemID, name, nullFloat(d.MinValue), nullFloat(d.MaxValue), nullString(d.Units),
		); err != nil {
			return mapError(err, "inserting quantifier "+name)
		}
	}

	for _, eq := range existing {
		if keep[eq.ID] {
			continue
		}
		if _, err := q.ExecContext(ctx, "DELETE FROM item_quantifiers WHERE id = ?", eq.ID); err != nil {
			return mapError(err, "deleting quantifier "+eq.Name)
		}
	}
	return nil
}

// loadQuantifiers returns the item's quantifier definitions ordered by name.
func (b *Backend) loadQuantifiers(ctx context.Context, itemID string) ([]types.ItemQuantifier, error) {
	rows, err := b.q(ctx).QueryContext(ctx,
		`SELECT id, item_id, name, min_value, max_value, COALESCE(units, '')
		 FROM item_quantifiers WHERE item_id = ? ORDER BY name`,
		itemID,
	)
	if err != nil {
		return nil, mapError(err, "loading quantifiers")
	}
	defer rows.Close()

	out := []types.ItemQuantifier{}
	for rows.Next() {
		qd, err := scanQuantifier(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning quantifier: %w", err)
		}
		out = append(out, qd)
	}
	return out, rows.Err()
}

func scanQuantifier(rows *sql.Rows) (types.ItemQuantifier, error) {
	var (
		qd       types.ItemQuantifier
		min, max sql.NullFloat64
	)
	if err := rows.Scan(&qd.ID, &qd.ItemID, &qd.Name, &min, &max, &qd.Units); err != nil {
		return qd, err
	}
	qd.MinValue = floatPtr(min)
	qd.MaxValue = floatPtr(max)
	return qd, nil
}

// catalogItemColumns are the columns scanned by scanCatalogItem.
var catalogItemColumns = []string{
	"i.id", "i.name", "COALESCE(i.description, '')",
	"c.id", "c.name", "t.id", "t.name", "t.display_order",
}

func catalogItemSelect() sq.SelectBuilder {
	return sq.Select(catalogItemColumns...).
		From("items i").
		Join("categories c ON c.id = i.category_id").
		Join("types t ON t.id = c.type_id")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatalogItem(row rowScanner) (types.CatalogItem, error) {
	var ci types.CatalogItem
	err := row.Scan(&ci.ID, &ci.Name, &ci.Description,
		&ci.CategoryID, &ci.CategoryName, &ci.TypeID, &ci.TypeName, &ci.TypeDisplayOrder)
	return ci, err
}

// GetItemDetail returns the item with its taxonomy names and quantifiers.
func (b *Backend) GetItemDetail(ctx context.Context, id string) (*types.ItemDetail, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	query, args, err := catalogItemSelect().Where(sq.Eq{"i.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building item detail query: %w", err)
	}
	ci, err := scanCatalogItem(b.q(ctx).QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError(err, "getting item "+id)
	}
	quantifiers, err := b.loadQuantifiers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &types.ItemDetail{CatalogItem: ci, Quantifiers: quantifiers}, nil
}

// GetAllCatalogItems lists every item ordered by type display order,
// category name, then item name.
func (b *Backend) GetAllCatalogItems(ctx context.Context) ([]types.CatalogItem, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	query, args, err := catalogItemSelect().
		OrderBy("t.display_order ASC", "c.name ASC", "i.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building catalog query: %w", err)
	}

	rows, err := b.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "listing catalog items")
	}
	defer rows.Close()

	out := []types.CatalogItem{}
	for rows.Next() {
		ci, err := scanCatalogItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning catalog item: %w", err)
		}
		out = append(out, ci)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating catalog items: %w", err)
	}
	return out, nil
}

// ListTypes returns every type ordered by display order, then name.
func (b *Backend) ListTypes(ctx context.Context) ([]types.Type, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := b.q(ctx).QueryContext(ctx,
		"SELECT id, name, display_order, color FROM types ORDER BY display_order ASC, name ASC")
	if err != nil {
		return nil, mapError(err, "listing types")
	}
	defer rows.Close()

	out := []types.Type{}
	for rows.Next() {
		var t types.Type
		if err := rows.Scan(&t.ID, &t.Name, &t.DisplayOrder, &t.Color); err != nil {
			return nil, fmt.Errorf("scanning type: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListCategories returns the categories of typeID, or all categories when
// typeID is empty, ordered by name.
func (b *Backend) ListCategories(ctx context.Context, typeID string) ([]types.Category, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	builder := sq.Select("id", "type_id", "name").From("categories")
	if typeID != "" {
		builder = builder.Where(sq.Eq{"type_id": typeID})
	}
	query, args, err := builder.OrderBy("name ASC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building category query: %w", err)
	}

	rows, err := b.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "listing categories")
	}
	defer rows.Close()

	out := []types.Category{}
	for rows.Next() {
		var c types.Category
		if err := rows.Scan(&c.ID, &c.TypeID, &c.Name); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
