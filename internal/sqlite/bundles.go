package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mesh-intelligence/healthlog/pkg/types"
)

// UpsertBundle creates the bundle named in.Name when missing, sets its type
// and replaces its members with in.Members in slice order.
func (b *Backend) UpsertBundle(ctx context.Context, in types.BundleInput) (id string, err error) {
	release, err := b.acquire()
	if err != nil {
		return "", err
	}
	defer release()

	if err := in.Validate(); err != nil {
		return "", err
	}

	defer func(start time.Time) { b.metrics.ObserveWrite("upsert_bundle", start, err) }(time.Now())

	name := strings.TrimSpace(in.Name)
	err = b.runInTx(ctx, func(ctx context.Context) error {
		q := b.q(ctx)

		var bundleID string
		err := q.QueryRowContext(ctx, "SELECT id FROM bundles WHERE name = ?", name).Scan(&bundleID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			bundleID = newID()
			if _, err := q.ExecContext(ctx,
				"INSERT INTO bundles (id, name, type_id) VALUES (?, ?, ?)",
				bundleID, name, nullString(in.TypeID),
			); err != nil {
				return mapError(err, "inserting bundle "+name)
			}
		case err != nil:
			return mapError(err, "looking up bundle "+name)
		default:
			if _, err := q.ExecContext(ctx,
				"UPDATE bundles SET name = ?, type_id = ? WHERE id = ?",
				name, nullString(in.TypeID), bundleID,
			); err != nil {
				return mapError(err, "updating bundle "+name)
			}
		}

		if _, err := q.ExecContext(ctx, "DELETE FROM bundle_members WHERE bundle_id = ?", bundleID); err != nil {
			return mapError(err, "clearing bundle members")
		}
		for i, m := range in.Members {
			if m.BundleID == bundleID {
				return fmt.Errorf("bundle %s cannot contain itself: %w", name, types.ErrInvalidBundleMember)
			}
			if _, err := q.ExecContext(ctx,
				"INSERT INTO bundle_members (id, bundle_id, item_id, member_bundle_id, display_order) VALUES (?, ?, ?, ?, ?)",
				newID(), bundleID, nullString(m.ItemID), nullString(m.BundleID), i,
			); err != nil {
				return mapError(err, fmt.Sprintf("inserting member %d of bundle %s", i, name))
			}
		}
		id = bundleID
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetAllCatalogBundles lists bundles ordered by name, each with its members
// in display order.
func (b *Backend) GetAllCatalogBundles(ctx context.Context) ([]types.CatalogBundle, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := b.q(ctx).QueryContext(ctx,
		`SELECT b.id, b.name, COALESCE(b.type_id, ''), COALESCE(t.name, '')
		 FROM bundles b
		 LEFT JOIN types t ON t.id = b.type_id
		 ORDER BY b.name ASC, b.id ASC`)
	if err != nil {
		return nil, mapError(err, "listing bundles")
	}

	bundles := []types.CatalogBundle{}
	index := map[string]int{}
	for rows.Next() {
		cb := types.CatalogBundle{Members: []types.CatalogBundleMember{}}
		if err := rows.Scan(&cb.ID, &cb.Name, &cb.TypeID, &cb.TypeName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning bundle: %w", err)
		}
		index[cb.ID] = len(bundles)
		bundles = append(bundles, cb)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating bundles: %w", err)
	}
	rows.Close()

	if len(bundles) == 0 {
		return bundles, nil
	}

	query, args, err := sq.Select(
		"bm.bundle_id", "COALESCE(bm.item_id, '')", "COALESCE(i.name, '')",
		"COALESCE(c.id, '')", "COALESCE(c.name, '')",
		"COALESCE(bm.member_bundle_id, '')", "COALESCE(mb.name, '')", "bm.display_order",
	).
		From("bundle_members bm").
		LeftJoin("items i ON i.id = bm.item_id").
		LeftJoin("categories c ON c.id = i.category_id").
		LeftJoin("bundles mb ON mb.id = bm.member_bundle_id").
		OrderBy("bm.bundle_id", "bm.display_order ASC", "bm.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building bundle member query: %w", err)
	}

	mrows, err := b.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "listing bundle members")
	}
	defer mrows.Close()

	for mrows.Next() {
		var (
			bundleID string
			m        types.CatalogBundleMember
		)
		if err := mrows.Scan(&bundleID, &m.ItemID, &m.ItemName, &m.CategoryID, &m.CategoryName,
			&m.MemberBundleID, &m.MemberBundleName, &m.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scanning bundle member: %w", err)
		}
		if i, ok := index[bundleID]; ok {
			bundles[i].Members = append(bundles[i].Members, m)
		}
	}
	if err := mrows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bundle members: %w", err)
	}
	return bundles, nil
}
