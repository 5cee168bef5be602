// This file implements first-run seeding of the default taxonomy.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/healthlog/internal/seed"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

// seedDefaults inserts the default types, categories and welcome entry when
// the types table is empty. All rows are written in one transaction, so an
// interrupted seed leaves the table empty and is retried on the next attach.
// Reports whether seeding ran.
func seedDefaults(ctx context.Context, db *sql.DB) (bool, error) {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM types").Scan(&count); err != nil {
		return false, fmt.Errorf("counting types: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	now := types.FormatTimestamp(time.Now())

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	for order, st := range seed.Types {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO types (id, name, display_order, color) VALUES (?, ?, ?, ?)",
			st.ID, st.Name, order, st.Color,
		)
		if err != nil {
			return false, fmt.Errorf("seeding type %s: %w", st.Name, err)
		}
		for _, sc := range st.Categories {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO categories (id, type_id, name) VALUES (?, ?, ?)",
				sc.ID, st.ID, sc.Name,
			)
			if err != nil {
				return false, fmt.Errorf("seeding category %s for %s: %w", sc.Name, st.Name, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO items (id, category_id, name) VALUES (?, ?, ?)",
		seed.WelcomeItemID, seed.WelcomeCategoryID, seed.WelcomeItemName,
	); err != nil {
		return false, fmt.Errorf("seeding welcome item: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO log_entries (id, timestamp, type_id, comment, created_at) VALUES (?, ?, ?, ?, ?)",
		seed.WelcomeEntryID, now, seed.TypeCondition, seed.WelcomeComment, now,
	); err != nil {
		return false, fmt.Errorf("seeding welcome entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO log_entry_items (entry_id, item_id) VALUES (?, ?)",
		seed.WelcomeEntryID, seed.WelcomeItemID,
	); err != nil {
		return false, fmt.Errorf("seeding welcome entry item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing seed transaction: %w", err)
	}
	return true, nil
}
