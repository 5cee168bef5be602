// Package sqlite implements the healthlog Journal on an embedded SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// currentSchemaVersion is written to PRAGMA user_version after the schema
// and migrations are applied.
//
//	1 - initial schema
const currentSchemaVersion = 1

// Schema DDL for all tables. Name columns use NOCASE collation so the
// uniqueness constraints agree with the case-insensitive lookups done by
// get-or-create and by backup import.
const (
	createTypes = `CREATE TABLE IF NOT EXISTS types (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL COLLATE NOCASE UNIQUE,
    display_order INTEGER NOT NULL DEFAULT 0,
    color TEXT NOT NULL DEFAULT ''
);`

	createCategories = `CREATE TABLE IF NOT EXISTS categories (
    id TEXT PRIMARY KEY,
    type_id TEXT NOT NULL,
    name TEXT NOT NULL COLLATE NOCASE,
    UNIQUE (type_id, name),
    FOREIGN KEY (type_id) REFERENCES types(id)
);`

	createItems = `CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    category_id TEXT NOT NULL,
    name TEXT NOT NULL COLLATE NOCASE,
    description TEXT,
    UNIQUE (category_id, name),
    FOREIGN KEY (category_id) REFERENCES categories(id)
);`

	createItemQuantifiers = `CREATE TABLE IF NOT EXISTS item_quantifiers (
    id TEXT PRIMARY KEY,
    item_id TEXT NOT NULL,
    name TEXT NOT NULL COLLATE NOCASE,
    min_value REAL,
    max_value REAL,
    units TEXT,
    UNIQUE (item_id, name),
    UNIQUE (id, item_id),
    FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
);`

	createBundles = `CREATE TABLE IF NOT EXISTS bundles (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL COLLATE NOCASE UNIQUE,
    type_id TEXT,
    FOREIGN KEY (type_id) REFERENCES types(id)
);`

	createBundleMembers = `CREATE TABLE IF NOT EXISTS bundle_members (
    id TEXT PRIMARY KEY,
    bundle_id TEXT NOT NULL,
    item_id TEXT,
    member_bundle_id TEXT,
    display_order INTEGER NOT NULL DEFAULT 0,
    CHECK ((item_id IS NULL) <> (member_bundle_id IS NULL)),
    FOREIGN KEY (bundle_id) REFERENCES bundles(id) ON DELETE CASCADE,
    FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE,
    FOREIGN KEY (member_bundle_id) REFERENCES bundles(id) ON DELETE CASCADE
);`

	createLogEntries = `CREATE TABLE IF NOT EXISTS log_entries (
    id TEXT PRIMARY KEY,
    timestamp TEXT NOT NULL,
    type_id TEXT NOT NULL,
    comment TEXT,
    created_at TEXT NOT NULL,
    FOREIGN KEY (type_id) REFERENCES types(id)
);`

	createLogEntryItems = `CREATE TABLE IF NOT EXISTS log_entry_items (
    entry_id TEXT NOT NULL,
    item_id TEXT NOT NULL,
    source_bundle_id TEXT,
    PRIMARY KEY (entry_id, item_id),
    FOREIGN KEY (entry_id) REFERENCES log_entries(id) ON DELETE CASCADE,
    FOREIGN KEY (item_id) REFERENCES items(id),
    FOREIGN KEY (source_bundle_id) REFERENCES bundles(id) ON DELETE SET NULL
);`

	createLogEntryQuantifierValues = `CREATE TABLE IF NOT EXISTS log_entry_quantifier_values (
    entry_id TEXT NOT NULL,
    item_id TEXT NOT NULL,
    quantifier_id TEXT NOT NULL,
    value REAL NOT NULL,
    PRIMARY KEY (entry_id, item_id, quantifier_id),
    FOREIGN KEY (entry_id, item_id) REFERENCES log_entry_items(entry_id, item_id) ON DELETE CASCADE,
    FOREIGN KEY (quantifier_id, item_id) REFERENCES item_quantifiers(id, item_id) ON DELETE CASCADE
);`
)

// Index DDL for the listing and statistics queries.
const (
	idxCategoriesType         = `CREATE INDEX IF NOT EXISTS idx_categories_type ON categories(type_id);`
	idxItemsCategory          = `CREATE INDEX IF NOT EXISTS idx_items_category ON items(category_id);`
	idxItemQuantifiersItem    = `CREATE INDEX IF NOT EXISTS idx_item_quantifiers_item ON item_quantifiers(item_id);`
	idxBundleMembersBundle    = `CREATE INDEX IF NOT EXISTS idx_bundle_members_bundle ON bundle_members(bundle_id, display_order);`
	idxBundleMembersItem      = `CREATE INDEX IF NOT EXISTS idx_bundle_members_item ON bundle_members(item_id);`
	idxLogEntriesTimestamp    = `CREATE INDEX IF NOT EXISTS idx_log_entries_timestamp ON log_entries(timestamp DESC);`
	idxLogEntriesType         = `CREATE INDEX IF NOT EXISTS idx_log_entries_type ON log_entries(type_id);`
	idxLogEntryItemsItem      = `CREATE INDEX IF NOT EXISTS idx_log_entry_items_item ON log_entry_items(item_id);`
	idxLogEntryItemsBundle    = `CREATE INDEX IF NOT EXISTS idx_log_entry_items_bundle ON log_entry_items(source_bundle_id);`
	idxLogEntryValuesQuantity = `CREATE INDEX IF NOT EXISTS idx_log_entry_values_quantifier ON log_entry_quantifier_values(quantifier_id, item_id);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createTypes,
	createCategories,
	createItems,
	createItemQuantifiers,
	createBundles,
	createBundleMembers,
	createLogEntries,
	createLogEntryItems,
	createLogEntryQuantifierValues,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxCategoriesType,
	idxItemsCategory,
	idxItemQuantifiersItem,
	idxBundleMembersBundle,
	idxBundleMembersItem,
	idxLogEntriesTimestamp,
	idxLogEntriesType,
	idxLogEntryItemsItem,
	idxLogEntryItemsBundle,
	idxLogEntryValuesQuantity,
}

// applySchema creates missing tables and indexes, then runs migrations for
// databases written by older versions. Safe to call on every attach.
func applySchema(ctx context.Context, db *sql.DB) error {
	for _, ddl := range schemaDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return runMigrations(ctx, db)
}

// runMigrations applies incremental migrations based on user_version.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if version == currentSchemaVersion {
		return nil
	}

	// Version 0 databases are either new or predate version tracking; the
	// CREATE IF NOT EXISTS statements above already brought them to 1.

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("setting user_version: %w", err)
	}
	return nil
}
