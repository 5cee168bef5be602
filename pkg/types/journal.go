package types

import (
	"context"
	"errors"
)

// CatalogRepository manages the taxonomy: types, categories, items, their
// quantifiers, and bundles.
type CatalogRepository interface {
	// GetOrCreateType returns the id of the type with the given name,
	// creating it when missing. Name matching is case-insensitive.
	GetOrCreateType(ctx context.Context, name string) (string, error)

	// EnsureType returns the id of the type named t.Name and whether this
	// call created it. A new type takes t.DisplayOrder and t.Color (blank
	// means the default color); an existing type is left unchanged.
	EnsureType(ctx context.Context, t Type) (id string, created bool, err error)

	// GetOrCreateCategory returns the id of the named category under typeID,
	// creating it when missing.
	GetOrCreateCategory(ctx context.Context, name, typeID string) (string, error)

	// GetOrCreateItem returns the id of the named item under categoryID and
	// whether this call created it.
	GetOrCreateItem(ctx context.Context, name, categoryID string) (id string, created bool, err error)

	// InsertCatalogItem runs the get-or-create chain for the item's type,
	// category and name, then adds any quantifiers the item does not have yet.
	InsertCatalogItem(ctx context.Context, in ItemInput) (string, error)

	// UpsertItem creates or updates an item in one transaction and replaces
	// its full quantifier set with in.Quantifiers.
	UpsertItem(ctx context.Context, in ItemInput) (string, error)

	// GetItemDetail returns the item with its taxonomy names and quantifiers.
	// Returns ErrNotFound if the item does not exist.
	GetItemDetail(ctx context.Context, id string) (*ItemDetail, error)

	// GetAllCatalogItems lists items ordered by type display order, category
	// name, then item name.
	GetAllCatalogItems(ctx context.Context) ([]CatalogItem, error)

	// GetAllCatalogBundles lists bundles ordered by name, each with its
	// members in display order.
	GetAllCatalogBundles(ctx context.Context) ([]CatalogBundle, error)

	// UpsertBundle creates the bundle by name if needed and replaces its
	// members with in.Members.
	UpsertBundle(ctx context.Context, in BundleInput) (string, error)

	// ListTypes returns every type ordered by display order, then name.
	ListTypes(ctx context.Context) ([]Type, error)

	// ListCategories returns the categories of typeID, or every category when
	// typeID is empty, ordered by name.
	ListCategories(ctx context.Context, typeID string) ([]Category, error)
}

// LogRepository manages log entries together with their items and
// quantifier values.
type LogRepository interface {
	// CreateLogEntry writes the entry, its items and values atomically and
	// returns the new entry id.
	CreateLogEntry(ctx context.Context, in LogEntryInput) (string, error)

	// UpdateLogEntry replaces the entry row, its items and values atomically.
	// Returns ErrNotFound if the entry does not exist.
	UpdateLogEntry(ctx context.Context, id string, in LogEntryInput) error

	// DeleteLogEntry removes the entry and its dependent rows.
	// Returns ErrNotFound if the entry does not exist.
	DeleteLogEntry(ctx context.Context, id string) error

	// GetAllLogEntries returns entries matching filter, newest first.
	GetAllLogEntries(ctx context.Context, filter LogFilter) ([]LogEntry, error)

	// GetLogEntryByID returns one hydrated entry.
	// Returns ErrNotFound if the entry does not exist.
	GetLogEntryByID(ctx context.Context, id string) (*LogEntry, error)
}

// StatsRepository computes usage counts from the log history. Results are
// ordered by count descending, then name ascending.
type StatsRepository interface {
	GetTypeStats(ctx context.Context) ([]UsageStat, error)
	GetCategoryStats(ctx context.Context, typeID string) ([]UsageStat, error)
	GetItemStats(ctx context.Context, categoryID string) ([]UsageStat, error)
}

// Journal is the complete storage surface. Callers attach to a backend,
// use the repositories, and detach when done.
type Journal interface {
	CatalogRepository
	LogRepository
	StatsRepository

	// Attach opens the backend described by config. Returns
	// ErrAlreadyAttached if called while attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent. After Detach,
	// repository calls return ErrJournalDetached.
	Detach() error
}

// Journal lifecycle errors.
var (
	ErrJournalDetached = errors.New("journal is detached")
	ErrAlreadyAttached = errors.New("journal is already attached")
)
