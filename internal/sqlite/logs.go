// This file implements the log repository: entries, their items and the
// quantifier values recorded for each item.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mesh-intelligence/healthlog/pkg/types"
)

// hydrateChunk bounds the number of entry ids bound into one IN clause.
const hydrateChunk = 500

// CreateLogEntry writes the entry, its items and their values in one
// transaction and returns the new entry id.
func (b *Backend) CreateLogEntry(ctx context.Context, in types.LogEntryInput) (id string, err error) {
	release, err := b.acquire()
	if err != nil {
		return "", err
	}
	defer release()

	if err := in.Validate(); err != nil {
		return "", err
	}

	defer func(start time.Time) { b.metrics.ObserveWrite("create_log_entry", start, err) }(time.Now())

	entryID := newID()
	err = b.runInTx(ctx, func(ctx context.Context) error {
		now := types.FormatTimestamp(time.Now())
		if _, err := b.q(ctx).ExecContext(ctx,
			"INSERT INTO log_entries (id, timestamp, type_id, comment, created_at) VALUES (?, ?, ?, ?, ?)",
			entryID, types.FormatTimestamp(in.Timestamp), in.TypeID, nullString(in.Comment), now,
		); err != nil {
			return mapError(err, "inserting log entry")
		}
		return b.writeEntryItems(ctx, entryID, in.Items)
	})
	if err != nil {
		return "", err
	}
	return entryID, nil
}

// UpdateLogEntry replaces the entry row, its items and their values in one
// transaction. The entry keeps its id and creation time.
func (b *Backend) UpdateLogEntry(ctx context.Context, id string, in types.LogEntryInput) (err error) {
	if id == "" {
		return types.ErrInvalidID
	}
	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := in.Validate(); err != nil {
		return err
	}

	defer func(start time.Time) { b.metrics.ObserveWrite("update_log_entry", start, err) }(time.Now())

	return b.runInTx(ctx, func(ctx context.Context) error {
		q := b.q(ctx)
		res, err := q.ExecContext(ctx,
			"UPDATE log_entries SET timestamp = ?, type_id = ?, comment = ? WHERE id = ?",
			types.FormatTimestamp(in.Timestamp), in.TypeID, nullString(in.Comment), id,
		)
		if err != nil {
			return mapError(err, "updating log entry "+id)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating log entry %s: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("log entry %s: %w", id, types.ErrNotFound)
		}

		// Values go with their items through the (entry_id, item_id) cascade.
		if _, err := q.ExecContext(ctx, "DELETE FROM log_entry_items WHERE entry_id = ?", id); err != nil {
			return mapError(err, "clearing log entry items")
		}
		return b.writeEntryItems(ctx, id, in.Items)
	})
}

// writeEntryItems inserts items and their values for entryID. An item id
// that repeats is written once, with the values of its first occurrence.
func (b *Backend) writeEntryItems(ctx context.Context, entryID string, items []types.LogItemInput) error {
	q := b.q(ctx)
	for _, it := range items {
		res, err := q.ExecContext(ctx,
			`INSERT INTO log_entry_items (entry_id, item_id, source_bundle_id) VALUES (?, ?, ?)
			 ON CONFLICT(entry_id, item_id) DO NOTHING`,
			entryID, it.ItemID, nullString(it.SourceBundleID),
		)
		if err != nil {
			return mapError(err, "inserting log entry item "+it.ItemID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("inserting log entry item %s: %w", it.ItemID, err)
		}
		if n == 0 {
			continue
		}
		for _, v := range it.Quantifiers {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO log_entry_quantifier_values (entry_id, item_id, quantifier_id, value) VALUES (?, ?, ?, ?)
				 ON CONFLICT(entry_id, item_id, quantifier_id) DO NOTHING`,
				entryID, it.ItemID, v.QuantifierID, v.Value,
			); err != nil {
				return mapError(err, "inserting quantifier value "+v.QuantifierID)
			}
		}
	}
	return nil
}

// DeleteLogEntry removes the entry; its items and values cascade.
func (b *Backend) DeleteLogEntry(ctx context.Context, id string) (err error) {
	if id == "" {
		return types.ErrInvalidID
	}
	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()

	defer func(start time.Time) { b.metrics.ObserveWrite("delete_log_entry", start, err) }(time.Now())

	res, err := b.q(ctx).ExecContext(ctx, "DELETE FROM log_entries WHERE id = ?", id)
	if err != nil {
		return mapError(err, "deleting log entry "+id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting log entry %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("log entry %s: %w", id, types.ErrNotFound)
	}
	return nil
}

// GetLogEntryByID returns the hydrated entry.
func (b *Backend) GetLogEntryByID(ctx context.Context, id string) (*types.LogEntry, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	entries, err := b.queryEntries(ctx, entrySelect().Where(sq.Eq{"e.id": id}))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("log entry %s: %w", id, types.ErrNotFound)
	}
	return &entries[0], nil
}

// GetAllLogEntries returns the entries matching filter, newest first.
func (b *Backend) GetAllLogEntries(ctx context.Context, filter types.LogFilter) ([]types.LogEntry, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	builder := entrySelect()
	if filter.TypeID != "" {
		builder = builder.Where(sq.Eq{"e.type_id": filter.TypeID})
	}
	if !filter.From.IsZero() {
		builder = builder.Where(sq.GtOrEq{"e.timestamp": types.FormatTimestamp(filter.From)})
	}
	if !filter.To.IsZero() {
		builder = builder.Where(sq.Lt{"e.timestamp": types.FormatTimestamp(filter.To)})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	return b.queryEntries(ctx, builder)
}

func entrySelect() sq.SelectBuilder {
	return sq.Select("e.id", "e.timestamp", "e.type_id", "t.name", "COALESCE(e.comment, '')", "e.created_at").
		From("log_entries e").
		Join("types t ON t.id = e.type_id").
		OrderBy("e.timestamp DESC", "e.created_at DESC", "e.id ASC")
}

// queryEntries runs an entry query, then loads items and values for the
// returned entries.
func (b *Backend) queryEntries(ctx context.Context, builder sq.SelectBuilder) ([]types.LogEntry, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building log entry query: %w", err)
	}

	rows, err := b.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "listing log entries")
	}
	entries := []types.LogEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating log entries: %w", err)
	}
	rows.Close()

	for start := 0; start < len(entries); start += hydrateChunk {
		end := min(start+hydrateChunk, len(entries))
		if err := b.hydrateEntries(ctx, entries[start:end]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func scanEntry(row rowScanner) (types.LogEntry, error) {
	var (
		e                  types.LogEntry
		timestamp, created string
	)
	if err := row.Scan(&e.ID, &timestamp, &e.TypeID, &e.TypeName, &e.Comment, &created); err != nil {
		return e, fmt.Errorf("scanning log entry: %w", err)
	}
	var err error
	if e.Timestamp, err = types.ParseTimestamp(timestamp); err != nil {
		return e, fmt.Errorf("log entry %s timestamp %q: %w", e.ID, timestamp, err)
	}
	if e.CreatedAt, err = types.ParseTimestamp(created); err != nil {
		return e, fmt.Errorf("log entry %s created_at %q: %w", e.ID, created, err)
	}
	e.Items = []types.LogEntryItem{}
	return e, nil
}

// hydrateEntries fills Items for each entry in place. Items keep insertion
// order; values are ordered by quantifier name.
func (b *Backend) hydrateEntries(ctx context.Context, entries []types.LogEntry) error {
	ids := make([]string, len(entries))
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		index[e.ID] = i
	}

	query, args, err := sq.Select(
		"lei.entry_id", "lei.item_id", "i.name", "c.id", "c.name",
		"COALESCE(lei.source_bundle_id, '')", "COALESCE(bu.name, '')",
	).
		From("log_entry_items lei").
		Join("items i ON i.id = lei.item_id").
		Join("categories c ON c.id = i.category_id").
		LeftJoin("bundles bu ON bu.id = lei.source_bundle_id").
		Where(sq.Eq{"lei.entry_id": ids}).
		OrderBy("lei.rowid ASC").
		ToSql()
	if err != nil {
		return fmt.Errorf("building log entry item query: %w", err)
	}

	rows, err := b.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return mapError(err, "loading log entry items")
	}
	// itemPos locates an item inside its entry for attaching values.
	itemPos := map[[2]string]int{}
	for rows.Next() {
		var (
			entryID string
			it      types.LogEntryItem
		)
		if err := rows.Scan(&entryID, &it.ItemID, &it.ItemName, &it.CategoryID, &it.CategoryName,
			&it.SourceBundleID, &it.SourceBundleName); err != nil {
			rows.Close()
			return fmt.Errorf("scanning log entry item: %w", err)
		}
		i := index[entryID]
		itemPos[[2]string{entryID, it.ItemID}] = len(entries[i].Items)
		entries[i].Items = append(entries[i].Items, it)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterating log entry items: %w", err)
	}
	rows.Close()

	if len(itemPos) == 0 {
		return nil
	}

	query, args, err = sq.Select(
		"v.entry_id", "v.item_id", "v.quantifier_id", "q.name", "v.value",
		"q.min_value", "q.max_value", "COALESCE(q.units, '')",
	).
		From("log_entry_quantifier_values v").
		Join("item_quantifiers q ON q.id = v.quantifier_id").
		Where(sq.Eq{"v.entry_id": ids}).
		OrderBy("q.name ASC").
		ToSql()
	if err != nil {
		return fmt.Errorf("building quantifier value query: %w", err)
	}

	vrows, err := b.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return mapError(err, "loading quantifier values")
	}
	defer vrows.Close()

	for vrows.Next() {
		var (
			entryID, itemID string
			v               types.LogEntryQuantifierValue
			minV, maxV      sql.NullFloat64
		)
		if err := vrows.Scan(&entryID, &itemID, &v.QuantifierID, &v.Name, &v.Value, &minV, &maxV, &v.Units); err != nil {
			return fmt.Errorf("scanning quantifier value: %w", err)
		}
		v.MinValue = floatPtr(minV)
		v.MaxValue = floatPtr(maxV)
		pos, ok := itemPos[[2]string{entryID, itemID}]
		if !ok {
			continue
		}
		it := &entries[index[entryID]].Items[pos]
		it.Quantifiers = append(it.Quantifiers, v)
	}
	return vrows.Err()
}
