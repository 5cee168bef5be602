package fixture

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mesh-intelligence/healthlog/pkg/types"
)

// buildItems checks every reference in items and returns the rows to store.
// Repeated item ids keep their first occurrence.
func (b *Backend) buildItems(in []types.LogItemInput) ([]entryItem, error) {
	out := make([]entryItem, 0, len(in))
	seen := map[string]bool{}
	for _, it := range in {
		if _, ok := b.items[it.ItemID]; !ok {
			return nil, fmt.Errorf("log entry item %s: %w", it.ItemID, types.ErrNotFound)
		}
		if seen[it.ItemID] {
			continue
		}
		seen[it.ItemID] = true
		if it.SourceBundleID != "" {
			if _, ok := b.bundles[it.SourceBundleID]; !ok {
				return nil, fmt.Errorf("source bundle %s: %w", it.SourceBundleID, types.ErrNotFound)
			}
		}

		ei := entryItem{itemID: it.ItemID, sourceBundleID: it.SourceBundleID}
		seenQ := map[string]bool{}
		for _, v := range it.Quantifiers {
			q, ok := b.quantifiers[v.QuantifierID]
			if !ok || q.ItemID != it.ItemID {
				return nil, fmt.Errorf("quantifier %s of item %s: %w", v.QuantifierID, it.ItemID, types.ErrNotFound)
			}
			if seenQ[v.QuantifierID] {
				continue
			}
			seenQ[v.QuantifierID] = true
			ei.values = append(ei.values, v)
		}
		out = append(out, ei)
	}
	return out, nil
}

// CreateLogEntry stores a new entry after checking all of its references.
func (b *Backend) CreateLogEntry(_ context.Context, in types.LogEntryInput) (id string, err error) {
	release, err := b.write()
	if err != nil {
		return "", err
	}
	defer release()

	if err := in.Validate(); err != nil {
		return "", err
	}
	defer func(start time.Time) { b.metrics.ObserveWrite("create_log_entry", start, err) }(time.Now())

	if _, ok := b.types[in.TypeID]; !ok {
		return "", fmt.Errorf("type %s: %w", in.TypeID, types.ErrNotFound)
	}
	items, err := b.buildItems(in.Items)
	if err != nil {
		return "", err
	}
	e := &entry{
		id:        newID(),
		timestamp: in.Timestamp.UTC().Truncate(time.Millisecond),
		typeID:    in.TypeID,
		comment:   in.Comment,
		createdAt: b.stamp(),
		items:     items,
	}
	b.entries[e.id] = e
	return e.id, nil
}

// UpdateLogEntry replaces the entry's content, keeping its id and creation
// time.
func (b *Backend) UpdateLogEntry(_ context.Context, id string, in types.LogEntryInput) (err error) {
	if id == "" {
		return types.ErrInvalidID
	}
	release, err := b.write()
	if err != nil {
		return err
	}
	defer release()

	if err := in.Validate(); err != nil {
		return err
	}
	defer func(start time.Time) { b.metrics.ObserveWrite("update_log_entry", start, err) }(time.Now())

	e, ok := b.entries[id]
	if !ok {
		return fmt.Errorf("log entry %s: %w", id, types.ErrNotFound)
	}
	if _, ok := b.types[in.TypeID]; !ok {
		return fmt.Errorf("type %s: %w", in.TypeID, types.ErrNotFound)
	}
	items, err := b.buildItems(in.Items)
	if err != nil {
		return err
	}
	e.timestamp = in.Timestamp.UTC().Truncate(time.Millisecond)
	e.typeID = in.TypeID
	e.comment = in.Comment
	e.items = items
	return nil
}

// DeleteLogEntry removes the entry.
func (b *Backend) DeleteLogEntry(_ context.Context, id string) (err error) {
	if id == "" {
		return types.ErrInvalidID
	}
	release, err := b.write()
	if err != nil {
		return err
	}
	defer release()
	defer func(start time.Time) { b.metrics.ObserveWrite("delete_log_entry", start, err) }(time.Now())

	if _, ok := b.entries[id]; !ok {
		return fmt.Errorf("log entry %s: %w", id, types.ErrNotFound)
	}
	delete(b.entries, id)
	return nil
}

// GetLogEntryByID returns the hydrated entry.
func (b *Backend) GetLogEntryByID(_ context.Context, id string) (*types.LogEntry, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	release, err := b.read()
	if err != nil {
		return nil, err
	}
	defer release()

	e, ok := b.entries[id]
	if !ok {
		return nil, fmt.Errorf("log entry %s: %w", id, types.ErrNotFound)
	}
	out := b.hydrate(e)
	return &out, nil
}

// GetAllLogEntries returns the entries matching filter, newest first.
func (b *Backend) GetAllLogEntries(_ context.Context, filter types.LogFilter) ([]types.LogEntry, error) {
	release, err := b.read()
	if err != nil {
		return nil, err
	}
	defer release()

	matched := make([]*entry, 0, len(b.entries))
	for _, e := range b.entries {
		if filter.TypeID != "" && e.typeID != filter.TypeID {
			continue
		}
		if !filter.From.IsZero() && e.timestamp.Before(filter.From.UTC().Truncate(time.Millisecond)) {
			continue
		}
		if !filter.To.IsZero() && !e.timestamp.Before(filter.To.UTC().Truncate(time.Millisecond)) {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, c := matched[i], matched[j]
		if !a.timestamp.Equal(c.timestamp) {
			return a.timestamp.After(c.timestamp)
		}
		if !a.createdAt.Equal(c.createdAt) {
			return a.createdAt.After(c.createdAt)
		}
		return a.id < c.id
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]types.LogEntry, 0, len(matched))
	for _, e := range matched {
		out = append(out, b.hydrate(e))
	}
	return out, nil
}

func (b *Backend) hydrate(e *entry) types.LogEntry {
	out := types.LogEntry{
		ID:        e.id,
		Timestamp: e.timestamp,
		TypeID:    e.typeID,
		TypeName:  b.types[e.typeID].Name,
		Comment:   e.comment,
		CreatedAt: e.createdAt,
		Items:     make([]types.LogEntryItem, 0, len(e.items)),
	}
	for _, ei := range e.items {
		it := b.items[ei.itemID]
		li := types.LogEntryItem{
			ItemID:       it.ID,
			ItemName:     it.Name,
			CategoryID:   it.CategoryID,
			CategoryName: b.categories[it.CategoryID].Name,
		}
		if bu, ok := b.bundles[ei.sourceBundleID]; ok {
			li.SourceBundleID = bu.ID
			li.SourceBundleName = bu.Name
		}
		for _, v := range ei.values {
			q, ok := b.quantifiers[v.QuantifierID]
			if !ok {
				continue
			}
			li.Quantifiers = append(li.Quantifiers, types.LogEntryQuantifierValue{
				QuantifierID: q.ID,
				Name:         q.Name,
				Value:        v.Value,
				MinValue:     copyFloat(q.MinValue),
				MaxValue:     copyFloat(q.MaxValue),
				Units:        q.Units,
			})
		}
		sort.Slice(li.Quantifiers, func(i, j int) bool {
			return lessName(li.Quantifiers[i].Name, li.Quantifiers[j].Name)
		})
		out.Items = append(out.Items, li)
	}
	return out
}
