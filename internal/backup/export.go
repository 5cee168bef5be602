package backup

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/healthlog/pkg/types"
)

// Export reads the whole journal into a snapshot. Every reference is
// written by name.
func (e *Engine) Export(ctx context.Context) (*BackupData, error) {
	var (
		typeList   []types.Type
		categories []types.Category
		items      []types.CatalogItem
		bundles    []types.CatalogBundle
		entries    []types.LogEntry
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		typeList, err = e.repo.ListTypes(gctx)
		if err != nil {
			return fmt.Errorf("list types: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		categories, err = e.repo.ListCategories(gctx, "")
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		items, err = e.repo.GetAllCatalogItems(gctx)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		bundles, err = e.repo.GetAllCatalogBundles(gctx)
		if err != nil {
			return fmt.Errorf("list bundles: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		entries, err = e.repo.GetAllLogEntries(gctx, types.LogFilter{})
		if err != nil {
			return fmt.Errorf("list log entries: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	details, err := e.itemDetails(ctx, items)
	if err != nil {
		return nil, err
	}

	data := &BackupData{
		Version:       BackupVersion,
		ExportedAtUTC: types.FormatTimestamp(e.now()),
		Settings:      map[string]any{},
		Catalog: Catalog{
			Types:      make([]Type, 0, len(typeList)),
			Categories: make([]Category, 0, len(categories)),
			Items:      make([]Item, 0, len(items)),
			Bundles:    make([]Bundle, 0, len(bundles)),
		},
		Logs: make([]Log, 0, len(entries)),
	}

	typeNames := make(map[string]string, len(typeList))
	for _, t := range typeList {
		typeNames[t.ID] = t.Name
		data.Catalog.Types = append(data.Catalog.Types, Type{Name: t.Name, DisplayOrder: t.DisplayOrder, Color: t.Color})
	}
	for _, c := range categories {
		data.Catalog.Categories = append(data.Catalog.Categories, Category{TypeName: typeNames[c.TypeID], Name: c.Name})
	}

	for i, it := range items {
		out := Item{
			TypeName:     it.TypeName,
			CategoryName: it.CategoryName,
			Name:         it.Name,
			Description:  it.Description,
		}
		for _, q := range details[i].Quantifiers {
			out.Quantifiers = append(out.Quantifiers, Quantifier{
				Name: q.Name, MinValue: q.MinValue, MaxValue: q.MaxValue, Units: q.Units,
			})
		}
		data.Catalog.Items = append(data.Catalog.Items, out)
	}

	for _, b := range bundles {
		out := Bundle{TypeName: b.TypeName, Name: b.Name, Items: make([]BundleMember, 0, len(b.Members))}
		for _, m := range b.Members {
			if m.MemberBundleID != "" {
				out.Items = append(out.Items, BundleMember{Bundle: m.MemberBundleName})
				continue
			}
			out.Items = append(out.Items, BundleMember{Name: m.ItemName, CategoryName: m.CategoryName})
		}
		data.Catalog.Bundles = append(data.Catalog.Bundles, out)
	}

	for _, entry := range entries {
		out := Log{
			TimestampUTC: types.FormatTimestamp(entry.Timestamp),
			TypeName:     entry.TypeName,
			Comment:      entry.Comment,
			Items:        make([]LogItem, 0, len(entry.Items)),
		}
		for _, it := range entry.Items {
			li := LogItem{Name: it.ItemName, CategoryName: it.CategoryName, BundleName: it.SourceBundleName}
			for _, q := range it.Quantifiers {
				li.Quantifiers = append(li.Quantifiers, QuantifierValue{Name: q.Name, Value: q.Value})
			}
			out.Items = append(out.Items, li)
		}
		data.Logs = append(data.Logs, out)
	}

	e.logger.Debug("backup exported",
		"items", len(data.Catalog.Items),
		"bundles", len(data.Catalog.Bundles),
		"logs", len(data.Logs))
	return data, nil
}

// itemDetails loads the quantifiers of every item, in the order of items.
func (e *Engine) itemDetails(ctx context.Context, items []types.CatalogItem) ([]*types.ItemDetail, error) {
	details := make([]*types.ItemDetail, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.detailLimit)
	for i, it := range items {
		g.Go(func() error {
			d, err := e.repo.GetItemDetail(gctx, it.ID)
			if err != nil {
				return fmt.Errorf("get item %q: %w", it.Name, err)
			}
			details[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return details, nil
}
