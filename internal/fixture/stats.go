package fixture

import (
	"context"

	"github.com/mesh-intelligence/healthlog/internal/stats"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

// GetTypeStats returns the number of entries per type, including unused
// types.
func (b *Backend) GetTypeStats(_ context.Context) ([]types.UsageStat, error) {
	release, err := b.read()
	if err != nil {
		return nil, err
	}
	defer release()

	counts := map[string]int{}
	for _, e := range b.entries {
		counts[e.typeID]++
	}
	out := make([]types.UsageStat, 0, len(b.types))
	for _, t := range b.types {
		out = append(out, types.UsageStat{ID: t.ID, Name: t.Name, Count: counts[t.ID]})
	}
	stats.Sort(out)
	return out, nil
}

// GetCategoryStats counts, for each category of typeID, the distinct
// entries holding one of its items.
func (b *Backend) GetCategoryStats(_ context.Context, typeID string) ([]types.UsageStat, error) {
	release, err := b.read()
	if err != nil {
		return nil, err
	}
	defer release()

	counts := map[string]int{}
	for _, e := range b.entries {
		seen := map[string]bool{}
		for _, ei := range e.items {
			cat := b.items[ei.itemID].CategoryID
			if !seen[cat] {
				seen[cat] = true
				counts[cat]++
			}
		}
	}
	out := []types.UsageStat{}
	for _, c := range b.categories {
		if c.TypeID == typeID {
			out = append(out, types.UsageStat{ID: c.ID, Name: c.Name, Count: counts[c.ID]})
		}
	}
	stats.Sort(out)
	return out, nil
}

// GetItemStats counts usage of the items of categoryID and of the bundles
// with at least one item member in it.
func (b *Backend) GetItemStats(_ context.Context, categoryID string) ([]types.UsageStat, error) {
	release, err := b.read()
	if err != nil {
		return nil, err
	}
	defer release()

	itemCounts := map[string]int{}
	bundleCounts := map[string]int{}
	for _, e := range b.entries {
		seenBundle := map[string]bool{}
		for _, ei := range e.items {
			itemCounts[ei.itemID]++
			if ei.sourceBundleID != "" && !seenBundle[ei.sourceBundleID] {
				seenBundle[ei.sourceBundleID] = true
				bundleCounts[ei.sourceBundleID]++
			}
		}
	}

	out := []types.UsageStat{}
	for _, it := range b.items {
		if it.CategoryID == categoryID {
			out = append(out, types.UsageStat{ID: it.ID, Name: it.Name, Count: itemCounts[it.ID]})
		}
	}
	for _, bu := range b.bundles {
		for _, m := range b.members[bu.ID] {
			if it, ok := b.items[m.ItemID]; ok && it.CategoryID == categoryID {
				out = append(out, types.UsageStat{ID: bu.ID, Name: bu.Name, Count: bundleCounts[bu.ID], IsBundle: true})
				break
			}
		}
	}
	stats.Sort(out)
	return out, nil
}
