package fixture

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mesh-intelligence/healthlog/internal/seed"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

func (b *Backend) findType(name string) *types.Type {
	for _, t := range b.types {
		if sameName(t.Name, name) {
			return t
		}
	}
	return nil
}

func (b *Backend) findCategory(typeID, name string) *types.Category {
	for _, c := range b.categories {
		if c.TypeID == typeID && sameName(c.Name, name) {
			return c
		}
	}
	return nil
}

func (b *Backend) findItem(categoryID, name string) *types.Item {
	for _, it := range b.items {
		if it.CategoryID == categoryID && sameName(it.Name, name) {
			return it
		}
	}
	return nil
}

func (b *Backend) itemQuantifiers(itemID string) []*types.ItemQuantifier {
	var out []*types.ItemQuantifier
	for _, q := range b.quantifiers {
		if q.ItemID == itemID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return lessName(out[i].Name, out[j].Name) })
	return out
}

// GetOrCreateType returns the id of the type named name, creating it when
// missing.
func (b *Backend) GetOrCreateType(_ context.Context, name string) (string, error) {
	release, err := b.write()
	if err != nil {
		return "", err
	}
	defer release()
	return b.getOrCreateType(name)
}

func (b *Backend) getOrCreateType(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", types.ErrInvalidName
	}
	if t := b.findType(name); t != nil {
		return t.ID, nil
	}
	order := 0
	for _, t := range b.types {
		if t.DisplayOrder+1 > order {
			order = t.DisplayOrder + 1
		}
	}
	t := &types.Type{ID: newID(), Name: name, DisplayOrder: order, Color: seed.DefaultColor}
	b.types[t.ID] = t
	return t.ID, nil
}

// EnsureType returns the id of the type named t.Name, creating it with t's
// display order and color when missing.
func (b *Backend) EnsureType(_ context.Context, t types.Type) (string, bool, error) {
	release, err := b.write()
	if err != nil {
		return "", false, err
	}
	defer release()

	name := strings.TrimSpace(t.Name)
	if name == "" {
		return "", false, types.ErrInvalidName
	}
	if existing := b.findType(name); existing != nil {
		return existing.ID, false, nil
	}
	color := strings.TrimSpace(t.Color)
	if color == "" {
		color = seed.DefaultColor
	}
	nt := &types.Type{ID: newID(), Name: name, DisplayOrder: t.DisplayOrder, Color: color}
	b.types[nt.ID] = nt
	return nt.ID, true, nil
}

// GetOrCreateCategory returns the id of the category named name under
// typeID, creating it when missing.
func (b *Backend) GetOrCreateCategory(_ context.Context, name, typeID string) (string, error) {
	release, err := b.write()
	if err != nil {
		return "", err
	}
	defer release()
	return b.getOrCreateCategory(name, typeID)
}

func (b *Backend) getOrCreateCategory(name, typeID string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", types.ErrInvalidName
	}
	if typeID == "" {
		return "", types.ErrInvalidID
	}
	if _, ok := b.types[typeID]; !ok {
		return "", fmt.Errorf("type %s: %w", typeID, types.ErrNotFound)
	}
	if c := b.findCategory(typeID, name); c != nil {
		return c.ID, nil
	}
	c := &types.Category{ID: newID(), TypeID: typeID, Name: name}
	b.categories[c.ID] = c
	return c.ID, nil
}

// GetOrCreateItem returns the id of the item named name under categoryID and
// whether it was created.
func (b *Backend) GetOrCreateItem(_ context.Context, name, categoryID string) (string, bool, error) {
	release, err := b.write()
	if err != nil {
		return "", false, err
	}
	defer release()
	return b.getOrCreateItem(name, categoryID)
}

func (b *Backend) getOrCreateItem(name, categoryID string) (string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, types.ErrInvalidName
	}
	if categoryID == "" {
		return "", false, types.ErrInvalidID
	}
	if _, ok := b.categories[categoryID]; !ok {
		return "", false, fmt.Errorf("category %s: %w", categoryID, types.ErrNotFound)
	}
	if it := b.findItem(categoryID, name); it != nil {
		return it.ID, false, nil
	}
	it := &types.Item{ID: newID(), CategoryID: categoryID, Name: name}
	b.items[it.ID] = it
	return it.ID, true, nil
}

// InsertCatalogItem resolves or creates the item's taxonomy and adds the
// quantifiers it does not already define.
func (b *Backend) InsertCatalogItem(_ context.Context, in types.ItemInput) (id string, err error) {
	release, err := b.write()
	if err != nil {
		return "", err
	}
	defer release()

	if err := in.Validate(); err != nil {
		return "", err
	}
	defer func(start time.Time) { b.metrics.ObserveWrite("insert_catalog_item", start, err) }(time.Now())

	// Validation guarantees every get-or-create below succeeds.
	typeID, _ := b.getOrCreateType(in.TypeName)
	categoryID, _ := b.getOrCreateCategory(in.CategoryName, typeID)
	itemID, created, _ := b.getOrCreateItem(in.Name, categoryID)
	if created {
		b.items[itemID].Description = in.Description
	}

	existing := b.itemQuantifiers(itemID)
	for _, qi := range in.Quantifiers {
		name := strings.TrimSpace(qi.Name)
		found := false
		for _, eq := range existing {
			if sameName(eq.Name, name) {
				found = true
				break
			}
		}
		if found {
			continue
		}
		q := &types.ItemQuantifier{
			ID: newID(), ItemID: itemID, Name: name,
			MinValue: copyFloat(qi.MinValue), MaxValue: copyFloat(qi.MaxValue), Units: qi.Units,
		}
		b.quantifiers[q.ID] = q
		existing = append(existing, q)
	}
	return itemID, nil
}

// UpsertItem creates or updates an item and replaces its quantifiers. All
// conflicts are checked before anything is written.
func (b *Backend) UpsertItem(_ context.Context, in types.ItemInput) (id string, err error) {
	release, err := b.write()
	if err != nil {
		return "", err
	}
	defer release()

	if err := in.Validate(); err != nil {
		return "", err
	}
	defer func(start time.Time) { b.metrics.ObserveWrite("upsert_item", start, err) }(time.Now())

	name := strings.TrimSpace(in.Name)

	var category *types.Category
	if t := b.findType(strings.TrimSpace(in.TypeName)); t != nil {
		category = b.findCategory(t.ID, strings.TrimSpace(in.CategoryName))
	}
	itemID := in.ID
	if category != nil {
		if other := b.findItem(category.ID, name); other != nil {
			switch {
			case itemID == "":
				itemID = other.ID
			case other.ID != itemID:
				return "", fmt.Errorf("item %s: %w", name, types.ErrDuplicateName)
			}
		}
	}
	if itemID == "" {
		itemID = newID()
	}

	typeID, _ := b.getOrCreateType(in.TypeName)
	categoryID, _ := b.getOrCreateCategory(in.CategoryName, typeID)
	b.items[itemID] = &types.Item{ID: itemID, CategoryID: categoryID, Name: name, Description: in.Description}

	existing := b.itemQuantifiers(itemID)
	keep := map[string]bool{}
	for _, d := range in.Quantifiers {
		dn := strings.TrimSpace(d.Name)
		var match *types.ItemQuantifier
		for _, eq := range existing {
			if sameName(eq.Name, dn) {
				match = eq
				break
			}
		}
		if match == nil {
			match = &types.ItemQuantifier{ID: newID(), ItemID: itemID}
			b.quantifiers[match.ID] = match
		}
		match.Name = dn
		match.MinValue = copyFloat(d.MinValue)
		match.MaxValue = copyFloat(d.MaxValue)
		match.Units = d.Units
		keep[match.ID] = true
	}
	for _, eq := range existing {
		if !keep[eq.ID] {
			b.deleteQuantifier(eq.ID)
		}
	}
	return itemID, nil
}

// deleteQuantifier removes a definition and the values recorded for it.
func (b *Backend) deleteQuantifier(id string) {
	delete(b.quantifiers, id)
	for _, e := range b.entries {
		for i := range e.items {
			vals := e.items[i].values[:0]
			for _, v := range e.items[i].values {
				if v.QuantifierID != id {
					vals = append(vals, v)
				}
			}
			e.items[i].values = vals
		}
	}
}

func (b *Backend) catalogItem(it *types.Item) types.CatalogItem {
	c := b.categories[it.CategoryID]
	t := b.types[c.TypeID]
	return types.CatalogItem{
		ID: it.ID, Name: it.Name, Description: it.Description,
		CategoryID: c.ID, CategoryName: c.Name,
		TypeID: t.ID, TypeName: t.Name, TypeDisplayOrder: t.DisplayOrder,
	}
}

// GetItemDetail returns the item with its taxonomy names and quantifiers.
func (b *Backend) GetItemDetail(_ context.Context, id string) (*types.ItemDetail, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	release, err := b.read()
	if err != nil {
		return nil, err
	}
	defer release()

	it, ok := b.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, types.ErrNotFound)
	}
	d := &types.ItemDetail{CatalogItem: b.catalogItem(it), Quantifiers: []types.ItemQuantifier{}}
	for _, q := range b.itemQuantifiers(id) {
		cp := *q
		cp.MinValue, cp.MaxValue = copyFloat(q.MinValue), copyFloat(q.MaxValue)
		d.Quantifiers = append(d.Quantifiers, cp)
	}
	return d, nil
}

// GetAllCatalogItems lists items ordered by type display order, category
// name, then item name.
func (b *Backend) GetAllCatalogItems(_ context.Context) ([]types.CatalogItem, error) {
	release, err := b.read()
	if err != nil {
		return nil, err
	}
	defer release()

	out := make([]types.CatalogItem, 0, len(b.items))
	for _, it := range b.items {
		out = append(out, b.catalogItem(it))
	}
	sort.Slice(out, func(i, j int) bool {
		a, c := out[i], out[j]
		if a.TypeDisplayOrder != c.TypeDisplayOrder {
			return a.TypeDisplayOrder < c.TypeDisplayOrder
		}
		if !sameName(a.CategoryName, c.CategoryName) {
			return lessName(a.CategoryName, c.CategoryName)
		}
		if !sameName(a.Name, c.Name) {
			return lessName(a.Name, c.Name)
		}
		return a.ID < c.ID
	})
	return out, nil
}

// ListTypes returns every type ordered by display order, then name.
func (b *Backend) ListTypes(_ context.Context) ([]types.Type, error) {
	release, err := b.read()
	if err != nil {
		return nil, err
	}
	defer release()

	out := make([]types.Type, 0, len(b.types))
	for _, t := range b.types {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ListCategories returns the categories of typeID, or all when typeID is
// empty, ordered by name.
func (b *Backend) ListCategories(_ context.Context, typeID string) ([]types.Category, error) {
	release, err := b.read()
	if err != nil {
		return nil, err
	}
	defer release()

	out := []types.Category{}
	for _, c := range b.categories {
		if typeID == "" || c.TypeID == typeID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !sameName(out[i].Name, out[j].Name) {
			return lessName(out[i].Name, out[j].Name)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpsertBundle creates the bundle by name when missing and replaces its
// members.
func (b *Backend) UpsertBundle(_ context.Context, in types.BundleInput) (id string, err error) {
	release, err := b.write()
	if err != nil {
		return "", err
	}
	defer release()

	if err := in.Validate(); err != nil {
		return "", err
	}
	defer func(start time.Time) { b.metrics.ObserveWrite("upsert_bundle", start, err) }(time.Now())

	name := strings.TrimSpace(in.Name)
	if in.TypeID != "" {
		if _, ok := b.types[in.TypeID]; !ok {
			return "", fmt.Errorf("type %s: %w", in.TypeID, types.ErrNotFound)
		}
	}

	var bundle *types.Bundle
	for _, bu := range b.bundles {
		if sameName(bu.Name, name) {
			bundle = bu
			break
		}
	}
	bundleID := newID()
	if bundle != nil {
		bundleID = bundle.ID
	}

	members := make([]types.BundleMember, 0, len(in.Members))
	for i, m := range in.Members {
		if m.ItemID != "" {
			if _, ok := b.items[m.ItemID]; !ok {
				return "", fmt.Errorf("bundle member item %s: %w", m.ItemID, types.ErrNotFound)
			}
		}
		if m.BundleID != "" {
			if m.BundleID == bundleID {
				return "", fmt.Errorf("bundle %s cannot contain itself: %w", name, types.ErrInvalidBundleMember)
			}
			if _, ok := b.bundles[m.BundleID]; !ok {
				return "", fmt.Errorf("bundle member bundle %s: %w", m.BundleID, types.ErrNotFound)
			}
		}
		members = append(members, types.BundleMember{
			ID: newID(), BundleID: bundleID, ItemID: m.ItemID, MemberBundleID: m.BundleID, DisplayOrder: i,
		})
	}

	b.bundles[bundleID] = &types.Bundle{ID: bundleID, Name: name, TypeID: in.TypeID}
	b.members[bundleID] = members
	return bundleID, nil
}

// GetAllCatalogBundles lists bundles ordered by name with their members.
func (b *Backend) GetAllCatalogBundles(_ context.Context) ([]types.CatalogBundle, error) {
	release, err := b.read()
	if err != nil {
		return nil, err
	}
	defer release()

	out := make([]types.CatalogBundle, 0, len(b.bundles))
	for _, bu := range b.bundles {
		cb := types.CatalogBundle{ID: bu.ID, Name: bu.Name, TypeID: bu.TypeID, Members: []types.CatalogBundleMember{}}
		if t, ok := b.types[bu.TypeID]; ok {
			cb.TypeName = t.Name
		}
		for _, m := range b.members[bu.ID] {
			cm := types.CatalogBundleMember{ItemID: m.ItemID, MemberBundleID: m.MemberBundleID, DisplayOrder: m.DisplayOrder}
			if it, ok := b.items[m.ItemID]; ok {
				cm.ItemName = it.Name
				cm.CategoryID = it.CategoryID
				cm.CategoryName = b.categories[it.CategoryID].Name
			}
			if mb, ok := b.bundles[m.MemberBundleID]; ok {
				cm.MemberBundleName = mb.Name
			}
			cb.Members = append(cb.Members, cm)
		}
		out = append(out, cb)
	}
	sort.Slice(out, func(i, j int) bool {
		if !sameName(out[i].Name, out[j].Name) {
			return lessName(out[i].Name, out[j].Name)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
