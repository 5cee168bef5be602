package composer

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/mesh-intelligence/healthlog/pkg/types"
)

// Source is what a Composer reads: usage statistics and the bundle catalog.
type Source interface {
	types.StatsRepository
	GetAllCatalogBundles(ctx context.Context) ([]types.CatalogBundle, error)
}

const (
	keyTypeStats = "types"
	keyBundles   = "bundles"
)

// Composer drives the selection cascade for one entry. Stats reads are
// cached for the composer's lifetime. Not safe for concurrent use.
type Composer struct {
	src     Source
	cache   *cache.Cache
	mode    Mode
	entryID string
	sel     Selection
	// values holds quantifier values per item id.
	values map[string][]types.QuantifierValueInput
	// recorded maps a bundle id to the item ids a loaded entry holds from
	// it, in entry order. Build writes these instead of the bundle's current
	// members until the bundle is toggled.
	recorded map[string][]string
	now      func() time.Time
}

// Option configures a Composer.
type Option func(*Composer)

// WithClock sets the time source for new and cloned timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Composer) { c.now = now }
}

func newComposer(src Source, mode Mode, opts []Option) *Composer {
	c := &Composer{
		src:  src,
		mode: mode,
		// A zero cleanup interval starts no janitor goroutine.
		cache:    cache.New(cache.NoExpiration, 0),
		values:   map[string][]types.QuantifierValueInput{},
		recorded: map[string][]string{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// New starts a composer for a fresh entry stamped with the current time.
func New(src Source, opts ...Option) *Composer {
	c := newComposer(src, ModeNew, opts)
	c.sel.Timestamp = c.now()
	return c
}

// NewFromEntry starts an edit or clone of e. Items that were added through a
// bundle are selected as that bundle but keep the items the entry recorded,
// even if the bundle has changed since. A clone gets the current time.
func NewFromEntry(src Source, e *types.LogEntry, mode Mode, opts ...Option) (*Composer, error) {
	if mode != ModeEdit && mode != ModeClone {
		return nil, fmt.Errorf("composer: cannot start %s mode from an entry", mode)
	}
	c := newComposer(src, mode, opts)
	c.sel = Selection{TypeID: e.TypeID, Timestamp: e.Timestamp, Comment: e.Comment}
	if mode == ModeEdit {
		c.entryID = e.ID
	} else {
		c.sel.Timestamp = c.now()
	}

	seen := map[string]bool{}
	for _, it := range e.Items {
		if c.sel.CategoryID == "" {
			c.sel.CategoryID = it.CategoryID
		}
		id := it.ItemID
		if it.SourceBundleID != "" {
			id = it.SourceBundleID
			c.recorded[id] = append(c.recorded[id], it.ItemID)
		}
		if !seen[id] {
			seen[id] = true
			c.sel.ItemIDs = append(c.sel.ItemIDs, id)
		}
		for _, q := range it.Quantifiers {
			c.values[it.ItemID] = append(c.values[it.ItemID], types.QuantifierValueInput{
				QuantifierID: q.QuantifierID, Value: q.Value,
			})
		}
	}
	return c, nil
}

// Mode returns the composer's mode.
func (c *Composer) Mode() Mode { return c.mode }

// EntryID returns the id of the entry being edited, or "".
func (c *Composer) EntryID() string { return c.entryID }

// Selection returns a copy of the current selection.
func (c *Composer) Selection() Selection {
	sel := c.sel
	sel.ItemIDs = append([]string(nil), c.sel.ItemIDs...)
	return sel
}

// TypeStats returns the cached type statistics, loading them on first use.
func (c *Composer) TypeStats(ctx context.Context) ([]types.UsageStat, error) {
	return c.cachedStats(ctx, keyTypeStats, c.src.GetTypeStats)
}

// CategoryStats returns the cached statistics for the categories of typeID.
func (c *Composer) CategoryStats(ctx context.Context, typeID string) ([]types.UsageStat, error) {
	return c.cachedStats(ctx, "categories:"+typeID, func(ctx context.Context) ([]types.UsageStat, error) {
		return c.src.GetCategoryStats(ctx, typeID)
	})
}

// ItemStats returns the cached item and bundle statistics for categoryID.
func (c *Composer) ItemStats(ctx context.Context, categoryID string) ([]types.UsageStat, error) {
	return c.cachedStats(ctx, "items:"+categoryID, func(ctx context.Context) ([]types.UsageStat, error) {
		return c.src.GetItemStats(ctx, categoryID)
	})
}

func (c *Composer) cachedStats(ctx context.Context, key string, load func(context.Context) ([]types.UsageStat, error)) ([]types.UsageStat, error) {
	if v, ok := c.cache.Get(key); ok {
		return v.([]types.UsageStat), nil
	}
	s, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, s, cache.DefaultExpiration)
	return s, nil
}

// Invalidate drops every cached read, for example after the catalog changed.
func (c *Composer) Invalidate() {
	c.cache.Flush()
}

// Load runs the cascade from the top: type stats, then the stats of the
// selected type's categories, then the selected category's items.
func (c *Composer) Load(ctx context.Context) error {
	ts, err := c.TypeStats(ctx)
	if err != nil {
		return fmt.Errorf("loading type stats: %w", err)
	}
	c.sel = ApplyTypeStats(c.sel, c.mode, ts)
	return c.loadCategories(ctx)
}

func (c *Composer) loadCategories(ctx context.Context) error {
	if c.sel.TypeID == "" {
		return nil
	}
	cs, err := c.CategoryStats(ctx, c.sel.TypeID)
	if err != nil {
		return fmt.Errorf("loading category stats: %w", err)
	}
	c.sel = ApplyCategoryStats(c.sel, c.mode, cs)
	return c.loadItems(ctx)
}

func (c *Composer) loadItems(ctx context.Context) error {
	if c.sel.CategoryID == "" {
		return nil
	}
	is, err := c.ItemStats(ctx, c.sel.CategoryID)
	if err != nil {
		return fmt.Errorf("loading item stats: %w", err)
	}
	c.sel = ApplyItemStats(c.sel, is)
	return nil
}

// SelectType changes the type and reloads the dependent levels.
func (c *Composer) SelectType(ctx context.Context, typeID string) error {
	c.sel = SelectType(c.sel, typeID)
	return c.loadCategories(ctx)
}

// SelectCategory changes the category and reloads its items.
func (c *Composer) SelectCategory(ctx context.Context, categoryID string) error {
	c.sel = SelectCategory(c.sel, categoryID)
	return c.loadItems(ctx)
}

// ToggleItem selects or deselects an item or bundle id. A bundle selected
// again after a toggle expands to its current members.
func (c *Composer) ToggleItem(id string) {
	delete(c.recorded, id)
	c.sel = ToggleItem(c.sel, id)
}

// SetTimestamp sets the entry's occurrence time.
func (c *Composer) SetTimestamp(t time.Time) { c.sel.Timestamp = t }

// SetComment sets the entry's comment.
func (c *Composer) SetComment(s string) { c.sel.Comment = s }

// SetValue records a quantifier value for an item, replacing any earlier
// value for the same quantifier.
func (c *Composer) SetValue(itemID, quantifierID string, value float64) {
	vals := c.values[itemID]
	for i := range vals {
		if vals[i].QuantifierID == quantifierID {
			vals[i].Value = value
			return
		}
	}
	c.values[itemID] = append(vals, types.QuantifierValueInput{QuantifierID: quantifierID, Value: value})
}

func (c *Composer) bundles(ctx context.Context) (map[string]types.CatalogBundle, error) {
	if v, ok := c.cache.Get(keyBundles); ok {
		return v.(map[string]types.CatalogBundle), nil
	}
	list, err := c.src.GetAllCatalogBundles(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading bundles: %w", err)
	}
	m := make(map[string]types.CatalogBundle, len(list))
	for _, b := range list {
		m[b.ID] = b
	}
	c.cache.Set(keyBundles, m, cache.DefaultExpiration)
	return m, nil
}

// Build validates the selection and returns the entry to write. Selected
// bundles are expanded into their member items, nested bundles included,
// each carrying the selected bundle as its source. A bundle loaded from an
// entry contributes the items that entry recorded.
func (c *Composer) Build(ctx context.Context) (types.LogEntryInput, error) {
	if err := Validate(c.sel); err != nil {
		return types.LogEntryInput{}, err
	}
	bundles, err := c.bundles(ctx)
	if err != nil {
		return types.LogEntryInput{}, err
	}

	in := types.LogEntryInput{
		Timestamp: c.sel.Timestamp,
		TypeID:    c.sel.TypeID,
		Comment:   c.sel.Comment,
	}
	added := map[string]bool{}
	add := func(itemID, sourceBundleID string) {
		if added[itemID] {
			return
		}
		added[itemID] = true
		in.Items = append(in.Items, types.LogItemInput{
			ItemID:         itemID,
			SourceBundleID: sourceBundleID,
			Quantifiers:    c.values[itemID],
		})
	}

	var expand func(bundleID, source string, visiting map[string]bool)
	expand = func(bundleID, source string, visiting map[string]bool) {
		if visiting[bundleID] {
			return
		}
		visiting[bundleID] = true
		for _, m := range bundles[bundleID].Members {
			if m.ItemID != "" {
				add(m.ItemID, source)
				continue
			}
			expand(m.MemberBundleID, source, visiting)
		}
	}

	for _, id := range c.sel.ItemIDs {
		if items, ok := c.recorded[id]; ok {
			for _, itemID := range items {
				add(itemID, id)
			}
			continue
		}
		if _, ok := bundles[id]; ok {
			expand(id, id, map[string]bool{})
			continue
		}
		add(id, "")
	}
	return in, nil
}

// Save builds the entry and writes it: an update in ModeEdit, a create
// otherwise. It returns the entry id.
func (c *Composer) Save(ctx context.Context, repo types.LogRepository) (string, error) {
	in, err := c.Build(ctx)
	if err != nil {
		return "", err
	}
	if c.mode == ModeEdit {
		if err := repo.UpdateLogEntry(ctx, c.entryID, in); err != nil {
			return "", err
		}
		return c.entryID, nil
	}
	return repo.CreateLogEntry(ctx, in)
}
