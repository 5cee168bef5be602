package backup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/healthlog/pkg/types"
)

// Record kinds used in metrics labels.
const (
	kindCatalogItem = "catalog_item"
	kindBundle      = "bundle"
	kindLog         = "log"
)

// state is the journal content an import is classified against.
type state struct {
	items      *itemIndex
	itemKeys   map[string]bool
	bundleKeys map[string]bool
	// bundleTypes maps a normalized bundle name to its type name.
	bundleTypes map[string]string
	logKeys     map[string]bool
}

type pendingLog struct {
	Log
	ts time.Time
}

// plan holds the records classified as add, in file order.
type plan struct {
	items   []Item
	bundles []Bundle
	logs    []pendingLog
}

// Import classifies every record of data against the journal as add,
// update or skip. Unless opts.DryRun is set, the adds are then written:
// items first, then bundles, then logs. A record that fails to write is
// reported in the preview's Errors and the import continues. Updates are
// counted but not applied.
//
// A backup that fails validation returns a preview with zero counts, the
// failure in Errors, and the error.
func (e *Engine) Import(ctx context.Context, data *BackupData, opts ImportOptions) (*ImportPreview, error) {
	preview := &ImportPreview{Errors: []string{}, Warnings: []string{}}
	if err := validate(data, &opts); err != nil {
		preview.Errors = append(preview.Errors, err.Error())
		return preview, err
	}
	e.metrics.RecordImportRun(opts.DryRun)
	if opts.Mode == ModeReplace {
		preview.Warnings = append(preview.Warnings,
			"replace mode does not clear existing data; the backup was merged")
	}

	st, err := e.loadState(ctx)
	if err != nil {
		return preview, fmt.Errorf("reading journal: %w", err)
	}
	p := classify(data, st, preview)
	e.logger.Debug("backup classified",
		"dry_run", opts.DryRun,
		"items", preview.CatalogItems,
		"bundles", preview.Bundles,
		"logs", preview.Logs)
	e.recordCounts(preview)
	if opts.DryRun {
		return preview, nil
	}

	a := &applier{e: e, preview: preview, typeIDs: map[string]string{}}
	if err := a.apply(ctx, data, p); err != nil {
		return preview, err
	}
	return preview, nil
}

func validate(data *BackupData, opts *ImportOptions) error {
	switch opts.Mode {
	case "":
		opts.Mode = ModeMerge
	case ModeMerge, ModeReplace:
	default:
		return fmt.Errorf("%w: %q", types.ErrInvalidImportMode, opts.Mode)
	}
	switch {
	case data == nil:
		return fmt.Errorf("%w: no data", types.ErrInvalidBackup)
	case data.Version <= 0:
		return fmt.Errorf("%w: missing version", types.ErrInvalidBackup)
	case blank(data.ExportedAtUTC):
		return fmt.Errorf("%w: missing exportedAtUtc", types.ErrInvalidBackup)
	case data.Version > BackupVersion:
		return fmt.Errorf("%w: %d", types.ErrUnsupportedVersion, data.Version)
	}
	return nil
}

func (e *Engine) loadState(ctx context.Context) (*state, error) {
	var (
		items   []types.CatalogItem
		bundles []types.CatalogBundle
		entries []types.LogEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = e.repo.GetAllCatalogItems(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		bundles, err = e.repo.GetAllCatalogBundles(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = e.repo.GetAllLogEntries(gctx, types.LogFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	st := &state{
		items:       newItemIndex(),
		itemKeys:    make(map[string]bool, len(items)),
		bundleKeys:  make(map[string]bool, len(bundles)),
		bundleTypes: make(map[string]string, len(bundles)),
		logKeys:     make(map[string]bool, len(entries)),
	}
	for _, it := range items {
		st.items.add(it.TypeName, it.CategoryName, it.Name, it.ID)
		st.itemKeys[mergeKey(it.TypeName, it.CategoryName, it.Name)] = true
	}
	for _, b := range bundles {
		st.bundleKeys[mergeKey(b.TypeName, b.Name)] = true
		st.bundleTypes[norm(b.Name)] = b.TypeName
	}
	for _, entry := range entries {
		names := make([]string, len(entry.Items))
		for i, it := range entry.Items {
			names[i] = it.ItemName
		}
		st.logKeys[logKey(entry.Timestamp, entry.TypeName, names)] = true
	}
	return st, nil
}

// classifier accumulates counts and warnings for one kind of record.
type classifier struct {
	counts  *Counts
	preview *ImportPreview
	seen    map[string]bool
}

func (c *classifier) skip(format string, args ...any) {
	c.counts.Skip++
	c.preview.Warnings = append(c.preview.Warnings, fmt.Sprintf(format, args...))
}

// classify returns true when the record with key k is a new add. Keys that
// already exist are updates; a repeated new key is skipped.
func (c *classifier) classify(k, name string, existing map[string]bool) bool {
	switch {
	case existing[k]:
		c.counts.Update++
	case c.seen[k]:
		c.skip("%s: duplicate of an earlier record", name)
	default:
		c.seen[k] = true
		return true
	}
	return false
}

func newClassifier(counts *Counts, preview *ImportPreview) *classifier {
	return &classifier{counts: counts, preview: preview, seen: map[string]bool{}}
}

func classify(data *BackupData, st *state, preview *ImportPreview) *plan {
	p := &plan{}
	known := st.items.clone()

	items := newClassifier(&preview.CatalogItems, preview)
	for i, it := range data.Catalog.Items {
		name := label("catalog item", i, it.Name)
		if err := itemInput(it).Validate(); err != nil {
			items.skip("%s: %v", name, err)
			continue
		}
		if items.classify(mergeKey(it.TypeName, it.CategoryName, it.Name), name, st.itemKeys) {
			items.counts.Add++
			p.items = append(p.items, it)
			known.add(it.TypeName, it.CategoryName, it.Name, "")
		}
	}

	p.bundles = classifyBundles(data.Catalog.Bundles, st, known, preview)

	logs := newClassifier(&preview.Logs, preview)
	for i, l := range data.Logs {
		name := label("log", i, l.TimestampUTC)
		ts, err := types.ParseTimestamp(l.TimestampUTC)
		if err != nil {
			logs.skip("%s: %v", name, err)
			continue
		}
		if blank(l.TypeName) {
			logs.skip("%s: type name is required", name)
			continue
		}
		names := make([]string, len(l.Items))
		missing := ""
		for j, li := range l.Items {
			names[j] = li.Name
			if blank(li.Name) {
				missing = "an item name is empty"
			} else if _, ok := known.resolve(l.TypeName, li.CategoryName, li.Name); !ok && missing == "" {
				missing = fmt.Sprintf("item %q not found", li.Name)
			}
		}
		k := logKey(ts, l.TypeName, names)
		if st.logKeys[k] {
			logs.counts.Update++
			continue
		}
		if missing != "" {
			logs.skip("%s: %s", name, missing)
			continue
		}
		if logs.classify(k, name, st.logKeys) {
			logs.counts.Add++
			p.logs = append(p.logs, pendingLog{Log: l, ts: ts})
		}
	}
	return p
}

// classifyBundles handles bundles in two passes so that members may name
// bundles defined later in the file.
func classifyBundles(bundles []Bundle, st *state, known *itemIndex, preview *ImportPreview) []Bundle {
	c := newClassifier(&preview.Bundles, preview)
	candidates := make([]bool, len(bundles))
	names := map[string]bool{}
	for n := range st.bundleTypes {
		names[n] = true
	}

	for i, b := range bundles {
		name := label("bundle", i, b.Name)
		if blank(b.Name) {
			c.skip("%s: name is required", name)
			continue
		}
		if !c.classify(mergeKey(b.TypeName, b.Name), name, st.bundleKeys) {
			continue
		}
		if typ, ok := st.bundleTypes[norm(b.Name)]; ok {
			c.skip("%s: name is already used by a bundle of type %q", name, typ)
			continue
		}
		if names[norm(b.Name)] {
			c.skip("%s: name is already used by an earlier bundle", name)
			continue
		}
		names[norm(b.Name)] = true
		candidates[i] = true
	}

	var out []Bundle
	for i, b := range bundles {
		if !candidates[i] {
			continue
		}
		name := label("bundle", i, b.Name)
		if problem := bundleProblem(b, known, names); problem != "" {
			c.skip("%s: %s", name, problem)
			continue
		}
		c.counts.Add++
		out = append(out, b)
	}
	return out
}

func bundleProblem(b Bundle, known *itemIndex, bundleNames map[string]bool) string {
	for _, m := range b.Items {
		switch {
		case blank(m.Name) == blank(m.Bundle):
			return "member must name exactly one of item or bundle"
		case !blank(m.Bundle):
			if norm(m.Bundle) == norm(b.Name) {
				return "bundle cannot contain itself"
			}
			if !bundleNames[norm(m.Bundle)] {
				return fmt.Sprintf("bundle %q not found", m.Bundle)
			}
		default:
			if _, ok := known.resolve(b.TypeName, m.CategoryName, m.Name); !ok {
				return fmt.Sprintf("item %q not found", m.Name)
			}
		}
	}
	return ""
}

func itemInput(it Item) types.ItemInput {
	in := types.ItemInput{
		TypeName:     it.TypeName,
		CategoryName: it.CategoryName,
		Name:         it.Name,
		Description:  it.Description,
	}
	for _, q := range it.Quantifiers {
		in.Quantifiers = append(in.Quantifiers, types.QuantifierInput{
			Name: q.Name, MinValue: q.MinValue, MaxValue: q.MaxValue, Units: q.Units,
		})
	}
	return in
}

func (e *Engine) recordCounts(p *ImportPreview) {
	for kind, c := range map[string]Counts{
		kindCatalogItem: p.CatalogItems,
		kindBundle:      p.Bundles,
		kindLog:         p.Logs,
	} {
		e.metrics.RecordImportRecords(kind, "add", c.Add)
		e.metrics.RecordImportRecords(kind, "update", c.Update)
		e.metrics.RecordImportRecords(kind, "skip", c.Skip)
	}
}

// applier writes the adds of a plan.
type applier struct {
	e       *Engine
	preview *ImportPreview
	typeIDs map[string]string
	items   *itemIndex
	// bundleIDs maps a normalized bundle name to its id.
	bundleIDs map[string]string
	// quantifiers maps an item id to its quantifier ids by normalized name.
	quantifiers map[string]map[string]string
}

func (a *applier) fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	a.preview.Errors = append(a.preview.Errors, msg)
	a.e.logger.Warn("import record failed", "error", msg)
}

func (a *applier) warn(format string, args ...any) {
	a.preview.Warnings = append(a.preview.Warnings, fmt.Sprintf(format, args...))
}

func (a *applier) typeID(ctx context.Context, name string) (string, error) {
	if id, ok := a.typeIDs[norm(name)]; ok {
		return id, nil
	}
	id, err := a.e.repo.GetOrCreateType(ctx, name)
	if err != nil {
		return "", err
	}
	a.typeIDs[norm(name)] = id
	return id, nil
}

func (a *applier) apply(ctx context.Context, data *BackupData, p *plan) error {
	for _, t := range data.Catalog.Types {
		if blank(t.Name) || a.typeIDs[norm(t.Name)] != "" {
			continue
		}
		id, created, err := a.e.repo.EnsureType(ctx, types.Type{Name: t.Name, DisplayOrder: t.DisplayOrder, Color: t.Color})
		if err != nil {
			a.fail("type %q: %v", t.Name, err)
			continue
		}
		a.typeIDs[norm(t.Name)] = id
		if created {
			a.e.logger.Debug("imported type", "name", t.Name, "display_order", t.DisplayOrder, "color", t.Color)
		}
	}
	for _, c := range data.Catalog.Categories {
		if blank(c.TypeName) || blank(c.Name) {
			continue
		}
		typeID, err := a.typeID(ctx, c.TypeName)
		if err == nil {
			_, err = a.e.repo.GetOrCreateCategory(ctx, c.Name, typeID)
		}
		if err != nil {
			a.fail("category %q: %v", c.Name, err)
		}
	}

	for _, it := range p.items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := a.e.repo.InsertCatalogItem(ctx, itemInput(it)); err != nil {
			a.fail("catalog item %q: %v", it.Name, err)
			continue
		}
		a.e.logger.Debug("imported catalog item", "type", it.TypeName, "category", it.CategoryName, "name", it.Name)
	}

	if err := a.reload(ctx); err != nil {
		return err
	}
	if err := a.applyBundles(ctx, p.bundles); err != nil {
		return err
	}
	return a.applyLogs(ctx, p.logs)
}

// reload indexes the items and bundles as they are after the item adds.
func (a *applier) reload(ctx context.Context) error {
	items, err := a.e.repo.GetAllCatalogItems(ctx)
	if err != nil {
		return fmt.Errorf("reading catalog items: %w", err)
	}
	bundles, err := a.e.repo.GetAllCatalogBundles(ctx)
	if err != nil {
		return fmt.Errorf("reading bundles: %w", err)
	}
	a.items = newItemIndex()
	for _, it := range items {
		a.items.add(it.TypeName, it.CategoryName, it.Name, it.ID)
	}
	a.bundleIDs = make(map[string]string, len(bundles))
	for _, b := range bundles {
		a.bundleIDs[norm(b.Name)] = b.ID
	}
	a.quantifiers = map[string]map[string]string{}
	return nil
}

var errDeferred = errors.New("member bundle not written yet")

func (a *applier) bundleInput(ctx context.Context, b Bundle, final bool) (types.BundleInput, error) {
	in := types.BundleInput{Name: strings.TrimSpace(b.Name)}
	if !blank(b.TypeName) {
		id, err := a.typeID(ctx, b.TypeName)
		if err != nil {
			return in, err
		}
		in.TypeID = id
	}
	deferred := false
	for _, m := range b.Items {
		if !blank(m.Bundle) {
			id, ok := a.bundleIDs[norm(m.Bundle)]
			if !ok {
				if final {
					return in, fmt.Errorf("bundle %q: %w", m.Bundle, types.ErrNotFound)
				}
				deferred = true
				continue
			}
			in.Members = append(in.Members, types.BundleMemberInput{BundleID: id})
			continue
		}
		ref, ok := a.items.resolve(b.TypeName, m.CategoryName, m.Name)
		if !ok {
			return in, fmt.Errorf("item %q: %w", m.Name, types.ErrNotFound)
		}
		in.Members = append(in.Members, types.BundleMemberInput{ItemID: ref.id})
	}
	if deferred {
		return in, errDeferred
	}
	return in, nil
}

// applyBundles writes each bundle with the members that exist, then rewrites
// the bundles whose nested members were written after them.
func (a *applier) applyBundles(ctx context.Context, bundles []Bundle) error {
	var again []Bundle
	for _, b := range bundles {
		if err := ctx.Err(); err != nil {
			return err
		}
		in, err := a.bundleInput(ctx, b, false)
		if errors.Is(err, errDeferred) {
			again = append(again, b)
		} else if err != nil {
			a.fail("bundle %q: %v", b.Name, err)
			continue
		}
		id, err := a.e.repo.UpsertBundle(ctx, in)
		if err != nil {
			a.fail("bundle %q: %v", b.Name, err)
			continue
		}
		a.bundleIDs[norm(b.Name)] = id
		a.e.logger.Debug("imported bundle", "name", b.Name, "members", len(in.Members))
	}

	for _, b := range again {
		if _, ok := a.bundleIDs[norm(b.Name)]; !ok {
			continue
		}
		in, err := a.bundleInput(ctx, b, true)
		if err == nil {
			_, err = a.e.repo.UpsertBundle(ctx, in)
		}
		if err != nil {
			a.fail("bundle %q: %v", b.Name, err)
		}
	}
	return nil
}

func (a *applier) quantifierIDs(ctx context.Context, itemID string) (map[string]string, error) {
	if q, ok := a.quantifiers[itemID]; ok {
		return q, nil
	}
	d, err := a.e.repo.GetItemDetail(ctx, itemID)
	if err != nil {
		return nil, err
	}
	q := make(map[string]string, len(d.Quantifiers))
	for _, def := range d.Quantifiers {
		q[norm(def.Name)] = def.ID
	}
	a.quantifiers[itemID] = q
	return q, nil
}

func (a *applier) logInput(ctx context.Context, l pendingLog, name string) (types.LogEntryInput, error) {
	typeID, err := a.typeID(ctx, l.TypeName)
	if err != nil {
		return types.LogEntryInput{}, err
	}
	in := types.LogEntryInput{Timestamp: l.ts, TypeID: typeID, Comment: l.Comment}
	for _, li := range l.Items {
		ref, ok := a.items.resolve(l.TypeName, li.CategoryName, li.Name)
		if !ok {
			return in, fmt.Errorf("item %q: %w", li.Name, types.ErrNotFound)
		}
		item := types.LogItemInput{ItemID: ref.id}
		if !blank(li.BundleName) {
			if id, ok := a.bundleIDs[norm(li.BundleName)]; ok {
				item.SourceBundleID = id
			} else {
				a.warn("%s: bundle %q not found, item %q kept without it", name, li.BundleName, li.Name)
			}
		}
		if len(li.Quantifiers) > 0 {
			qids, err := a.quantifierIDs(ctx, ref.id)
			if err != nil {
				return in, err
			}
			for _, qv := range li.Quantifiers {
				id, ok := qids[norm(qv.Name)]
				if !ok {
					a.warn("%s: item %q has no quantifier %q, value dropped", name, li.Name, qv.Name)
					continue
				}
				item.Quantifiers = append(item.Quantifiers, types.QuantifierValueInput{QuantifierID: id, Value: qv.Value})
			}
		}
		in.Items = append(in.Items, item)
	}
	return in, nil
}

func (a *applier) applyLogs(ctx context.Context, logs []pendingLog) error {
	for _, l := range logs {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := fmt.Sprintf("log %s %s", types.FormatTimestamp(l.ts), l.TypeName)
		in, err := a.logInput(ctx, l, name)
		if err == nil {
			_, err = a.e.repo.CreateLogEntry(ctx, in)
		}
		if err != nil {
			a.fail("%s: %v", name, err)
			continue
		}
		a.e.logger.Debug("imported log entry", "timestamp", l.ts, "type", l.TypeName, "items", len(in.Items))
	}
	return nil
}
