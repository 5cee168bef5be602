package backup

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/healthlog/internal/fixture"
	"github.com/mesh-intelligence/healthlog/internal/metrics"
	"github.com/mesh-intelligence/healthlog/internal/seed"
	"github.com/mesh-intelligence/healthlog/internal/sqlite"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

var exportedAt = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func ptr(f float64) *float64 { return &f }

func newFixture(t *testing.T) types.Journal {
	t.Helper()
	j := fixture.NewBackend()
	require.NoError(t, j.Attach(types.Config{Backend: types.BackendFixture}))
	t.Cleanup(func() { _ = j.Detach() })
	return j
}

func newSQLite(t *testing.T) types.Journal {
	t.Helper()
	j := sqlite.NewBackend()
	require.NoError(t, j.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { _ = j.Detach() })
	return j
}

var backends = []struct {
	name string
	open func(*testing.T) types.Journal
}{
	{"fixture", newFixture},
	{"sqlite", newSQLite},
}

func newEngine(t *testing.T, repo Repository, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return exportedAt })}, opts...)
	e, err := NewEngine(repo, opts...)
	require.NoError(t, err)
	return e
}

// populate adds Toast and Coffee under Eating, a Breakfast bundle and one
// breakfast entry.
func populate(t *testing.T, j types.Journal) {
	t.Helper()
	ctx := context.Background()

	toast, err := j.InsertCatalogItem(ctx, types.ItemInput{
		TypeName: "Activity", CategoryName: "Eating", Name: "Toast", Description: "white bread",
		Quantifiers: []types.QuantifierInput{{Name: "Slices", MinValue: ptr(0), MaxValue: ptr(10), Units: "pcs"}},
	})
	require.NoError(t, err)
	coffee, err := j.InsertCatalogItem(ctx, types.ItemInput{TypeName: "Activity", CategoryName: "Eating", Name: "Coffee"})
	require.NoError(t, err)
	breakfast, err := j.UpsertBundle(ctx, types.BundleInput{
		Name: "Breakfast", TypeID: seed.TypeActivity,
		Members: []types.BundleMemberInput{{ItemID: toast}, {ItemID: coffee}},
	})
	require.NoError(t, err)

	d, err := j.GetItemDetail(ctx, toast)
	require.NoError(t, err)
	_, err = j.CreateLogEntry(ctx, types.LogEntryInput{
		Timestamp: time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC),
		TypeID:    seed.TypeActivity,
		Comment:   "slow morning",
		Items: []types.LogItemInput{
			{ItemID: toast, SourceBundleID: breakfast, Quantifiers: []types.QuantifierValueInput{{QuantifierID: d.Quantifiers[0].ID, Value: 2}}},
			{ItemID: coffee, SourceBundleID: breakfast},
		},
	})
	require.NoError(t, err)
}

func findItem(data *BackupData, name string) (Item, bool) {
	for _, it := range data.Catalog.Items {
		if it.Name == name {
			return it, true
		}
	}
	return Item{}, false
}

func TestNewEngineRequiresRepository(t *testing.T) {
	_, err := NewEngine(nil)
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	j := newFixture(t)
	populate(t, j)

	data, err := newEngine(t, j).Export(context.Background())
	require.NoError(t, err)

	assert.Equal(t, BackupVersion, data.Version)
	assert.Equal(t, "2026-06-01T08:00:00.000Z", data.ExportedAtUTC)
	assert.NotNil(t, data.Settings)
	assert.Empty(t, data.Settings)

	require.Len(t, data.Catalog.Types, 3)
	assert.Equal(t, Type{Name: "Activity", DisplayOrder: 0, Color: "#4CAF50"}, data.Catalog.Types[0])
	assert.Contains(t, data.Catalog.Categories, Category{TypeName: "Activity", Name: "Eating"})

	toast, ok := findItem(data, "Toast")
	require.True(t, ok)
	assert.Equal(t, "Activity", toast.TypeName)
	assert.Equal(t, "Eating", toast.CategoryName)
	assert.Equal(t, "white bread", toast.Description)
	assert.Equal(t, []Quantifier{{Name: "Slices", MinValue: ptr(0), MaxValue: ptr(10), Units: "pcs"}}, toast.Quantifiers)

	require.Len(t, data.Catalog.Bundles, 1)
	assert.Equal(t, Bundle{
		TypeName: "Activity",
		Name:     "Breakfast",
		Items: []BundleMember{
			{Name: "Toast", CategoryName: "Eating"},
			{Name: "Coffee", CategoryName: "Eating"},
		},
	}, data.Catalog.Bundles[0])

	var breakfast *Log
	for i := range data.Logs {
		if data.Logs[i].Comment == "slow morning" {
			breakfast = &data.Logs[i]
		}
	}
	require.NotNil(t, breakfast)
	assert.Equal(t, "2026-03-01T07:30:00.000Z", breakfast.TimestampUTC)
	assert.Equal(t, "Activity", breakfast.TypeName)
	assert.Equal(t, []LogItem{
		{Name: "Toast", CategoryName: "Eating", BundleName: "Breakfast", Quantifiers: []QuantifierValue{{Name: "Slices", Value: 2}}},
		{Name: "Coffee", CategoryName: "Eating", BundleName: "Breakfast"},
	}, breakfast.Items)
}

func TestExportThenDryRunIsAllUpdates(t *testing.T) {
	for _, bk := range backends {
		t.Run(bk.name, func(t *testing.T) {
			ctx := context.Background()
			j := bk.open(t)
			populate(t, j)
			e := newEngine(t, j)

			data, err := e.Export(ctx)
			require.NoError(t, err)

			preview, err := e.Import(ctx, data, ImportOptions{Mode: ModeMerge, DryRun: true})
			require.NoError(t, err)
			assert.Equal(t, Counts{Update: len(data.Catalog.Items)}, preview.CatalogItems)
			assert.Equal(t, Counts{Update: len(data.Catalog.Bundles)}, preview.Bundles)
			assert.Equal(t, Counts{Update: len(data.Logs)}, preview.Logs)
			assert.Empty(t, preview.Errors)
			assert.Empty(t, preview.Warnings)
		})
	}
}

func TestImportIsIdempotent(t *testing.T) {
	for _, bk := range backends {
		t.Run(bk.name, func(t *testing.T) {
			ctx := context.Background()
			src := bk.open(t)
			populate(t, src)
			data, err := newEngine(t, src).Export(ctx)
			require.NoError(t, err)

			dst := bk.open(t)
			e := newEngine(t, dst)

			first, err := e.Import(ctx, data, ImportOptions{Mode: ModeMerge})
			require.NoError(t, err)
			assert.Empty(t, first.Errors)
			assert.Equal(t, 2, first.CatalogItems.Add, "Toast and Coffee")
			assert.Equal(t, 1, first.Bundles.Add)
			assert.GreaterOrEqual(t, first.Logs.Add, 1)

			second, err := e.Import(ctx, data, ImportOptions{Mode: ModeMerge})
			require.NoError(t, err)
			assert.Zero(t, second.CatalogItems.Add)
			assert.Zero(t, second.Bundles.Add)
			assert.Zero(t, second.Logs.Add)
			assert.Empty(t, second.Errors)

			again, err := e.Export(ctx)
			require.NoError(t, err)
			assert.Len(t, again.Catalog.Items, len(data.Catalog.Items))
			require.Len(t, again.Catalog.Bundles, 1)
			assert.Equal(t, data.Catalog.Bundles[0], again.Catalog.Bundles[0])

			toast, ok := findItem(again, "Toast")
			require.True(t, ok)
			assert.Equal(t, "white bread", toast.Description)
			require.Len(t, toast.Quantifiers, 1)
			assert.Equal(t, "pcs", toast.Quantifiers[0].Units)

			var found bool
			for _, l := range again.Logs {
				if l.Comment != "slow morning" {
					continue
				}
				found = true
				require.Len(t, l.Items, 2)
				assert.Equal(t, "Breakfast", l.Items[0].BundleName)
				assert.Equal(t, []QuantifierValue{{Name: "Slices", Value: 2}}, l.Items[0].Quantifiers)
			}
			assert.True(t, found, "breakfast entry imported")
		})
	}
}

func TestImportMatchesNamesCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	j := newFixture(t)
	_, err := j.InsertCatalogItem(ctx, types.ItemInput{TypeName: "Activity", CategoryName: "Eating", Name: "Toast"})
	require.NoError(t, err)
	e := newEngine(t, j)

	data := &BackupData{
		Version:       1,
		ExportedAtUTC: "2026-06-01T08:00:00.000Z",
		Catalog: Catalog{Items: []Item{
			{TypeName: "activity", CategoryName: "EATING", Name: " toast "},
		}},
	}

	preview, err := e.Import(ctx, data, ImportOptions{Mode: ModeMerge, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, Counts{Update: 1}, preview.CatalogItems)

	_, err = e.Import(ctx, data, ImportOptions{Mode: ModeMerge})
	require.NoError(t, err)
	items, err := j.GetAllCatalogItems(ctx)
	require.NoError(t, err)
	var n int
	for _, it := range items {
		if strings.EqualFold(it.Name, "toast") {
			n++
			assert.Equal(t, "Toast", it.Name)
		}
	}
	assert.Equal(t, 1, n)
}

func TestImportRejectsInvalidBackup(t *testing.T) {
	valid := func() *BackupData {
		return &BackupData{Version: 1, ExportedAtUTC: "2026-06-01T08:00:00.000Z",
			Catalog: Catalog{Items: []Item{{TypeName: "Activity", CategoryName: "Eating", Name: "Tea"}}}}
	}
	tests := []struct {
		name    string
		data    *BackupData
		opts    ImportOptions
		wantErr error
	}{
		{"nil data", nil, ImportOptions{}, types.ErrInvalidBackup},
		{"missing version", func() *BackupData { d := valid(); d.Version = 0; return d }(), ImportOptions{}, types.ErrInvalidBackup},
		{"missing exportedAtUtc", func() *BackupData { d := valid(); d.ExportedAtUTC = " "; return d }(), ImportOptions{}, types.ErrInvalidBackup},
		{"newer version", func() *BackupData { d := valid(); d.Version = BackupVersion + 1; return d }(), ImportOptions{}, types.ErrUnsupportedVersion},
		{"unknown mode", valid(), ImportOptions{Mode: "wipe"}, types.ErrInvalidImportMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := newFixture(t)
			preview, err := newEngine(t, j).Import(context.Background(), tt.data, tt.opts)
			assert.ErrorIs(t, err, tt.wantErr)
			require.NotNil(t, preview)
			assert.Zero(t, preview.CatalogItems.Total()+preview.Bundles.Total()+preview.Logs.Total())
			assert.Len(t, preview.Errors, 1)

			items, err := j.GetAllCatalogItems(context.Background())
			require.NoError(t, err)
			for _, it := range items {
				assert.NotEqual(t, "Tea", it.Name)
			}
		})
	}
}

func TestImportReplaceModeWarns(t *testing.T) {
	j := newFixture(t)
	data := &BackupData{Version: 1, ExportedAtUTC: "2026-06-01T08:00:00.000Z"}

	preview, err := newEngine(t, j).Import(context.Background(), data, ImportOptions{Mode: ModeReplace, DryRun: true})
	require.NoError(t, err)
	require.Len(t, preview.Warnings, 1)
	assert.Contains(t, preview.Warnings[0], "replace mode")
}

func TestImportSkipsBadRecords(t *testing.T) {
	ctx := context.Background()
	j := newFixture(t)
	populate(t, j)

	data := &BackupData{
		Version:       1,
		ExportedAtUTC: "2026-06-01T08:00:00.000Z",
		Catalog: Catalog{
			Items: []Item{
				{TypeName: "Activity", CategoryName: "Eating", Name: ""},
				{TypeName: "Activity", CategoryName: "Eating", Name: "Tea"},
				{TypeName: "Activity", CategoryName: "Eating", Name: "TEA"},
				{TypeName: "Activity", CategoryName: "Eating", Name: "Juice",
					Quantifiers: []Quantifier{{Name: "ml"}, {Name: "ML"}}},
			},
			Bundles: []Bundle{
				{TypeName: "Activity", Name: "Brunch", Items: []BundleMember{{Name: "Pancakes", CategoryName: "Eating"}}},
				{Name: "Breakfast", Items: []BundleMember{{Name: "Tea"}}},
				{TypeName: "Activity", Name: "Tea time", Items: []BundleMember{{Name: "Tea", CategoryName: "Eating"}}},
			},
		},
		Logs: []Log{
			{TimestampUTC: "yesterday", TypeName: "Activity"},
			{TimestampUTC: "2026-05-01T10:00:00Z", TypeName: "Activity", Items: []LogItem{{Name: "Pancakes"}}},
			{TimestampUTC: "2026-05-01T10:00:00Z", TypeName: "Activity", Items: []LogItem{{Name: "Tea", CategoryName: "Eating"}}},
		},
	}

	preview, err := newEngine(t, j).Import(ctx, data, ImportOptions{Mode: ModeMerge})
	require.NoError(t, err)
	assert.Equal(t, Counts{Add: 1, Skip: 3}, preview.CatalogItems)
	assert.Equal(t, Counts{Add: 1, Skip: 2}, preview.Bundles)
	assert.Equal(t, Counts{Add: 1, Skip: 2}, preview.Logs)
	assert.Len(t, preview.Warnings, 7)
	assert.Empty(t, preview.Errors)

	joined := strings.Join(preview.Warnings, "\n")
	assert.Contains(t, joined, `catalog item #1`)
	assert.Contains(t, joined, `catalog item "TEA": duplicate`)
	assert.Contains(t, joined, `bundle "Brunch": item "Pancakes" not found`)
	assert.Contains(t, joined, `bundle "Breakfast": name is already used`)

	bundles, err := j.GetAllCatalogBundles(ctx)
	require.NoError(t, err)
	var names []string
	for _, b := range bundles {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"Breakfast", "Tea time"}, names)
}

// failingRepo fails InsertCatalogItem for one item name.
type failingRepo struct {
	types.Journal
	fail string
}

func (r failingRepo) InsertCatalogItem(ctx context.Context, in types.ItemInput) (string, error) {
	if in.Name == r.fail {
		return "", errors.New("disk full")
	}
	return r.Journal.InsertCatalogItem(ctx, in)
}

func TestImportContinuesAfterRecordFailure(t *testing.T) {
	ctx := context.Background()
	j := newFixture(t)
	e := newEngine(t, failingRepo{Journal: j, fail: "Bad"})

	data := &BackupData{
		Version:       1,
		ExportedAtUTC: "2026-06-01T08:00:00.000Z",
		Catalog: Catalog{Items: []Item{
			{TypeName: "Activity", CategoryName: "Eating", Name: "Bad"},
			{TypeName: "Activity", CategoryName: "Eating", Name: "Good"},
		}},
		Logs: []Log{
			{TimestampUTC: "2026-05-01T10:00:00.000Z", TypeName: "Activity", Items: []LogItem{{Name: "Bad", CategoryName: "Eating"}}},
			{TimestampUTC: "2026-05-02T10:00:00.000Z", TypeName: "Activity", Items: []LogItem{{Name: "Good", CategoryName: "Eating"}}},
		},
	}

	preview, err := e.Import(ctx, data, ImportOptions{Mode: ModeMerge})
	require.NoError(t, err)
	assert.Equal(t, Counts{Add: 2}, preview.CatalogItems)
	assert.Equal(t, Counts{Add: 2}, preview.Logs)
	require.Len(t, preview.Errors, 2)
	assert.Equal(t, `catalog item "Bad": disk full`, preview.Errors[0])
	assert.Contains(t, preview.Errors[1], `log 2026-05-01T10:00:00.000Z Activity: item "Bad"`)

	entries, err := j.GetAllLogEntries(ctx, types.LogFilter{TypeID: seed.TypeActivity})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Good", entries[0].Items[0].ItemName)
}

func TestImportNestedBundleDefinedLater(t *testing.T) {
	ctx := context.Background()
	j := newFixture(t)
	populate(t, j)

	data := &BackupData{
		Version:       1,
		ExportedAtUTC: "2026-06-01T08:00:00.000Z",
		Catalog: Catalog{Bundles: []Bundle{
			{TypeName: "Activity", Name: "Big breakfast", Items: []BundleMember{{Bundle: "Sides"}, {Name: "Coffee", CategoryName: "Eating"}}},
			{TypeName: "Activity", Name: "Sides", Items: []BundleMember{{Name: "Toast", CategoryName: "Eating"}}},
		}},
	}

	preview, err := newEngine(t, j).Import(ctx, data, ImportOptions{Mode: ModeMerge})
	require.NoError(t, err)
	assert.Equal(t, Counts{Add: 2}, preview.Bundles)
	assert.Empty(t, preview.Errors)

	bundles, err := j.GetAllCatalogBundles(ctx)
	require.NoError(t, err)
	var big *types.CatalogBundle
	for i := range bundles {
		if bundles[i].Name == "Big breakfast" {
			big = &bundles[i]
		}
	}
	require.NotNil(t, big)
	require.Len(t, big.Members, 2)
	assert.Equal(t, "Sides", big.Members[0].MemberBundleName)
	assert.Equal(t, "Coffee", big.Members[1].ItemName)
}

func TestImportDropsUnknownQuantifiers(t *testing.T) {
	ctx := context.Background()
	j := newFixture(t)
	populate(t, j)

	data := &BackupData{
		Version:       1,
		ExportedAtUTC: "2026-06-01T08:00:00.000Z",
		Logs: []Log{{
			TimestampUTC: "2026-05-03T09:00:00.000Z",
			TypeName:     "Activity",
			Items: []LogItem{{
				Name: "Toast", CategoryName: "Eating", BundleName: "Lunch",
				Quantifiers: []QuantifierValue{{Name: "slices", Value: 1}, {Name: "Butter", Value: 5}},
			}},
		}},
	}

	preview, err := newEngine(t, j).Import(ctx, data, ImportOptions{Mode: ModeMerge})
	require.NoError(t, err)
	assert.Equal(t, Counts{Add: 1}, preview.Logs)
	assert.Len(t, preview.Warnings, 2)

	entries, err := j.GetAllLogEntries(ctx, types.LogFilter{
		From: time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	it := entries[0].Items[0]
	assert.Empty(t, it.SourceBundleID)
	require.Len(t, it.Quantifiers, 1)
	assert.Equal(t, "Slices", it.Quantifiers[0].Name)
	assert.Equal(t, 1.0, it.Quantifiers[0].Value)
}

func TestImportRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	j := newFixture(t)
	data := &BackupData{
		Version:       1,
		ExportedAtUTC: "2026-06-01T08:00:00.000Z",
		Catalog:       Catalog{Items: []Item{{TypeName: "Activity", CategoryName: "Eating", Name: "Tea"}}},
	}
	_, err = newEngine(t, j, WithMetrics(m)).Import(context.Background(), data, ImportOptions{DryRun: true})
	require.NoError(t, err)

	expected := `
# HELP healthlog_backup_import_records_total Backup records classified during import, labeled by record kind and outcome.
# TYPE healthlog_backup_import_records_total counter
healthlog_backup_import_records_total{kind="catalog_item",outcome="add"} 1
# HELP healthlog_backup_import_runs_total Backup imports run, labeled by dry_run.
# TYPE healthlog_backup_import_runs_total counter
healthlog_backup_import_runs_total{dry_run="true"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"healthlog_backup_import_records_total", "healthlog_backup_import_runs_total"))
}

func TestCodec(t *testing.T) {
	data := &BackupData{
		Version:       1,
		ExportedAtUTC: "2026-06-01T08:00:00.000Z",
		Catalog: Catalog{Items: []Item{{
			TypeName: "Activity", CategoryName: "Eating", Name: "Toast",
			Quantifiers: []Quantifier{{Name: "Slices", MaxValue: ptr(10)}},
		}}},
		Settings: map[string]any{},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, data))
	assert.Contains(t, buf.String(), "exportedAtUtc: ")
	assert.Contains(t, buf.String(), "\n  items:\n")

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, data.Version, got.Version)
	assert.Equal(t, data.ExportedAtUTC, got.ExportedAtUTC)
	assert.Equal(t, data.Catalog.Items, got.Catalog.Items)
}

func TestDecodeAcceptsJSON(t *testing.T) {
	doc := `{"version": 1, "exportedAtUtc": "2026-06-01T08:00:00.000Z", ` +
		`"catalog": {"types": [{"name": "Activity", "displayOrder": 0}]}, ` +
		`"logs": [{"timestampUtc": "2026-05-01T10:00:00.000Z", "typeName": "Activity", "items": []}]}`

	got, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, "Activity", got.Catalog.Types[0].Name)
	require.Len(t, got.Logs, 1)
	assert.Equal(t, "Activity", got.Logs[0].TypeName)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, doc := range []string{"", "version: [1"} {
		_, err := Decode(strings.NewReader(doc))
		assert.ErrorIs(t, err, types.ErrInvalidBackup, "%q", doc)
	}
}

func TestImportRepeatedItemNameIsIdempotent(t *testing.T) {
	for _, be := range backends {
		t.Run(be.name, func(t *testing.T) {
			ctx := context.Background()
			j := be.open(t)
			e := newEngine(t, j)
			data := &BackupData{
				Version:       1,
				ExportedAtUTC: "2026-06-01T08:00:00.000Z",
				Catalog:       Catalog{Items: []Item{{TypeName: "Activity", CategoryName: "Eating", Name: "Toast"}}},
				Logs: []Log{{
					TimestampUTC: "2026-05-03T07:00:00.000Z",
					TypeName:     "Activity",
					Items:        []LogItem{{Name: "Toast", CategoryName: "Eating"}, {Name: "toast", CategoryName: "Eating"}},
				}},
			}

			first, err := e.Import(ctx, data, ImportOptions{})
			require.NoError(t, err)
			assert.Equal(t, Counts{Add: 1}, first.Logs)

			second, err := e.Import(ctx, data, ImportOptions{})
			require.NoError(t, err)
			assert.Equal(t, Counts{Update: 1}, second.Logs)

			entries, err := j.GetAllLogEntries(ctx, types.LogFilter{})
			require.NoError(t, err)
			n := 0
			for _, entry := range entries {
				if types.FormatTimestamp(entry.Timestamp) == "2026-05-03T07:00:00.000Z" {
					n++
					assert.Len(t, entry.Items, 1)
				}
			}
			assert.Equal(t, 1, n)
		})
	}
}

func TestImportKeepsTypeDisplayOrderAndColor(t *testing.T) {
	for _, be := range backends {
		t.Run(be.name, func(t *testing.T) {
			ctx := context.Background()
			j := be.open(t)
			data := &BackupData{
				Version:       1,
				ExportedAtUTC: "2026-06-01T08:00:00.000Z",
				Catalog: Catalog{Types: []Type{
					{Name: "Activity", DisplayOrder: 9, Color: "#000000"},
					{Name: "Sleep", DisplayOrder: 7, Color: "#123456"},
				}},
			}
			_, err := newEngine(t, j).Import(ctx, data, ImportOptions{})
			require.NoError(t, err)

			list, err := j.ListTypes(ctx)
			require.NoError(t, err)
			got := map[string]types.Type{}
			for _, typ := range list {
				got[typ.Name] = typ
			}
			require.Contains(t, got, "Sleep")
			assert.Equal(t, 7, got["Sleep"].DisplayOrder)
			assert.Equal(t, "#123456", got["Sleep"].Color)
			assert.Equal(t, 0, got["Activity"].DisplayOrder, "existing types are left alone")
			assert.Equal(t, "#4CAF50", got["Activity"].Color)
		})
	}
}

func TestImportDoesNotResolveItemsAcrossTypes(t *testing.T) {
	ctx := context.Background()
	j := newFixture(t)
	_, err := j.InsertCatalogItem(ctx, types.ItemInput{TypeName: "Condition", CategoryName: "Pain", Name: "Headache"})
	require.NoError(t, err)

	data := &BackupData{
		Version:       1,
		ExportedAtUTC: "2026-06-01T08:00:00.000Z",
		Logs: []Log{{
			TimestampUTC: "2026-05-04T09:00:00.000Z",
			TypeName:     "Activity",
			Items:        []LogItem{{Name: "Headache", CategoryName: "Pain"}},
		}},
	}
	preview, err := newEngine(t, j).Import(ctx, data, ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, Counts{Skip: 1}, preview.Logs)
	require.Len(t, preview.Warnings, 1)
	assert.Contains(t, preview.Warnings[0], `item "Headache" not found`)
}

func TestItemIndexResolve(t *testing.T) {
	x := newItemIndex()
	x.add("Activity", "Eating", "Toast", "toast-1")
	x.add("Activity", "Snacks", "Toast", "toast-2")
	x.add("Condition", "Pain", "Headache", "headache")
	x.add("Activity", "Eating", "TOAST", "ignored")

	tests := []struct {
		name           string
		typ, cat, item string
		want           string
		ok             bool
	}{
		{"exact", "activity", " eating ", "toast", "toast-1", true},
		{"first add wins", "Activity", "Eating", "Toast", "toast-1", true},
		{"exact miss does not fall back", "Activity", "Pain", "Headache", "", false},
		{"category without type", "", "Snacks", "Toast", "toast-2", true},
		{"type without category", "Condition", "", "Headache", "headache", true},
		{"type without category stays in type", "Activity", "", "Headache", "", false},
		{"ambiguous name", "", "", "Toast", "", false},
		{"unique name", "", "", "headache", "headache", true},
		{"unknown", "", "", "Pancakes", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := x.resolve(tt.typ, tt.cat, tt.item)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, r.id)
			}
		})
	}
}
