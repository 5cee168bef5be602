package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/healthlog/internal/seed"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

var backends = []string{types.BackendSQLite, types.BackendFixture}

func openJournal(t *testing.T, backend string) types.Journal {
	t.Helper()
	j, err := Open(types.Config{Backend: backend, DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Detach() })
	return j
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		wantErr error
	}{
		{"sqlite", types.BackendSQLite, nil},
		{"fixture", types.BackendFixture, nil},
		{"empty", "", types.ErrBackendEmpty},
		{"unknown", "mongo", types.ErrBackendUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := New(tt.backend)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, j)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, j)
		})
	}
}

// TestContract runs the same scenario against every backend.
func TestContract(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			j := openJournal(t, backend)
			ctx := context.Background()

			toast, err := j.InsertCatalogItem(ctx, types.ItemInput{
				TypeName: "Activity", CategoryName: "Eating", Name: "Toast",
				Quantifiers: []types.QuantifierInput{{Name: "Slices", Units: "pc"}},
			})
			require.NoError(t, err)
			run, err := j.InsertCatalogItem(ctx, types.ItemInput{TypeName: "Activity", CategoryName: "Exercise", Name: "Run"})
			require.NoError(t, err)

			same, err := j.InsertCatalogItem(ctx, types.ItemInput{TypeName: "activity", CategoryName: "eating", Name: "TOAST"})
			require.NoError(t, err)
			assert.Equal(t, toast, same)

			detail, err := j.GetItemDetail(ctx, toast)
			require.NoError(t, err)
			require.Len(t, detail.Quantifiers, 1)
			slices := detail.Quantifiers[0].ID

			bundle, err := j.UpsertBundle(ctx, types.BundleInput{
				Name: "Breakfast", TypeID: seed.TypeActivity,
				Members: []types.BundleMemberInput{{ItemID: toast}},
			})
			require.NoError(t, err)

			base := time.Date(2026, 2, 1, 7, 0, 0, 0, time.UTC)
			for i := range 3 {
				_, err := j.CreateLogEntry(ctx, types.LogEntryInput{
					Timestamp: base.Add(time.Duration(i) * time.Hour),
					TypeID:    seed.TypeActivity,
					Items: []types.LogItemInput{{
						ItemID: toast, SourceBundleID: bundle,
						Quantifiers: []types.QuantifierValueInput{{QuantifierID: slices, Value: float64(i + 1)}},
					}},
				})
				require.NoError(t, err)
			}
			_, err = j.CreateLogEntry(ctx, types.LogEntryInput{
				Timestamp: base.Add(-time.Hour), TypeID: seed.TypeActivity,
				Items: []types.LogItemInput{{ItemID: run}},
			})
			require.NoError(t, err)

			cats, err := j.GetCategoryStats(ctx, seed.TypeActivity)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(cats), 2)
			assert.Equal(t, types.UsageStat{ID: "cat-activity-eating", Name: "Eating", Count: 3}, cats[0])
			assert.Equal(t, types.UsageStat{ID: "cat-activity-exercise", Name: "Exercise", Count: 1}, cats[1])

			typeStats, err := j.GetTypeStats(ctx)
			require.NoError(t, err)
			assert.Equal(t, seed.TypeActivity, typeStats[0].ID)
			assert.Equal(t, 4, typeStats[0].Count)

			items, err := j.GetItemStats(ctx, "cat-activity-eating")
			require.NoError(t, err)
			assert.Equal(t, []types.UsageStat{
				{ID: bundle, Name: "Breakfast", Count: 3, IsBundle: true},
				{ID: toast, Name: "Toast", Count: 3},
			}, items)

			entries, err := j.GetAllLogEntries(ctx, types.LogFilter{TypeID: seed.TypeActivity})
			require.NoError(t, err)
			require.Len(t, entries, 4)
			assert.Equal(t, base.Add(2*time.Hour), entries[0].Timestamp)
			assert.Equal(t, "Breakfast", entries[0].Items[0].SourceBundleName)
			assert.Equal(t, 3.0, entries[0].Items[0].Quantifiers[0].Value)
			assert.Equal(t, "pc", entries[0].Items[0].Quantifiers[0].Units)
			assert.Equal(t, []string{run}, entries[3].ItemIDs())

			_, err = j.GetLogEntryByID(ctx, "missing")
			assert.ErrorIs(t, err, types.ErrNotFound)
		})
	}
}
