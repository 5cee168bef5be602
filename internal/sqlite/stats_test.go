package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/healthlog/internal/seed"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

func logItems(t *testing.T, b *Backend, typeID string, items ...types.LogItemInput) {
	t.Helper()
	_, err := b.CreateLogEntry(context.Background(), types.LogEntryInput{
		Timestamp: time.Now(),
		TypeID:    typeID,
		Items:     items,
	})
	require.NoError(t, err)
}

func TestCategoryStatsOrdering(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	toast, _ := addItem(t, b, "Eating", "Toast")
	apple, _ := addItem(t, b, "Eating", "Apple")
	run, _ := addItem(t, b, "Exercise", "Run")

	logItems(t, b, seed.TypeActivity, types.LogItemInput{ItemID: toast})
	logItems(t, b, seed.TypeActivity, types.LogItemInput{ItemID: apple})
	// Two Eating items on one entry count once for the category.
	logItems(t, b, seed.TypeActivity, types.LogItemInput{ItemID: toast}, types.LogItemInput{ItemID: apple})
	logItems(t, b, seed.TypeActivity, types.LogItemInput{ItemID: run})

	got, err := b.GetCategoryStats(ctx, seed.TypeActivity)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, types.UsageStat{ID: "cat-activity-eating", Name: "Eating", Count: 3}, got[0])
	assert.Equal(t, types.UsageStat{ID: "cat-activity-exercise", Name: "Exercise", Count: 1}, got[1])
	assert.Equal(t, 0, got[2].Count)

	again, err := b.GetCategoryStats(ctx, seed.TypeActivity)
	require.NoError(t, err)
	assert.Equal(t, got, again, "ordering must be stable across calls")
}

func TestTypeStatsIncludesUnused(t *testing.T) {
	b, _ := newTestBackend(t)

	run, _ := addItem(t, b, "Exercise", "Run")
	logItems(t, b, seed.TypeActivity, types.LogItemInput{ItemID: run})
	logItems(t, b, seed.TypeActivity)

	got, err := b.GetTypeStats(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, types.UsageStat{ID: seed.TypeActivity, Name: "Activity", Count: 2}, got[0])
	assert.Equal(t, types.UsageStat{ID: seed.TypeCondition, Name: "Condition", Count: 1}, got[1])
	assert.Equal(t, types.UsageStat{ID: seed.TypeOutcome, Name: "Outcome", Count: 0}, got[2])
}

func TestTypeStatsTieBreakByName(t *testing.T) {
	b, _ := newTestBackend(t)

	_, err := b.GetOrCreateType(context.Background(), "Alpha")
	require.NoError(t, err)

	got, err := b.GetTypeStats(context.Background())
	require.NoError(t, err)
	var names []string
	for _, s := range got {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Condition", "Activity", "Alpha", "Outcome"}, names)
}

func TestItemStatsIncludesBundles(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	toast, _ := addItem(t, b, "Eating", "Toast")
	coffee, _ := addItem(t, b, "Eating", "Coffee")
	pill, _ := addItem(t, b, "Medication", "Vitamin D")

	breakfast, err := b.UpsertBundle(ctx, types.BundleInput{
		Name: "Breakfast", TypeID: seed.TypeActivity,
		Members: []types.BundleMemberInput{{ItemID: toast}, {ItemID: coffee}},
	})
	require.NoError(t, err)
	_, err = b.UpsertBundle(ctx, types.BundleInput{
		Name: "Pills", Members: []types.BundleMemberInput{{ItemID: pill}},
	})
	require.NoError(t, err)

	logItems(t, b, seed.TypeActivity,
		types.LogItemInput{ItemID: toast, SourceBundleID: breakfast},
		types.LogItemInput{ItemID: coffee, SourceBundleID: breakfast},
	)
	logItems(t, b, seed.TypeActivity,
		types.LogItemInput{ItemID: toast, SourceBundleID: breakfast},
		types.LogItemInput{ItemID: coffee, SourceBundleID: breakfast},
	)
	logItems(t, b, seed.TypeActivity, types.LogItemInput{ItemID: toast})

	got, err := b.GetItemStats(ctx, "cat-activity-eating")
	require.NoError(t, err)
	require.Len(t, got, 3, "the Pills bundle has no Eating member")
	assert.Equal(t, types.UsageStat{ID: toast, Name: "Toast", Count: 3}, got[0])
	assert.Equal(t, types.UsageStat{ID: breakfast, Name: "Breakfast", Count: 2, IsBundle: true}, got[1])
	assert.Equal(t, types.UsageStat{ID: coffee, Name: "Coffee", Count: 2}, got[2])
}
