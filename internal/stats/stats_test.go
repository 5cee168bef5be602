package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/healthlog/pkg/types"
)

func names(stats []types.UsageStat) []string {
	out := make([]string, len(stats))
	for i, s := range stats {
		out[i] = s.Name
	}
	return out
}

func TestSort(t *testing.T) {
	tests := []struct {
		name string
		in   []types.UsageStat
		want []string
	}{
		{
			name: "count descending",
			in: []types.UsageStat{
				{ID: "1", Name: "Exercise", Count: 1},
				{ID: "2", Name: "Eating", Count: 3},
				{ID: "3", Name: "Sleep", Count: 0},
			},
			want: []string{"Eating", "Exercise", "Sleep"},
		},
		{
			name: "ties broken by name",
			in: []types.UsageStat{
				{ID: "1", Name: "Outcome", Count: 2},
				{ID: "2", Name: "Activity", Count: 2},
				{ID: "3", Name: "Condition", Count: 2},
			},
			want: []string{"Activity", "Condition", "Outcome"},
		},
		{
			name: "collation ignores case at the primary level",
			in: []types.UsageStat{
				{ID: "1", Name: "banana", Count: 0},
				{ID: "2", Name: "Apple", Count: 0},
				{ID: "3", Name: "cherry", Count: 0},
			},
			want: []string{"Apple", "banana", "cherry"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Sort(tt.in)
			assert.Equal(t, tt.want, names(tt.in))
		})
	}
}

func TestSortStableForEqualNames(t *testing.T) {
	build := func() []types.UsageStat {
		return []types.UsageStat{
			{ID: "b", Name: "Toast", Count: 1},
			{ID: "a", Name: "Toast", Count: 1, IsBundle: true},
		}
	}
	first := build()
	Sort(first)
	for range 5 {
		again := build()
		Sort(again)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "a", first[0].ID)
}

func TestFirstAndContains(t *testing.T) {
	assert.Equal(t, "", First(nil))
	stats := []types.UsageStat{{ID: "x"}, {ID: "y"}}
	assert.Equal(t, "x", First(stats))
	assert.True(t, Contains(stats, "y"))
	assert.False(t, Contains(stats, "z"))
}
