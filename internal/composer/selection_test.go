package composer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/mesh-intelligence/healthlog/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var categoryStats = []types.UsageStat{
	{ID: "eating", Name: "Eating", Count: 3},
	{ID: "exercise", Name: "Exercise", Count: 1},
}

func TestApplyTypeStats(t *testing.T) {
	typeStats := []types.UsageStat{{ID: "activity", Name: "Activity", Count: 4}, {ID: "outcome", Name: "Outcome"}}

	tests := []struct {
		name string
		sel  Selection
		mode Mode
		want string
	}{
		{"new mode picks most used", Selection{}, ModeNew, "activity"},
		{"new mode keeps a selection", Selection{TypeID: "outcome"}, ModeNew, "outcome"},
		{"edit keeps loaded type", Selection{TypeID: "outcome"}, ModeEdit, "outcome"},
		{"clone never auto-selects", Selection{}, ModeClone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyTypeStats(tt.sel, tt.mode, typeStats)
			assert.Equal(t, tt.want, got.TypeID)
		})
	}

	assert.Empty(t, ApplyTypeStats(Selection{}, ModeNew, nil).TypeID)
}

func TestApplyCategoryStats(t *testing.T) {
	tests := []struct {
		name string
		sel  Selection
		mode Mode
		want string
	}{
		{"new mode picks most used", Selection{TypeID: "activity"}, ModeNew, "eating"},
		{"no type selected", Selection{}, ModeNew, ""},
		{"edit keeps loaded category", Selection{TypeID: "activity", CategoryID: "exercise"}, ModeEdit, "exercise"},
		{"edit without category stays empty", Selection{TypeID: "activity"}, ModeEdit, ""},
		{"clone without category stays empty", Selection{TypeID: "activity"}, ModeClone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyCategoryStats(tt.sel, tt.mode, categoryStats)
			assert.Equal(t, tt.want, got.CategoryID)
		})
	}
}

func TestSelectTypeClearsDependents(t *testing.T) {
	sel := Selection{TypeID: "activity", CategoryID: "eating", ItemIDs: []string{"toast"}, Comment: "c"}

	same := SelectType(sel, "activity")
	assert.Equal(t, sel, same, "reselecting the same type changes nothing")

	changed := SelectType(sel, "outcome")
	assert.Equal(t, "outcome", changed.TypeID)
	assert.Empty(t, changed.CategoryID)
	assert.Empty(t, changed.ItemIDs)
	assert.Equal(t, "c", changed.Comment)
}

func TestSelectCategoryClearsItems(t *testing.T) {
	sel := Selection{TypeID: "activity", CategoryID: "eating", ItemIDs: []string{"toast"}}

	assert.Equal(t, sel, SelectCategory(sel, "eating"))

	changed := SelectCategory(sel, "exercise")
	assert.Equal(t, "activity", changed.TypeID)
	assert.Equal(t, "exercise", changed.CategoryID)
	assert.Empty(t, changed.ItemIDs)
}

func TestApplyItemStatsDropsVanished(t *testing.T) {
	sel := Selection{ItemIDs: []string{"toast", "gone", "breakfast"}}
	itemStats := []types.UsageStat{
		{ID: "breakfast", Name: "Breakfast", IsBundle: true},
		{ID: "toast", Name: "Toast"},
	}

	got := ApplyItemStats(sel, itemStats)
	assert.Equal(t, []string{"toast", "breakfast"}, got.ItemIDs)
	assert.Equal(t, []string{"toast", "gone", "breakfast"}, sel.ItemIDs, "input is not modified")
}

func TestToggleItem(t *testing.T) {
	sel := ToggleItem(Selection{}, "a")
	sel = ToggleItem(sel, "b")
	assert.Equal(t, []string{"a", "b"}, sel.ItemIDs)

	before := sel
	sel = ToggleItem(sel, "a")
	assert.Equal(t, []string{"b"}, sel.ItemIDs)
	assert.Equal(t, []string{"a", "b"}, before.ItemIDs)
}

func TestValidate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		sel     Selection
		wantErr error
	}{
		{"valid without items", Selection{TypeID: "t", Timestamp: now}, nil},
		{"valid with items", Selection{TypeID: "t", CategoryID: "c", ItemIDs: []string{"i"}, Timestamp: now}, nil},
		{"missing type", Selection{Timestamp: now}, ErrTypeRequired},
		{"missing timestamp", Selection{TypeID: "t"}, ErrTimestampRequired},
		{"items without category", Selection{TypeID: "t", ItemIDs: []string{"i"}, Timestamp: now}, ErrCategoryRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.sel)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "new", ModeNew.String())
	assert.Equal(t, "edit", ModeEdit.String())
	assert.Equal(t, "clone", ModeClone.String())
	assert.Equal(t, "unknown", Mode(9).String())
}
