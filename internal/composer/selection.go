// Package composer holds the defaulting logic of the entry composer: the
// Type, Category and Item selections of an entry being written, and how
// usage statistics and manual changes move them.
//
// The transition functions in this file are pure. Composer wires them to a
// journal.
package composer

import (
	"errors"
	"slices"
	"time"

	"github.com/mesh-intelligence/healthlog/internal/stats"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

// Mode says how the composer was opened.
type Mode int

const (
	// ModeNew composes a fresh entry and pre-selects the most used type and
	// category.
	ModeNew Mode = iota
	// ModeEdit rewrites an existing entry in place.
	ModeEdit
	// ModeClone starts a new entry from an existing one.
	ModeClone
)

func (m Mode) String() string {
	switch m {
	case ModeNew:
		return "new"
	case ModeEdit:
		return "edit"
	case ModeClone:
		return "clone"
	default:
		return "unknown"
	}
}

// Selection is the composer state. ItemIDs may hold bundle ids; they are
// expanded when the entry is built.
type Selection struct {
	TypeID     string
	CategoryID string
	ItemIDs    []string
	Timestamp  time.Time
	Comment    string
}

// Validation errors returned by Validate.
var (
	ErrTypeRequired      = errors.New("a type must be selected")
	ErrTimestampRequired = errors.New("a timestamp is required")
	ErrCategoryRequired  = errors.New("items require a selected category")
)

// ApplyTypeStats pre-selects the most used type in ModeNew when no type is
// selected yet. Edit and clone keep the loaded selection.
func ApplyTypeStats(sel Selection, mode Mode, typeStats []types.UsageStat) Selection {
	if mode == ModeNew && sel.TypeID == "" {
		sel.TypeID = stats.First(typeStats)
	}
	return sel
}

// ApplyCategoryStats pre-selects the most used category of the selected type
// in ModeNew when no category is selected yet.
func ApplyCategoryStats(sel Selection, mode Mode, categoryStats []types.UsageStat) Selection {
	if mode == ModeNew && sel.TypeID != "" && sel.CategoryID == "" {
		sel.CategoryID = stats.First(categoryStats)
	}
	return sel
}

// SelectType sets the type. A different type clears the category and items.
func SelectType(sel Selection, typeID string) Selection {
	if typeID == sel.TypeID {
		return sel
	}
	sel.TypeID = typeID
	sel.CategoryID = ""
	sel.ItemIDs = nil
	return sel
}

// SelectCategory sets the category. A different category clears the items.
func SelectCategory(sel Selection, categoryID string) Selection {
	if categoryID == sel.CategoryID {
		return sel
	}
	sel.CategoryID = categoryID
	sel.ItemIDs = nil
	return sel
}

// ApplyItemStats drops selected ids missing from a freshly loaded item list.
func ApplyItemStats(sel Selection, itemStats []types.UsageStat) Selection {
	if len(sel.ItemIDs) == 0 {
		return sel
	}
	kept := make([]string, 0, len(sel.ItemIDs))
	for _, id := range sel.ItemIDs {
		if stats.Contains(itemStats, id) {
			kept = append(kept, id)
		}
	}
	sel.ItemIDs = kept
	return sel
}

// ToggleItem adds id to the selection, or removes it when already selected.
func ToggleItem(sel Selection, id string) Selection {
	if i := slices.Index(sel.ItemIDs, id); i >= 0 {
		sel.ItemIDs = slices.Delete(slices.Clone(sel.ItemIDs), i, i+1)
		return sel
	}
	sel.ItemIDs = append(slices.Clone(sel.ItemIDs), id)
	return sel
}

// Validate reports whether sel can be saved.
func Validate(sel Selection) error {
	if sel.TypeID == "" {
		return ErrTypeRequired
	}
	if sel.Timestamp.IsZero() {
		return ErrTimestampRequired
	}
	if len(sel.ItemIDs) > 0 && sel.CategoryID == "" {
		return ErrCategoryRequired
	}
	return nil
}
