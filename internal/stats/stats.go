// Package stats orders usage statistics. Every backend routes its stats
// results through Sort so the "most used" default picked by the entry
// composer is identical regardless of where the counts came from.
package stats

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/mesh-intelligence/healthlog/pkg/types"
)

// Sort orders stats by count descending, then name ascending using a
// case-sensitive locale collation, then id ascending. The id tie-break keeps
// the order stable across calls when two entities share a name and count.
func Sort(stats []types.UsageStat) {
	// collate.Collator is not safe for concurrent use.
	c := collate.New(language.Und)
	sort.SliceStable(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if cmp := c.CompareString(a.Name, b.Name); cmp != 0 {
			return cmp < 0
		}
		return a.ID < b.ID
	})
}

// First returns the id of the first stat, or "" when stats is empty.
func First(stats []types.UsageStat) string {
	if len(stats) == 0 {
		return ""
	}
	return stats[0].ID
}

// Contains reports whether id is present in stats.
func Contains(stats []types.UsageStat, id string) bool {
	for _, s := range stats {
		if s.ID == id {
			return true
		}
	}
	return false
}
