package backup

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mesh-intelligence/healthlog/pkg/types"
)

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// mergeKey joins the normalized parts with "|".
func mergeKey(parts ...string) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = norm(p)
	}
	return strings.Join(out, "|")
}

// logKey identifies a log entry by its time, type and the sorted, distinct
// names of its items. An entry stores each item once, so repeats in a file
// must not change the key.
func logKey(ts time.Time, typeName string, itemNames []string) string {
	names := make([]string, len(itemNames))
	for i, n := range itemNames {
		names[i] = norm(n)
	}
	slices.Sort(names)
	names = slices.Compact(names)
	return mergeKey(types.FormatTimestamp(ts), typeName, strings.Join(names, ","))
}

// label names a record in errors and warnings.
func label(kind string, index int, name string) string {
	if blank(name) {
		return fmt.Sprintf("%s #%d", kind, index+1)
	}
	return fmt.Sprintf("%s %q", kind, name)
}

type itemRef struct {
	typ, cat, name string
	id             string
}

// itemIndex resolves item references by name. Lookups are map reads; the
// first item added under a key wins.
type itemIndex struct {
	exact  map[string]itemRef
	byName map[string][]itemRef
}

func newItemIndex() *itemIndex {
	return &itemIndex{exact: map[string]itemRef{}, byName: map[string][]itemRef{}}
}

func (x *itemIndex) add(typ, cat, name, id string) {
	r := itemRef{typ: norm(typ), cat: norm(cat), name: norm(name), id: id}
	k := mergeKey(r.typ, r.cat, r.name)
	if _, ok := x.exact[k]; ok {
		return
	}
	x.exact[k] = r
	x.byName[r.name] = append(x.byName[r.name], r)
}

func (x *itemIndex) clone() *itemIndex {
	c := &itemIndex{
		exact:  make(map[string]itemRef, len(x.exact)),
		byName: make(map[string][]itemRef, len(x.byName)),
	}
	for k, r := range x.exact {
		c.exact[k] = r
	}
	for k, refs := range x.byName {
		c.byName[k] = append([]itemRef(nil), refs...)
	}
	return c
}

// resolve looks up type, category and name. A reference missing its type or
// category falls back to the given parts and succeeds when exactly one item
// matches them. A fallback never leaves the given type.
func (x *itemIndex) resolve(typ, cat, name string) (itemRef, bool) {
	typ, cat, name = norm(typ), norm(cat), norm(name)
	if typ != "" && cat != "" {
		r, ok := x.exact[mergeKey(typ, cat, name)]
		return r, ok
	}
	var (
		found itemRef
		n     int
	)
	for _, r := range x.byName[name] {
		if (typ == "" || r.typ == typ) && (cat == "" || r.cat == cat) {
			found = r
			n++
		}
	}
	return found, n == 1
}
