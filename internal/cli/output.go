package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mesh-intelligence/healthlog/pkg/types"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printTable writes rows as aligned, tab-separated columns under header.
func printTable(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

func findType(ctx context.Context, j types.CatalogRepository, name string) (types.Type, error) {
	list, err := j.ListTypes(ctx)
	if err != nil {
		return types.Type{}, err
	}
	for _, t := range list {
		if strings.EqualFold(t.Name, strings.TrimSpace(name)) || t.ID == name {
			return t, nil
		}
	}
	return types.Type{}, fmt.Errorf("type %q: %w", name, types.ErrNotFound)
}

// findCategory looks the category up under typeID, or under every type
// when typeID is empty, in which case the name must be unambiguous.
func findCategory(ctx context.Context, j types.CatalogRepository, typeID, name string) (types.Category, error) {
	list, err := j.ListCategories(ctx, typeID)
	if err != nil {
		return types.Category{}, err
	}
	var found []types.Category
	for _, c := range list {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) || c.ID == name {
			found = append(found, c)
		}
	}
	switch len(found) {
	case 0:
		return types.Category{}, fmt.Errorf("category %q: %w", name, types.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return types.Category{}, usageError("category %q exists under several types; pass --type", name)
	}
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%g", *f)
}

func printEntry(w io.Writer, e *types.LogEntry) {
	fmt.Fprintf(w, "%s  %s  %s\n", e.ID, types.FormatTimestamp(e.Timestamp), e.TypeName)
	if e.Comment != "" {
		fmt.Fprintf(w, "  %s\n", e.Comment)
	}
	for _, it := range e.Items {
		line := fmt.Sprintf("  - %s / %s", it.CategoryName, it.ItemName)
		if it.SourceBundleName != "" {
			line += fmt.Sprintf(" (from %s)", it.SourceBundleName)
		}
		for _, q := range it.Quantifiers {
			line += fmt.Sprintf(" %s=%g%s", q.Name, q.Value, q.Units)
		}
		fmt.Fprintln(w, line)
	}
}

func itemNames(e types.LogEntry) string {
	names := make([]string, len(e.Items))
	for i, it := range e.Items {
		names[i] = it.ItemName
	}
	return strings.Join(names, ", ")
}
