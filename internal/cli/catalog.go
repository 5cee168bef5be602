package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/healthlog/pkg/types"
)

func newTypesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List types in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withJournal(cmd, func(ctx context.Context, j types.Journal) error {
				list, err := j.ListTypes(ctx)
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), list)
				}
				rows := make([][]string, len(list))
				for i, t := range list {
					rows[i] = []string{t.ID, t.Name, strconv.Itoa(t.DisplayOrder), t.Color}
				}
				return printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "ORDER", "COLOR"}, rows)
			})
		},
	}
}

func newCategoriesCmd(a *app) *cobra.Command {
	var typeName string
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List categories, optionally of one type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withJournal(cmd, func(ctx context.Context, j types.Journal) error {
				typeID := ""
				if typeName != "" {
					t, err := findType(ctx, j, typeName)
					if err != nil {
						return err
					}
					typeID = t.ID
				}
				list, err := j.ListCategories(ctx, typeID)
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), list)
				}
				rows := make([][]string, len(list))
				for i, c := range list {
					rows[i] = []string{c.ID, c.Name, c.TypeID}
				}
				return printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "TYPE"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "", "type name or id")
	return cmd
}

func newItemsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "items",
		Short: "List catalog items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withJournal(cmd, func(ctx context.Context, j types.Journal) error {
				list, err := j.GetAllCatalogItems(ctx)
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), list)
				}
				rows := make([][]string, len(list))
				for i, it := range list {
					rows[i] = []string{it.ID, it.TypeName, it.CategoryName, it.Name}
				}
				return printTable(cmd.OutOrStdout(), []string{"ID", "TYPE", "CATEGORY", "NAME"}, rows)
			})
		},
	}
}

func newItemCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Add, edit or show one catalog item",
	}
	cmd.AddCommand(newItemAddCmd(a), newItemShowCmd(a))
	return cmd
}

// parseQuantifier reads "name[:min[:max[:units]]]".
func parseQuantifier(s string) (types.QuantifierInput, error) {
	parts := strings.SplitN(s, ":", 4)
	q := types.QuantifierInput{Name: strings.TrimSpace(parts[0])}
	if q.Name == "" {
		return q, usageError("quantifier %q has no name", s)
	}
	bound := func(i int) (*float64, error) {
		if len(parts) <= i || strings.TrimSpace(parts[i]) == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return nil, usageError("quantifier %q: %v", s, err)
		}
		return &f, nil
	}
	var err error
	if q.MinValue, err = bound(1); err != nil {
		return q, err
	}
	if q.MaxValue, err = bound(2); err != nil {
		return q, err
	}
	if len(parts) == 4 {
		q.Units = strings.TrimSpace(parts[3])
	}
	return q, nil
}

func newItemAddCmd(a *app) *cobra.Command {
	var (
		in          types.ItemInput
		quantifiers []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an item, or replace an existing item's description and quantifiers",
		Long: "Create an item, or replace an existing item's description and quantifiers.\n" +
			"Type and category are created when missing. Quantifiers are given as\n" +
			"name[:min[:max[:units]]]; the full set must be passed on every edit.",
		Example: "  healthlog item add --type Activity --category Eating --name Toast --quantifier Slices:0:10:pcs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range quantifiers {
				q, err := parseQuantifier(s)
				if err != nil {
					return err
				}
				in.Quantifiers = append(in.Quantifiers, q)
			}
			if err := in.Validate(); err != nil {
				return err
			}
			return a.withJournal(cmd, func(ctx context.Context, j types.Journal) error {
				id, err := j.UpsertItem(ctx, in)
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]string{"id": id})
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.ID, "id", "", "id of the item to edit")
	cmd.Flags().StringVar(&in.TypeName, "type", "", "type name (required)")
	cmd.Flags().StringVar(&in.CategoryName, "category", "", "category name (required)")
	cmd.Flags().StringVar(&in.Name, "name", "", "item name (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "item description")
	cmd.Flags().StringArrayVar(&quantifiers, "quantifier", nil, "quantifier as name[:min[:max[:units]]] (repeatable)")
	return cmd
}

func newItemShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an item with its quantifiers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withJournal(cmd, func(ctx context.Context, j types.Journal) error {
				d, err := j.GetItemDetail(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if a.jsonMode {
					return printJSON(out, d)
				}
				fmt.Fprintf(out, "%s  %s / %s / %s\n", d.ID, d.TypeName, d.CategoryName, d.Name)
				if d.Description != "" {
					fmt.Fprintf(out, "  %s\n", d.Description)
				}
				rows := make([][]string, len(d.Quantifiers))
				for i, q := range d.Quantifiers {
					rows[i] = []string{q.Name, formatFloat(q.MinValue), formatFloat(q.MaxValue), q.Units}
				}
				return printTable(out, []string{"QUANTIFIER", "MIN", "MAX", "UNITS"}, rows)
			})
		},
	}
}

func newBundlesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bundles",
		Short: "List bundles with their members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withJournal(cmd, func(ctx context.Context, j types.Journal) error {
				list, err := j.GetAllCatalogBundles(ctx)
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), list)
				}
				rows := make([][]string, len(list))
				for i, b := range list {
					members := make([]string, len(b.Members))
					for k, m := range b.Members {
						members[k] = m.ItemName
						if m.MemberBundleID != "" {
							members[k] = "[" + m.MemberBundleName + "]"
						}
					}
					rows[i] = []string{b.ID, b.Name, b.TypeName, strings.Join(members, ", ")}
				}
				return printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "TYPE", "MEMBERS"}, rows)
			})
		},
	}
}

func newBundleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Manage bundles",
	}
	cmd.AddCommand(newBundleSetCmd(a))
	return cmd
}

func newBundleSetCmd(a *app) *cobra.Command {
	var (
		typeName string
		items    []string
		bundles  []string
	)
	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Create a bundle or replace its members",
		Long: "Create a bundle or replace its members. Items are given by id;\n" +
			"nested bundles by name. Item members come first, in flag order.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withJournal(cmd, func(ctx context.Context, j types.Journal) error {
				in := types.BundleInput{Name: args[0]}
				if typeName != "" {
					t, err := findType(ctx, j, typeName)
					if err != nil {
						return err
					}
					in.TypeID = t.ID
				}
				for _, id := range items {
					in.Members = append(in.Members, types.BundleMemberInput{ItemID: id})
				}
				if len(bundles) > 0 {
					all, err := j.GetAllCatalogBundles(ctx)
					if err != nil {
						return err
					}
					for _, name := range bundles {
						id := ""
						for _, b := range all {
							if strings.EqualFold(b.Name, name) {
								id = b.ID
							}
						}
						if id == "" {
							return fmt.Errorf("bundle %q: %w", name, types.ErrNotFound)
						}
						in.Members = append(in.Members, types.BundleMemberInput{BundleID: id})
					}
				}
				id, err := j.UpsertBundle(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "", "type name or id")
	cmd.Flags().StringArrayVar(&items, "item", nil, "member item id (repeatable)")
	cmd.Flags().StringArrayVar(&bundles, "bundle", nil, "nested bundle name (repeatable)")
	return cmd
}
