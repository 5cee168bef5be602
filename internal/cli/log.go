package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/healthlog/internal/composer"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

func newLogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Record and browse log entries",
	}
	cmd.AddCommand(
		newLogAddCmd(a),
		newLogListCmd(a),
		newLogShowCmd(a),
		newLogEditCmd(a),
		newLogCloneCmd(a),
		newLogDeleteCmd(a),
	)
	return cmd
}

// entryFlags are the fields shared by add, edit and clone.
type entryFlags struct {
	at      string
	comment string
	values  []string
}

func (f *entryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.at, "at", "", "occurrence time, RFC 3339 (default: now)")
	cmd.Flags().StringVar(&f.comment, "comment", "", "entry comment")
	cmd.Flags().StringArrayVar(&f.values, "value", nil, "quantifier value as item.quantifier=value (repeatable)")
}

// apply sets the time, comment and values that were given on the command line.
func (f *entryFlags) apply(ctx context.Context, cmd *cobra.Command, j types.Journal, c *composer.Composer, itemIDs []string) error {
	if f.at != "" {
		ts, err := types.ParseTimestamp(f.at)
		if err != nil {
			return fmt.Errorf("--at %q: %w", f.at, err)
		}
		c.SetTimestamp(ts)
	}
	if cmd.Flags().Changed("comment") {
		c.SetComment(f.comment)
	}
	for _, v := range f.values {
		if err := setValue(ctx, j, c, itemIDs, v); err != nil {
			return err
		}
	}
	return nil
}

// setValue parses "item.quantifier=value" and records it against the
// matching item among itemIDs.
func setValue(ctx context.Context, j types.Journal, c *composer.Composer, itemIDs []string, s string) error {
	ref, raw, ok := strings.Cut(s, "=")
	itemName, qName, ok2 := strings.Cut(ref, ".")
	if !ok || !ok2 {
		return usageError("--value %q: want item.quantifier=value", s)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return usageError("--value %q: %v", s, err)
	}
	for _, id := range itemIDs {
		d, err := j.GetItemDetail(ctx, id)
		if err != nil {
			return err
		}
		if !strings.EqualFold(d.Name, strings.TrimSpace(itemName)) && d.ID != itemName {
			continue
		}
		for _, q := range d.Quantifiers {
			if strings.EqualFold(q.Name, strings.TrimSpace(qName)) {
				c.SetValue(d.ID, q.ID, value)
				return nil
			}
		}
		return fmt.Errorf("item %q has no quantifier %q: %w", d.Name, qName, types.ErrNotFound)
	}
	return fmt.Errorf("item %q is not on this entry: %w", itemName, types.ErrNotFound)
}

func newLogAddCmd(a *app) *cobra.Command {
	var (
		f        entryFlags
		typeName string
		category string
		items    []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an entry",
		Long: "Record an entry. Without --type and --category the most used type and\n" +
			"category are picked. Items and bundles are given by name or id and must\n" +
			"belong to the chosen category.",
		Example: "  healthlog log add --item Breakfast --value Toast.Slices=2\n" +
			"  healthlog log add --type Condition --category Mood --comment \"tired\"",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withJournal(cmd, func(ctx context.Context, j types.Journal) error {
				c := composer.New(j)
				if err := c.Load(ctx); err != nil {
					return err
				}
				if typeName != "" {
					t, err := findType(ctx, j, typeName)
					if err != nil {
						return err
					}
					if err := c.SelectType(ctx, t.ID); err != nil {
						return err
					}
				}
				if category != "" {
					cat, err := findCategory(ctx, j, c.Selection().TypeID, category)
					if err != nil {
						return err
					}
					if err := c.SelectCategory(ctx, cat.ID); err != nil {
						return err
					}
				}
				for _, name := range items {
					id, err := findSelectable(ctx, c, name)
					if err != nil {
						return err
					}
					c.ToggleItem(id)
				}

				in, err := c.Build(ctx)
				if err != nil {
					return usageError("%v", err)
				}
				ids := make([]string, len(in.Items))
				for i, it := range in.Items {
					ids[i] = it.ItemID
				}
				if err := f.apply(ctx, cmd, j, c, ids); err != nil {
					return err
				}
				id, err := c.Save(ctx, j)
				if err != nil {
					return err
				}
				return a.printEntryID(ctx, cmd, j, id)
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&typeName, "type", "", "type name or id")
	cmd.Flags().StringVar(&category, "category", "", "category name or id")
	cmd.Flags().StringArrayVar(&items, "item", nil, "item or bundle name or id (repeatable)")
	return cmd
}

// findSelectable resolves name against the items and bundles offered for the
// composer's current category.
func findSelectable(ctx context.Context, c *composer.Composer, name string) (string, error) {
	categoryID := c.Selection().CategoryID
	if categoryID == "" {
		return "", usageError("pick a --category before --item")
	}
	stats, err := c.ItemStats(ctx, categoryID)
	if err != nil {
		return "", err
	}
	for _, s := range stats {
		if s.ID == name || strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return s.ID, nil
		}
	}
	return "", fmt.Errorf("item %q in this category: %w", name, types.ErrNotFound)
}

func (a *app) printEntryID(ctx context.Context, cmd *cobra.Command, j types.Journal, id string) error {
	if !a.jsonMode {
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	}
	e, err := j.GetLogEntryByID(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), e)
}

// fromEntry starts an edit or clone of the entry id and applies the flags.
func fromEntry(mode composer.Mode, a *app, f *entryFlags) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return a.withJournal(cmd, func(ctx context.Context, j types.Journal) error {
			e, err := j.GetLogEntryByID(ctx, args[0])
			if err != nil {
				return err
			}
			c, err := composer.NewFromEntry(j, e, mode)
			if err != nil {
				return err
			}
			if err := f.apply(ctx, cmd, j, c, e.ItemIDs()); err != nil {
				return err
			}
			id, err := c.Save(ctx, j)
			if err != nil {
				return err
			}
			return a.printEntryID(ctx, cmd, j, id)
		})
	}
}

func newLogEditCmd(a *app) *cobra.Command {
	var f entryFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change an entry's time, comment or values",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = fromEntry(composer.ModeEdit, a, &f)
	f.register(cmd)
	return cmd
}

func newLogCloneCmd(a *app) *cobra.Command {
	var f entryFlags
	cmd := &cobra.Command{
		Use:   "clone <id>",
		Short: "Record a copy of an entry, stamped now unless --at is given",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = fromEntry(composer.ModeClone, a, &f)
	f.register(cmd)
	return cmd
}

func newLogListCmd(a *app) *cobra.Command {
	var (
		typeName string
		from, to string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter types.LogFilter
			var err error
			if filter.From, err = parseOptionalTime(from); err != nil {
				return err
			}
			if filter.To, err = parseOptionalTime(to); err != nil {
				return err
			}
			filter.Limit = limit
			return a.withJournal(cmd, func(ctx context.Context, j types.Journal) error {
				if typeName != "" {
					t, err := findType(ctx, j, typeName)
					if err != nil {
						return err
					}
					filter.TypeID = t.ID
				}
				entries, err := j.GetAllLogEntries(ctx, filter)
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), entries)
				}
				rows := make([][]string, len(entries))
				for i, e := range entries {
					rows[i] = []string{e.ID, types.FormatTimestamp(e.Timestamp), e.TypeName, itemNames(e), e.Comment}
				}
				return printTable(cmd.OutOrStdout(), []string{"ID", "TIME", "TYPE", "ITEMS", "COMMENT"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "", "only entries of this type")
	cmd.Flags().StringVar(&from, "from", "", "only entries at or after this time")
	cmd.Flags().StringVar(&to, "to", "", "only entries before this time")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entries")
	return cmd
}

func parseOptionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := types.ParseTimestamp(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: %w", s, err)
	}
	return t, nil
}

func newLogShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one entry with its items and values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withJournal(cmd, func(ctx context.Context, j types.Journal) error {
				e, err := j.GetLogEntryByID(ctx, args[0])
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), e)
				}
				printEntry(cmd.OutOrStdout(), e)
				return nil
			})
		},
	}
}

func newLogDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withJournal(cmd, func(ctx context.Context, j types.Journal) error {
				if err := j.DeleteLogEntry(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
				return nil
			})
		},
	}
}
