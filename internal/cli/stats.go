package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/healthlog/pkg/types"
)

func newStatsCmd(a *app) *cobra.Command {
	var typeName, category string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage counts, most used first",
		Long: "Show usage counts, most used first. Without flags the counts are per type;\n" +
			"--type counts its categories; --category counts its items and bundles.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withJournal(cmd, func(ctx context.Context, j types.Journal) error {
				var (
					stats []types.UsageStat
					err   error
				)
				typeID := ""
				if typeName != "" {
					t, terr := findType(ctx, j, typeName)
					if terr != nil {
						return terr
					}
					typeID = t.ID
				}
				switch {
				case category != "":
					cat, cerr := findCategory(ctx, j, typeID, category)
					if cerr != nil {
						return cerr
					}
					stats, err = j.GetItemStats(ctx, cat.ID)
				case typeID != "":
					stats, err = j.GetCategoryStats(ctx, typeID)
				default:
					stats, err = j.GetTypeStats(ctx)
				}
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), stats)
				}
				rows := make([][]string, len(stats))
				for i, s := range stats {
					kind := ""
					if s.IsBundle {
						kind = "bundle"
					}
					rows[i] = []string{strconv.Itoa(s.Count), s.Name, kind, s.ID}
				}
				return printTable(cmd.OutOrStdout(), []string{"COUNT", "NAME", "KIND", "ID"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "", "count the categories of this type")
	cmd.Flags().StringVar(&category, "category", "", "count the items and bundles of this category")
	return cmd
}
