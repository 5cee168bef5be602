package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/healthlog/internal/backup"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

func (a *app) engine(j types.Journal) (*backup.Engine, error) {
	return backup.NewEngine(j, backup.WithLogger(a.logger), backup.WithMetrics(a.metrics))
}

func newExportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole journal as a YAML backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withJournal(cmd, func(ctx context.Context, j types.Journal) error {
				e, err := a.engine(j)
				if err != nil {
					return err
				}
				data, err := e.Export(ctx)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					return backup.Encode(cmd.OutOrStdout(), data)
				}
				return writeBackupFile(output, data)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "backup file (default: standard output)")
	return cmd
}

func writeBackupFile(path string, data *backup.BackupData) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return backup.Encode(f, data)
}

func newImportCmd(a *app) *cobra.Command {
	var (
		dryRun bool
		mode   string
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Merge a backup into the journal",
		Long: "Merge a backup into the journal. Records whose names already exist are\n" +
			"counted as updates and left unchanged. Use --dry-run to preview.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readBackupFile(cmd, args[0])
			if err != nil {
				return err
			}
			return a.withJournal(cmd, func(ctx context.Context, j types.Journal) error {
				e, err := a.engine(j)
				if err != nil {
					return err
				}
				preview, err := e.Import(ctx, data, backup.ImportOptions{Mode: backup.Mode(mode), DryRun: dryRun})
				if preview != nil {
					if perr := a.printPreview(cmd.OutOrStdout(), preview, dryRun); perr != nil && err == nil {
						err = perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify records without writing")
	cmd.Flags().StringVar(&mode, "mode", string(backup.ModeMerge), "merge or replace (replace currently merges)")
	return cmd
}

func readBackupFile(cmd *cobra.Command, path string) (*backup.BackupData, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open backup: %w", err)
		}
		defer f.Close()
		r = f
	}
	return backup.Decode(r)
}

func (a *app) printPreview(w io.Writer, p *backup.ImportPreview, dryRun bool) error {
	if a.jsonMode {
		return printJSON(w, p)
	}
	if dryRun {
		fmt.Fprintln(w, "dry run, nothing written")
	}
	rows := [][]string{
		countsRow("catalog items", p.CatalogItems),
		countsRow("bundles", p.Bundles),
		countsRow("logs", p.Logs),
	}
	if err := printTable(w, []string{"RECORDS", "ADD", "UPDATE", "SKIP"}, rows); err != nil {
		return err
	}
	for _, msg := range p.Warnings {
		fmt.Fprintln(w, "warning:", msg)
	}
	for _, msg := range p.Errors {
		fmt.Fprintln(w, "error:", msg)
	}
	return nil
}

func countsRow(name string, c backup.Counts) []string {
	return []string{name, fmt.Sprint(c.Add), fmt.Sprint(c.Update), fmt.Sprint(c.Skip)}
}
