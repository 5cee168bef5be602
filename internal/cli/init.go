package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/healthlog/pkg/types"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration and an empty, seeded journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, err := a.resolveDataDir()
			if err != nil {
				return err
			}
			// Attaching creates the database, migrates it and seeds it.
			err = a.withJournal(cmd, func(context.Context, types.Journal) error { return nil })
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "healthlog initialized")
			fmt.Fprintln(out, "  config:", a.resolvedConfigDir)
			fmt.Fprintln(out, "  data:  ", dataDir)
			return nil
		},
	}
}
