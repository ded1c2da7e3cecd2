package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/zbxsync/pkg/provision"
	"github.com/openfroyo/zbxsync/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		journalPath string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List journaled runs or the steps of one run",
		Example: `  # Last 20 runs
  zbxsync history --journal runs.db

  # Steps of one run
  zbxsync history --journal runs.db 6f1c2a8e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			journal, err := stores.OpenJournal(ctx, journalPath)
			if err != nil {
				return err
			}
			defer func() { _ = journal.Close() }()

			if len(args) == 1 {
				run, err := journal.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				steps, err := journal.ListSteps(ctx, run.ID)
				if err != nil {
					return err
				}
				provision.RenderHistory(cmd.OutOrStdout(), []*stores.Run{run})
				if len(steps) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No steps recorded")
					return nil
				}
				provision.RenderSteps(cmd.OutOrStdout(), steps)
				return nil
			}

			runs, err := journal.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			provision.RenderHistory(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&journalPath, "journal", "", "SQLite run journal")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list, 0 for all")
	_ = cmd.MarkFlagRequired("journal")

	return cmd
}
