// Package main implements the zbxcheck agent plugin. The agent runs it as a
// user parameter and collects the single value it prints; the exit code tells
// the agent whether the value is usable.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/openfroyo/zbxsync/pkg/checks"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout))
}

// run executes one check and returns the process exit code. Every usage
// error prints the failure value so the agent never sees an empty reading.
func run(ctx context.Context, args []string, out io.Writer) int {
	result := checks.Failed

	root := &cobra.Command{
		Use:           "zbxcheck",
		Short:         "Agent health checks",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("no check given")
		},
	}
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(&cobra.Command{
		Use:   "http <url>",
		Short: "Print 1 if a GET of url answers 200, else 0",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result = checks.HTTP(cmd.Context(), args[0], checks.HTTPTimeout)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "log_size <path> [max_size_mb]",
		Short: "Print the size of *.log files under path in MiB, or 1/0 against a limit",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				result = checks.LogSizeValue(args[0])
				return nil
			}
			limit, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return err
			}
			result = checks.LogSizeWithin(args[0], limit)
			return nil
		},
	})

	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		result = checks.Failed
	}

	fmt.Fprintln(out, result.Output)
	return result.Code
}
