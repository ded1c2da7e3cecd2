package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/zbxsync/pkg/provision"
)

func newWaitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait until the API accepts writes",
		Long: `Run only the readiness gate: wait for the API to answer, to accept the
credentials and to accept a write. Exits non-zero when a phase times out.`,
		Example: `  # Block a container entrypoint until the server is ready
  zbxsync wait && zbxsync apply --skip-wait`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(true)
			if err != nil {
				return err
			}
			logger, err := newLogger(s)
			if err != nil {
				return err
			}

			if _, err := provision.New(s, provision.WithLogger(logger)).Connect(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API ready")
			return nil
		},
	}

	return cmd
}
