package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/zbxsync/pkg/provision"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the catalog and its policies",
		Long: `Render and decode the catalog, then check:
  - field constraints and unknown fields
  - duplicate natural keys across files
  - interface and SNMPv3 secret requirements
  - the built-in and --policy Rego policies`,
		Example: `  # Validate the built-in catalog against the current environment
  zbxsync validate

  # Validate a catalog directory with a site policy
  zbxsync validate --catalog ./catalog --policy ./policies`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(false)
			if err != nil {
				return err
			}
			logger, err := newLogger(s)
			if err != nil {
				return err
			}

			c, err := loadCatalog(cmd.Context(), s, logger)
			if err != nil {
				return err
			}

			steps := provision.Compile(c, nil, provision.Options{Notifications: s.NotificationsEnabled()})
			fmt.Fprintf(cmd.OutOrStdout(), "Catalog is valid: %d objects\n", len(steps))
			return nil
		},
	}

	return cmd
}
