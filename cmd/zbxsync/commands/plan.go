package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/zbxsync/pkg/provision"
)

func newPlanCommand() *cobra.Command {
	var dot bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the ordered steps of a run without calling the API",
		Long: `Render the catalog and print the steps an apply would execute, level by
level, with the steps each one waits for.

Notification steps are included only when TELEGRAM_BOT_TOKEN and
TELEGRAM_CHAT_ID are set.`,
		Example: `  # Show the plan of the built-in catalog
  zbxsync plan

  # Render the step graph with Graphviz
  zbxsync plan --catalog ./catalog --dot | dot -Tsvg > plan.svg`,
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
			plan, err := provision.BuildPlan(c, provision.Options{Notifications: s.NotificationsEnabled()})
			if err != nil {
				return err
			}

			if dot {
				fmt.Fprint(cmd.OutOrStdout(), plan.DOT)
				return nil
			}
			provision.RenderPlan(cmd.OutOrStdout(), plan)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dot, "dot", false, "print the step graph in Graphviz format")

	return cmd
}
