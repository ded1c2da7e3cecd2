package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfroyo/zbxsync/pkg/config"
)

var (
	// Global flags
	catalogPath string
	policyPaths []string
	logLevel    string
	logFormat   string

	// lookupEnv reads settings; tests replace it.
	lookupEnv config.LookupFunc = os.LookupEnv
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zbxsync",
		Short: "Reconcile monitoring server configuration from a catalog",
		Long: `zbxsync waits for the monitoring server API to accept writes, then ensures
that every host group, host, template, item, trigger, dashboard and notification
object declared in the catalog exists with the declared attributes.

Every pass is idempotent: a second run against a converged server issues no
create or update calls.

Connection settings come from the environment:
  ZBX_API_URL, ZBX_USER, ZBX_PASS, ZBX_AUTH_MODE, ZBX_PROXY_NAME, ZBX_LANG,
  WAIT_TIMEOUT, WAIT_INTERVAL, SNMP_AUTH_PASS, SNMP_PRIV_PASS,
  TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID, LOG_LEVEL, LOG_FORMAT`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "catalog file or directory (default: built-in lab catalog)")
	rootCmd.PersistentFlags().StringSliceVar(&policyPaths, "policy", nil, "additional Rego policy file or directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console, json")

	rootCmd.AddCommand(newApplyCommand(version))
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newWaitCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
