package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/zbxsync/pkg/provision"
	"github.com/openfroyo/zbxsync/pkg/stores"
	"github.com/openfroyo/zbxsync/pkg/telemetry"
)

func newApplyCommand(version string) *cobra.Command {
	var (
		journalPath   string
		metricsFile   string
		watch         bool
		debounce      time.Duration
		skipWait      bool
		traceExporter string
		otlpEndpoint  string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Wait for the API and reconcile the catalog",
		Long: `Wait until the API is available, accepts the credentials and accepts a write,
then ensure every catalog object in dependency order.

The run stops at the first failing step. Objects ensured before the failure stay
in place; the next run picks up from there.`,
		Example: `  # Apply the built-in catalog
  zbxsync apply

  # Apply a catalog directory, journal the run and export metrics
  zbxsync apply --catalog ./catalog --journal runs.db --metrics-file /var/lib/node_exporter/zbxsync.prom

  # Re-apply whenever the catalog changes
  zbxsync apply --catalog ./catalog --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if watch && catalogPath == "" {
				return fmt.Errorf("--watch needs --catalog")
			}

			s, err := loadSettings(true)
			if err != nil {
				return err
			}
			logger, err := newLogger(s)
			if err != nil {
				return err
			}
			logger.Debug().Interface("settings", s.Redacted()).Msg("Settings loaded")

			telemetryCfg := telemetry.DefaultConfig()
			telemetryCfg.ServiceVersion = version
			telemetryCfg.Metrics.Enabled = metricsFile != ""
			telemetryCfg.Tracing.Exporter = traceExporter
			telemetryCfg.Tracing.Endpoint = otlpEndpoint
			if err := telemetryCfg.Validate(); err != nil {
				return err
			}
			metrics := telemetry.NewMetrics(telemetryCfg.Metrics)

			tracer, err := telemetry.NewTracer(ctx, telemetryCfg.Tracing, telemetryCfg.ServiceName, telemetryCfg.ServiceVersion)
			if err != nil {
				return err
			}
			defer func() {
				if err := tracer.Shutdown(context.Background()); err != nil {
					logger.Warn().Err(err).Msg("Failed to flush traces")
				}
			}()

			opts := []provision.Option{
				provision.WithLogger(logger),
				provision.WithMetrics(metrics),
				provision.WithTracer(tracer),
			}
			if journalPath != "" {
				journal, err := stores.OpenJournal(ctx, journalPath)
				if err != nil {
					return err
				}
				defer func() { _ = journal.Close() }()
				opts = append(opts, provision.WithJournal(journal))
			}
			if skipWait {
				opts = append(opts, provision.SkipWait())
			}
			p := provision.New(s, opts...)

			pass := func(ctx context.Context) error {
				c, err := loadCatalog(ctx, s, logger)
				if err != nil {
					return err
				}

				summary, err := p.Apply(ctx, c)
				if summary != nil {
					provision.RenderSummary(cmd.OutOrStdout(), summary)
				}
				if metricsFile != "" {
					if werr := metrics.WriteToTextfile(metricsFile); werr != nil {
						logger.Warn().Err(werr).Str("path", metricsFile).Msg("Failed to write metrics")
					}
				}
				return err
			}

			if watch {
				return provision.NewWatcher(catalogPath, debounce, logger).Run(ctx, pass)
			}
			return pass(ctx)
		},
	}

	cmd.Flags().StringVar(&journalPath, "journal", "", "SQLite database recording every run")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after each run")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-apply whenever the catalog changes")
	cmd.Flags().DurationVar(&debounce, "debounce", provision.DefaultDebounce, "quiet period before a watched change is applied")
	cmd.Flags().BoolVar(&skipWait, "skip-wait", false, "log in directly without the readiness gate")
	cmd.Flags().StringVar(&traceExporter, "trace", "none", "trace exporter: none, stdout, otlp")
	cmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "localhost:4317", "OTLP collector endpoint")

	return cmd
}
