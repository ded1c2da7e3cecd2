// Package telemetry wires logging, tracing and metrics for zbxsync.
//
// Logging uses zerolog. NewLogger builds the root logger from LoggingConfig and
// Component derives a child logger tagged with the component name:
//
//	logger, err := telemetry.NewLogger(telemetry.DefaultConfig().Logging)
//	rpcLog := telemetry.Component(logger, "rpc")
//
// Tracing uses OpenTelemetry. The exporter is "none", "stdout" or "otlp"; with
// "none" the tracer is a no-op and spans cost nothing. Runs, steps and RPC
// calls each get a span:
//
//	tracer, err := telemetry.NewTracer(ctx, cfg.Tracing, cfg.ServiceName, version)
//	defer tracer.Shutdown(context.Background())
//	ctx, span := tracer.StartStepSpan(ctx, "host", "webserver1")
//	defer span.End()
//
// Metrics use a private Prometheus registry. zbxsync is a batch job, so metrics
// are written to a node_exporter textfile after each run instead of being
// served:
//
//	metrics := telemetry.NewMetrics(cfg.Metrics)
//	metrics.RecordEnsure("host", "created", time.Since(start))
//	err := metrics.WriteToTextfile("/var/lib/node_exporter/zbxsync.prom")
//
// All Metrics and Tracer methods accept a nil receiver.
//
// # Metrics
//
//   - zbxsync_rpc_calls_total{method,result}
//   - zbxsync_rpc_call_duration_seconds{method}
//   - zbxsync_rpc_retries_total{method}
//   - zbxsync_ensure_outcomes_total{kind,outcome}
//   - zbxsync_step_duration_seconds{kind}
//   - zbxsync_readiness_phases_total{phase,result}
//   - zbxsync_readiness_phase_duration_seconds{phase}
//   - zbxsync_runs_completed_total{status}
//   - zbxsync_run_duration_seconds
//   - zbxsync_last_run_timestamp_seconds
//   - zbxsync_errors_by_class_total{class}
package telemetry
