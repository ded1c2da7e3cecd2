package provision

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/config"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/readiness"
	"github.com/openfroyo/zbxsync/pkg/rpc"
	"github.com/openfroyo/zbxsync/pkg/telemetry"
)

// Provisioner applies catalogs to one API endpoint.
type Provisioner struct {
	settings *config.Settings
	client   *rpc.Client
	probe    *rpc.Client
	gate     readiness.Config

	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	journal  engine.Journal
	retry    *rpc.RetryPolicy
	skipWait bool
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithLogger sets the logger passed down to every component.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Provisioner) { p.logger = l }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Provisioner) { p.metrics = m }
}

// WithTracer attaches a tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(p *Provisioner) { p.tracer = t }
}

// WithJournal records every run.
func WithJournal(j engine.Journal) Option {
	return func(p *Provisioner) { p.journal = j }
}

// WithRetry overrides the transport retry policy of the main client.
func WithRetry(policy rpc.RetryPolicy) Option {
	return func(p *Provisioner) { p.retry = &policy }
}

// WithGateConfig overrides the readiness phase policies derived from the settings.
func WithGateConfig(cfg readiness.Config) Option {
	return func(p *Provisioner) { p.gate = cfg }
}

// SkipWait logs in directly instead of running the readiness gate.
func SkipWait() Option {
	return func(p *Provisioner) { p.skipWait = true }
}

// New creates a provisioner for the endpoint and credentials in settings.
func New(settings *config.Settings, opts ...Option) *Provisioner {
	p := &Provisioner{
		settings: settings,
		logger:   zerolog.Nop(),
		gate: readiness.NewConfig(settings.Username, settings.Password,
			settings.WaitTimeout, settings.WaitInterval),
	}
	for _, opt := range opts {
		opt(p)
	}

	clientOpts := []rpc.Option{
		rpc.WithLogger(p.logger),
		rpc.WithMetrics(p.metrics),
		rpc.WithTracer(p.tracer),
	}

	cfg := rpc.DefaultConfig(settings.APIURL)
	cfg.AuthMode = rpc.AuthMode(settings.AuthMode)
	if p.retry != nil {
		cfg.Retry = *p.retry
	}
	p.client = rpc.New(cfg, clientOpts...)

	// The gate paces its own polling, so probes get one attempt each.
	probe := cfg
	probe.Retry.MaxAttempts = 1
	p.probe = rpc.New(probe, clientOpts...)

	return p
}

// Connect returns an authenticated session once the API accepts writes.
func (p *Provisioner) Connect(ctx context.Context) (*rpc.Session, error) {
	if p.skipWait {
		return p.client.Login(ctx, p.settings.Username, p.settings.Password)
	}
	gate := readiness.NewGate(p.client, p.gate,
		readiness.WithProbeClient(p.probe),
		readiness.WithLogger(p.logger),
		readiness.WithMetrics(p.metrics),
	)
	return gate.Open(ctx)
}

// Options returns the compile options implied by the settings.
func (p *Provisioner) Options() Options {
	return Options{Notifications: p.settings.NotificationsEnabled()}
}

// Apply waits for the API, then ensures every catalog object in dependency
// order. The summary is nil only when the API never became ready.
func (p *Provisioner) Apply(ctx context.Context, c *catalog.Catalog) (*engine.RunSummary, error) {
	logger := telemetry.Component(p.logger, "provision")

	session, err := p.Connect(ctx)
	if err != nil {
		return nil, err
	}

	opts := p.Options()
	if !opts.Notifications && c.Notifications != nil {
		logger.Info().Msg("Telegram settings missing, skipping notifications")
	}

	return p.Run(ctx, session, c, opts)
}

// Run reconciles c through an existing session.
func (p *Provisioner) Run(ctx context.Context, session rpc.Caller, c *catalog.Catalog, opts Options) (*engine.RunSummary, error) {
	runner := engine.NewRunner(p.logger,
		engine.WithMetrics(p.metrics),
		engine.WithTracer(p.tracer),
		engine.WithJournal(p.journal),
	)
	return runner.Run(ctx, Compile(c, session, opts))
}
