package readiness

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
	"github.com/openfroyo/zbxsync/pkg/telemetry"
)

// Phase names, also used as metric labels.
const (
	PhaseAvailability   = "availability"
	PhaseAuthentication = "authentication"
	PhaseWrite          = "write"
)

// MinWriteTimeout is the floor of the write phase deadline.
const MinWriteTimeout = 900 * time.Second

// Config configures the gate.
type Config struct {
	Username string
	Password string

	Availability   PollPolicy
	Authentication PollPolicy
	Write          PollPolicy
}

// NewConfig derives the three phase policies from one wait timeout and interval:
// availability and authentication use them as is, the write phase waits at least
// MinWriteTimeout with a 5s interval.
func NewConfig(username, password string, timeout, interval time.Duration) Config {
	write := timeout
	if write < MinWriteTimeout {
		write = MinWriteTimeout
	}
	return Config{
		Username:       username,
		Password:       password,
		Availability:   PollPolicy{Timeout: timeout, Interval: interval},
		Authentication: PollPolicy{Timeout: timeout, Interval: interval},
		Write:          PollPolicy{Timeout: write, Interval: 5 * time.Second},
	}
}

// Gate runs the readiness phases in order.
type Gate struct {
	client *rpc.Client
	probe  *rpc.Client
	cfg    Config

	logger  zerolog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithProbeClient polls through a separate client, typically one with a single
// attempt per call so that the gate interval alone governs pacing.
func WithProbeClient(c *rpc.Client) Option {
	return func(g *Gate) { g.probe = c }
}

// WithLogger sets the gate logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gate) { g.logger = telemetry.Component(l, "readiness") }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithClock overrides the clock used for probe names.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a gate whose returned session is bound to client.
func NewGate(client *rpc.Client, cfg Config, opts ...Option) *Gate {
	g := &Gate{
		client: client,
		cfg:    cfg,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.probe == nil {
		g.probe = client
	}
	return g
}

// Open runs availability, authentication and write readiness in that order and
// returns a session on the main client.
func (g *Gate) Open(ctx context.Context) (*rpc.Session, error) {
	if _, err := g.WaitAvailable(ctx); err != nil {
		return nil, err
	}

	probeSession, err := g.WaitAuthenticated(ctx)
	if err != nil {
		return nil, err
	}

	if err := g.WaitWritable(ctx, probeSession); err != nil {
		return nil, err
	}

	return rpc.NewSession(g.client, probeSession.Token()), nil
}

// WaitAvailable polls apiinfo.version until it answers and returns the version.
func (g *Gate) WaitAvailable(ctx context.Context) (string, error) {
	return runPhase(ctx, g, PhaseAvailability, g.cfg.Availability, func(ctx context.Context) (string, error) {
		return g.probe.Version(ctx)
	})
}

// WaitAuthenticated polls user.login until it returns a token.
func (g *Gate) WaitAuthenticated(ctx context.Context) (*rpc.Session, error) {
	if g.cfg.Username == "" {
		return nil, engine.NewValidationError("username is required for login", nil).
			WithOperation("user.login")
	}
	return runPhase(ctx, g, PhaseAuthentication, g.cfg.Authentication, func(ctx context.Context) (*rpc.Session, error) {
		return g.probe.Login(ctx, g.cfg.Username, g.cfg.Password)
	})
}

// WaitWritable creates and deletes a uniquely named probe host group until both succeed.
func (g *Gate) WaitWritable(ctx context.Context, session rpc.Caller) error {
	_, err := runPhase(ctx, g, PhaseWrite, g.cfg.Write, func(ctx context.Context) (string, error) {
		name := g.ProbeName()

		var created struct {
			GroupIDs []string `json:"groupids"`
		}
		if err := session.Call(ctx, "hostgroup.create", map[string]string{"name": name}, &created); err != nil {
			return "", err
		}
		if len(created.GroupIDs) == 0 {
			return "", fmt.Errorf("hostgroup.create returned no id for %s", name)
		}

		if err := session.Call(ctx, "hostgroup.delete", created.GroupIDs, nil); err != nil {
			return "", err
		}
		return created.GroupIDs[0], nil
	})
	return err
}

// ProbeName returns a fresh probe group name, __probe_<unix-seconds>_<short-uuid>.
func (g *Gate) ProbeName() string {
	return fmt.Sprintf("__probe_%d_%s", g.now().Unix(), uuid.New().String()[:8])
}

func runPhase[T any](ctx context.Context, g *Gate, phase string, policy PollPolicy, op func(context.Context) (T, error)) (T, error) {
	logger := g.logger.With().Str("phase", phase).Logger()
	logger.Info().Stringer("policy", policy).Msg("Waiting for API")

	timer := telemetry.NewTimer()
	v, err := Poll(ctx, phase, policy, op, func(attempt int, err error, next time.Duration) {
		logger.Debug().Err(err).Int("attempt", attempt).Dur("next", next).Msg("API not ready")
	})
	g.metrics.RecordReadinessPhase(phase, err == nil, timer.Duration())

	if err != nil {
		logger.Error().Err(err).Msg("API readiness failed")
		return v, err
	}

	logger.Info().Dur("waited", timer.Duration()).Msg("API ready")
	return v, nil
}
