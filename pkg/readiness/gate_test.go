package readiness

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/zbxsync/internal/testing/zbxfake"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

func fastConfig(user, pass string) Config {
	p := PollPolicy{Timeout: 2 * time.Second, Interval: 5 * time.Millisecond}
	return Config{Username: user, Password: pass, Availability: p, Authentication: p, Write: p}
}

func newGate(t *testing.T, srv *zbxfake.Server, cfg Config) *Gate {
	t.Helper()
	rc := rpc.DefaultConfig(srv.APIURL())
	rc.Retry = rpc.RetryPolicy{MaxAttempts: 1, Base: time.Millisecond, Multiplier: 1, Max: time.Millisecond}
	return NewGate(rpc.New(rc), cfg)
}

func indexOf(list []string, v string) int {
	for i, e := range list {
		if e == v {
			return i
		}
	}
	return -1
}

func TestNewConfig_WriteFloor(t *testing.T) {
	cfg := NewConfig("Admin", "zabbix", 600*time.Second, 5*time.Second)
	assert.Equal(t, 600*time.Second, cfg.Availability.Timeout)
	assert.Equal(t, 600*time.Second, cfg.Authentication.Timeout)
	assert.Equal(t, MinWriteTimeout, cfg.Write.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Write.Interval)

	cfg = NewConfig("Admin", "zabbix", 1200*time.Second, time.Second)
	assert.Equal(t, 1200*time.Second, cfg.Write.Timeout)
	assert.Equal(t, time.Second, cfg.Availability.Interval)
}

func TestGate_OpenRunsPhasesInOrder(t *testing.T) {
	srv := zbxfake.New(t)
	srv.Unavailable(2)

	s, err := newGate(t, srv, fastConfig("Admin", "zabbix")).Open(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, s.Token())

	methods := srv.Methods()
	version := indexOf(methods, "apiinfo.version")
	login := indexOf(methods, "user.login")
	create := indexOf(methods, "hostgroup.create")
	del := indexOf(methods, "hostgroup.delete")

	assert.Equal(t, 0, version)
	assert.Greater(t, login, version)
	assert.Greater(t, create, login)
	assert.Greater(t, del, create)
	assert.Equal(t, 3, srv.Count("apiinfo.version"), "two 503s then success")

	// the probe group is gone
	for _, g := range srv.Objects("hostgroup") {
		assert.NotContains(t, g["name"], "__probe_")
	}
	assert.Empty(t, srv.Mutations())

	// the returned session is usable
	require.NoError(t, s.Call(context.Background(), "host.get", map[string]interface{}{}, nil))
}

func TestGate_AvailabilityWaitsOneIntervalPerFailure(t *testing.T) {
	srv := zbxfake.New(t)
	srv.Unavailable(2)

	// 5s interval scaled down 100x: ready after two intervals, well before three.
	interval := 50 * time.Millisecond
	cfg := fastConfig("Admin", "zabbix")
	cfg.Availability = PollPolicy{Timeout: 5 * time.Second, Interval: interval}

	start := time.Now()
	version, err := newGate(t, srv, cfg).WaitAvailable(context.Background())
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.NotEmpty(t, version)

	assert.Equal(t, 3, srv.Count("apiinfo.version"))
	assert.GreaterOrEqual(t, elapsed, 2*interval)
	assert.Less(t, elapsed, 3*interval+200*time.Millisecond)
}

func TestGate_LoginRetriedUntilAccepted(t *testing.T) {
	srv := zbxfake.New(t)
	srv.Fail("user.login",
		zbxfake.RPCFault("Login name or password is incorrect."),
		zbxfake.RPCFault("Login name or password is incorrect."),
	)

	_, err := newGate(t, srv, fastConfig("Admin", "zabbix")).Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, srv.Count("user.login"))
	assert.Equal(t, 1, srv.Count("hostgroup.create"))
}

func TestGate_WriteRetriedWhileReadOnly(t *testing.T) {
	srv := zbxfake.New(t)
	srv.Fail("hostgroup.create", zbxfake.RPCFault("Database is read only."))

	_, err := newGate(t, srv, fastConfig("Admin", "zabbix")).Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Count("hostgroup.create"))
	assert.Equal(t, 1, srv.Count("hostgroup.delete"))
}

func TestGate_AvailabilityTimeout(t *testing.T) {
	srv := zbxfake.New(t)
	srv.Unavailable(1 << 20)

	cfg := fastConfig("Admin", "zabbix")
	cfg.Availability = PollPolicy{Timeout: 50 * time.Millisecond, Interval: 10 * time.Millisecond}

	_, err := newGate(t, srv, cfg).Open(context.Background())
	require.Error(t, err)
	assert.True(t, engine.IsReadiness(err))
	assert.Contains(t, err.Error(), PhaseAvailability)
	assert.Contains(t, err.Error(), "503")
	assert.Zero(t, srv.Count("user.login"), "login never attempted before availability")
}

func TestGate_BadCredentialsNeverReachWritePhase(t *testing.T) {
	srv := zbxfake.New(t)

	cfg := fastConfig("Admin", "wrong")
	cfg.Authentication = PollPolicy{Timeout: 50 * time.Millisecond, Interval: 10 * time.Millisecond}

	_, err := newGate(t, srv, cfg).Open(context.Background())
	require.Error(t, err)

	var ee *engine.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, engine.ErrorClassReadiness, ee.Class)
	assert.Equal(t, PhaseAuthentication, ee.Operation)
	assert.Zero(t, srv.Count("hostgroup.create"))
}

func TestGate_EmptyUsername(t *testing.T) {
	srv := zbxfake.New(t)

	_, err := newGate(t, srv, fastConfig("", "x")).Open(context.Background())
	assert.True(t, engine.IsValidation(err))
	assert.Zero(t, srv.Count("user.login"))
}

func TestGate_CanceledContext(t *testing.T) {
	srv := zbxfake.New(t)
	srv.Unavailable(1 << 20)

	cfg := fastConfig("Admin", "zabbix")
	cfg.Availability = PollPolicy{Timeout: time.Hour, Interval: 10 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newGate(t, srv, cfg).Open(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGate_ProbeName(t *testing.T) {
	now := time.Unix(1700000000, 0)
	g := NewGate(rpc.New(rpc.DefaultConfig("http://example.invalid")), Config{}, WithClock(func() time.Time { return now }))

	a, b := g.ProbeName(), g.ProbeName()
	assert.Regexp(t, regexp.MustCompile(`^__probe_1700000000_[0-9a-f]{8}$`), a)
	assert.NotEqual(t, a, b)
}
