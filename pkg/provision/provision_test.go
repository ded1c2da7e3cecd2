package provision

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/zbxsync/internal/testing/zbxfake"
	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/config"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/readiness"
	"github.com/openfroyo/zbxsync/pkg/rpc"
	"github.com/openfroyo/zbxsync/pkg/stores"
)

func testSettings(url string) *config.Settings {
	return &config.Settings{
		APIURL:       url,
		Username:     "Admin",
		Password:     "zabbix",
		AuthMode:     "body",
		ProxyName:    "zbx-proxy-1",
		Lang:         "en_US",
		WaitTimeout:  time.Second,
		WaitInterval: 10 * time.Millisecond,
		SNMPAuthPass: "auth-secret",
		SNMPPrivPass: "priv-secret",
	}
}

func fastGate(user, pass string) readiness.Config {
	p := readiness.PollPolicy{Timeout: 2 * time.Second, Interval: 5 * time.Millisecond}
	return readiness.Config{Username: user, Password: pass, Availability: p, Authentication: p, Write: p}
}

func newProvisioner(s *config.Settings, opts ...Option) *Provisioner {
	opts = append([]Option{
		WithGateConfig(fastGate(s.Username, s.Password)),
		WithRetry(rpc.RetryPolicy{MaxAttempts: 1, Base: time.Millisecond, Multiplier: 1, Max: time.Millisecond}),
	}, opts...)
	return New(s, opts...)
}

func defaultCatalog(t *testing.T, s *config.Settings) *catalog.Catalog {
	t.Helper()
	c, err := catalog.NewLoader(*s).Default()
	require.NoError(t, err)
	return c
}

func position(p *Plan) map[string]int {
	pos := make(map[string]int, len(p.Steps))
	for i, s := range p.Steps {
		pos[s.ID] = i
	}
	return pos
}

func dependsOn(s *engine.Step, target string) bool {
	for _, d := range s.Dependencies {
		if d.TargetID == target {
			return true
		}
	}
	return false
}

func TestBuildPlan_OrdersByReference(t *testing.T) {
	sev := 2
	cat := &catalog.Catalog{
		HostGroups:     []catalog.HostGroup{{Name: "web"}},
		TemplateGroups: []catalog.TemplateGroup{{Name: "Templates"}},
		Proxies:        []catalog.Proxy{{Name: "p1"}},
		Templates:      []catalog.Template{{Host: "T", Groups: []string{"Templates"}}},
		Hosts: []catalog.Host{{
			Host:       "h1",
			Groups:     []string{"web"},
			Templates:  []string{"T", "Linux by Zabbix agent"},
			Proxy:      "p1",
			Interfaces: []catalog.Interface{{Type: "agent", DNS: "h1", Port: "10050"}},
		}},
		Items: []catalog.Item{
			{Owner: catalog.Owner{Template: "T"}, Key: "t.key", Name: "t", Type: "agent", ValueType: "uint"},
			{Owner: catalog.Owner{Host: "h1"}, Key: "cpu", Name: "cpu", Type: "agent", ValueType: "float"},
		},
		Triggers: []catalog.Trigger{{
			Description: "h1 busy",
			Expression:  "last(/h1/cpu)>50",
			Priority:    3,
		}},
		Notifications: &catalog.Notifications{
			MediaTypes: []catalog.MediaType{{Name: "Hook"}},
			UserMedia:  []catalog.UserMedia{{Username: "Admin", MediaType: "Hook", SendTo: "x"}},
			Actions: []catalog.Action{{
				Name: "notify", MediaType: "Hook", Users: []string{"Admin"},
				HostGroups: []string{"web"}, MinSeverity: &sev, Triggers: []string{"h1 busy"},
			}},
		},
	}

	p, err := BuildPlan(cat, Options{Notifications: true})
	require.NoError(t, err)
	pos := position(p)

	before := [][2]string{
		{"hostgroup/web", "host/h1"},
		{"proxy/p1", "host/h1"},
		{"templategroup/Templates", "template/T"},
		{"template/T", "host/h1"},
		{"host/h1", "interface/h1/agent"},
		{"interface/h1/agent", "hosttemplates/h1"},
		{"hosttemplates/h1", "item/h1/cpu"},
		{"template/T", "item/T/t.key"},
		{"item/h1/cpu", "trigger/h1 busy"},
		{"mediatype/Hook", "usermedia/Admin/Hook"},
		{"usermedia/Admin/Hook", "action/notify"},
		{"trigger/h1 busy", "action/notify"},
	}
	for _, pair := range before {
		require.Contains(t, pos, pair[0])
		require.Contains(t, pos, pair[1])
		assert.Less(t, pos[pair[0]], pos[pair[1]], "%s before %s", pair[0], pair[1])
	}

	host := p.Steps[pos["host/h1"]]
	assert.False(t, dependsOn(host, "template/Linux by Zabbix agent"), "external template is resolved at run time")
	assert.True(t, dependsOn(host, "template/T"))
	assert.Contains(t, p.DOT, `"hostgroup/web" -> "host/h1"`)
}

func TestCompile_NotificationsGated(t *testing.T) {
	cat := &catalog.Catalog{
		Notifications: &catalog.Notifications{
			MediaTypes: []catalog.MediaType{{Name: "Hook"}},
		},
	}

	assert.Empty(t, Compile(cat, nil, Options{}))

	steps := Compile(cat, nil, Options{Notifications: true})
	require.Len(t, steps, 1)
	assert.Equal(t, "mediatype/Hook", steps[0].ID)
	assert.Equal(t, KindMediaType, steps[0].Kind)
}

func TestCompile_HostTemplatesOnlyWhenDeclared(t *testing.T) {
	cat := &catalog.Catalog{
		Hosts: []catalog.Host{
			{Host: "plain", Groups: []string{"g"}},
			{Host: "pinned", Groups: []string{"g"}, Templates: []string{}},
		},
		HostTemplates: []catalog.HostTemplates{{Host: "Zabbix server", Templates: []string{"Zabbix server health"}}},
	}

	var ids []string
	for _, s := range Compile(cat, nil, Options{}) {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"host/plain", "host/pinned", "hosttemplates/pinned", "hosttemplates/Zabbix server"}, ids)
}

func TestBuildPlan_Default(t *testing.T) {
	s := testSettings("http://unused")
	s.TelegramBotToken = "123:abc"
	s.TelegramChatID = "-100"

	p, err := BuildPlan(defaultCatalog(t, s), Options{Notifications: true})
	require.NoError(t, err)
	pos := position(p)

	assert.Less(t, pos["item/webserver1/system.cpu.util"], pos["trigger/webserver1: High CPU utilization > 50%"])
	assert.Less(t, pos["graph/New SNMP/eth0 throughput"], pos["dashboard/Network: webserver1"])
	assert.Contains(t, pos, "action/Send problems to Telegram (Linux servers >= Warning)")

	var out bytes.Buffer
	RenderPlan(&out, p)
	assert.Contains(t, out.String(), "hosttemplates")
	assert.Contains(t, out.String(), "Zabbix server")
}

func TestApply_DefaultCatalogConverges(t *testing.T) {
	srv := zbxfake.New(t)
	s := testSettings(srv.APIURL())
	cat := defaultCatalog(t, s)
	ctx := context.Background()

	p := newProvisioner(s)
	first, err := p.Apply(ctx, cat)
	require.NoError(t, err)
	assert.Equal(t, engine.RunStatusSucceeded, first.Status)
	assert.Positive(t, first.Created)
	assert.Zero(t, first.Failed)

	host, ok := srv.Find("host", "host", "webserver1")
	require.True(t, ok)
	assert.NotEmpty(t, host["hostid"])

	_, ok = srv.Find("mediatype", "name", "Telegram (Webhook)")
	assert.False(t, ok, "notifications need both Telegram settings")

	srv.ResetCalls()
	second, err := p.Apply(ctx, cat)
	require.NoError(t, err)
	assert.True(t, second.Converged(), "second pass changed %d/%d/%d", second.Created, second.Updated, second.Recreated)
	assert.Empty(t, srv.Mutations())
	assert.Equal(t, first.Total, second.Total)
}

func TestApply_Notifications(t *testing.T) {
	srv := zbxfake.New(t)
	s := testSettings(srv.APIURL())
	s.TelegramBotToken = "123:abc"
	s.TelegramChatID = "-100"

	summary, err := newProvisioner(s).Apply(context.Background(), defaultCatalog(t, s))
	require.NoError(t, err)
	assert.Equal(t, engine.RunStatusSucceeded, summary.Status)

	_, ok := srv.Find("mediatype", "name", "Telegram (Webhook)")
	assert.True(t, ok)
	assert.Len(t, srv.Objects("action"), 2)
}

func TestApply_Journal(t *testing.T) {
	srv := zbxfake.New(t)
	s := testSettings(srv.APIURL())
	ctx := context.Background()

	j, err := stores.OpenJournal(ctx, filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	cat := &catalog.Catalog{HostGroups: []catalog.HostGroup{{Name: "Linux servers"}}}
	summary, err := newProvisioner(s, WithJournal(j)).Apply(ctx, cat)
	require.NoError(t, err)

	runs, err := j.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].ID)
	assert.Equal(t, engine.RunStatusSucceeded, runs[0].Status)
	assert.Equal(t, 1, runs[0].Created)

	steps, err := j.ListSteps(ctx, summary.RunID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "hostgroup/Linux servers", steps[0].StepID)

	var out bytes.Buffer
	RenderHistory(&out, runs)
	assert.Contains(t, out.String(), summary.RunID)
	out.Reset()
	RenderSteps(&out, steps)
	assert.Contains(t, out.String(), "Linux servers")
}

func TestApply_StopsAtFirstFailure(t *testing.T) {
	srv := zbxfake.New(t)
	s := testSettings(srv.APIURL())

	cat := &catalog.Catalog{
		HostGroups: []catalog.HostGroup{{Name: "web"}},
		Hosts: []catalog.Host{{
			Host:      "h1",
			Groups:    []string{"web"},
			Templates: []string{"No such template"},
		}},
		Items: []catalog.Item{{Owner: catalog.Owner{Host: "h1"}, Key: "k", Name: "k", Type: "agent_active", ValueType: "text"}},
	}

	summary, err := newProvisioner(s).Apply(context.Background(), cat)
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, engine.RunStatusFailed, summary.Status)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, summary.Error, "No such template")

	_, ok := srv.Find("host", "host", "h1")
	assert.False(t, ok)
	assert.Zero(t, srv.Count("item.create"))

	var out bytes.Buffer
	RenderSummary(&out, summary)
	assert.Contains(t, out.String(), "host")
	assert.Contains(t, out.String(), "No such template")
}

func TestApply_BadCredentials(t *testing.T) {
	srv := zbxfake.New(t)
	s := testSettings(srv.APIURL())
	s.Password = "wrong"

	gate := fastGate(s.Username, s.Password)
	gate.Authentication = readiness.PollPolicy{Timeout: 50 * time.Millisecond, Interval: 10 * time.Millisecond}

	summary, err := newProvisioner(s, WithGateConfig(gate)).Apply(context.Background(), &catalog.Catalog{})
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, engine.IsReadiness(err))
	assert.Empty(t, srv.Mutations())
}

func TestConnect_SkipWait(t *testing.T) {
	srv := zbxfake.New(t)
	s := testSettings(srv.APIURL())

	session, err := newProvisioner(s, SkipWait()).Connect(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token())
	assert.Zero(t, srv.Count("apiinfo.version"))
	assert.Zero(t, srv.Count("hostgroup.create"))
}
