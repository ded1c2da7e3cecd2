package reconcile

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/zbxsync/internal/testing/zbxfake"
	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// newSession starts a seeded fake server and logs in as Admin.
func newSession(t *testing.T) (*zbxfake.Server, rpc.Caller) {
	t.Helper()
	srv := zbxfake.New(t)

	cfg := rpc.DefaultConfig(srv.APIURL())
	cfg.Retry = rpc.RetryPolicy{MaxAttempts: 1, Base: time.Millisecond, Multiplier: 1, Max: time.Millisecond}
	s, err := rpc.New(cfg).Login(context.Background(), "Admin", "zabbix")
	require.NoError(t, err)

	srv.ResetCalls()
	return srv, s
}

func params(t *testing.T, c zbxfake.Call) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(c.Params, &m))
	return m
}

func TestEnsure_CreateThenNoop(t *testing.T) {
	srv, c := newSession(t)
	ctx := context.Background()

	res, err := EnsureHostGroup(ctx, c, catalog.HostGroup{Name: "Linux servers"})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeCreate, res.Outcome)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "hostgroup", res.Kind)
	assert.Equal(t, "Linux servers", res.Key)

	srv.ResetCalls()
	again, err := EnsureHostGroup(ctx, c, catalog.HostGroup{Name: "Linux servers"})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeNoop, again.Outcome)
	assert.Equal(t, res.ID, again.ID)
	assert.Empty(t, srv.Mutations())
}

func TestEnsure_UpdateOnDiff(t *testing.T) {
	srv, c := newSession(t)
	ctx := context.Background()
	srv.Seed("proxy", zbxfake.Object{"name": "zbx-proxy-1", "operating_mode": 1})

	res, err := EnsureProxy(ctx, c, catalog.Proxy{Name: "zbx-proxy-1", Mode: "active"})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeUpdate, res.Outcome)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, "operating_mode", res.Changes[0].Path)

	p, ok := srv.Find("proxy", "name", "zbx-proxy-1")
	require.True(t, ok)
	assert.Equal(t, "0", p["operating_mode"])
	assert.Equal(t, 1, srv.Count("proxy.update"))
}

func TestEnsure_UpdateFailureWithoutHealer(t *testing.T) {
	srv, c := newSession(t)
	srv.Seed("proxy", zbxfake.Object{"name": "zbx-proxy-1", "operating_mode": 1})
	srv.Fail("proxy.update", zbxfake.RPCFault("Proxy is in use."))

	_, err := EnsureProxy(context.Background(), c, catalog.Proxy{Name: "zbx-proxy-1"})
	require.Error(t, err)
	assert.True(t, engine.IsApplication(err))

	var ee *engine.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "proxy/zbx-proxy-1", ee.Resource)
	assert.Contains(t, err.Error(), "Proxy is in use.")
}

func TestEnsureTrigger_HealsByRecreate(t *testing.T) {
	srv, c := newSession(t)
	ctx := context.Background()

	trig := catalog.Trigger{
		Description: "High CPU on Zabbix server",
		Expression:  "avg(/Zabbix server/system.cpu.util,1m)>50",
		Priority:    3,
	}
	created, err := EnsureTrigger(ctx, c, trig)
	require.NoError(t, err)
	require.Equal(t, engine.OutcomeCreate, created.Outcome)

	trig.Priority = 4
	srv.Fail("trigger.update", zbxfake.RPCFault("Cannot update trigger expression."))
	res, err := EnsureTrigger(ctx, c, trig)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeRecreate, res.Outcome)
	assert.NotEqual(t, created.ID, res.ID)
	assert.Contains(t, res.Message, "Cannot update trigger expression.")
	assert.Equal(t, 1, srv.Count("trigger.delete"))

	live := srv.Objects("trigger")
	require.Len(t, live, 1)
	assert.Equal(t, "4", live[0]["priority"])
}

func TestEnsureTrigger_NoItemReference(t *testing.T) {
	srv, c := newSession(t)
	_, err := EnsureTrigger(context.Background(), c, catalog.Trigger{Description: "x", Expression: "1=1"})
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
	assert.Empty(t, srv.Mutations())
}

func TestEnsureHost_MissingDependencyWritesNothing(t *testing.T) {
	srv, c := newSession(t)

	res, err := EnsureHost(context.Background(), c, catalog.Host{
		Host:   "webserver1",
		Groups: []string{"Linux servers"},
	})
	require.Error(t, err)
	assert.True(t, engine.IsPrecondition(err))
	assert.Contains(t, err.Error(), `host group "Linux servers" not found`)
	assert.Equal(t, "host", res.Kind)
	assert.Empty(t, srv.Mutations())
}

func TestEnsureHost_CreateWithInterfacesAndTemplates(t *testing.T) {
	srv, c := newSession(t)
	ctx := context.Background()
	srv.Seed("hostgroup", zbxfake.Object{"name": "Linux servers"})

	h := catalog.Host{
		Host:       "webserver1",
		Groups:     []string{"Linux servers"},
		Templates:  []string{"Linux by Zabbix agent"},
		Interfaces: []catalog.Interface{{Type: "agent"}},
	}
	res, err := EnsureHost(ctx, c, h)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeCreate, res.Outcome)

	ifaces := srv.Objects("hostinterface")
	var found bool
	for _, i := range ifaces {
		if i["hostid"] == res.ID {
			found = true
			assert.Equal(t, "webserver1", i["dns"])
			assert.Equal(t, "10050", i["port"])
		}
	}
	assert.True(t, found)

	srv.ResetCalls()
	_, err = EnsureHost(ctx, c, h)
	require.NoError(t, err)
	_, err = EnsureInterface(ctx, c, h.Host, h.Interfaces[0])
	require.NoError(t, err)
	links, err := EnsureHostTemplates(ctx, c, h.Host, h.Templates)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeNoop, links.Outcome)
	assert.Empty(t, srv.Mutations())
}

func TestEnsureHost_KeepsManualGroups(t *testing.T) {
	srv, c := newSession(t)
	ctx := context.Background()
	srv.Seed("hostgroup", zbxfake.Object{"name": "Linux servers"})

	res, err := EnsureHost(ctx, c, catalog.Host{Host: "Zabbix server", Groups: []string{"Linux servers"}})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeUpdate, res.Outcome)

	host, ok := srv.Find("host", "host", "Zabbix server")
	require.True(t, ok)
	assert.Len(t, host["hostgroups"], 2)
}

func TestEnsureHostTemplates_ExactSet(t *testing.T) {
	srv, c := newSession(t)
	ctx := context.Background()
	tg, _ := srv.Find("templategroup", "name", "Templates/Operating systems")
	groups := []interface{}{zbxfake.Object{"groupid": tg["groupid"]}}
	a := srv.Seed("template", zbxfake.Object{"host": "A", "name": "A", "groups": groups})
	b := srv.Seed("template", zbxfake.Object{"host": "B", "name": "B", "groups": groups})
	cid := srv.Seed("template", zbxfake.Object{"host": "C", "name": "C", "groups": groups})
	srv.Seed("host", zbxfake.Object{
		"host":      "web",
		"name":      "web",
		"groups":    []interface{}{},
		"templates": []interface{}{zbxfake.Object{"templateid": a}, zbxfake.Object{"templateid": b}},
	})
	srv.ResetCalls()

	res, err := EnsureHostTemplates(ctx, c, "web", []string{"B", "C"})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeUpdate, res.Outcome)

	muts := srv.Mutations()
	require.Len(t, muts, 1)
	p := params(t, muts[0])
	assert.ElementsMatch(t, []interface{}{
		map[string]interface{}{"templateid": b},
		map[string]interface{}{"templateid": cid},
	}, p["templates"])
	assert.Equal(t, []interface{}{map[string]interface{}{"templateid": a}}, p["templates_clear"])

	host, _ := srv.Find("host", "host", "web")
	assert.ElementsMatch(t, []string{b, cid}, Object(host).IDs("parentTemplates", "templateid"))
}

func TestEnsureHostTemplates_MissingHost(t *testing.T) {
	srv, c := newSession(t)
	_, err := EnsureHostTemplates(context.Background(), c, "nope", []string{"Linux by Zabbix agent"})
	require.Error(t, err)
	assert.True(t, engine.IsPrecondition(err))
	assert.Empty(t, srv.Mutations())
}

func TestEnsureHostTemplates_EmptySetClearsStrayLinks(t *testing.T) {
	srv, c := newSession(t)
	ctx := context.Background()
	stray, _ := srv.Find("template", "host", "Linux by Zabbix agent")
	srv.Seed("host", zbxfake.Object{
		"host":      "log-srv",
		"name":      "log-srv",
		"groups":    []interface{}{},
		"templates": []interface{}{zbxfake.Object{"templateid": stray["templateid"]}},
	})
	srv.ResetCalls()

	res, err := EnsureHostTemplates(ctx, c, "log-srv", []string{})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeUpdate, res.Outcome)

	muts := srv.Mutations()
	require.Len(t, muts, 1)
	p := params(t, muts[0])
	assert.Equal(t, []interface{}{}, p["templates"])
	assert.Equal(t, []interface{}{map[string]interface{}{"templateid": stray["templateid"]}}, p["templates_clear"])

	srv.ResetCalls()
	again, err := EnsureHostTemplates(ctx, c, "log-srv", []string{})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeNoop, again.Outcome)
	assert.Empty(t, srv.Mutations())
}

func TestEnsureItem_MissingHost(t *testing.T) {
	srv, c := newSession(t)

	_, err := EnsureItem(context.Background(), c, catalog.Item{
		Owner:     catalog.Owner{Host: "ghost"},
		Key:       "system.cpu.util",
		Name:      "CPU utilization",
		Type:      "agent",
		ValueType: "float",
	})
	require.Error(t, err)
	assert.True(t, engine.IsPrecondition(err))
	assert.Contains(t, err.Error(), "ghost")
	assert.Zero(t, srv.Count("item.create"))
	assert.Empty(t, srv.Mutations())
}

func TestEnsureItem_DefaultsAndInterface(t *testing.T) {
	srv, c := newSession(t)
	ctx := context.Background()

	it := catalog.Item{
		Owner:     catalog.Owner{Host: "Zabbix server"},
		Key:       "system.cpu.util",
		Name:      "CPU utilization",
		Type:      "agent",
		ValueType: "float",
	}
	res, err := EnsureItem(ctx, c, it)
	require.NoError(t, err)
	require.Equal(t, engine.OutcomeCreate, res.Outcome)

	item, ok := srv.Find("item", "key_", "system.cpu.util")
	require.True(t, ok)
	assert.Equal(t, "1m", item["delay"])
	assert.Equal(t, "31d", item["history"])
	assert.Equal(t, "90d", item["trends"])
	assert.Equal(t, "10s", item["timeout"])
	assert.NotEmpty(t, item["interfaceid"])

	srv.ResetCalls()
	again, err := EnsureItem(ctx, c, it)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeNoop, again.Outcome)
	assert.Empty(t, srv.Mutations())
}

func TestEnsureItem_LogItemOnTemplate(t *testing.T) {
	srv, c := newSession(t)

	key := `logrt["/var/log/remote/webserver1/syslog.log","LAB-TEST|ERROR|CRITICAL",,,skip]`
	_, err := EnsureItem(context.Background(), c, catalog.Item{
		Owner:     catalog.Owner{Template: "Linux by Zabbix agent"},
		Key:       key,
		Name:      "Errors in syslog",
		Type:      "agent_active",
		ValueType: "log",
	})
	require.NoError(t, err)

	item, ok := srv.Find("item", "key_", key)
	require.True(t, ok)
	assert.Equal(t, "7", item["type"])
	assert.Equal(t, "7d", item["history"])
	assert.Equal(t, "0", item["trends"])
	assert.Nil(t, item["interfaceid"])
}

func TestEnsureItem_MissingInterface(t *testing.T) {
	srv, c := newSession(t)

	_, err := EnsureItem(context.Background(), c, catalog.Item{
		Owner:     catalog.Owner{Host: "Zabbix server"},
		Key:       "sysUpTime",
		Name:      "Uptime",
		Type:      "snmp",
		ValueType: "uint",
		SNMPOID:   "1.3.6.1.2.1.1.3.0",
	})
	require.Error(t, err)
	assert.True(t, engine.IsPrecondition(err))
	assert.Contains(t, err.Error(), "no snmp interface")
	assert.Empty(t, srv.Mutations())
}

func TestEnsureItem_SkipsInherited(t *testing.T) {
	srv, c := newSession(t)
	host, _ := srv.Find("host", "host", "Zabbix server")
	srv.Seed("item", zbxfake.Object{
		"hostid": host["hostid"], "key_": "agent.ping", "name": "Ping", "templateid": "42",
		"type": 0, "value_type": 3,
	})
	srv.ResetCalls()

	res, err := EnsureItem(context.Background(), c, catalog.Item{
		Owner: catalog.Owner{Host: "Zabbix server"}, Key: "agent.ping", Name: "Renamed",
		Type: "agent", ValueType: "uint",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeNoop, res.Outcome)
	assert.Equal(t, "inherited from template", res.Message)
	assert.Empty(t, srv.Mutations())
}

func TestEnsureGraphAndDashboard(t *testing.T) {
	srv, c := newSession(t)
	ctx := context.Background()
	tmpl := catalog.Owner{Template: "Linux by Zabbix agent"}

	for _, key := range []string{"net.if.in[eth0]", "net.if.out[eth0]"} {
		_, err := EnsureItem(ctx, c, catalog.Item{Owner: tmpl, Key: key, Name: key, Type: "agent_active", ValueType: "uint"})
		require.NoError(t, err)
	}
	g, err := EnsureGraph(ctx, c, catalog.Graph{
		Owner: tmpl,
		Name:  "eth0 throughput",
		Items: []catalog.GraphItem{{Key: "net.if.in[eth0]", Color: "0040FF"}, {Key: "net.if.out[eth0]", Color: "FF0000"}},
	})
	require.NoError(t, err)
	require.Equal(t, engine.OutcomeCreate, g.Outcome)

	graph, _ := srv.Find("graph", "name", "eth0 throughput")
	assert.Equal(t, "900", graph["width"])
	assert.Equal(t, "200", graph["height"])

	db := catalog.Dashboard{
		Name:      "Network: Zabbix server",
		AutoStart: true,
		Pages: []catalog.DashboardPage{{
			Name: "Network",
			Widgets: []catalog.GraphWidget{
				{Host: "Zabbix server", Graph: "eth0 throughput"},
				{Host: "Zabbix server", Graph: "eth1 throughput"},
			},
		}},
	}
	res, err := EnsureDashboard(ctx, c, db)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeCreate, res.Outcome)
	assert.Contains(t, res.Message, "Zabbix server/eth1 throughput")

	dash, ok := srv.Find("dashboard", "name", "Network: Zabbix server")
	require.True(t, ok)
	pages := dash["pages"].([]interface{})
	widgets := pages[0].(map[string]interface{})["widgets"].([]interface{})
	require.Len(t, widgets, 1)
	w := widgets[0].(map[string]interface{})
	assert.Equal(t, "24", w["width"])
	assert.Equal(t, "8", w["height"])

	srv.ResetCalls()
	again, err := EnsureDashboard(ctx, c, db)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeNoop, again.Outcome)
	assert.Empty(t, srv.Mutations())
}

func TestEnsureDashboard_NoGraphSkips(t *testing.T) {
	srv, c := newSession(t)

	res, err := EnsureDashboard(context.Background(), c, catalog.Dashboard{
		Name:  "Empty",
		Pages: []catalog.DashboardPage{{Widgets: []catalog.GraphWidget{{Host: "Zabbix server", Graph: "missing"}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeSkip, res.Outcome)
	assert.Empty(t, srv.Mutations())
}

func TestEnsureDashboard_MissingHost(t *testing.T) {
	_, c := newSession(t)

	_, err := EnsureDashboard(context.Background(), c, catalog.Dashboard{
		Name:  "Broken",
		Pages: []catalog.DashboardPage{{Widgets: []catalog.GraphWidget{{Host: "log-srv", Graph: "x"}}}},
	})
	require.Error(t, err)
	assert.True(t, engine.IsPrecondition(err))
}

func TestNotifications(t *testing.T) {
	srv, c := newSession(t)
	ctx := context.Background()
	admin, _ := srv.Find("user", "username", "Admin")

	_, err := EnsureMediaType(ctx, c, catalog.MediaType{
		Name:       "Telegram (Webhook)",
		Script:     "return 'OK';",
		Parameters: []catalog.Parameter{{Name: "chat_id", Value: "{ALERT.SENDTO}"}},
		Messages: []catalog.MessageTemplate{
			{Subject: "{EVENT.NAME}", Message: "{ALERT.MESSAGE}"},
			{Recovery: true, Subject: "RECOVERY: {EVENT.NAME}", Message: "{ALERT.MESSAGE}"},
		},
	})
	require.NoError(t, err)
	mt, ok := srv.Find("mediatype", "name", "Telegram (Webhook)")
	require.True(t, ok)
	assert.Equal(t, "4", mt["type"])
	assert.Equal(t, "30s", mt["timeout"])

	other := srv.Seed("mediatype", zbxfake.Object{"name": "Email", "type": 0})
	err = c.Call(ctx, "user.update", map[string]interface{}{
		"userid": admin["userid"],
		"medias": []interface{}{map[string]interface{}{"mediatypeid": other, "sendto": "ops@example.com"}},
	}, nil)
	require.NoError(t, err)

	um := catalog.UserMedia{Username: "Admin", MediaType: "Telegram (Webhook)", SendTo: "-100123"}
	res, err := EnsureUserMedia(ctx, c, um)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeCreate, res.Outcome)

	user, _ := srv.Find("user", "username", "Admin")
	medias := user["medias"].([]interface{})
	require.Len(t, medias, 2)
	assert.Equal(t, "ops@example.com", medias[0].(map[string]interface{})["sendto"])
	tg := medias[1].(map[string]interface{})
	require.NotEmpty(t, tg["mediaid"])
	assert.Equal(t, tg["mediaid"], res.ID, "created step carries the media id, not the user id")
	assert.NotEqual(t, admin["userid"], res.ID)
	assert.Equal(t, "-100123", tg["sendto"])
	assert.Equal(t, "63", tg["severity"])
	assert.Equal(t, "1-7,00:00-24:00", tg["period"])

	um.SendTo = "-100456"
	res, err = EnsureUserMedia(ctx, c, um)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeUpdate, res.Outcome)
	user, _ = srv.Find("user", "username", "Admin")
	medias = user["medias"].([]interface{})
	require.Len(t, medias, 2)
	assert.Equal(t, tg["mediaid"], medias[1].(map[string]interface{})["mediaid"])
	assert.Equal(t, "-100456", medias[1].(map[string]interface{})["sendto"])

	warning := 2
	action := catalog.Action{
		Name:         "Notify admins",
		MediaType:    "Telegram (Webhook)",
		Users:        []string{"Admin"},
		HostGroups:   []string{"Zabbix servers"},
		MinSeverity:  &warning,
		ExcludeHosts: []string{"Zabbix server"},
	}
	res, err = EnsureAction(ctx, c, action)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeCreate, res.Outcome)

	a, _ := srv.Find("action", "name", "Notify admins")
	filter := a["filter"].(map[string]interface{})
	conds := filter["conditions"].([]interface{})
	require.Len(t, conds, 3)
	assert.Equal(t, "4", conds[2].(map[string]interface{})["conditiontype"])
	assert.Equal(t, "5", conds[2].(map[string]interface{})["operator"])
	assert.Equal(t, "2", conds[2].(map[string]interface{})["value"])

	srv.ResetCalls()
	res, err = EnsureAction(ctx, c, action)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeNoop, res.Outcome)

	// the server listing conditions in another order is not a change
	reversed := []interface{}{conds[2], conds[0], conds[1]}
	err = c.Call(ctx, "action.update", map[string]interface{}{
		"actionid": a["actionid"],
		"filter":   map[string]interface{}{"evaltype": filter["evaltype"], "conditions": reversed},
	}, nil)
	require.NoError(t, err)
	a, _ = srv.Find("action", "name", "Notify admins")
	live := a["filter"].(map[string]interface{})["conditions"].([]interface{})
	require.Equal(t, "4", live[0].(map[string]interface{})["conditiontype"])

	srv.ResetCalls()
	res, err = EnsureAction(ctx, c, action)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeNoop, res.Outcome)
	assert.Empty(t, res.Changes)
	assert.Zero(t, srv.Count("action.update"))

	action.EvalType = "or"
	res, err = EnsureAction(ctx, c, action)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeUpdate, res.Outcome)
	muts := srv.Mutations()
	require.Len(t, muts, 1)
	assert.NotContains(t, params(t, muts[0]), "eventsource")
}

func TestEnsureUser(t *testing.T) {
	srv, c := newSession(t)
	ctx := context.Background()

	res, err := EnsureUser(ctx, c, catalog.UserSettings{Username: "Admin", Lang: "ru_RU"})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeUpdate, res.Outcome)
	user, _ := srv.Find("user", "username", "Admin")
	assert.Equal(t, "ru_RU", user["lang"])

	res, err = EnsureUser(ctx, c, catalog.UserSettings{Username: "Admin"})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeNoop, res.Outcome)

	_, err = EnsureUser(ctx, c, catalog.UserSettings{Username: "ghost", Lang: "en_US"})
	require.Error(t, err)
	assert.True(t, engine.IsPrecondition(err))
}

func TestEnsureUserRights_RaisesOnly(t *testing.T) {
	srv, c := newSession(t)
	ctx := context.Background()
	linux := srv.Seed("hostgroup", zbxfake.Object{"name": "Linux servers"})
	servers, _ := srv.Find("hostgroup", "name", "Zabbix servers")
	grp, _ := srv.Find("usergroup", "name", "Zabbix administrators")

	err := c.Call(ctx, "usergroup.update", map[string]interface{}{
		"usrgrpid":         grp["usrgrpid"],
		"hostgroup_rights": []interface{}{map[string]interface{}{"id": servers["groupid"], "permission": 3}},
	}, nil)
	require.NoError(t, err)

	rights := []catalog.Right{
		{HostGroup: "Linux servers", Permission: 3},
		{HostGroup: "Zabbix servers", Permission: 2},
	}
	res, err := EnsureUserRights(ctx, c, "Admin", rights)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeUpdate, res.Outcome)
	require.Len(t, res.Changes, 1)

	grp, _ = srv.Find("usergroup", "name", "Zabbix administrators")
	got := map[string]string{}
	for _, r := range grp["hostgroup_rights"].([]interface{}) {
		m := r.(map[string]interface{})
		got[m["id"].(string)] = m["permission"].(string)
	}
	assert.Equal(t, map[string]string{linux: "3", servers["groupid"].(string): "3"}, got)

	srv.ResetCalls()
	res, err = EnsureUserRights(ctx, c, "Admin", rights)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeNoop, res.Outcome)
	assert.Empty(t, srv.Mutations())
}

func TestEnsureMacroAndValueMap(t *testing.T) {
	srv, c := newSession(t)
	ctx := context.Background()
	owner := catalog.Owner{Host: "Zabbix server"}

	_, err := EnsureMacro(ctx, c, catalog.Macro{Owner: owner, Macro: "{$IFINDEX_ETH0}", Value: "2"})
	require.NoError(t, err)
	res, err := EnsureMacro(ctx, c, catalog.Macro{Owner: owner, Macro: "{$IFINDEX_ETH0}", Value: "3"})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeUpdate, res.Outcome)
	m, _ := srv.Find("usermacro", "macro", "{$IFINDEX_ETH0}")
	assert.Equal(t, "3", m["value"])

	vm := catalog.ValueMap{Owner: owner, Name: "ifOperStatus", Mappings: []catalog.Mapping{{Value: "1", NewValue: "up"}}}
	_, err = EnsureValueMap(ctx, c, vm)
	require.NoError(t, err)
	srv.ResetCalls()
	res, err = EnsureValueMap(ctx, c, vm)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeNoop, res.Outcome)
	assert.Empty(t, srv.Mutations())
}
