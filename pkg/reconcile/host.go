package reconcile

import (
	"context"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// MonitoredByProxy is the monitored_by value of proxy-monitored hosts.
const MonitoredByProxy = 1

// HostPayload is the desired host. Interfaces and templates are only sent on
// creation; afterwards their own steps converge them.
type HostPayload struct {
	Host        string              `json:"host"`
	Name        string              `json:"name"`
	Groups      []map[string]string `json:"groups"`
	Interfaces  []InterfacePayload  `json:"interfaces,omitempty"`
	Templates   []map[string]string `json:"templates,omitempty"`
	MonitoredBy int                 `json:"monitored_by,omitempty"`
	ProxyID     string              `json:"proxyid,omitempty"`

	groupIDs []string
}

type hostKind struct{}

func (hostKind) Name() string { return "host" }
func (hostKind) Key(d HostPayload) string { return d.Host }
func (hostKind) ID(r Object) string { return r.Str("hostid") }

func (hostKind) Lookup(ctx context.Context, c rpc.Caller, d HostPayload) (Object, bool, error) {
	return lookupHost(ctx, c, d.Host)
}

func lookupHost(ctx context.Context, c rpc.Caller, host string) (Object, bool, error) {
	params := byName("host", host)
	params["selectHostGroups"] = []string{"groupid", "name"}
	params["selectParentTemplates"] = []string{"templateid", "host"}
	params["selectInterfaces"] = "extend"
	return first(ctx, c, "host.get", params)
}

func (hostKind) Create(ctx context.Context, c rpc.Caller, d HostPayload) (string, error) {
	return create(ctx, c, "host.create", "hostids", d)
}

// Diff tracks the visible name, group membership (desired groups must be a
// subset of the live ones) and the monitoring proxy.
func (hostKind) Diff(d HostPayload, r Object) []engine.Change {
	var changes []engine.Change
	if r.Str("name") != d.Name {
		changes = append(changes, change("name", r.Str("name"), d.Name)...)
	}

	current := r.IDs("hostgroups", "groupid")
	if missing := DiffSets(current, d.groupIDs).Add; len(missing) > 0 {
		changes = append(changes, change("groups", sortedCopy(current), union(current, d.groupIDs))...)
	}

	if d.ProxyID != "" && (r.Str("proxyid") != d.ProxyID || r.Str("monitored_by") != itoa(MonitoredByProxy)) {
		changes = append(changes, change("proxyid", r.Str("proxyid"), d.ProxyID)...)
	}
	return changes
}

// Update merges the live groups with the desired ones; a host never leaves a
// group it was put in by hand.
func (hostKind) Update(ctx context.Context, c rpc.Caller, d HostPayload, r Object) error {
	current := r.IDs("hostgroups", "groupid")
	d.Groups = refs("groupid", union(current, d.groupIDs))

	payload := withID("hostid", r.Str("hostid"), d, "host", "interfaces", "templates")
	_, err := write(ctx, c, "host.update", "hostids", payload)
	return err
}

// EnsureHost creates the host with its interfaces and templates, or converges
// its name, groups and proxy.
func EnsureHost(ctx context.Context, c rpc.Caller, h catalog.Host) (engine.StepResult, error) {
	fail := func(err error) (engine.StepResult, error) {
		return engine.StepResult{Kind: "host", Key: h.Host}, err
	}

	groupIDs, err := resolveAll(ctx, c, h.Groups, HostGroupID)
	if err != nil {
		return fail(err)
	}
	templateIDs, err := resolveAll(ctx, c, h.Templates, TemplateID)
	if err != nil {
		return fail(err)
	}

	d := HostPayload{
		Host:      h.Host,
		Name:      h.Name,
		Groups:    refs("groupid", groupIDs),
		Templates: refs("templateid", templateIDs),
		groupIDs:  groupIDs,
	}
	if d.Name == "" {
		d.Name = h.Host
	}
	if h.Proxy != "" {
		if d.ProxyID, err = ProxyID(ctx, c, h.Proxy); err != nil {
			return fail(err)
		}
		d.MonitoredBy = MonitoredByProxy
	}
	for _, iface := range h.Interfaces {
		d.Interfaces = append(d.Interfaces, interfacePayload(h.Host, iface))
	}

	return Ensure[HostPayload, Object](ctx, c, hostKind{}, d)
}
