package reconcile

import (
	"context"
	"fmt"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// Interface types.
const (
	InterfaceAgent = 1
	InterfaceSNMP  = 2
)

// InterfacePayload is the desired host interface. Details is only set for SNMP.
type InterfacePayload struct {
	Type    int                    `json:"type"`
	Main    int                    `json:"main"`
	UseIP   int                    `json:"useip"`
	IP      string                 `json:"ip"`
	DNS     string                 `json:"dns"`
	Port    string                 `json:"port"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// interfaceDesired is an interface bound to its host.
type interfaceDesired struct {
	host   string
	hostID string
	InterfacePayload
}

type interfaceKind struct{}

func (interfaceKind) Name() string { return "interface" }
func (interfaceKind) ID(r Object) string { return r.Str("interfaceid") }

func (interfaceKind) Key(d interfaceDesired) string {
	return d.host + "/" + interfaceTypeName(d.Type)
}

// Lookup finds the main interface of the desired type, or any interface of
// that type when none is main.
func (interfaceKind) Lookup(ctx context.Context, c rpc.Caller, d interfaceDesired) (Object, bool, error) {
	return lookupInterface(ctx, c, d.hostID, d.Type)
}

func lookupInterface(ctx context.Context, c rpc.Caller, hostID string, typ int) (Object, bool, error) {
	objs, err := get(ctx, c, "hostinterface.get", Params{
		"output":  "extend",
		"hostids": []string{hostID},
	})
	if err != nil {
		return nil, false, err
	}

	var fallback Object
	for _, o := range objs {
		if o.Str("type") != itoa(typ) {
			continue
		}
		if o.Str("main") == "1" {
			return o, true, nil
		}
		if fallback == nil {
			fallback = o
		}
	}
	return fallback, fallback != nil, nil
}

func (interfaceKind) Create(ctx context.Context, c rpc.Caller, d interfaceDesired) (string, error) {
	payload := toObject(d.InterfacePayload)
	payload["hostid"] = d.hostID
	return create(ctx, c, "hostinterface.create", "interfaceids", payload)
}

func (interfaceKind) Diff(d interfaceDesired, r Object) []engine.Change {
	return diffPayload(d.InterfacePayload, r)
}

func (interfaceKind) Update(ctx context.Context, c rpc.Caller, d interfaceDesired, r Object) error {
	payload := withID("interfaceid", r.Str("interfaceid"), d.InterfacePayload)
	_, err := write(ctx, c, "hostinterface.update", "interfaceids", payload)
	return err
}

// EnsureInterface converges one interface of an existing host.
func EnsureInterface(ctx context.Context, c rpc.Caller, host string, iface catalog.Interface) (engine.StepResult, error) {
	d := interfaceDesired{host: host, InterfacePayload: interfacePayload(host, iface)}

	hostID, err := HostID(ctx, c, host)
	if err != nil {
		return engine.StepResult{Kind: "interface", Key: interfaceKind{}.Key(d)}, err
	}
	d.hostID = hostID

	return Ensure[interfaceDesired, Object](ctx, c, interfaceKind{}, d)
}

// interfacePayload applies the defaults: agent port 10050, SNMP port 161, and
// the host name as DNS name when neither DNS nor IP is given.
func interfacePayload(host string, iface catalog.Interface) InterfacePayload {
	p := InterfacePayload{
		Type: InterfaceAgent,
		Main: 1,
		IP:   iface.IP,
		DNS:  iface.DNS,
		Port: iface.Port,
	}
	if iface.UseIP {
		p.UseIP = 1
	}
	if p.DNS == "" && p.IP == "" {
		p.DNS = host
	}

	if iface.Type == "snmp" {
		p.Type = InterfaceSNMP
		if p.Port == "" {
			p.Port = "161"
		}
		p.Details = snmpDetails(iface.SNMP)
	}
	if p.Port == "" {
		p.Port = "10050"
	}
	return p
}

func snmpDetails(s *catalog.SNMPDetails) map[string]interface{} {
	if s == nil {
		return nil
	}

	bulk := 1
	if s.Bulk != nil && !*s.Bulk {
		bulk = 0
	}
	d := map[string]interface{}{
		"version": s.Version,
		"bulk":    bulk,
	}
	if s.MaxRepetitions > 0 {
		d["max_repetitions"] = s.MaxRepetitions
	}

	if s.Version < 3 {
		d["community"] = s.Community
		return d
	}

	d["securityname"] = s.SecurityName
	d["securitylevel"] = s.SecurityLevel
	d["contextname"] = s.ContextName
	if s.SecurityLevel >= 1 {
		d["authprotocol"] = s.AuthProtocol
		d["authpassphrase"] = s.AuthPassphrase
	}
	if s.SecurityLevel == 2 {
		d["privprotocol"] = s.PrivProtocol
		d["privpassphrase"] = s.PrivPassphrase
	}
	return d
}

func interfaceTypeName(t int) string {
	switch t {
	case InterfaceAgent:
		return "agent"
	case InterfaceSNMP:
		return "snmp"
	default:
		return fmt.Sprintf("type%d", t)
	}
}
