package reconcile

import (
	"context"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// Proxy operating modes.
const (
	ProxyModeActive  = 0
	ProxyModePassive = 1
)

// ProxyPayload is the desired proxy.
type ProxyPayload struct {
	Name          string `json:"name"`
	OperatingMode int    `json:"operating_mode"`
}

type proxyKind struct{}

func (proxyKind) Name() string { return "proxy" }
func (proxyKind) Key(d ProxyPayload) string { return d.Name }
func (proxyKind) ID(r Object) string { return r.Str("proxyid") }

func (proxyKind) Lookup(ctx context.Context, c rpc.Caller, d ProxyPayload) (Object, bool, error) {
	return first(ctx, c, "proxy.get", byName("name", d.Name))
}

func (proxyKind) Create(ctx context.Context, c rpc.Caller, d ProxyPayload) (string, error) {
	return create(ctx, c, "proxy.create", "proxyids", d)
}

func (proxyKind) Diff(d ProxyPayload, r Object) []engine.Change {
	return diffPayload(d, r)
}

func (proxyKind) Update(ctx context.Context, c rpc.Caller, d ProxyPayload, r Object) error {
	_, err := write(ctx, c, "proxy.update", "proxyids", withID("proxyid", r.Str("proxyid"), d))
	return err
}

// EnsureProxy creates the proxy if missing and keeps its operating mode.
func EnsureProxy(ctx context.Context, c rpc.Caller, p catalog.Proxy) (engine.StepResult, error) {
	d := ProxyPayload{Name: p.Name, OperatingMode: ProxyModeActive}
	if p.Mode == "passive" {
		d.OperatingMode = ProxyModePassive
	}
	return Ensure[ProxyPayload, Object](ctx, c, proxyKind{}, d)
}
