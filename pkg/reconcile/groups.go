package reconcile

import (
	"context"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// GroupPayload is a host group or template group. Groups carry nothing but
// their name, so a found group is always converged.
type GroupPayload struct {
	Name string `json:"name"`
}

type groupKind struct {
	entity string
}

func (k groupKind) Name() string { return k.entity }
func (k groupKind) Key(d GroupPayload) string { return d.Name }
func (k groupKind) ID(r Object) string { return r.Str("groupid") }
func (groupKind) Diff(GroupPayload, Object) []engine.Change { return nil }

func (k groupKind) Lookup(ctx context.Context, c rpc.Caller, d GroupPayload) (Object, bool, error) {
	return first(ctx, c, k.entity+".get", byName("name", d.Name))
}

func (k groupKind) Create(ctx context.Context, c rpc.Caller, d GroupPayload) (string, error) {
	return create(ctx, c, k.entity+".create", "groupids", d)
}

func (groupKind) Update(context.Context, rpc.Caller, GroupPayload, Object) error { return nil }

// EnsureHostGroup creates the host group if missing.
func EnsureHostGroup(ctx context.Context, c rpc.Caller, g catalog.HostGroup) (engine.StepResult, error) {
	return Ensure[GroupPayload, Object](ctx, c, groupKind{entity: "hostgroup"}, GroupPayload{Name: g.Name})
}

// EnsureTemplateGroup creates the template group if missing.
func EnsureTemplateGroup(ctx context.Context, c rpc.Caller, g catalog.TemplateGroup) (engine.StepResult, error) {
	return Ensure[GroupPayload, Object](ctx, c, groupKind{entity: "templategroup"}, GroupPayload{Name: g.Name})
}
