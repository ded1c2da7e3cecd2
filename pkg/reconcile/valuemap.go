package reconcile

import (
	"context"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// ValueMapPayload is the desired value map of a host or template.
type ValueMapPayload struct {
	HostID   string            `json:"hostid"`
	Name     string            `json:"name"`
	Mappings []catalog.Mapping `json:"mappings"`

	owner string
}

type valueMapKind struct{}

func (valueMapKind) Name() string { return "valuemap" }
func (valueMapKind) Key(d ValueMapPayload) string { return d.owner + "/" + d.Name }
func (valueMapKind) ID(r Object) string { return r.Str("valuemapid") }

func (valueMapKind) Lookup(ctx context.Context, c rpc.Caller, d ValueMapPayload) (Object, bool, error) {
	params := byName("name", d.Name)
	params["hostids"] = []string{d.HostID}
	params["selectMappings"] = "extend"
	return first(ctx, c, "valuemap.get", params)
}

func (valueMapKind) Create(ctx context.Context, c rpc.Caller, d ValueMapPayload) (string, error) {
	return create(ctx, c, "valuemap.create", "valuemapids", d)
}

func (valueMapKind) Diff(d ValueMapPayload, r Object) []engine.Change {
	return diffPayload(d, r, "hostid")
}

func (valueMapKind) Update(ctx context.Context, c rpc.Caller, d ValueMapPayload, r Object) error {
	payload := withID("valuemapid", r.Str("valuemapid"), d, "hostid")
	_, err := write(ctx, c, "valuemap.update", "valuemapids", payload)
	return err
}

// EnsureValueMap converges a value map on its owner.
func EnsureValueMap(ctx context.Context, c rpc.Caller, vm catalog.ValueMap) (engine.StepResult, error) {
	d := ValueMapPayload{Name: vm.Name, Mappings: vm.Mappings, owner: vm.Owner.Name()}

	ownerID, err := OwnerID(ctx, c, vm.Owner)
	if err != nil {
		return engine.StepResult{Kind: "valuemap", Key: valueMapKind{}.Key(d)}, err
	}
	d.HostID = ownerID

	return Ensure[ValueMapPayload, Object](ctx, c, valueMapKind{}, d)
}

// ValueMapID resolves a value map by name on a host or template.
func ValueMapID(ctx context.Context, c rpc.Caller, ownerID, name string) (string, error) {
	params := byName("name", name)
	params["hostids"] = []string{ownerID}
	return lookupRequired(ctx, c, "valuemap.get", params, "valuemapid", "value map", name)
}
