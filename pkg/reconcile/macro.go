package reconcile

import (
	"context"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// MacroPayload is a user macro on a host or template.
type MacroPayload struct {
	HostID string `json:"hostid"`
	Macro  string `json:"macro"`
	Value  string `json:"value"`

	owner string
}

type macroKind struct{}

func (macroKind) Name() string { return "macro" }
func (macroKind) Key(d MacroPayload) string { return d.owner + "/" + d.Macro }
func (macroKind) ID(r Object) string { return r.Str("hostmacroid") }

func (macroKind) Lookup(ctx context.Context, c rpc.Caller, d MacroPayload) (Object, bool, error) {
	params := byName("macro", d.Macro)
	params["hostids"] = []string{d.HostID}
	return first(ctx, c, "usermacro.get", params)
}

func (macroKind) Create(ctx context.Context, c rpc.Caller, d MacroPayload) (string, error) {
	return create(ctx, c, "usermacro.create", "hostmacroids", d)
}

func (macroKind) Diff(d MacroPayload, r Object) []engine.Change {
	return diffPayload(d, r, "hostid")
}

func (macroKind) Update(ctx context.Context, c rpc.Caller, d MacroPayload, r Object) error {
	payload := withID("hostmacroid", r.Str("hostmacroid"), d, "hostid")
	_, err := write(ctx, c, "usermacro.update", "hostmacroids", payload)
	return err
}

// EnsureMacro converges a host or template macro.
func EnsureMacro(ctx context.Context, c rpc.Caller, m catalog.Macro) (engine.StepResult, error) {
	d := MacroPayload{Macro: m.Macro, Value: m.Value, owner: m.Owner.Name()}

	ownerID, err := OwnerID(ctx, c, m.Owner)
	if err != nil {
		return engine.StepResult{Kind: "macro", Key: macroKind{}.Key(d)}, err
	}
	d.HostID = ownerID

	return Ensure[MacroPayload, Object](ctx, c, macroKind{}, d)
}
