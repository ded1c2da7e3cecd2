package reconcile

import (
	"context"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// GraphPayload is the desired graph. Graphs have no owner field; the server
// places them on the host or template of their items.
type GraphPayload struct {
	Name      string             `json:"name"`
	Width     int                `json:"width"`
	Height    int                `json:"height"`
	GraphType int                `json:"graphtype"`
	Items     []GraphItemPayload `json:"gitems"`

	owner   string
	ownerID string
}

// GraphItemPayload draws one item.
type GraphItemPayload struct {
	ItemID    string `json:"itemid"`
	Color     string `json:"color"`
	SortOrder int    `json:"sortorder"`
}

type graphKind struct{}

func (graphKind) Name() string { return "graph" }
func (graphKind) Key(d GraphPayload) string { return d.owner + "/" + d.Name }
func (graphKind) ID(r Object) string { return r.Str("graphid") }

// Lookup prefers a graph defined on the owner over one inherited from a
// linked template with the same name.
func (graphKind) Lookup(ctx context.Context, c rpc.Caller, d GraphPayload) (Object, bool, error) {
	params := byName("name", d.Name)
	params["hostids"] = []string{d.ownerID}
	params["selectGraphItems"] = "extend"

	objs, err := get(ctx, c, "graph.get", params)
	if err != nil || len(objs) == 0 {
		return nil, false, err
	}
	for _, o := range objs {
		if !inherited(o) {
			return o, true, nil
		}
	}
	return objs[0], true, nil
}

func (graphKind) Skip(r Object) (string, bool) {
	if inherited(r) {
		return "inherited from template", true
	}
	return "", false
}

func (graphKind) Create(ctx context.Context, c rpc.Caller, d GraphPayload) (string, error) {
	return create(ctx, c, "graph.create", "graphids", d)
}

func (graphKind) Diff(d GraphPayload, r Object) []engine.Change {
	return diffPayload(d, r)
}

func (graphKind) Update(ctx context.Context, c rpc.Caller, d GraphPayload, r Object) error {
	_, err := write(ctx, c, "graph.update", "graphids", withID("graphid", r.Str("graphid"), d))
	return err
}

// EnsureGraph converges a graph over items of its owner. Width and height
// default to 900x200.
func EnsureGraph(ctx context.Context, c rpc.Caller, g catalog.Graph) (engine.StepResult, error) {
	d := GraphPayload{
		Name:   g.Name,
		Width:  g.Width,
		Height: g.Height,
		owner:  g.Owner.Name(),
	}
	if d.Width == 0 {
		d.Width = 900
	}
	if d.Height == 0 {
		d.Height = 200
	}
	fail := func(err error) (engine.StepResult, error) {
		return engine.StepResult{Kind: "graph", Key: graphKind{}.Key(d)}, err
	}

	ownerID, err := OwnerID(ctx, c, g.Owner)
	if err != nil {
		return fail(err)
	}
	d.ownerID = ownerID

	for i, gi := range g.Items {
		itemID, err := ItemID(ctx, c, ownerID, gi.Key)
		if err != nil {
			return fail(err)
		}
		d.Items = append(d.Items, GraphItemPayload{ItemID: itemID, Color: gi.Color, SortOrder: i})
	}

	return Ensure[GraphPayload, Object](ctx, c, graphKind{}, d)
}

func inherited(o Object) bool {
	t := o.Str("templateid")
	return t != "" && t != "0"
}
