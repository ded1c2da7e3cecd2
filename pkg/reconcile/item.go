package reconcile

import (
	"context"
	"fmt"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

var itemTypes = map[string]int{
	"agent":        0,
	"agent_active": 7,
	"snmp":         20,
}

var valueTypes = map[string]int{
	"float": 0,
	"char":  1,
	"log":   2,
	"uint":  3,
	"text":  4,
}

var preprocessingTypes = map[string]int{
	"multiply":          1,
	"change_per_second": 10,
}

// ItemPayload is the desired item.
type ItemPayload struct {
	HostID        string                 `json:"hostid,omitempty"`
	Name          string                 `json:"name"`
	Key           string                 `json:"key_"`
	Type          int                    `json:"type"`
	ValueType     int                    `json:"value_type"`
	Delay         string                 `json:"delay"`
	History       string                 `json:"history"`
	Trends        string                 `json:"trends"`
	Timeout       string                 `json:"timeout,omitempty"`
	Units         string                 `json:"units,omitempty"`
	InterfaceID   string                 `json:"interfaceid,omitempty"`
	SNMPOID       string                 `json:"snmp_oid,omitempty"`
	ValueMapID    string                 `json:"valuemapid,omitempty"`
	Preprocessing []PreprocessingPayload `json:"preprocessing,omitempty"`
	Tags          []catalog.Tag          `json:"tags,omitempty"`

	owner string
}

// PreprocessingPayload is one preprocessing step.
type PreprocessingPayload struct {
	Type               int    `json:"type"`
	Params             string `json:"params"`
	ErrorHandler       int    `json:"error_handler"`
	ErrorHandlerParams string `json:"error_handler_params"`
}

type itemKind struct{}

func (itemKind) Name() string { return "item" }
func (itemKind) Key(d ItemPayload) string { return d.owner + "/" + d.Key }
func (itemKind) ID(r Object) string { return r.Str("itemid") }

func (itemKind) Lookup(ctx context.Context, c rpc.Caller, d ItemPayload) (Object, bool, error) {
	params := byName("key_", d.Key)
	params["hostids"] = []string{d.HostID}
	params["selectPreprocessing"] = "extend"
	params["selectTags"] = "extend"
	return first(ctx, c, "item.get", params)
}

// Skip leaves items inherited from a linked template to that template.
func (itemKind) Skip(r Object) (string, bool) {
	if inherited(r) {
		return "inherited from template", true
	}
	return "", false
}

func (itemKind) Create(ctx context.Context, c rpc.Caller, d ItemPayload) (string, error) {
	return create(ctx, c, "item.create", "itemids", d)
}

func (itemKind) Diff(d ItemPayload, r Object) []engine.Change {
	return diffPayload(d, r, "hostid")
}

func (itemKind) Update(ctx context.Context, c rpc.Caller, d ItemPayload, r Object) error {
	payload := withID("itemid", r.Str("itemid"), d, "hostid")
	_, err := write(ctx, c, "item.update", "itemids", payload)
	return err
}

// EnsureItem converges an item on its host or template.
func EnsureItem(ctx context.Context, c rpc.Caller, it catalog.Item) (engine.StepResult, error) {
	d := ItemPayload{owner: it.Owner.Name(), Key: it.Key}
	fail := func(err error) (engine.StepResult, error) {
		return engine.StepResult{Kind: "item", Key: itemKind{}.Key(d)}, err
	}

	ownerID, err := OwnerID(ctx, c, it.Owner)
	if err != nil {
		return fail(err)
	}
	d, err = itemPayload(it, ownerID)
	if err != nil {
		return fail(err)
	}

	if !it.Owner.IsTemplate() {
		if iface, ok := itemInterface(it.Type); ok {
			obj, found, err := lookupInterface(ctx, c, ownerID, iface)
			if err != nil {
				return fail(err)
			}
			if !found {
				return fail(engine.NewPreconditionError(
					fmt.Sprintf("host %q has no %s interface", it.Host, interfaceTypeName(iface)), nil).
					WithOperation("hostinterface.get"))
			}
			d.InterfaceID = obj.Str("interfaceid")
		}
	}

	if it.ValueMap != "" {
		if d.ValueMapID, err = ValueMapID(ctx, c, ownerID, it.ValueMap); err != nil {
			return fail(err)
		}
	}

	return Ensure[ItemPayload, Object](ctx, c, itemKind{}, d)
}

// itemPayload maps the descriptor and fills defaults: delay 1m, history 7d for
// log items and 31d otherwise, no trends for textual values and 90d otherwise,
// a 10s timeout for agent items.
func itemPayload(it catalog.Item, ownerID string) (ItemPayload, error) {
	typ, ok := itemTypes[it.Type]
	if !ok {
		return ItemPayload{}, engine.NewValidationError(fmt.Sprintf("unknown item type %q", it.Type), nil)
	}
	vt, ok := valueTypes[it.ValueType]
	if !ok {
		return ItemPayload{}, engine.NewValidationError(fmt.Sprintf("unknown value type %q", it.ValueType), nil)
	}

	d := ItemPayload{
		HostID:    ownerID,
		Name:      it.Name,
		Key:       it.Key,
		Type:      typ,
		ValueType: vt,
		Delay:     orDefault(it.Delay, "1m"),
		History:   it.History,
		Trends:    it.Trends,
		Timeout:   it.Timeout,
		Units:     it.Units,
		SNMPOID:   it.SNMPOID,
		Tags:      it.Tags,
		owner:     it.Owner.Name(),
	}

	if d.History == "" {
		d.History = "31d"
		if it.ValueType == "log" {
			d.History = "7d"
		}
	}
	if d.Trends == "" {
		switch it.ValueType {
		case "char", "log", "text":
			d.Trends = "0"
		default:
			d.Trends = "90d"
		}
	}
	if d.Timeout == "" && it.Type == "agent" {
		d.Timeout = "10s"
	}

	for _, p := range it.Preprocessing {
		pt, ok := preprocessingTypes[p.Type]
		if !ok {
			return ItemPayload{}, engine.NewValidationError(fmt.Sprintf("unknown preprocessing type %q", p.Type), nil)
		}
		d.Preprocessing = append(d.Preprocessing, PreprocessingPayload{Type: pt, Params: p.Params})
	}
	return d, nil
}

// itemInterface returns the interface type a host item polls through.
func itemInterface(itemType string) (int, bool) {
	switch itemType {
	case "agent":
		return InterfaceAgent, true
	case "snmp":
		return InterfaceSNMP, true
	default:
		return 0, false
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
