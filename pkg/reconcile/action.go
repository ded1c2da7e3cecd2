package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// Action condition types and operators.
const (
	condHostGroup = 0
	condHost      = 1
	condTrigger   = 2
	condSeverity  = 4

	opEqual        = 0
	opNotEqual     = 1
	opGreaterEqual = 5

	operationSendMessage = 0
)

var evalTypes = map[string]int{
	"":       0,
	"and_or": 0,
	"and":    1,
	"or":     2,
}

// ActionPayload is the desired trigger action.
type ActionPayload struct {
	Name               string             `json:"name"`
	EventSource        int                `json:"eventsource"`
	Status             int                `json:"status"`
	Filter             FilterPayload      `json:"filter"`
	Operations         []OperationPayload `json:"operations"`
	RecoveryOperations []OperationPayload `json:"recovery_operations"`
}

// FilterPayload selects the events an action handles.
type FilterPayload struct {
	EvalType   int                `json:"evaltype"`
	Conditions []ConditionPayload `json:"conditions"`
}

// ConditionPayload is one filter condition.
type ConditionPayload struct {
	ConditionType int    `json:"conditiontype"`
	Operator      int    `json:"operator"`
	Value         string `json:"value"`
}

// OperationPayload sends the default message to users through a media type.
type OperationPayload struct {
	OperationType int                 `json:"operationtype"`
	OpMessage     OpMessagePayload    `json:"opmessage"`
	OpMessageUsr  []map[string]string `json:"opmessage_usr"`
}

// OpMessagePayload is the message of an operation.
type OpMessagePayload struct {
	DefaultMsg  int    `json:"default_msg"`
	MediaTypeID string `json:"mediatypeid"`
}

type actionKind struct{}

func (actionKind) Name() string { return "action" }
func (actionKind) Key(d ActionPayload) string { return d.Name }
func (actionKind) ID(r Object) string { return r.Str("actionid") }

func (actionKind) Lookup(ctx context.Context, c rpc.Caller, d ActionPayload) (Object, bool, error) {
	params := byName("name", d.Name)
	params["selectFilter"] = "extend"
	params["selectOperations"] = "extend"
	params["selectRecoveryOperations"] = "extend"
	return first(ctx, c, "action.get", params)
}

func (actionKind) Create(ctx context.Context, c rpc.Caller, d ActionPayload) (string, error) {
	return create(ctx, c, "action.create", "actionids", d)
}

// Diff compares filter conditions as a set; the server may list them in
// any order.
func (actionKind) Diff(d ActionPayload, r Object) []engine.Change {
	return diffPayload(d, withSortedConditions(r), "eventsource")
}

// withSortedConditions returns a shallow copy of a live action whose filter
// conditions follow the order sortConditions gives desired ones.
func withSortedConditions(r Object) Object {
	filter, ok := r["filter"].(map[string]interface{})
	if !ok {
		return r
	}
	conds, ok := filter["conditions"].([]interface{})
	if !ok {
		return r
	}

	sorted := append([]interface{}(nil), conds...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return conditionLess(liveCondition(sorted[i]), liveCondition(sorted[j]))
	})

	f := make(map[string]interface{}, len(filter))
	for k, v := range filter {
		f[k] = v
	}
	f["conditions"] = sorted
	out := make(Object, len(r))
	for k, v := range r {
		out[k] = v
	}
	out["filter"] = f
	return out
}

func liveCondition(v interface{}) ConditionPayload {
	m, _ := v.(map[string]interface{})
	t, _ := strconv.Atoi(scalar(m["conditiontype"]))
	op, _ := strconv.Atoi(scalar(m["operator"]))
	return ConditionPayload{ConditionType: t, Operator: op, Value: scalar(m["value"])}
}

func conditionLess(a, b ConditionPayload) bool {
	if a.ConditionType != b.ConditionType {
		return a.ConditionType < b.ConditionType
	}
	if a.Operator != b.Operator {
		return a.Operator < b.Operator
	}
	return a.Value < b.Value
}

func sortConditions(conds []ConditionPayload) {
	sort.SliceStable(conds, func(i, j int) bool { return conditionLess(conds[i], conds[j]) })
}

// Update leaves eventsource out; the API refuses to change it.
func (actionKind) Update(ctx context.Context, c rpc.Caller, d ActionPayload, r Object) error {
	payload := withID("actionid", r.Str("actionid"), d, "eventsource")
	_, err := write(ctx, c, "action.update", "actionids", payload)
	return err
}

// EnsureAction converges a trigger action. Conditions are resolved for host
// groups, minimum severity, excluded hosts and triggers, then sent sorted by
// type, operator and value.
func EnsureAction(ctx context.Context, c rpc.Caller, a catalog.Action) (engine.StepResult, error) {
	res := engine.StepResult{Kind: "action", Key: a.Name}

	d, err := actionPayload(ctx, c, a)
	if err != nil {
		return res, wrap(err, res)
	}
	return Ensure[ActionPayload, Object](ctx, c, actionKind{}, d)
}

func actionPayload(ctx context.Context, c rpc.Caller, a catalog.Action) (ActionPayload, error) {
	evalType, ok := evalTypes[a.EvalType]
	if !ok {
		return ActionPayload{}, engine.NewValidationError(fmt.Sprintf("unknown evaltype %q", a.EvalType), nil)
	}

	var conds []ConditionPayload
	for _, name := range a.HostGroups {
		id, err := HostGroupID(ctx, c, name)
		if err != nil {
			return ActionPayload{}, err
		}
		conds = append(conds, ConditionPayload{ConditionType: condHostGroup, Operator: opEqual, Value: id})
	}
	if a.MinSeverity != nil {
		conds = append(conds, ConditionPayload{
			ConditionType: condSeverity,
			Operator:      opGreaterEqual,
			Value:         strconv.Itoa(*a.MinSeverity),
		})
	}
	for _, name := range a.ExcludeHosts {
		id, err := HostID(ctx, c, name)
		if err != nil {
			return ActionPayload{}, err
		}
		conds = append(conds, ConditionPayload{ConditionType: condHost, Operator: opNotEqual, Value: id})
	}
	for _, desc := range a.Triggers {
		id, err := TriggerID(ctx, c, desc)
		if err != nil {
			return ActionPayload{}, err
		}
		conds = append(conds, ConditionPayload{ConditionType: condTrigger, Operator: opEqual, Value: id})
	}
	if conds == nil {
		conds = []ConditionPayload{}
	}
	sortConditions(conds)

	mediaTypeID, err := MediaTypeID(ctx, c, a.MediaType)
	if err != nil {
		return ActionPayload{}, err
	}
	userIDs, err := resolveAll(ctx, c, a.Users, UserID)
	if err != nil {
		return ActionPayload{}, err
	}

	op := OperationPayload{
		OperationType: operationSendMessage,
		OpMessage:     OpMessagePayload{DefaultMsg: 1, MediaTypeID: mediaTypeID},
		OpMessageUsr:  refs("userid", userIDs),
	}
	return ActionPayload{
		Name:               a.Name,
		Filter:             FilterPayload{EvalType: evalType, Conditions: conds},
		Operations:         []OperationPayload{op},
		RecoveryOperations: []OperationPayload{op},
	}, nil
}
