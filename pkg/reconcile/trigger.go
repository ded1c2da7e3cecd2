package reconcile

import (
	"context"
	"fmt"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// TriggerPayload is the desired trigger.
type TriggerPayload struct {
	Description        string `json:"description"`
	Expression         string `json:"expression"`
	Priority           int    `json:"priority"`
	ManualClose        int    `json:"manual_close"`
	RecoveryMode       int    `json:"recovery_mode"`
	RecoveryExpression string `json:"recovery_expression,omitempty"`

	owner   string
	ownerID string
}

// triggerKind looks triggers up on the host or template of their expression
// only, so inherited copies on linked hosts never match. A trigger whose
// update is refused (an expression the server cannot patch in place) is
// deleted and created again.
type triggerKind struct{}

func (triggerKind) Name() string { return "trigger" }
func (triggerKind) Key(d TriggerPayload) string { return d.owner + "/" + d.Description }
func (triggerKind) ID(r Object) string { return r.Str("triggerid") }

func (triggerKind) Lookup(ctx context.Context, c rpc.Caller, d TriggerPayload) (Object, bool, error) {
	params := byName("description", d.Description)
	params["hostids"] = []string{d.ownerID}
	params["expandExpression"] = true
	return first(ctx, c, "trigger.get", params)
}

func (triggerKind) Skip(r Object) (string, bool) {
	if inherited(r) {
		return "inherited from template", true
	}
	return "", false
}

func (triggerKind) Create(ctx context.Context, c rpc.Caller, d TriggerPayload) (string, error) {
	return create(ctx, c, "trigger.create", "triggerids", d)
}

func (triggerKind) Diff(d TriggerPayload, r Object) []engine.Change {
	return diffPayload(d, r)
}

func (triggerKind) Update(ctx context.Context, c rpc.Caller, d TriggerPayload, r Object) error {
	_, err := write(ctx, c, "trigger.update", "triggerids", withID("triggerid", r.Str("triggerid"), d))
	return err
}

func (triggerKind) Delete(ctx context.Context, c rpc.Caller, r Object) error {
	_, err := write(ctx, c, "trigger.delete", "triggerids", []string{r.Str("triggerid")})
	return err
}

// EnsureTrigger converges a trigger. Its owner is the first host or template
// named in the expression.
func EnsureTrigger(ctx context.Context, c rpc.Caller, t catalog.Trigger) (engine.StepResult, error) {
	d := TriggerPayload{
		Description:        t.Description,
		Expression:         t.Expression,
		Priority:           t.Priority,
		RecoveryMode:       t.RecoveryMode,
		RecoveryExpression: t.RecoveryExpression,
	}
	if t.ManualClose {
		d.ManualClose = 1
	}

	hosts := Hosts(t.Expression)
	if len(hosts) == 0 {
		return engine.StepResult{Kind: "trigger", Key: d.Description},
			engine.NewValidationError(fmt.Sprintf("trigger %q: expression references no item", t.Description), nil)
	}
	d.owner = hosts[0]

	ownerID, err := HostOrTemplateID(ctx, c, d.owner)
	if err != nil {
		return engine.StepResult{Kind: "trigger", Key: triggerKind{}.Key(d)}, err
	}
	d.ownerID = ownerID

	return Ensure[TriggerPayload, Object](ctx, c, triggerKind{}, d)
}
