package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// hostTemplates is the exact template set wanted on a host.
type hostTemplates struct {
	host        string
	templateIDs []string
}

// templateLinkKind converges the templates linked to an existing host by set
// replacement: one host.update with templates = W and templates_clear = C - W.
type templateLinkKind struct{}

func (templateLinkKind) Name() string { return "hosttemplates" }
func (templateLinkKind) Key(d hostTemplates) string { return d.host }
func (templateLinkKind) ID(r Object) string { return r.Str("hostid") }

// Lookup requires the host: template links are never a reason to create one.
func (templateLinkKind) Lookup(ctx context.Context, c rpc.Caller, d hostTemplates) (Object, bool, error) {
	obj, found, err := lookupHost(ctx, c, d.host)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, engine.NewPreconditionError(fmt.Sprintf("host %q not found", d.host), nil).
			WithOperation("host.get")
	}
	return obj, true, nil
}

func (templateLinkKind) Create(_ context.Context, _ rpc.Caller, d hostTemplates) (string, error) {
	return "", engine.NewPreconditionError(fmt.Sprintf("host %q not found", d.host), nil)
}

func (templateLinkKind) Diff(d hostTemplates, r Object) []engine.Change {
	current := r.IDs("parentTemplates", "templateid")
	diff := DiffSets(current, d.templateIDs)
	if diff.Empty() {
		return nil
	}

	var changes []engine.Change
	if len(diff.Add) > 0 {
		changes = append(changes, change("templates", nil, diff.Add)...)
	}
	if len(diff.Remove) > 0 {
		changes = append(changes, change("templates_clear", diff.Remove, nil)...)
	}
	return changes
}

func (templateLinkKind) Update(ctx context.Context, c rpc.Caller, d hostTemplates, r Object) error {
	diff := DiffSets(r.IDs("parentTemplates", "templateid"), d.templateIDs)

	payload := Params{
		"hostid":    r.Str("hostid"),
		"templates": refs("templateid", d.templateIDs),
	}
	if len(diff.Remove) > 0 {
		payload["templates_clear"] = refs("templateid", diff.Remove)
	}
	_, err := write(ctx, c, "host.update", "hostids", payload)
	return err
}

// EnsureHostTemplates makes the templates linked to host exactly the named ones.
func EnsureHostTemplates(ctx context.Context, c rpc.Caller, host string, templates []string) (engine.StepResult, error) {
	ids, err := resolveAll(ctx, c, templates, TemplateID)
	if err != nil {
		return engine.StepResult{Kind: "hosttemplates", Key: host}, err
	}

	res, err := Ensure[hostTemplates, Object](ctx, c, templateLinkKind{}, hostTemplates{host: host, templateIDs: ids})
	if err == nil && res.Outcome == engine.OutcomeUpdate {
		res.Message = "templates: " + strings.Join(templates, ", ")
	}
	return res, err
}
