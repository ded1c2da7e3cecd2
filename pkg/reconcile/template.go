package reconcile

import (
	"context"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// TemplatePayload is the desired template.
type TemplatePayload struct {
	Host   string              `json:"host"`
	Name   string              `json:"name"`
	Groups []map[string]string `json:"groups"`

	groupIDs []string
}

type templateKind struct{}

func (templateKind) Name() string { return "template" }
func (templateKind) Key(d TemplatePayload) string { return d.Host }
func (templateKind) ID(r Object) string { return r.Str("templateid") }

func (templateKind) Lookup(ctx context.Context, c rpc.Caller, d TemplatePayload) (Object, bool, error) {
	params := byName("host", d.Host)
	params["selectTemplateGroups"] = []string{"groupid", "name"}
	return first(ctx, c, "template.get", params)
}

func (templateKind) Create(ctx context.Context, c rpc.Caller, d TemplatePayload) (string, error) {
	return create(ctx, c, "template.create", "templateids", d)
}

func (templateKind) Diff(d TemplatePayload, r Object) []engine.Change {
	changes := diffPayload(d, r, "host", "groups")
	current := r.IDs("templategroups", "groupid")
	if !DiffSets(current, d.groupIDs).Empty() {
		changes = append(changes, change("groups", sortedCopy(current), sortedCopy(d.groupIDs))...)
	}
	return changes
}

func (templateKind) Update(ctx context.Context, c rpc.Caller, d TemplatePayload, r Object) error {
	_, err := write(ctx, c, "template.update", "templateids", withID("templateid", r.Str("templateid"), d, "host"))
	return err
}

// EnsureTemplate creates the template in its template groups, or converges its
// visible name and group set.
func EnsureTemplate(ctx context.Context, c rpc.Caller, t catalog.Template) (engine.StepResult, error) {
	groupIDs, err := resolveAll(ctx, c, t.Groups, TemplateGroupID)
	if err != nil {
		return engine.StepResult{Kind: "template", Key: t.Host}, err
	}

	d := TemplatePayload{
		Host:     t.Host,
		Name:     t.Name,
		Groups:   refs("groupid", groupIDs),
		groupIDs: groupIDs,
	}
	if d.Name == "" {
		d.Name = t.Host
	}
	return Ensure[TemplatePayload, Object](ctx, c, templateKind{}, d)
}
