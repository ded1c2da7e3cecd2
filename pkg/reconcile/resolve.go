package reconcile

import (
	"context"
	"fmt"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// lookupRequired resolves a dependency that must already exist.
func lookupRequired(ctx context.Context, c rpc.Caller, method string, params Params, idField, what, key string) (string, error) {
	obj, found, err := first(ctx, c, method, params)
	if err != nil {
		return "", err
	}
	if !found || obj.Str(idField) == "" {
		return "", engine.NewPreconditionError(fmt.Sprintf("%s %q not found", what, key), nil).
			WithOperation(method)
	}
	return obj.Str(idField), nil
}

// HostGroupID resolves a host group by name.
func HostGroupID(ctx context.Context, c rpc.Caller, name string) (string, error) {
	return lookupRequired(ctx, c, "hostgroup.get", byName("name", name), "groupid", "host group", name)
}

// TemplateGroupID resolves a template group by name.
func TemplateGroupID(ctx context.Context, c rpc.Caller, name string) (string, error) {
	return lookupRequired(ctx, c, "templategroup.get", byName("name", name), "groupid", "template group", name)
}

// TemplateID resolves a template by technical name.
func TemplateID(ctx context.Context, c rpc.Caller, name string) (string, error) {
	return lookupRequired(ctx, c, "template.get", byName("host", name), "templateid", "template", name)
}

// HostID resolves a host by technical name.
func HostID(ctx context.Context, c rpc.Caller, name string) (string, error) {
	return lookupRequired(ctx, c, "host.get", byName("host", name), "hostid", "host", name)
}

// ProxyID resolves a proxy by name.
func ProxyID(ctx context.Context, c rpc.Caller, name string) (string, error) {
	return lookupRequired(ctx, c, "proxy.get", byName("name", name), "proxyid", "proxy", name)
}

// UserID resolves a user by username.
func UserID(ctx context.Context, c rpc.Caller, username string) (string, error) {
	return lookupRequired(ctx, c, "user.get", byName("username", username), "userid", "user", username)
}

// MediaTypeID resolves a media type by name.
func MediaTypeID(ctx context.Context, c rpc.Caller, name string) (string, error) {
	return lookupRequired(ctx, c, "mediatype.get", byName("name", name), "mediatypeid", "media type", name)
}

// ItemID resolves an item by key on a host or template.
func ItemID(ctx context.Context, c rpc.Caller, ownerID, key string) (string, error) {
	params := byName("key_", key)
	params["hostids"] = []string{ownerID}
	return lookupRequired(ctx, c, "item.get", params, "itemid", "item", key)
}

// TriggerID resolves a trigger by description, preferring one defined
// directly over one inherited from a template.
func TriggerID(ctx context.Context, c rpc.Caller, description string) (string, error) {
	objs, err := get(ctx, c, "trigger.get", byName("description", description))
	if err != nil {
		return "", err
	}
	for _, o := range objs {
		if o.Str("templateid") == "" || o.Str("templateid") == "0" {
			return o.Str("triggerid"), nil
		}
	}
	if len(objs) > 0 {
		return objs[0].Str("triggerid"), nil
	}
	return "", engine.NewPreconditionError(fmt.Sprintf("trigger %q not found", description), nil).
		WithOperation("trigger.get")
}

// OwnerID resolves the host or template a sub-resource belongs to.
func OwnerID(ctx context.Context, c rpc.Caller, o catalog.Owner) (string, error) {
	if o.IsTemplate() {
		return TemplateID(ctx, c, o.Template)
	}
	return HostID(ctx, c, o.Host)
}

// HostOrTemplateID resolves a technical name that may denote either a host or
// a template, as in trigger expressions.
func HostOrTemplateID(ctx context.Context, c rpc.Caller, name string) (string, error) {
	obj, found, err := first(ctx, c, "host.get", byName("host", name))
	if err != nil {
		return "", err
	}
	if found {
		return obj.Str("hostid"), nil
	}
	return TemplateID(ctx, c, name)
}

// resolveAll applies fn to every name in order.
func resolveAll(ctx context.Context, c rpc.Caller, names []string, fn func(context.Context, rpc.Caller, string) (string, error)) ([]string, error) {
	ids := make([]string, 0, len(names))
	for _, n := range names {
		id, err := fn(ctx, c, n)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
