// Package provision turns a catalog into ordered reconcile steps and runs them
// once the remote API is ready.
package provision

import (
	"context"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/reconcile"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// Step kinds.
const (
	KindHostGroup     = "hostgroup"
	KindTemplateGroup = "templategroup"
	KindProxy         = "proxy"
	KindTemplate      = "template"
	KindHost          = "host"
	KindInterface     = "interface"
	KindHostTemplates = "hosttemplates"
	KindValueMap      = "valuemap"
	KindMacro         = "macro"
	KindItem          = "item"
	KindTrigger       = "trigger"
	KindGraph         = "graph"
	KindDashboard     = "dashboard"
	KindUser          = "user"
	KindUserRights    = "userrights"
	KindMediaType     = "mediatype"
	KindUserMedia     = "usermedia"
	KindAction        = "action"
)

// Options select which parts of the catalog are compiled.
type Options struct {
	// Notifications includes media types, user media and actions.
	Notifications bool
}

// compiler collects steps in declaration order and wires dependencies
// between steps that are both part of the run. References to objects the
// catalog does not declare are left to the reconcilers, which resolve them
// by natural key and fail if they are missing.
type compiler struct {
	caller rpc.Caller
	steps  []engine.Step
	index  map[string]int

	// graphs maps a graph name to the steps declaring it, for any owner.
	graphs map[string][]string
}

// Compile builds the steps of one reconciliation pass. Steps run their ensure
// operation through caller; it may be nil when the steps are only planned.
func Compile(c *catalog.Catalog, caller rpc.Caller, opts Options) []engine.Step {
	k := &compiler{
		caller: caller,
		index:  make(map[string]int),
		graphs: make(map[string][]string),
	}

	k.declare(c, opts)
	k.link(c, opts)
	return k.steps
}

func (k *compiler) add(kind, key string, run func(ctx context.Context, c rpc.Caller) (engine.StepResult, error)) {
	id := engine.StepID(kind, key)
	if _, ok := k.index[id]; ok {
		return
	}
	caller := k.caller
	k.index[id] = len(k.steps)
	k.steps = append(k.steps, engine.Step{
		ID:   id,
		Kind: kind,
		Key:  key,
		Run: func(ctx context.Context) (engine.StepResult, error) {
			return run(ctx, caller)
		},
	})
}

// require adds an edge from the step id to target if target is declared.
func (k *compiler) require(id, target string) {
	k.edge(id, target, engine.DependencyRequire)
}

// after adds an ordering-only edge.
func (k *compiler) after(id, target string) {
	k.edge(id, target, engine.DependencyOrder)
}

func (k *compiler) edge(id, target string, typ engine.DependencyType) {
	i, ok := k.index[id]
	if !ok || id == target {
		return
	}
	if _, ok := k.index[target]; !ok {
		return
	}
	for _, d := range k.steps[i].Dependencies {
		if d.TargetID == target {
			return
		}
	}
	k.steps[i].Dependencies = append(k.steps[i].Dependencies, engine.Dependency{TargetID: target, Type: typ})
}

func ownerStep(o catalog.Owner) string {
	if o.IsTemplate() {
		return engine.StepID(KindTemplate, o.Template)
	}
	return engine.StepID(KindHost, o.Host)
}

func ownedKey(o catalog.Owner, name string) string {
	return o.Name() + "/" + name
}

// hostSteps are the steps after which a host's links and interfaces are in
// place: the host itself, its interfaces and its template links.
func (k *compiler) hostSteps(host string) []string {
	ids := []string{engine.StepID(KindHost, host), engine.StepID(KindHostTemplates, host)}
	for _, t := range []string{"agent", "snmp"} {
		ids = append(ids, engine.StepID(KindInterface, host+"/"+t))
	}
	return ids
}

// ownerReady are the steps after which items of an owner can be created.
func (k *compiler) ownerReady(o catalog.Owner) []string {
	if o.IsTemplate() {
		return []string{ownerStep(o)}
	}
	return k.hostSteps(o.Host)
}

func (k *compiler) declare(c *catalog.Catalog, opts Options) {
	if u := c.User; u != nil {
		k.add(KindUser, u.Username, func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
			return reconcile.EnsureUser(ctx, rc, *u)
		})
	}
	for _, g := range c.HostGroups {
		g := g
		k.add(KindHostGroup, g.Name, func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
			return reconcile.EnsureHostGroup(ctx, rc, g)
		})
	}
	if u := c.User; u != nil && len(u.Rights) > 0 {
		k.add(KindUserRights, u.Username, func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
			return reconcile.EnsureUserRights(ctx, rc, u.Username, u.Rights)
		})
	}
	for _, p := range c.Proxies {
		p := p
		k.add(KindProxy, p.Name, func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
			return reconcile.EnsureProxy(ctx, rc, p)
		})
	}
	for _, g := range c.TemplateGroups {
		g := g
		k.add(KindTemplateGroup, g.Name, func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
			return reconcile.EnsureTemplateGroup(ctx, rc, g)
		})
	}
	for _, t := range c.Templates {
		t := t
		k.add(KindTemplate, t.Host, func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
			return reconcile.EnsureTemplate(ctx, rc, t)
		})
	}

	for _, h := range c.Hosts {
		h := h
		k.add(KindHost, h.Host, func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
			return reconcile.EnsureHost(ctx, rc, h)
		})
		for _, iface := range h.Interfaces {
			iface := iface
			k.add(KindInterface, h.Host+"/"+iface.Type, func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
				return reconcile.EnsureInterface(ctx, rc, h.Host, iface)
			})
		}
		if h.Templates != nil {
			k.add(KindHostTemplates, h.Host, func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
				return reconcile.EnsureHostTemplates(ctx, rc, h.Host, h.Templates)
			})
		}
	}
	for _, ht := range c.HostTemplates {
		ht := ht
		k.add(KindHostTemplates, ht.Host, func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
			return reconcile.EnsureHostTemplates(ctx, rc, ht.Host, ht.Templates)
		})
	}

	for _, vm := range c.ValueMaps {
		vm := vm
		k.add(KindValueMap, ownedKey(vm.Owner, vm.Name), func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
			return reconcile.EnsureValueMap(ctx, rc, vm)
		})
	}
	for _, m := range c.Macros {
		m := m
		k.add(KindMacro, ownedKey(m.Owner, m.Macro), func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
			return reconcile.EnsureMacro(ctx, rc, m)
		})
	}
	for _, it := range c.Items {
		it := it
		k.add(KindItem, ownedKey(it.Owner, it.Key), func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
			return reconcile.EnsureItem(ctx, rc, it)
		})
	}
	for _, t := range c.Triggers {
		t := t
		k.add(KindTrigger, t.Description, func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
			return reconcile.EnsureTrigger(ctx, rc, t)
		})
	}
	for _, g := range c.Graphs {
		g := g
		key := ownedKey(g.Owner, g.Name)
		k.add(KindGraph, key, func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
			return reconcile.EnsureGraph(ctx, rc, g)
		})
		k.graphs[g.Name] = append(k.graphs[g.Name], engine.StepID(KindGraph, key))
	}
	for _, d := range c.Dashboards {
		d := d
		k.add(KindDashboard, d.Name, func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
			return reconcile.EnsureDashboard(ctx, rc, d)
		})
	}

	if n := c.Notifications; n != nil && opts.Notifications {
		for _, mt := range n.MediaTypes {
			mt := mt
			k.add(KindMediaType, mt.Name, func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
				return reconcile.EnsureMediaType(ctx, rc, mt)
			})
		}
		for _, um := range n.UserMedia {
			um := um
			k.add(KindUserMedia, um.Username+"/"+um.MediaType, func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
				return reconcile.EnsureUserMedia(ctx, rc, um)
			})
		}
		for _, a := range n.Actions {
			a := a
			k.add(KindAction, a.Name, func(ctx context.Context, rc rpc.Caller) (engine.StepResult, error) {
				return reconcile.EnsureAction(ctx, rc, a)
			})
		}
	}
}

// link derives dependencies from natural-key references.
func (k *compiler) link(c *catalog.Catalog, opts Options) {
	if u := c.User; u != nil {
		id := engine.StepID(KindUserRights, u.Username)
		k.after(id, engine.StepID(KindUser, u.Username))
		for _, r := range u.Rights {
			k.require(id, engine.StepID(KindHostGroup, r.HostGroup))
		}
	}

	for _, t := range c.Templates {
		id := engine.StepID(KindTemplate, t.Host)
		for _, g := range t.Groups {
			k.require(id, engine.StepID(KindTemplateGroup, g))
		}
	}

	for _, h := range c.Hosts {
		id := engine.StepID(KindHost, h.Host)
		for _, g := range h.Groups {
			k.require(id, engine.StepID(KindHostGroup, g))
		}
		for _, t := range h.Templates {
			k.require(id, engine.StepID(KindTemplate, t))
		}
		if h.Proxy != "" {
			k.require(id, engine.StepID(KindProxy, h.Proxy))
		}
		for _, iface := range h.Interfaces {
			k.require(engine.StepID(KindInterface, h.Host+"/"+iface.Type), id)
		}
		if h.Templates != nil {
			links := engine.StepID(KindHostTemplates, h.Host)
			k.require(links, id)
			for _, iface := range h.Interfaces {
				k.after(links, engine.StepID(KindInterface, h.Host+"/"+iface.Type))
			}
		}
	}
	for _, ht := range c.HostTemplates {
		id := engine.StepID(KindHostTemplates, ht.Host)
		k.require(id, engine.StepID(KindHost, ht.Host))
		for _, t := range ht.Templates {
			k.require(id, engine.StepID(KindTemplate, t))
		}
	}

	for _, vm := range c.ValueMaps {
		k.require(engine.StepID(KindValueMap, ownedKey(vm.Owner, vm.Name)), ownerStep(vm.Owner))
	}
	for _, m := range c.Macros {
		k.require(engine.StepID(KindMacro, ownedKey(m.Owner, m.Macro)), ownerStep(m.Owner))
	}

	for _, it := range c.Items {
		id := engine.StepID(KindItem, ownedKey(it.Owner, it.Key))
		k.require(id, ownerStep(it.Owner))
		for _, ready := range k.ownerReady(it.Owner) {
			k.after(id, ready)
		}
		if it.ValueMap != "" {
			k.require(id, engine.StepID(KindValueMap, ownedKey(it.Owner, it.ValueMap)))
		}
		// Macros used in keys and OIDs.
		for _, m := range c.Macros {
			if m.Owner == it.Owner {
				k.after(id, engine.StepID(KindMacro, ownedKey(m.Owner, m.Macro)))
			}
		}
	}

	for _, t := range c.Triggers {
		id := engine.StepID(KindTrigger, t.Description)
		refs := append(reconcile.ParseItemRefs(t.Expression), reconcile.ParseItemRefs(t.RecoveryExpression)...)
		for _, ref := range refs {
			k.require(id, engine.StepID(KindItem, ref.Host+"/"+ref.Key))
			k.after(id, engine.StepID(KindTemplate, ref.Host))
			for _, ready := range k.hostSteps(ref.Host) {
				k.after(id, ready)
			}
		}
	}

	for _, g := range c.Graphs {
		id := engine.StepID(KindGraph, ownedKey(g.Owner, g.Name))
		k.require(id, ownerStep(g.Owner))
		for _, gi := range g.Items {
			k.require(id, engine.StepID(KindItem, ownedKey(g.Owner, gi.Key)))
		}
	}

	for _, d := range c.Dashboards {
		id := engine.StepID(KindDashboard, d.Name)
		for _, p := range d.Pages {
			for _, w := range p.Widgets {
				k.require(id, engine.StepID(KindHost, w.Host))
				k.after(id, engine.StepID(KindHostTemplates, w.Host))
				for _, g := range k.graphs[w.Graph] {
					k.after(id, g)
				}
			}
		}
	}

	if n := c.Notifications; n != nil && opts.Notifications {
		for _, um := range n.UserMedia {
			id := engine.StepID(KindUserMedia, um.Username+"/"+um.MediaType)
			k.require(id, engine.StepID(KindMediaType, um.MediaType))
			k.after(id, engine.StepID(KindUser, um.Username))
		}
		for _, a := range n.Actions {
			id := engine.StepID(KindAction, a.Name)
			k.require(id, engine.StepID(KindMediaType, a.MediaType))
			for _, u := range a.Users {
				k.after(id, engine.StepID(KindUserMedia, u+"/"+a.MediaType))
			}
			for _, g := range a.HostGroups {
				k.require(id, engine.StepID(KindHostGroup, g))
			}
			for _, h := range a.ExcludeHosts {
				k.require(id, engine.StepID(KindHost, h))
			}
			for _, t := range a.Triggers {
				k.require(id, engine.StepID(KindTrigger, t))
			}
		}
	}
}
