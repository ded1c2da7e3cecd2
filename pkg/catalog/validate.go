package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/zbxsync/pkg/engine"
)

// Problems is a list of catalog problems reported together.
type Problems []string

func (p Problems) Error() string {
	return strings.Join(p, "; ")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-entry consistency. Problems
// are collected rather than stopping at the first.
func Validate(c *Catalog) error {
	var problems Problems

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return engine.NewValidationError("invalid catalog", err)
		}
		for _, fe := range verrs {
			problems = append(problems, fieldProblem(fe))
		}
	}

	problems = append(problems, duplicates(c)...)
	problems = append(problems, interfaceProblems(c)...)

	if len(problems) > 0 {
		return engine.NewValidationError("invalid catalog", problems).
			WithDetail("problems", len(problems))
	}
	return nil
}

func fieldProblem(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s: failed %s=%s", ns, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s: failed %s", ns, fe.Tag())
}

// keys reports natural keys seen more than once within one kind.
type keys struct {
	kind string
	seen map[string]bool
	out  *Problems
}

func newKeys(kind string, out *Problems) *keys {
	return &keys{kind: kind, seen: make(map[string]bool), out: out}
}

func (k *keys) add(key string) {
	if k.seen[key] {
		*k.out = append(*k.out, fmt.Sprintf("duplicate %s %q", k.kind, key))
		return
	}
	k.seen[key] = true
}

func owned(o Owner, name string) string {
	return o.Name() + "/" + name
}

func duplicates(c *Catalog) Problems {
	var p Problems

	hg := newKeys("hostgroup", &p)
	for _, g := range c.HostGroups {
		hg.add(g.Name)
	}
	tg := newKeys("templategroup", &p)
	for _, g := range c.TemplateGroups {
		tg.add(g.Name)
	}
	px := newKeys("proxy", &p)
	for _, x := range c.Proxies {
		px.add(x.Name)
	}

	// Hosts and templates share the technical name space.
	names := newKeys("host or template", &p)
	for _, t := range c.Templates {
		names.add(t.Host)
	}
	for _, h := range c.Hosts {
		names.add(h.Host)
	}
	ht := newKeys("host_templates", &p)
	for _, h := range c.HostTemplates {
		ht.add(h.Host)
	}

	vm := newKeys("valuemap", &p)
	for _, v := range c.ValueMaps {
		vm.add(owned(v.Owner, v.Name))
	}
	mc := newKeys("macro", &p)
	for _, m := range c.Macros {
		mc.add(owned(m.Owner, m.Macro))
	}
	it := newKeys("item", &p)
	for _, i := range c.Items {
		it.add(owned(i.Owner, i.Key))
	}
	tr := newKeys("trigger", &p)
	for _, t := range c.Triggers {
		tr.add(t.Description)
	}
	gr := newKeys("graph", &p)
	for _, g := range c.Graphs {
		gr.add(owned(g.Owner, g.Name))
	}
	db := newKeys("dashboard", &p)
	for _, d := range c.Dashboards {
		db.add(d.Name)
	}

	if n := c.Notifications; n != nil {
		mt := newKeys("mediatype", &p)
		for _, m := range n.MediaTypes {
			mt.add(m.Name)
		}
		um := newKeys("user_media", &p)
		for _, m := range n.UserMedia {
			um.add(m.Username + "/" + m.MediaType)
		}
		ac := newKeys("action", &p)
		for _, a := range n.Actions {
			ac.add(a.Name)
		}
	}
	return p
}

// interfaceProblems enforces one interface per type per host and complete
// SNMPv3 credentials.
func interfaceProblems(c *Catalog) Problems {
	var p Problems
	for _, h := range c.Hosts {
		seen := make(map[string]bool)
		for _, iface := range h.Interfaces {
			if seen[iface.Type] {
				p = append(p, fmt.Sprintf("host %q has more than one %s interface", h.Host, iface.Type))
			}
			seen[iface.Type] = true

			if iface.DNS == "" && iface.IP == "" {
				p = append(p, fmt.Sprintf("host %q: %s interface needs dns or ip", h.Host, iface.Type))
			}
			if s := iface.SNMP; s != nil && s.Version == 3 && s.SecurityLevel == 2 {
				if s.AuthPassphrase == "" || s.PrivPassphrase == "" {
					p = append(p, fmt.Sprintf(
						"host %q: SNMPv3 authPriv needs both passphrases (set SNMP_AUTH_PASS and SNMP_PRIV_PASS)", h.Host))
				}
			}
		}
	}
	return p
}
