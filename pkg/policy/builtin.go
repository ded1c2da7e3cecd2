package policy

// Builtin returns the guardrails evaluated on every catalog.
func Builtin() []Policy {
	return []Policy{
		notificationsPolicy(),
		itemsPolicy(),
		referencesPolicy(),
	}
}

// notificationsPolicy keeps actions and user media pointing at declared media
// types and stops actions that would forward every event.
func notificationsPolicy() Policy {
	return Policy{
		Name:        "notifications",
		Description: "Actions and user media must use declared media types; actions need a condition",
		Rego: `package zbxsync.notifications

media_types contains mt.name if {
	some mt in input.notifications.mediatypes
}

deny contains violation if {
	some a in input.notifications.actions
	not a.mediatype in media_types
	violation := {
		"message": sprintf("action uses media type %q which is not declared", [a.mediatype]),
		"resource": sprintf("action/%s", [a.name]),
	}
}

deny contains violation if {
	some m in input.notifications.user_media
	not m.mediatype in media_types
	violation := {
		"message": sprintf("user media uses media type %q which is not declared", [m.mediatype]),
		"resource": sprintf("usermedia/%s/%s", [m.username, m.mediatype]),
	}
}

deny contains violation if {
	some a in input.notifications.actions
	count(object.get(a, "hostgroups", [])) == 0
	count(object.get(a, "triggers", [])) == 0
	not has_severity(a)
	violation := {
		"message": "action has no host group, severity or trigger condition and would forward every event",
		"resource": sprintf("action/%s", [a.name]),
	}
}

has_severity(a) if {
	a.min_severity >= 0
}
`,
	}
}

// itemsPolicy checks item and trigger settings the API accepts but that
// never produce data or alerts.
func itemsPolicy() Policy {
	return Policy{
		Name:        "items",
		Description: "Log items need an active agent; triggers should be classified",
		Rego: `package zbxsync.items

deny contains violation if {
	some it in input.items
	it.value_type == "log"
	it.type != "agent_active"
	violation := {
		"message": sprintf("log item %q must use type agent_active", [it.key]),
		"resource": sprintf("item/%s", [owner(it)]),
	}
}

warn contains violation if {
	some t in input.triggers
	object.get(t, "priority", 0) == 0
	violation := {
		"message": "trigger is not classified and is never matched by severity conditions",
		"resource": sprintf("trigger/%s", [t.description]),
	}
}

owner(it) := name if {
	it.host
	name := sprintf("%s/%s", [it.host, it.key])
}

owner(it) := name if {
	it.template
	name := sprintf("%s/%s", [it.template, it.key])
}
`,
	}
}

// referencesPolicy warns about names the catalog uses without declaring.
// They may exist on the server already.
func referencesPolicy() Policy {
	return Policy{
		Name:        "references",
		Description: "Warn about proxies and graphs used but not declared",
		Rego: `package zbxsync.references

proxies contains p.name if {
	some p in input.proxies
}

graphs contains g.name if {
	some g in input.graphs
}

warn contains violation if {
	some h in input.hosts
	h.proxy
	not h.proxy in proxies
	violation := {
		"message": sprintf("proxy %q is not declared and must already exist", [h.proxy]),
		"resource": sprintf("host/%s", [h.host]),
	}
}

warn contains violation if {
	some d in input.dashboards
	some p in d.pages
	some w in p.widgets
	not w.graph in graphs
	violation := {
		"message": sprintf("graph %q is not declared and must already exist on %s", [w.graph, w.host]),
		"resource": sprintf("dashboard/%s", [d.name]),
	}
}
`,
	}
}
