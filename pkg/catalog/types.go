// Package catalog holds the desired state: which host groups, hosts, templates,
// items, triggers and notification objects must exist on the monitoring server.
//
// A catalog is a YAML or CUE document rendered as a text/template first, so one
// file can describe a family of similar hosts.
package catalog

// Catalog is the whole desired state of one reconciliation pass.
type Catalog struct {
	User           *UserSettings   `yaml:"user,omitempty" json:"user,omitempty" validate:"omitempty"`
	HostGroups     []HostGroup     `yaml:"hostgroups,omitempty" json:"hostgroups,omitempty" validate:"dive"`
	TemplateGroups []TemplateGroup `yaml:"templategroups,omitempty" json:"templategroups,omitempty" validate:"dive"`
	Proxies        []Proxy         `yaml:"proxies,omitempty" json:"proxies,omitempty" validate:"dive"`
	Templates      []Template      `yaml:"templates,omitempty" json:"templates,omitempty" validate:"dive"`
	Hosts          []Host          `yaml:"hosts,omitempty" json:"hosts,omitempty" validate:"dive"`
	HostTemplates  []HostTemplates `yaml:"host_templates,omitempty" json:"host_templates,omitempty" validate:"dive"`
	ValueMaps      []ValueMap      `yaml:"valuemaps,omitempty" json:"valuemaps,omitempty" validate:"dive"`
	Macros         []Macro         `yaml:"macros,omitempty" json:"macros,omitempty" validate:"dive"`
	Items          []Item          `yaml:"items,omitempty" json:"items,omitempty" validate:"dive"`
	Triggers       []Trigger       `yaml:"triggers,omitempty" json:"triggers,omitempty" validate:"dive"`
	Graphs         []Graph         `yaml:"graphs,omitempty" json:"graphs,omitempty" validate:"dive"`
	Dashboards     []Dashboard     `yaml:"dashboards,omitempty" json:"dashboards,omitempty" validate:"dive"`
	Notifications  *Notifications  `yaml:"notifications,omitempty" json:"notifications,omitempty" validate:"omitempty"`
}

// UserSettings adjusts the API user itself.
type UserSettings struct {
	Username string `yaml:"username" json:"username" validate:"required"`

	// Lang is the UI language; empty leaves it unchanged.
	Lang string `yaml:"lang,omitempty" json:"lang,omitempty"`

	// Rights raises the permission of every user group of the user on these host groups.
	Rights []Right `yaml:"rights,omitempty" json:"rights,omitempty" validate:"dive"`
}

// Right is a host group permission: 2 read, 3 read-write.
type Right struct {
	HostGroup  string `yaml:"hostgroup" json:"hostgroup" validate:"required"`
	Permission int    `yaml:"permission" json:"permission" validate:"oneof=0 2 3"`
}

// HostGroup is keyed by name.
type HostGroup struct {
	Name string `yaml:"name" json:"name" validate:"required"`
}

// TemplateGroup is keyed by name.
type TemplateGroup struct {
	Name string `yaml:"name" json:"name" validate:"required"`
}

// Proxy is keyed by name.
type Proxy struct {
	Name string `yaml:"name" json:"name" validate:"required"`

	// Mode is active or passive.
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty" validate:"omitempty,oneof=active passive"`
}

// Template is keyed by its technical name.
type Template struct {
	Host   string   `yaml:"host" json:"host" validate:"required"`
	Name   string   `yaml:"name,omitempty" json:"name,omitempty"`
	Groups []string `yaml:"groups" json:"groups" validate:"min=1,dive,required"`
}

// Host is keyed by its technical name.
type Host struct {
	Host   string   `yaml:"host" json:"host" validate:"required"`
	Name   string   `yaml:"name,omitempty" json:"name,omitempty"`
	Groups []string `yaml:"groups" json:"groups" validate:"min=1,dive,required"`

	// Templates is the exact set of linked templates. Nil leaves links alone.
	Templates []string `yaml:"templates,omitempty" json:"templates,omitempty"`

	// Proxy, when set, monitors the host through that proxy.
	Proxy string `yaml:"proxy,omitempty" json:"proxy,omitempty"`

	Interfaces []Interface `yaml:"interfaces,omitempty" json:"interfaces,omitempty" validate:"dive"`
}

// Interface is keyed by host and type; a host has at most one managed
// interface per type.
type Interface struct {
	Type  string `yaml:"type" json:"type" validate:"oneof=agent snmp"`
	DNS   string `yaml:"dns,omitempty" json:"dns,omitempty"`
	IP    string `yaml:"ip,omitempty" json:"ip,omitempty" validate:"omitempty,ip"`
	Port  string `yaml:"port,omitempty" json:"port,omitempty" validate:"omitempty,numeric"`
	UseIP bool   `yaml:"useip,omitempty" json:"useip,omitempty"`

	SNMP *SNMPDetails `yaml:"snmp,omitempty" json:"snmp,omitempty" validate:"required_if=Type snmp"`
}

// SNMPDetails are the SNMP interface details.
type SNMPDetails struct {
	Version        int    `yaml:"version" json:"version" validate:"oneof=1 2 3"`
	Community      string `yaml:"community,omitempty" json:"community,omitempty"`
	Bulk           *bool  `yaml:"bulk,omitempty" json:"bulk,omitempty"`
	MaxRepetitions int    `yaml:"max_repetitions,omitempty" json:"max_repetitions,omitempty" validate:"gte=0"`
	SecurityName   string `yaml:"securityname,omitempty" json:"securityname,omitempty"`

	// SecurityLevel: 0 noAuthNoPriv, 1 authNoPriv, 2 authPriv.
	SecurityLevel  int    `yaml:"securitylevel,omitempty" json:"securitylevel,omitempty" validate:"oneof=0 1 2"`
	AuthProtocol   int    `yaml:"authprotocol,omitempty" json:"authprotocol,omitempty" validate:"gte=0"`
	AuthPassphrase string `yaml:"authpassphrase,omitempty" json:"authpassphrase,omitempty"`
	PrivProtocol   int    `yaml:"privprotocol,omitempty" json:"privprotocol,omitempty" validate:"gte=0"`
	PrivPassphrase string `yaml:"privpassphrase,omitempty" json:"privpassphrase,omitempty"`
	ContextName    string `yaml:"contextname,omitempty" json:"contextname,omitempty"`
}

// HostTemplates pins the exact template set of a host that the catalog does not
// otherwise manage, such as the built-in server host.
type HostTemplates struct {
	Host      string   `yaml:"host" json:"host" validate:"required"`
	Templates []string `yaml:"templates" json:"templates" validate:"dive,required"`
}

// Owner names the host or the template a sub-resource belongs to. Exactly one
// of the two is set.
type Owner struct {
	Host     string `yaml:"host,omitempty" json:"host,omitempty" validate:"required_without=Template,excluded_with=Template"`
	Template string `yaml:"template,omitempty" json:"template,omitempty" validate:"required_without=Host"`
}

// Name returns the owner's technical name.
func (o Owner) Name() string {
	if o.Template != "" {
		return o.Template
	}
	return o.Host
}

// IsTemplate reports whether the owner is a template.
func (o Owner) IsTemplate() bool {
	return o.Template != ""
}

// ValueMap is keyed by owner and name.
type ValueMap struct {
	Owner    `yaml:",inline"`
	Name     string    `yaml:"name" json:"name" validate:"required"`
	Mappings []Mapping `yaml:"mappings" json:"mappings" validate:"min=1,dive"`
}

// Mapping maps a raw value to a label.
type Mapping struct {
	Value    string `yaml:"value" json:"value" validate:"required"`
	NewValue string `yaml:"newvalue" json:"newvalue" validate:"required"`
}

// Macro is keyed by owner and macro name.
type Macro struct {
	Owner `yaml:",inline"`
	Macro string `yaml:"macro" json:"macro" validate:"required,startswith={$,endswith=}"`
	Value string `yaml:"value" json:"value"`
}

// Item is keyed by owner and key.
type Item struct {
	Owner `yaml:",inline"`
	Key   string `yaml:"key" json:"key" validate:"required"`
	Name  string `yaml:"name" json:"name" validate:"required"`

	// Type is agent, agent_active or snmp.
	Type string `yaml:"type" json:"type" validate:"oneof=agent agent_active snmp"`

	// ValueType is float, char, log, uint or text.
	ValueType string `yaml:"value_type" json:"value_type" validate:"oneof=float char log uint text"`

	Delay   string `yaml:"delay,omitempty" json:"delay,omitempty"`
	History string `yaml:"history,omitempty" json:"history,omitempty"`
	Trends  string `yaml:"trends,omitempty" json:"trends,omitempty"`
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Units   string `yaml:"units,omitempty" json:"units,omitempty"`

	SNMPOID  string `yaml:"snmp_oid,omitempty" json:"snmp_oid,omitempty" validate:"required_if=Type snmp"`
	ValueMap string `yaml:"valuemap,omitempty" json:"valuemap,omitempty"`

	Preprocessing []Preprocessing `yaml:"preprocessing,omitempty" json:"preprocessing,omitempty" validate:"dive"`
	Tags          []Tag           `yaml:"tags,omitempty" json:"tags,omitempty" validate:"dive"`
}

// Preprocessing is one preprocessing step.
type Preprocessing struct {
	// Type is multiply or change_per_second.
	Type   string `yaml:"type" json:"type" validate:"oneof=multiply change_per_second"`
	Params string `yaml:"params,omitempty" json:"params,omitempty"`
}

// Tag is a name/value tag.
type Tag struct {
	Tag   string `yaml:"tag" json:"tag" validate:"required"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
}

// Trigger is keyed by its description within the host or template of its
// expression.
type Trigger struct {
	Description string `yaml:"description" json:"description" validate:"required"`
	Expression  string `yaml:"expression" json:"expression" validate:"required"`
	Priority    int    `yaml:"priority" json:"priority" validate:"min=0,max=5"`
	ManualClose bool   `yaml:"manual_close,omitempty" json:"manual_close,omitempty"`

	// RecoveryMode: 0 expression, 1 recovery expression, 2 none.
	RecoveryMode       int    `yaml:"recovery_mode,omitempty" json:"recovery_mode,omitempty" validate:"oneof=0 1 2"`
	RecoveryExpression string `yaml:"recovery_expression,omitempty" json:"recovery_expression,omitempty" validate:"required_if=RecoveryMode 1"`
}

// Graph is keyed by owner and name.
type Graph struct {
	Owner  `yaml:",inline"`
	Name   string      `yaml:"name" json:"name" validate:"required"`
	Width  int         `yaml:"width,omitempty" json:"width,omitempty" validate:"gte=0"`
	Height int         `yaml:"height,omitempty" json:"height,omitempty" validate:"gte=0"`
	Items  []GraphItem `yaml:"items" json:"items" validate:"min=1,dive"`
}

// GraphItem draws one item of the graph owner.
type GraphItem struct {
	Key   string `yaml:"key" json:"key" validate:"required"`
	Color string `yaml:"color" json:"color" validate:"required,hexadecimal,len=6"`
}

// Dashboard is keyed by name.
type Dashboard struct {
	Name      string          `yaml:"name" json:"name" validate:"required"`
	AutoStart bool            `yaml:"auto_start,omitempty" json:"auto_start,omitempty"`
	Pages     []DashboardPage `yaml:"pages" json:"pages" validate:"min=1,dive"`
}

// DashboardPage is a page of graph widgets laid out on the 24 column grid.
type DashboardPage struct {
	Name    string        `yaml:"name" json:"name"`
	Widgets []GraphWidget `yaml:"widgets" json:"widgets" validate:"min=1,dive"`
}

// GraphWidget shows a graph of a host, inherited graphs included.
type GraphWidget struct {
	Host  string `yaml:"host" json:"host" validate:"required"`
	Graph string `yaml:"graph" json:"graph" validate:"required"`

	// TimePeriod is the shown period in seconds.
	TimePeriod int `yaml:"time_period,omitempty" json:"time_period,omitempty" validate:"gte=0"`
}

// Notifications are only applied when the messaging credentials are configured.
type Notifications struct {
	MediaTypes []MediaType `yaml:"mediatypes,omitempty" json:"mediatypes,omitempty" validate:"dive"`
	UserMedia  []UserMedia `yaml:"user_media,omitempty" json:"user_media,omitempty" validate:"dive"`
	Actions    []Action    `yaml:"actions,omitempty" json:"actions,omitempty" validate:"dive"`
}

// MediaType is a webhook media type keyed by name.
type MediaType struct {
	Name       string            `yaml:"name" json:"name" validate:"required"`
	Script     string            `yaml:"script,omitempty" json:"script,omitempty"`
	ScriptFile string            `yaml:"script_file,omitempty" json:"script_file,omitempty"`
	Timeout    string            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Parameters []Parameter       `yaml:"parameters,omitempty" json:"parameters,omitempty" validate:"dive"`
	Messages   []MessageTemplate `yaml:"messages,omitempty" json:"messages,omitempty" validate:"dive"`
}

// Parameter is a webhook parameter.
type Parameter struct {
	Name  string `yaml:"name" json:"name" validate:"required"`
	Value string `yaml:"value" json:"value"`
}

// MessageTemplate is the default message for trigger events.
type MessageTemplate struct {
	Recovery bool   `yaml:"recovery,omitempty" json:"recovery,omitempty"`
	Subject  string `yaml:"subject" json:"subject"`
	Message  string `yaml:"message" json:"message"`
}

// UserMedia attaches a media type to a user; keyed by user and media type.
type UserMedia struct {
	Username  string `yaml:"username" json:"username" validate:"required"`
	MediaType string `yaml:"mediatype" json:"mediatype" validate:"required"`
	SendTo    string `yaml:"sendto" json:"sendto" validate:"required"`

	// Severity is a bit mask, 63 for all.
	Severity int    `yaml:"severity,omitempty" json:"severity,omitempty" validate:"gte=0,lte=63"`
	Period   string `yaml:"period,omitempty" json:"period,omitempty"`
}

// Action sends trigger events to users through a media type. Keyed by name.
type Action struct {
	Name      string   `yaml:"name" json:"name" validate:"required"`
	MediaType string   `yaml:"mediatype" json:"mediatype" validate:"required"`
	Users     []string `yaml:"users" json:"users" validate:"min=1,dive,required"`

	// EvalType combines conditions: and_or, and, or.
	EvalType string `yaml:"evaltype,omitempty" json:"evaltype,omitempty" validate:"omitempty,oneof=and_or and or"`

	HostGroups   []string `yaml:"hostgroups,omitempty" json:"hostgroups,omitempty"`
	MinSeverity  *int     `yaml:"min_severity,omitempty" json:"min_severity,omitempty" validate:"omitempty,min=0,max=5"`
	ExcludeHosts []string `yaml:"exclude_hosts,omitempty" json:"exclude_hosts,omitempty"`
	Triggers     []string `yaml:"triggers,omitempty" json:"triggers,omitempty"`
}
