// Package policy evaluates Rego guardrails over a catalog before anything is
// sent to the API.
//
// The catalog is converted to its JSON form and passed as input. A policy may
// define two rule sets:
//
//   - deny: every result aborts the run with a validation error
//   - warn: every result is logged and the run continues
//
// A result is either a string or an object with "message" and an optional
// "resource":
//
//	package site.groups
//
//	deny contains msg if {
//		some g in input.hostgroups
//		g.name == "web"
//		msg := "host group web is reserved"
//	}
//
// Built-in policies (see Builtin) are always loaded. Files or directories given
// with --policy add to them; in a directory, every .rego file is loaded and a
// leading comment block becomes the policy description.
package policy
