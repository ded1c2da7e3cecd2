package policy

import (
	"fmt"
	"strings"
)

// Severity tells whether a violation blocks the run.
type Severity string

const (
	// SeverityWarning violations are logged and the run continues.
	SeverityWarning Severity = "warning"

	// SeverityError violations abort the run before any RPC.
	SeverityError Severity = "error"
)

// Policy is a Rego module. Its deny rules produce errors and its warn rules
// produce warnings; both are sets of strings or of objects with a message and
// an optional resource.
type Policy struct {
	// Name is the unique name of the policy, the file name for loaded ones.
	Name string `json:"name"`

	// Description is taken from the leading comment block.
	Description string `json:"description,omitempty"`

	// Rego contains the Rego source.
	Rego string `json:"rego"`

	// Source is the file the policy was read from; empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation is one deny or warn result.
type Violation struct {
	Policy   string   `json:"policy"`
	Resource string   `json:"resource,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (v Violation) String() string {
	if v.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", v.Policy, v.Message, v.Resource)
	}
	return fmt.Sprintf("%s: %s", v.Policy, v.Message)
}

// Result is the outcome of evaluating every policy against one catalog.
type Result struct {
	Denials  []Violation `json:"denials,omitempty"`
	Warnings []Violation `json:"warnings,omitempty"`

	// Evaluated lists the names of the evaluated policies.
	Evaluated []string `json:"evaluated"`
}

// Allowed reports whether no deny rule fired.
func (r *Result) Allowed() bool {
	return len(r.Denials) == 0
}

// Denied joins the deny messages into one error.
type Denied []Violation

func (d Denied) Error() string {
	msgs := make([]string, len(d))
	for i, v := range d {
		msgs[i] = v.String()
	}
	return strings.Join(msgs, "; ")
}
