package policy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
)

// Engine evaluates Rego policies against a catalog.
type Engine struct {
	logger   zerolog.Logger
	policies []*compiledPolicy
}

// compiledPolicy holds the prepared deny and warn queries of one module.
type compiledPolicy struct {
	policy *Policy
	deny   rego.PreparedEvalQuery
	warn   rego.PreparedEvalQuery
}

// NewEngine creates an engine with the built-in policies loaded.
func NewEngine(ctx context.Context, logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		logger: logger.With().Str("component", "policy").Logger(),
	}

	for _, p := range Builtin() {
		if err := e.Add(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", p.Name, err)
		}
	}
	return e, nil
}

// Add compiles a policy and adds it to the engine.
func (e *Engine) Add(ctx context.Context, p Policy) error {
	module, err := ast.ParseModule(p.Name, p.Rego)
	if err != nil {
		return engine.NewValidationError("failed to parse policy", err).WithResource(p.Name)
	}
	pkg := module.Package.Path.String()

	prepare := func(rule string) (rego.PreparedEvalQuery, error) {
		return rego.New(
			rego.Module(p.Name, p.Rego),
			rego.Query(pkg+"."+rule),
		).PrepareForEval(ctx)
	}

	cp := &compiledPolicy{policy: &p}
	if cp.deny, err = prepare("deny"); err != nil {
		return engine.NewValidationError("failed to compile policy", err).WithResource(p.Name)
	}
	if cp.warn, err = prepare("warn"); err != nil {
		return engine.NewValidationError("failed to compile policy", err).WithResource(p.Name)
	}

	e.policies = append(e.policies, cp)
	e.logger.Debug().Str("policy", p.Name).Str("package", pkg).Msg("Policy compiled")
	return nil
}

// LoadPaths loads and compiles every .rego file named by paths.
func (e *Engine) LoadPaths(ctx context.Context, paths []string) error {
	policies, err := NewLoader(e.logger).LoadFromPaths(paths)
	if err != nil {
		return err
	}
	for _, p := range policies {
		if err := e.Add(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate runs every policy against the catalog.
func (e *Engine) Evaluate(ctx context.Context, c *catalog.Catalog) (*Result, error) {
	input, err := toInput(c)
	if err != nil {
		return nil, err
	}

	result := &Result{Evaluated: make([]string, 0, len(e.policies))}
	for _, cp := range e.policies {
		result.Evaluated = append(result.Evaluated, cp.policy.Name)

		denials, err := evaluate(ctx, cp.deny, input, cp.policy, SeverityError)
		if err != nil {
			return nil, err
		}
		warnings, err := evaluate(ctx, cp.warn, input, cp.policy, SeverityWarning)
		if err != nil {
			return nil, err
		}
		result.Denials = append(result.Denials, denials...)
		result.Warnings = append(result.Warnings, warnings...)
	}

	e.logger.Debug().
		Int("policies", len(e.policies)).
		Int("denials", len(result.Denials)).
		Int("warnings", len(result.Warnings)).
		Msg("Catalog policy evaluation completed")
	return result, nil
}

// Check evaluates the catalog, logs warnings and turns denials into a
// validation error.
func (e *Engine) Check(ctx context.Context, c *catalog.Catalog) error {
	result, err := e.Evaluate(ctx, c)
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		e.logger.Warn().Str("policy", w.Policy).Str("resource", w.Resource).Msg(w.Message)
	}
	if !result.Allowed() {
		return engine.NewValidationError("catalog denied by policy", Denied(result.Denials)).
			WithDetail("denials", len(result.Denials))
	}
	return nil
}

func evaluate(ctx context.Context, q rego.PreparedEvalQuery, input interface{}, p *Policy, sev Severity) ([]Violation, error) {
	rs, err := q.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, engine.NewValidationError("policy evaluation failed", err).WithResource(p.Name)
	}

	var out []Violation
	for _, r := range rs {
		if len(r.Expressions) == 0 {
			continue
		}
		set, ok := r.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, item := range set {
			out = append(out, violation(p, item, sev))
		}
	}
	return out, nil
}

func violation(p *Policy, item interface{}, sev Severity) Violation {
	v := Violation{Policy: p.Name, Severity: sev}
	switch x := item.(type) {
	case string:
		v.Message = x
	case map[string]interface{}:
		v.Message, _ = x["message"].(string)
		v.Resource, _ = x["resource"].(string)
	default:
		v.Message = fmt.Sprintf("%v", item)
	}
	return v
}

// toInput converts the catalog to the plain JSON document policies see.
func toInput(c *catalog.Catalog) (interface{}, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode policy input: %w", err)
	}
	var input map[string]interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("failed to decode policy input: %w", err)
	}
	return input, nil
}
