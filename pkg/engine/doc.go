// Package engine runs reconcile steps in dependency order.
//
// # Overview
//
// A Step ensures one remote object. Each step names the steps it depends on;
// a DAGBuilder orders them into levels (Kahn's algorithm) and keeps the
// declaration order inside a level, so a plan is stable between runs.
//
// Dependencies come in two types:
//
//   - DependencyRequire: the step needs the other step to have succeeded
//   - DependencyOrder: the step only runs after the other one
//
// The Runner executes the ordered steps one at a time and stops at the first
// failure. Steps already ensured stay in place; the next run converges from
// there.
//
// # Usage
//
//	steps := []engine.Step{
//	    {ID: engine.StepID("hostgroup", "web"), Kind: "hostgroup", Key: "web", Run: ensureGroup},
//	    {
//	        ID: engine.StepID("host", "web1"), Kind: "host", Key: "web1", Run: ensureHost,
//	        Dependencies: []engine.Dependency{{TargetID: "hostgroup/web", Type: engine.DependencyRequire}},
//	    },
//	}
//
//	runner := engine.NewRunner(logger, engine.WithMetrics(metrics), engine.WithJournal(journal))
//	summary, err := runner.Run(ctx, steps)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(summary.Converged())
//
// # Errors
//
// Failures are EngineErrors carrying an ErrorClass:
//
//   - ErrorClassTransport: the API could not be reached or answered garbage
//   - ErrorClassApplication: the API answered with a JSON-RPC error
//   - ErrorClassPrecondition: a referenced object does not exist
//   - ErrorClassReadiness: the readiness gate gave up
//   - ErrorClassValidation: the catalog or settings are invalid
//
// Use the IsTransport, IsApplication and similar helpers instead of
// comparing classes directly.
package engine
