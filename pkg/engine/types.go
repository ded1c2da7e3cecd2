package engine

import (
	"context"
	"time"
)

// Outcome is the result of reconciling one resource.
type Outcome string

const (
	// OutcomeCreate means the resource was absent and has been created.
	OutcomeCreate Outcome = "create"

	// OutcomeUpdate means tracked attributes differed and one update was issued.
	OutcomeUpdate Outcome = "update"

	// OutcomeNoop means the live resource already matched the desired state.
	OutcomeNoop Outcome = "noop"

	// OutcomeRecreate means an update failed and the resource was deleted and created again.
	OutcomeRecreate Outcome = "recreate"

	// OutcomeSkip means the step chose not to act (for example a dashboard widget
	// referencing a graph that does not exist yet).
	OutcomeSkip Outcome = "skip"
)

// IsMutating returns true if the outcome implies at least one write call.
func (o Outcome) IsMutating() bool {
	return o == OutcomeCreate || o == OutcomeUpdate || o == OutcomeRecreate
}

// Change describes one tracked attribute that differs between desired and live state.
type Change struct {
	// Path is the attribute name, using the remote API field naming.
	Path string `json:"path"`

	// Before is the live value.
	Before interface{} `json:"before,omitempty"`

	// After is the desired value.
	After interface{} `json:"after,omitempty"`
}

// Step is one ensure operation in a reconciliation run.
type Step struct {
	// ID is the unique identifier for this step, "<kind>/<key>".
	ID string `json:"id"`

	// Kind is the resource kind the step reconciles (hostgroup, host, item, ...).
	Kind string `json:"kind"`

	// Key is the natural key of the resource.
	Key string `json:"key"`

	// Dependencies lists step IDs that must complete before this step.
	Dependencies []Dependency `json:"dependencies,omitempty"`

	// ExecutionOrder is the topological level assigned by the DAG builder.
	ExecutionOrder int `json:"execution_order"`

	// Run performs the ensure operation.
	Run StepFunc `json:"-"`
}

// StepFunc executes a step against the live system.
type StepFunc func(ctx context.Context) (StepResult, error)

// StepID builds the canonical step identifier for a kind and natural key.
func StepID(kind, key string) string {
	return kind + "/" + key
}

// Dependency represents an edge in the step graph.
type Dependency struct {
	// TargetID is the ID of the step this depends on.
	TargetID string `json:"target_id"`

	// Type is the type of dependency relationship.
	Type DependencyType `json:"type"`
}

// DependencyType represents the type of dependency between steps.
type DependencyType string

const (
	// DependencyRequire indicates the target resource must exist (it is resolved by natural key).
	DependencyRequire DependencyType = "require"

	// DependencyOrder indicates ordering only.
	DependencyOrder DependencyType = "order"
)

// StepResult is what a completed step reports.
type StepResult struct {
	// StepID is the ID of the step that produced this result.
	StepID string `json:"step_id"`

	// Kind is the resource kind.
	Kind string `json:"kind"`

	// Key is the natural key.
	Key string `json:"key"`

	// ID is the system-assigned identifier of the resource after the step.
	ID string `json:"id,omitempty"`

	// Outcome is what the step did.
	Outcome Outcome `json:"outcome"`

	// Changes lists the attribute differences that triggered an update.
	Changes []Change `json:"changes,omitempty"`

	// Message is an optional human-readable note (skip reason, heal cause).
	Message string `json:"message,omitempty"`

	// Duration is how long the step took.
	Duration time.Duration `json:"duration"`
}

// RunStatus represents the status of a reconciliation run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is in progress.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates every step converged.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates the run aborted on a fatal error.
	RunStatusFailed RunStatus = "failed"
)

// RunSummary provides statistics about a run.
type RunSummary struct {
	// RunID is the unique identifier of the run.
	RunID string `json:"run_id"`

	// Status is the final run status.
	Status RunStatus `json:"status"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration"`

	// Total is the number of steps in the run.
	Total int `json:"total"`

	// Created is the number of resources created.
	Created int `json:"created"`

	// Updated is the number of resources updated.
	Updated int `json:"updated"`

	// Unchanged is the number of resources already converged.
	Unchanged int `json:"unchanged"`

	// Recreated is the number of resources healed by recreation.
	Recreated int `json:"recreated"`

	// Skipped is the number of steps that chose not to act.
	Skipped int `json:"skipped"`

	// Failed is the number of steps that failed (0 or 1, the run stops at the first failure).
	Failed int `json:"failed"`

	// Results holds per-step results in execution order.
	Results []StepResult `json:"results,omitempty"`

	// Error is the fatal error message, if the run failed.
	Error string `json:"error,omitempty"`
}

// Record adds a step result to the summary counters.
func (s *RunSummary) Record(r StepResult) {
	s.Results = append(s.Results, r)
	switch r.Outcome {
	case OutcomeCreate:
		s.Created++
	case OutcomeUpdate:
		s.Updated++
	case OutcomeNoop:
		s.Unchanged++
	case OutcomeRecreate:
		s.Recreated++
	case OutcomeSkip:
		s.Skipped++
	}
}

// Converged returns true if the run made no changes.
func (s *RunSummary) Converged() bool {
	return s.Created == 0 && s.Updated == 0 && s.Recreated == 0
}
