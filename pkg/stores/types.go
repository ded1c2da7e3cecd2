package stores

import (
	"time"

	"github.com/openfroyo/zbxsync/pkg/engine"
)

// Run is a journaled reconciliation run.
type Run struct {
	ID         string           `json:"id"`
	Status     engine.RunStatus `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Duration   time.Duration    `json:"duration"`
	Total      int              `json:"total"`
	Created    int              `json:"created"`
	Updated    int              `json:"updated"`
	Unchanged  int              `json:"unchanged"`
	Recreated  int              `json:"recreated"`
	Skipped    int              `json:"skipped"`
	Failed     int              `json:"failed"`
	Error      *string          `json:"error,omitempty"`
}

// StepRecord is one executed step of a run.
type StepRecord struct {
	RunID      string          `json:"run_id"`
	Seq        int             `json:"seq"`
	StepID     string          `json:"step_id"`
	Kind       string          `json:"kind"`
	Key        string          `json:"key"`
	ResourceID string          `json:"resource_id,omitempty"`
	Outcome    engine.Outcome  `json:"outcome,omitempty"`
	Changes    []engine.Change `json:"changes,omitempty"`
	Message    string          `json:"message,omitempty"`
	Duration   time.Duration   `json:"duration"`
	Error      *string         `json:"error,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}
