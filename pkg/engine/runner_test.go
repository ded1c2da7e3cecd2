package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recordingJournal struct {
	started  string
	steps    []StepResult
	failures int
	finished *RunSummary
}

func (j *recordingJournal) StartRun(_ context.Context, runID string, _ time.Time) error {
	j.started = runID
	return nil
}

func (j *recordingJournal) RecordStep(_ context.Context, _ string, result StepResult, err error) error {
	j.steps = append(j.steps, result)
	if err != nil {
		j.failures++
	}
	return nil
}

func (j *recordingJournal) FinishRun(_ context.Context, summary *RunSummary) error {
	j.finished = summary
	return nil
}

func fixed(outcome Outcome) StepFunc {
	return func(ctx context.Context) (StepResult, error) {
		return StepResult{Outcome: outcome, ID: "1"}, nil
	}
}

func TestRunner_Run_ExecutesInDependencyOrder(t *testing.T) {
	var calls []string
	mk := func(kind, key string, outcome Outcome, deps ...string) Step {
		s := step(kind, key, deps...)
		s.Run = func(ctx context.Context) (StepResult, error) {
			calls = append(calls, s.ID)
			return StepResult{Outcome: outcome, ID: "10"}, nil
		}
		return s
	}

	steps := []Step{
		mk("host", "log-srv", OutcomeCreate, "hostgroup/Logs"),
		mk("hostgroup", "Logs", OutcomeNoop),
		mk("item", "log-srv/agent.ping", OutcomeUpdate, "host/log-srv"),
	}

	journal := &recordingJournal{}
	summary, err := NewRunner(zerolog.Nop(), WithJournal(journal)).Run(context.Background(), steps)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"hostgroup/Logs", "host/log-srv", "item/log-srv/agent.ping"}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, calls[i], want[i])
		}
	}

	if summary.Status != RunStatusSucceeded {
		t.Errorf("Status = %s", summary.Status)
	}
	if summary.Created != 1 || summary.Updated != 1 || summary.Unchanged != 1 {
		t.Errorf("unexpected summary counts: %+v", summary)
	}
	if summary.Converged() {
		t.Error("run with creations is not converged")
	}
	if journal.started != summary.RunID || journal.finished != summary || len(journal.steps) != 3 {
		t.Errorf("journal not fed correctly: %+v", journal)
	}
	if summary.Results[1].Kind != "host" || summary.Results[1].Key != "log-srv" {
		t.Errorf("runner should fill kind and key, got %+v", summary.Results[1])
	}
}

func TestRunner_Run_StopsAtFirstFailure(t *testing.T) {
	var ran []string
	fail := NewPreconditionError("host not found", nil).WithResource("ghost")

	steps := []Step{
		{ID: "a", Kind: "hostgroup", Key: "a", Run: func(ctx context.Context) (StepResult, error) {
			ran = append(ran, "a")
			return StepResult{Outcome: OutcomeNoop}, nil
		}},
		{ID: "b", Kind: "item", Key: "b", Run: func(ctx context.Context) (StepResult, error) {
			ran = append(ran, "b")
			return StepResult{}, fail
		}},
		{ID: "c", Kind: "trigger", Key: "c", Run: func(ctx context.Context) (StepResult, error) {
			ran = append(ran, "c")
			return StepResult{Outcome: OutcomeCreate}, nil
		}},
	}

	journal := &recordingJournal{}
	summary, err := NewRunner(zerolog.Nop(), WithJournal(journal)).Run(context.Background(), steps)
	if !errors.Is(err, fail) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if len(ran) != 2 {
		t.Errorf("steps after the failure must not run, ran %v", ran)
	}
	if summary.Status != RunStatusFailed || summary.Failed != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if journal.failures != 1 {
		t.Errorf("journal should record the failing step, got %d", journal.failures)
	}
}

func TestRunner_Run_InvalidGraph(t *testing.T) {
	steps := []Step{step("host", "x", "hostgroup/missing")}
	steps[0].Run = fixed(OutcomeCreate)

	summary, err := NewRunner(zerolog.Nop()).Run(context.Background(), steps)
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if summary == nil || summary.Status != RunStatusFailed {
		t.Errorf("summary should report failure, got %+v", summary)
	}
}

func TestRunner_Run_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	steps := []Step{{ID: "a", Kind: "hostgroup", Key: "a", Run: fixed(OutcomeNoop)}}
	_, err := NewRunner(zerolog.Nop()).Run(ctx, steps)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
