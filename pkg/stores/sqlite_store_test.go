package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/zbxsync/pkg/engine"
)

func openTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := OpenJournal(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestNewSQLiteJournal_RequiresPath(t *testing.T) {
	_, err := NewSQLiteJournal("")
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	j := openTestJournal(t)
	assert.NoError(t, j.Migrate(context.Background()))
}

func TestJournal_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, j.StartRun(ctx, "run-1", started))

	created := engine.StepResult{
		StepID: "hostgroup/Linux servers", Kind: "hostgroup", Key: "Linux servers",
		ID: "2", Outcome: engine.OutcomeCreate, Duration: 15 * time.Millisecond,
	}
	updated := engine.StepResult{
		StepID: "host/webserver1", Kind: "host", Key: "webserver1", ID: "10101",
		Outcome: engine.OutcomeUpdate,
		Changes: []engine.Change{{Path: "proxyid", Before: "0", After: "1"}},
	}
	failed := engine.StepResult{StepID: "item/web/x", Kind: "item", Key: "web/x"}

	require.NoError(t, j.RecordStep(ctx, "run-1", created, nil))
	require.NoError(t, j.RecordStep(ctx, "run-1", updated, nil))
	require.NoError(t, j.RecordStep(ctx, "run-1", failed, errors.New("host not found")))

	summary := &engine.RunSummary{
		RunID: "run-1", Status: engine.RunStatusFailed, StartedAt: started,
		Duration: 2 * time.Second, Total: 5, Created: 1, Updated: 1, Failed: 1,
		Error: "host not found",
	}
	require.NoError(t, j.FinishRun(ctx, summary))

	run, err := j.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, engine.RunStatusFailed, run.Status)
	assert.Equal(t, 2*time.Second, run.Duration)
	assert.Equal(t, 5, run.Total)
	assert.Equal(t, 1, run.Failed)
	require.NotNil(t, run.FinishedAt)
	assert.True(t, started.Add(2*time.Second).Equal(*run.FinishedAt))
	require.NotNil(t, run.Error)
	assert.Equal(t, "host not found", *run.Error)

	steps, err := j.ListSteps(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{steps[0].Seq, steps[1].Seq, steps[2].Seq})
	assert.Equal(t, engine.OutcomeCreate, steps[0].Outcome)
	assert.Equal(t, 15*time.Millisecond, steps[0].Duration)
	assert.Empty(t, steps[0].Changes)
	assert.Nil(t, steps[0].Error)
	require.Len(t, steps[1].Changes, 1)
	assert.Equal(t, "proxyid", steps[1].Changes[0].Path)
	require.NotNil(t, steps[2].Error)
	assert.Equal(t, "host not found", *steps[2].Error)
}

func TestJournal_ListRuns(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, j.StartRun(ctx, id, base.Add(time.Duration(i)*time.Minute)))
	}
	require.NoError(t, j.FinishRun(ctx, &engine.RunSummary{
		RunID: "b", Status: engine.RunStatusSucceeded, StartedAt: base.Add(time.Minute), Unchanged: 40, Total: 40,
	}))

	runs, err := j.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, engine.RunStatusRunning, runs[0].Status)
	assert.Nil(t, runs[0].FinishedAt)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, 40, runs[1].Unchanged)

	all, err := j.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestJournal_Errors(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	_, err := j.GetRun(ctx, "missing")
	assert.ErrorContains(t, err, "run not found")

	err = j.FinishRun(ctx, &engine.RunSummary{RunID: "missing", Status: engine.RunStatusSucceeded})
	assert.ErrorContains(t, err, "run not found")

	err = j.RecordStep(ctx, "missing", engine.StepResult{StepID: "x/y", Kind: "x", Key: "y"}, nil)
	assert.Error(t, err, "foreign key to runs")
}
