package provision

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/stores"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func outcomeColor(o engine.Outcome) text.Colors {
	switch o {
	case engine.OutcomeCreate:
		return text.Colors{text.FgGreen}
	case engine.OutcomeUpdate, engine.OutcomeRecreate:
		return text.Colors{text.FgYellow}
	case engine.OutcomeSkip:
		return text.Colors{text.FgHiBlack}
	default:
		return text.Colors{}
	}
}

func statusColor(s engine.RunStatus) text.Colors {
	switch s {
	case engine.RunStatusSucceeded:
		return text.Colors{text.FgGreen}
	case engine.RunStatusFailed:
		return text.Colors{text.FgRed}
	default:
		return text.Colors{text.FgYellow}
	}
}

func changePaths(changes []engine.Change) string {
	paths := make([]string, 0, len(changes))
	for _, c := range changes {
		paths = append(paths, c.Path)
	}
	return strings.Join(paths, ", ")
}

// RenderSummary writes the steps of a run that did something, followed by the
// run totals. Unchanged steps are only counted.
func RenderSummary(w io.Writer, s *engine.RunSummary) {
	t := newTable(w)
	t.SetTitle("Run " + s.RunID)
	t.AppendHeader(table.Row{"Kind", "Key", "Outcome", "ID", "Changes", "Note"})

	for _, r := range s.Results {
		if r.Outcome == engine.OutcomeNoop {
			continue
		}
		outcome := string(r.Outcome)
		if outcome == "" {
			outcome = "failed"
		}
		t.AppendRow(table.Row{
			r.Kind,
			r.Key,
			outcomeColor(r.Outcome).Sprint(outcome),
			r.ID,
			changePaths(r.Changes),
			r.Message,
		})
	}

	t.AppendFooter(table.Row{
		"", "",
		statusColor(s.Status).Sprint(string(s.Status)),
		"",
		fmt.Sprintf("%d created, %d updated, %d recreated", s.Created, s.Updated, s.Recreated),
		fmt.Sprintf("%d unchanged, %d skipped of %d in %s", s.Unchanged, s.Skipped, s.Total, s.Duration.Round(time.Millisecond)),
	})
	t.Render()

	if s.Error != "" {
		fmt.Fprintf(w, "%s %s\n", text.FgRed.Sprint("error:"), s.Error)
	}
}

// RenderPlan writes the steps of a plan with their level and dependencies.
func RenderPlan(w io.Writer, p *Plan) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Level", "Kind", "Key", "After"})

	for _, s := range p.Steps {
		deps := make([]string, 0, len(s.Dependencies))
		for _, d := range s.Dependencies {
			deps = append(deps, d.TargetID)
		}
		t.AppendRow(table.Row{s.ExecutionOrder, s.Kind, s.Key, strings.Join(deps, "\n")})
	}

	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d steps in %d levels", len(p.Steps), len(p.Levels)), ""})
	t.Render()
}

// RenderHistory writes journaled runs, most recent first.
func RenderHistory(w io.Writer, runs []*stores.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, text.FgYellow.Sprint("No runs recorded"))
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Run", "Started", "Status", "Duration", "Created", "Updated", "Unchanged", "Recreated", "Skipped", "Error"})
	for _, r := range runs {
		var errText string
		if r.Error != nil {
			errText = *r.Error
		}
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			statusColor(r.Status).Sprint(string(r.Status)),
			r.Duration.Round(time.Millisecond),
			r.Created, r.Updated, r.Unchanged, r.Recreated, r.Skipped,
			text.WrapSoft(errText, 60),
		})
	}
	t.Render()
}

// RenderSteps writes the journaled steps of one run.
func RenderSteps(w io.Writer, steps []*stores.StepRecord) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Kind", "Key", "Outcome", "ID", "Changes", "Error"})
	for _, s := range steps {
		var errText string
		if s.Error != nil {
			errText = *s.Error
		}
		t.AppendRow(table.Row{
			s.Seq, s.Kind, s.Key,
			outcomeColor(s.Outcome).Sprint(string(s.Outcome)),
			s.ResourceID,
			changePaths(s.Changes),
			text.WrapSoft(errText, 60),
		})
	}
	t.Render()
}
