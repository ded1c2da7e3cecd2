package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// Dashboard grid geometry.
const (
	gridColumns   = 24
	widgetHeight  = 8
	defaultPeriod = 3600
)

// Widget field types.
const (
	fieldString = 1
	fieldGraph  = 6
)

// DashboardPayload is the desired dashboard.
type DashboardPayload struct {
	Name      string        `json:"name"`
	AutoStart int           `json:"auto_start"`
	Pages     []PagePayload `json:"pages"`
}

// PagePayload is one dashboard page.
type PagePayload struct {
	Name    string          `json:"name"`
	Widgets []WidgetPayload `json:"widgets"`
}

// WidgetPayload is a widget placed on the grid.
type WidgetPayload struct {
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	X      int            `json:"x"`
	Y      int            `json:"y"`
	Width  int            `json:"width"`
	Height int            `json:"height"`
	Fields []FieldPayload `json:"fields"`
}

// FieldPayload is a widget field.
type FieldPayload struct {
	Type  int    `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type dashboardKind struct{}

func (dashboardKind) Name() string { return "dashboard" }
func (dashboardKind) Key(d DashboardPayload) string { return d.Name }
func (dashboardKind) ID(r Object) string { return r.Str("dashboardid") }

func (dashboardKind) Lookup(ctx context.Context, c rpc.Caller, d DashboardPayload) (Object, bool, error) {
	params := byName("name", d.Name)
	params["selectPages"] = "extend"
	return first(ctx, c, "dashboard.get", params)
}

func (dashboardKind) Create(ctx context.Context, c rpc.Caller, d DashboardPayload) (string, error) {
	return create(ctx, c, "dashboard.create", "dashboardids", d)
}

func (dashboardKind) Diff(d DashboardPayload, r Object) []engine.Change {
	return diffPayload(d, r)
}

func (dashboardKind) Update(ctx context.Context, c rpc.Caller, d DashboardPayload, r Object) error {
	_, err := write(ctx, c, "dashboard.update", "dashboardids", withID("dashboardid", r.Str("dashboardid"), d))
	return err
}

// EnsureDashboard converges a dashboard of graph widgets. Widgets whose graph
// cannot be found are left out with a warning; a dashboard left without any
// widget is skipped. A missing host is a precondition failure.
func EnsureDashboard(ctx context.Context, c rpc.Caller, db catalog.Dashboard) (engine.StepResult, error) {
	res := engine.StepResult{Kind: "dashboard", Key: db.Name}
	logger := zerolog.Ctx(ctx)

	d := DashboardPayload{Name: db.Name}
	if db.AutoStart {
		d.AutoStart = 1
	}

	var missing []string
	hostIDs := make(map[string]string)
	for _, page := range db.Pages {
		var found []WidgetPayload
		for _, w := range page.Widgets {
			hostID, ok := hostIDs[w.Host]
			if !ok {
				id, err := HostID(ctx, c, w.Host)
				if err != nil {
					return res, wrap(err, res)
				}
				hostIDs[w.Host] = id
				hostID = id
			}

			graphID, ok, err := visibleGraphID(ctx, c, hostID, w.Graph)
			if err != nil {
				return res, wrap(err, res)
			}
			if !ok {
				missing = append(missing, w.Host+"/"+w.Graph)
				logger.Warn().Str("dashboard", db.Name).Str("host", w.Host).Str("graph", w.Graph).
					Msg("Graph not found, widget skipped")
				continue
			}
			found = append(found, graphWidget(w, graphID))
		}
		if len(found) == 0 {
			continue
		}
		layout(found)
		d.Pages = append(d.Pages, PagePayload{Name: page.Name, Widgets: found})
	}

	if len(d.Pages) == 0 {
		res.Outcome = engine.OutcomeSkip
		res.Message = "no graph found: " + strings.Join(missing, ", ")
		return res, nil
	}

	res, err := Ensure[DashboardPayload, Object](ctx, c, dashboardKind{}, d)
	if err == nil && len(missing) > 0 {
		res.Message = fmt.Sprintf("%d widget(s) skipped: %s", len(missing), strings.Join(missing, ", "))
	}
	return res, err
}

// visibleGraphID finds a graph shown on a host, inherited graphs included.
func visibleGraphID(ctx context.Context, c rpc.Caller, hostID, name string) (string, bool, error) {
	params := byName("name", name)
	params["hostids"] = []string{hostID}
	obj, found, err := first(ctx, c, "graph.get", params)
	if err != nil || !found {
		return "", false, err
	}
	return obj.Str("graphid"), true, nil
}

func graphWidget(w catalog.GraphWidget, graphID string) WidgetPayload {
	period := w.TimePeriod
	if period == 0 {
		period = defaultPeriod
	}
	return WidgetPayload{
		Type:   "graph",
		Name:   w.Graph,
		Height: widgetHeight,
		Fields: []FieldPayload{
			{Type: fieldGraph, Name: "graphid.0", Value: graphID},
			{Type: fieldString, Name: "time_period.from", Value: fmt.Sprintf("now-%ds", period)},
			{Type: fieldString, Name: "time_period.to", Value: "now"},
		},
	}
}

// layout places widgets two per row when there are at least two, otherwise
// one full-width widget per row.
func layout(widgets []WidgetPayload) {
	width := gridColumns
	if len(widgets) >= 2 {
		width = gridColumns / 2
	}
	x, y := 0, 0
	for i := range widgets {
		widgets[i].X = x
		widgets[i].Y = y
		widgets[i].Width = width
		if x+2*width <= gridColumns {
			x += width
			continue
		}
		x = 0
		y += widgetHeight
	}
}
