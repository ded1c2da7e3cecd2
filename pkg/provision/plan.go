package provision

import (
	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/engine"
)

// Plan is the ordered step graph of a catalog, computed without contacting
// the API.
type Plan struct {
	// Steps in execution order, each with its level in ExecutionOrder.
	Steps []*engine.Step

	// Levels groups step IDs by topological level.
	Levels [][]string

	// DOT is the Graphviz rendering of the graph.
	DOT string
}

// BuildPlan orders the steps a run of c would execute.
func BuildPlan(c *catalog.Catalog, opts Options) (*Plan, error) {
	steps := Compile(c, nil, opts)

	builder := engine.NewDAGBuilder()
	graph, err := builder.Build(steps)
	if err != nil {
		return nil, err
	}
	if err := builder.ValidateGraph(graph); err != nil {
		return nil, err
	}

	return &Plan{
		Steps:  builder.Ordered(),
		Levels: builder.GetLevels(),
		DOT:    builder.ToDOT(),
	}, nil
}
