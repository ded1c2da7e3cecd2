package engine

import (
	"fmt"
	"sort"
	"strings"
)

// DAGBuilder orders reconcile steps so that every resource is ensured after the
// resources it references. Steps on the same level keep their declaration order,
// which makes a run fully deterministic.
type DAGBuilder struct {
	// steps maps step IDs to their steps
	steps map[string]*Step

	// index records declaration order
	index map[string]int

	// dependents maps step IDs to the steps that depend on them
	dependents map[string][]string

	// dependencies maps step IDs to the steps they depend on
	dependencies map[string][]string

	// inDegree tracks the number of incoming edges for each node
	inDegree map[string]int

	// levels maps execution level to step IDs at that level
	levels [][]string
}

// Graph is the ordered form of a set of steps.
type Graph struct {
	// Nodes maps step IDs to their graph nodes.
	Nodes map[string]*GraphNode `json:"nodes"`

	// Order lists step IDs in execution order.
	Order []string `json:"order"`

	// Roots are the step IDs with no dependencies.
	Roots []string `json:"roots"`

	// Depth is the number of levels.
	Depth int `json:"depth"`
}

// GraphNode represents a node in the step graph.
type GraphNode struct {
	ID           string   `json:"id"`
	Level        int      `json:"level"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
}

// NewDAGBuilder creates a new DAG builder.
func NewDAGBuilder() *DAGBuilder {
	return &DAGBuilder{
		steps:        make(map[string]*Step),
		index:        make(map[string]int),
		dependents:   make(map[string][]string),
		dependencies: make(map[string][]string),
		inDegree:     make(map[string]int),
		levels:       make([][]string, 0),
	}
}

// Build validates dependencies, detects cycles, and computes execution levels.
func (b *DAGBuilder) Build(steps []Step) (*Graph, error) {
	if len(steps) == 0 {
		return &Graph{
			Nodes: make(map[string]*GraphNode),
			Order: make([]string, 0),
			Roots: make([]string, 0),
		}, nil
	}

	if err := b.initialize(steps); err != nil {
		return nil, err
	}

	if err := b.detectCycles(); err != nil {
		return nil, err
	}

	if err := b.computeLevels(); err != nil {
		return nil, err
	}

	return b.buildGraph(), nil
}

// initialize sets up the internal data structures from steps.
func (b *DAGBuilder) initialize(steps []Step) error {
	for i := range steps {
		step := &steps[i]
		if step.ID == "" {
			return NewValidationError("step has empty ID", nil)
		}

		if _, exists := b.steps[step.ID]; exists {
			return NewValidationError(fmt.Sprintf("duplicate step ID: %s", step.ID), nil).
				WithResource(step.ID)
		}

		b.steps[step.ID] = step
		b.index[step.ID] = i
		b.dependents[step.ID] = make([]string, 0)
		b.dependencies[step.ID] = make([]string, 0)
		b.inDegree[step.ID] = 0
	}

	for i := range steps {
		step := &steps[i]
		seen := make(map[string]bool)
		for _, dep := range step.Dependencies {
			targetID := dep.TargetID
			if seen[targetID] {
				continue
			}
			seen[targetID] = true

			if _, exists := b.steps[targetID]; !exists {
				return NewValidationError(
					fmt.Sprintf("step %s depends on undeclared resource %s", step.ID, targetID),
					nil,
				).WithResource(step.ID)
			}

			// dependency must complete before step can start
			b.dependents[targetID] = append(b.dependents[targetID], step.ID)
			b.dependencies[step.ID] = append(b.dependencies[step.ID], targetID)
			b.inDegree[step.ID]++
		}
	}

	return nil
}

// detectCycles uses depth-first search to detect circular dependencies.
func (b *DAGBuilder) detectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for _, id := range b.sortedIDs() {
		if visited[id] {
			continue
		}
		if cycle := b.visit(id, visited, recStack, nil); cycle != nil {
			return NewValidationError(
				fmt.Sprintf("circular dependency detected: %s", strings.Join(cycle, " -> ")),
				nil,
			)
		}
	}

	return nil
}

func (b *DAGBuilder) visit(nodeID string, visited, recStack map[string]bool, path []string) []string {
	visited[nodeID] = true
	recStack[nodeID] = true
	path = append(path, nodeID)

	for _, dependent := range b.dependents[nodeID] {
		if !visited[dependent] {
			if cycle := b.visit(dependent, visited, recStack, path); cycle != nil {
				return cycle
			}
			continue
		}
		if recStack[dependent] {
			for i, id := range path {
				if id == dependent {
					cycle := append([]string{}, path[i:]...)
					return append(cycle, dependent)
				}
			}
		}
	}

	recStack[nodeID] = false
	return nil
}

// computeLevels assigns execution levels using Kahn's algorithm.
func (b *DAGBuilder) computeLevels() error {
	inDegree := make(map[string]int, len(b.inDegree))
	for id, degree := range b.inDegree {
		inDegree[id] = degree
	}

	current := make([]string, 0)
	for id, degree := range inDegree {
		if degree == 0 {
			current = append(current, id)
		}
	}
	b.sortByDeclaration(current)

	processed := 0
	for len(current) > 0 {
		b.levels = append(b.levels, current)
		processed += len(current)

		next := make([]string, 0)
		for _, nodeID := range current {
			for _, dependent := range b.dependents[nodeID] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		b.sortByDeclaration(next)
		current = next
	}

	if processed != len(b.steps) {
		return NewValidationError("failed to order all steps, possible cycle", nil).
			WithCode(ErrCodeInternal)
	}

	return nil
}

func (b *DAGBuilder) buildGraph() *Graph {
	graph := &Graph{
		Nodes: make(map[string]*GraphNode, len(b.steps)),
		Order: make([]string, 0, len(b.steps)),
		Roots: make([]string, 0),
		Depth: len(b.levels),
	}

	for level, ids := range b.levels {
		for _, id := range ids {
			graph.Nodes[id] = &GraphNode{
				ID:           id,
				Level:        level,
				Dependencies: b.dependencies[id],
				Dependents:   b.dependents[id],
			}
			graph.Order = append(graph.Order, id)
			b.steps[id].ExecutionOrder = level

			if level == 0 {
				graph.Roots = append(graph.Roots, id)
			}
		}
	}

	return graph
}

// Ordered returns the steps in execution order. Build must have succeeded first.
func (b *DAGBuilder) Ordered() []*Step {
	out := make([]*Step, 0, len(b.steps))
	for _, ids := range b.levels {
		for _, id := range ids {
			out = append(out, b.steps[id])
		}
	}
	return out
}

// GetLevels returns the computed execution levels.
func (b *DAGBuilder) GetLevels() [][]string {
	return b.levels
}

// ToDOT generates a Graphviz representation of the step graph.
func (b *DAGBuilder) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph Reconcile {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for level, ids := range b.levels {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_level_%d {\n", level))
		sb.WriteString(fmt.Sprintf("    label=\"Level %d\";\n", level))
		sb.WriteString("    style=dashed;\n")

		for _, id := range ids {
			step := b.steps[id]
			label := fmt.Sprintf("%s\\n%s", step.Kind, escapeDOT(step.Key))
			sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", fillcolor=\"%s\", style=\"filled,rounded\"];\n",
				escapeDOT(id), label, kindColor(step.Kind)))
		}

		sb.WriteString("  }\n\n")
	}

	for _, id := range b.sortedIDs() {
		for _, dep := range b.steps[id].Dependencies {
			sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [%s];\n",
				escapeDOT(dep.TargetID), escapeDOT(id), dependencyStyle(dep.Type)))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// ValidateGraph performs additional validation on the built graph.
func (b *DAGBuilder) ValidateGraph(graph *Graph) error {
	if len(graph.Nodes) != len(b.steps) {
		return NewValidationError("graph node count mismatch", nil).
			WithCode(ErrCodeInternal)
	}

	position := make(map[string]int, len(graph.Order))
	for i, id := range graph.Order {
		position[id] = i
	}

	for id, node := range graph.Nodes {
		for _, dep := range node.Dependencies {
			if position[dep] >= position[id] {
				return NewValidationError(fmt.Sprintf("step %s ordered before its dependency %s", id, dep), nil).
					WithCode(ErrCodeInternal)
			}
		}
	}

	for _, rootID := range graph.Roots {
		if len(graph.Nodes[rootID].Dependencies) > 0 {
			return NewValidationError(fmt.Sprintf("root node %s has dependencies", rootID), nil).
				WithCode(ErrCodeInternal)
		}
	}

	return nil
}

func (b *DAGBuilder) sortByDeclaration(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		return b.index[ids[i]] < b.index[ids[j]]
	})
}

func (b *DAGBuilder) sortedIDs() []string {
	ids := make([]string, 0, len(b.steps))
	for id := range b.steps {
		ids = append(ids, id)
	}
	b.sortByDeclaration(ids)
	return ids
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// kindColor returns a fill color per resource family.
func kindColor(kind string) string {
	switch kind {
	case "hostgroup", "templategroup", "proxy":
		return "lightyellow"
	case "host", "interface", "hosttemplates", "template", "macro", "valuemap":
		return "lightblue"
	case "item", "trigger", "graph":
		return "lightgreen"
	case "dashboard":
		return "lightgray"
	case "mediatype", "usermedia", "action", "user", "userrights":
		return "lightcoral"
	default:
		return "white"
	}
}

func dependencyStyle(depType DependencyType) string {
	switch depType {
	case DependencyOrder:
		return "style=dotted, color=gray"
	default:
		return "style=solid, color=black"
	}
}
