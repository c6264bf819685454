package compiler

import (
	"log/slog"

	"github.com/chatflow-io/chatflow/pkg/graph"
	"github.com/chatflow-io/chatflow/pkg/models"
)

// Compiler dispatches each graph node to a registered builder and assembles
// the executable process model.
type Compiler struct {
	logger   *slog.Logger
	builders map[string]NodeBuilder
	event    NodeBuilder // fallback for event nodes
	activity NodeBuilder // fallback for activity nodes
}

func New(logger *slog.Logger) *Compiler {
	c := &Compiler{
		logger:   logger.With("module", "compiler"),
		builders: make(map[string]NodeBuilder),
		event:    &catchEventBuilder{},
		activity: &activityBuilder{},
	}

	c.register(&formRepliedBuilder{})
	c.register(&activityFailedBuilder{})
	c.register(&activityExpiredBuilder{})
	c.register(&joinGatewayBuilder{})

	return c
}

func (c *Compiler) register(builder NodeBuilder) {
	c.builders[builder.Kind()] = builder
}

func (c *Compiler) builderFor(node *graph.Node) NodeBuilder {
	if builder, ok := c.builders[node.Kind]; ok {
		return builder
	}

	if node.Element == graph.ElementActivity {
		return c.activity
	}

	return c.event
}

// Compile walks the graph from its start events in dependency order, tracking
// visited ids so loop constructs re-enter previously built steps instead of
// rebuilding them. It fails fast when a sub-process cannot be legally closed.
func (c *Compiler) Compile(g *graph.DirectGraph) (*Process, error) {
	process := &Process{
		WorkflowID: g.WorkflowID,
		Version:    g.Version,
		Starts:     g.StartEvents(),
		Steps:      make(map[string]*Step),
		Scopes:     make(map[string]*Scope),
		Variables:  g.Variables(),
		Graph:      g,
	}

	ctx := newBuildContext(g, process)
	visited := make(map[string]bool)

	var visit func(id, parentID string) error

	visit = func(id, parentID string) error {
		if visited[id] {
			return nil
		}

		visited[id] = true

		node, ok := g.Node(id)
		if !ok {
			return &CompileError{WorkflowID: g.WorkflowID, NodeID: id, Reason: "node missing from graph dictionary"}
		}

		flow := &FlowBuilder{process: process, scopeID: ctx.currentScopeID()}
		if parentID != "" {
			flow.current = process.Steps[parentID]
		}

		flow, err := c.builderFor(node).Build(node, parentID, flow, ctx)
		if err != nil {
			return err
		}

		ctx.built[id] = flow

		// Expired children last, so the sub-process they close covers the
		// whole reply branch.
		for _, childID := range orderChildren(g, id) {
			if err := visit(childID, id); err != nil {
				return err
			}
		}

		return nil
	}

	for _, startID := range g.StartEvents() {
		if err := visit(startID, ""); err != nil {
			return nil, err
		}
	}

	for _, scope := range ctx.openScopes() {
		if scope.Kind == ScopeTimeout {
			return nil, &CompileError{
				WorkflowID: g.WorkflowID,
				NodeID:     scope.Owner,
				Reason:     "timeout sub-process is never closed by an activity-expired handler",
			}
		}
		// Event scopes without an expired handler close implicitly.
	}

	c.link(process, g)

	c.logger.Debug("Compiled workflow",
		"workflow_id", g.WorkflowID,
		"version", g.Version,
		"steps", len(process.Steps),
		"starts", len(process.Starts))

	return process, nil
}

func orderChildren(g *graph.DirectGraph, id string) []string {
	children := g.Children(id)
	ordered := make([]string, 0, len(children))

	var deferred []string

	for _, childID := range children {
		if child, ok := g.Node(childID); ok && child.Kind == models.EventActivityExpired {
			deferred = append(deferred, childID)

			continue
		}

		ordered = append(ordered, childID)
	}

	return append(ordered, deferred...)
}

// link fills each step's success path. Failure handlers and boundary targets
// are excluded: they are reachable only through OnFailure and Boundary.
func (c *Compiler) link(process *Process, g *graph.DirectGraph) {
	for id, step := range process.Steps {
		for _, childID := range g.Children(id) {
			child, ok := g.Node(childID)
			if !ok {
				continue
			}

			switch {
			case step.Element == graph.ElementActivity && child.Kind == models.EventActivityFailed:
				continue
			case (step.IsWait() || step.Element == graph.ElementGateway) && child.Kind == models.EventActivityExpired:
				continue
			}

			step.Next = append(step.Next, childID)
		}
	}
}
