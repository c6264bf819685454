package compiler

import (
	"github.com/chatflow-io/chatflow/pkg/graph"
)

// FlowBuilder is the handle a node builder receives and returns: the step it
// is positioned on plus the scope it is building into. Builders may only
// consume or replace the current handle; the graph itself is never mutated.
type FlowBuilder struct {
	process *Process
	current *Step
	scopeID string
}

func (f *FlowBuilder) Current() *Step {
	return f.current
}

// addStep appends a step into the builder's scope and moves the handle onto
// it.
func (f *FlowBuilder) addStep(node *graph.Node) *Step {
	step := &Step{
		NodeID:   node.ID,
		Element:  node.Element,
		Kind:     node.Kind,
		Activity: node.Activity,
		Event:    node.Event,
		ScopeID:  f.scopeID,
	}

	f.process.Steps[node.ID] = step
	f.current = step

	return step
}

// BuildContext is shared by all node builders during one compilation: node and
// parent lookup over the source graph, plus the explicit sub-process stack
// required by timeout/form boundary semantics.
type BuildContext struct {
	graph   *graph.DirectGraph
	process *Process
	stack   []*Scope
	built   map[string]*FlowBuilder
}

func newBuildContext(g *graph.DirectGraph, process *Process) *BuildContext {
	return &BuildContext{
		graph:   g,
		process: process,
		built:   make(map[string]*FlowBuilder),
	}
}

func (c *BuildContext) Node(id string) (*graph.Node, bool) {
	return c.graph.Node(id)
}

func (c *BuildContext) Parents(id string) []string {
	return c.graph.Parents(id)
}

// PushSubProcess opens a nested scope owned by the given node.
func (c *BuildContext) PushSubProcess(kind ScopeKind, owner *Step) *Scope {
	scope := &Scope{
		ID:    owner.NodeID + ":scope",
		Kind:  kind,
		Owner: owner.NodeID,
	}

	c.process.Scopes[scope.ID] = scope
	c.stack = append(c.stack, scope)

	return scope
}

func (c *BuildContext) HasTimeoutSubProcess() bool {
	return c.topScope(ScopeTimeout) != nil
}

func (c *BuildContext) HasEventSubProcess() bool {
	return c.topScope(ScopeEvent) != nil
}

// PopTimeoutSubProcess closes the innermost open timeout scope and returns it.
func (c *BuildContext) PopTimeoutSubProcess() *Scope {
	return c.popScope(ScopeTimeout)
}

// PopEventSubProcess closes the innermost open event scope and returns it.
func (c *BuildContext) PopEventSubProcess() *Scope {
	return c.popScope(ScopeEvent)
}

func (c *BuildContext) topScope(kind ScopeKind) *Scope {
	for i := len(c.stack) - 1; i >= 0; i-- {
		if c.stack[i].Kind == kind {
			return c.stack[i]
		}
	}

	return nil
}

func (c *BuildContext) popScope(kind ScopeKind) *Scope {
	for i := len(c.stack) - 1; i >= 0; i-- {
		if c.stack[i].Kind == kind {
			scope := c.stack[i]
			c.stack = append(c.stack[:i], c.stack[i+1:]...)

			return scope
		}
	}

	return nil
}

// openScopes returns the scopes still on the stack after traversal.
func (c *BuildContext) openScopes() []*Scope {
	return c.stack
}

// currentScopeID is the scope new steps are built into.
func (c *BuildContext) currentScopeID() string {
	if len(c.stack) == 0 {
		return ""
	}

	return c.stack[len(c.stack)-1].ID
}
