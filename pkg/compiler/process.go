// Package compiler turns a compiled workflow graph into the executable
// process model consumed by the runtime engine. Dispatch is by node kind to a
// registered builder; nested timeout/form semantics are resolved through an
// explicit sub-process stack.
package compiler

import (
	"time"

	"github.com/chatflow-io/chatflow/pkg/graph"
	"github.com/chatflow-io/chatflow/pkg/models"
)

type BoundaryKind string

const (
	BoundaryTimer BoundaryKind = "timer"
	BoundaryError BoundaryKind = "error"
)

// Boundary is a timeout or failure handler attached to an enclosing scope
// rather than to a single node.
type Boundary struct {
	Kind     BoundaryKind
	Duration time.Duration // timer boundaries only
	Target   string        // node activated when the boundary fires
}

type ScopeKind string

const (
	ScopeTimeout ScopeKind = "timeout"
	ScopeEvent   ScopeKind = "event"
)

// Scope is one compiled sub-process.
type Scope struct {
	ID       string
	Kind     ScopeKind
	Owner    string // node id that opened the scope
	Boundary *Boundary
}

// Step is one executable node. Next holds the success path; boundary targets
// and failure handlers are reachable only through Boundary and OnFailure.
type Step struct {
	NodeID   string
	Element  graph.ElementType
	Kind     string
	Activity *models.Activity
	Event    *models.Event

	Next      []string
	Required  []string // join gateways: parent ids that must arrive
	OnFailure string   // activity steps: declared failure handler node
	Boundary  *Boundary
	ScopeID   string
}

// IsWait reports whether a token entering this step parks for an external or
// timer event instead of completing immediately.
func (s *Step) IsWait() bool {
	if s.Element != graph.ElementStartEvent && s.Element != graph.ElementIntermediateEvent {
		return false
	}

	switch s.Kind {
	case models.EventActivityFailed, models.EventActivityExpired:
		// Activated by the engine directly, never parked.
		return false
	}

	return true
}

// Process is the executable form of one deployed (workflowID, version).
type Process struct {
	WorkflowID string
	Version    string
	Starts     []string
	Steps      map[string]*Step
	Scopes     map[string]*Scope
	Variables  map[string]any

	// Graph retained for monitoring introspection of wrapped kinds.
	Graph *graph.DirectGraph
}

func (p *Process) Step(nodeID string) (*Step, bool) {
	step, ok := p.Steps[nodeID]

	return step, ok
}

// ScopeBoundary walks the scope chain of a step looking for a boundary of the
// given kind, innermost first.
func (p *Process) ScopeBoundary(step *Step, kind BoundaryKind) *Boundary {
	for id := step.ScopeID; id != ""; {
		scope, ok := p.Scopes[id]
		if !ok {
			return nil
		}

		if scope.Boundary != nil && scope.Boundary.Kind == kind {
			return scope.Boundary
		}

		owner, ok := p.Steps[scope.Owner]
		if !ok {
			return nil
		}

		id = owner.ScopeID
	}

	return nil
}
