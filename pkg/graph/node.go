// Package graph compiles a workflow definition into a direct graph of typed
// nodes. Nodes live in an id-keyed arena with adjacency kept as id sets, so
// loop constructs producing cycles are safe to represent and cheap to detect.
package graph

import "github.com/chatflow-io/chatflow/pkg/models"

// ElementType classifies a node for the execution-model compiler.
type ElementType string

const (
	ElementStartEvent        ElementType = "start_event"
	ElementIntermediateEvent ElementType = "intermediate_event"
	ElementActivity          ElementType = "activity"
	ElementGateway           ElementType = "gateway"
	ElementEndEvent          ElementType = "end_event"
)

// Node kinds that are not plain SWADL event/activity tags.
const (
	KindJoinGateway = "join"
)

// Node is one compiled graph vertex. Owned exclusively by the graph that
// created it; immutable after compilation.
type Node struct {
	ID      string
	Element ElementType
	Kind    string // event or activity subtype tag

	Activity *models.Activity // set for activity nodes
	Event    *models.Event    // set for event nodes
	Timeout  string           // scope timeout declared on the owning trigger

	// WrappedKind records the originating declaration tag for monitoring
	// introspection, independent of how the compiler rewrites the node.
	WrappedKind string
}

func (n *Node) IsEvent() bool {
	return n.Element == ElementStartEvent || n.Element == ElementIntermediateEvent
}
