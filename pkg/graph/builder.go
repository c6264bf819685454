package graph

import (
	"fmt"

	"github.com/chatflow-io/chatflow/pkg/models"
)

// Builder compiles a validated definition model into a DirectGraph.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

type expiredRef struct {
	event    models.Event
	targetID string
	timeout  string
}

func (b *Builder) Build(workflow *models.Workflow) (*DirectGraph, error) {
	g := newDirectGraph(workflow.ID, workflow.Version)

	for name, value := range workflow.Variables {
		g.variables[name] = value
	}

	for i := range workflow.Activities {
		activity := &workflow.Activities[i]
		if _, exists := g.nodes[activity.ID]; exists {
			return nil, &BuildError{
				WorkflowID: workflow.ID,
				NodeID:     activity.ID,
				Reason:     "duplicate activity id",
			}
		}

		g.addNode(&Node{
			ID:          activity.ID,
			Element:     ElementActivity,
			Kind:        activity.Kind,
			Activity:    activity,
			WrappedKind: activity.Kind,
		})
	}

	var expired []expiredRef

	for i := range workflow.Activities {
		activity := &workflow.Activities[i]

		deferred, err := b.wireActivity(g, workflow, i, activity)
		if err != nil {
			return nil, err
		}

		expired = append(expired, deferred...)
	}

	// Expired references are wired last: they attach to the event nodes of the
	// activity they watch, which may be declared later in the document.
	for _, ref := range expired {
		if err := b.wireExpired(g, workflow, ref); err != nil {
			return nil, err
		}
	}

	return g, b.finalize(g, workflow)
}

func (b *Builder) wireActivity(g *DirectGraph, workflow *models.Workflow, index int, activity *models.Activity) ([]expiredRef, error) {
	if activity.On == nil {
		// Implicit fallthrough from the previous declaration.
		if index == 0 {
			return nil, &BuildError{
				WorkflowID: workflow.ID,
				NodeID:     activity.ID,
				Reason:     "first activity declares no trigger",
			}
		}

		g.addEdge(workflow.Activities[index-1].ID, activity.ID)

		return nil, nil
	}

	declared := activity.On.Events()
	if len(declared) == 0 {
		return nil, &BuildError{
			WorkflowID: workflow.ID,
			NodeID:     activity.ID,
			Reason:     "trigger declares no event",
		}
	}

	targetID := activity.ID
	branchTimeout := activity.On.Timeout

	if activity.On.IsAllOf() {
		// The timeout of a composite trigger belongs to its join gateway,
		// not to the individual branch events.
		gatewayID := activity.ID + ":join"
		g.addNode(&Node{
			ID:          gatewayID,
			Element:     ElementGateway,
			Kind:        KindJoinGateway,
			Timeout:     activity.On.Timeout,
			WrappedKind: KindJoinGateway,
		})
		g.addEdge(gatewayID, activity.ID)
		g.joinRequired[gatewayID] = make(idSet)
		targetID = gatewayID
		branchTimeout = ""
	}

	var expired []expiredRef

	for _, event := range declared {
		kind := event.Kind()
		if kind == "" {
			return nil, &BuildError{
				WorkflowID: workflow.ID,
				NodeID:     activity.ID,
				Reason:     "trigger declares an empty event",
			}
		}

		var parentID string

		switch kind {
		case models.EventActivityCompleted:
			ref := event.ActivityRef()
			if _, ok := g.nodes[ref]; !ok {
				return nil, &ActivityNotFoundError{WorkflowID: workflow.ID, ActivityID: ref}
			}

			g.addEdge(ref, targetID)
			parentID = ref

		case models.EventActivityFailed:
			ref := event.ActivityRef()
			if _, ok := g.nodes[ref]; !ok {
				return nil, &ActivityNotFoundError{WorkflowID: workflow.ID, ActivityID: ref}
			}

			nodeID := b.eventNodeID(g, activity.ID, kind)
			failedEvent := event
			g.addNode(&Node{
				ID:          nodeID,
				Element:     ElementIntermediateEvent,
				Kind:        kind,
				Event:       &failedEvent,
				WrappedKind: kind,
			})
			g.addEdge(ref, nodeID)
			g.addEdge(nodeID, targetID)
			parentID = nodeID

		case models.EventActivityExpired:
			expired = append(expired, expiredRef{
				event:    event,
				targetID: targetID,
				timeout:  activity.On.Timeout,
			})

			continue

		default:
			nodeID := b.eventNodeID(g, activity.ID, kind)
			external := event
			g.addNode(&Node{
				ID:          nodeID,
				Element:     ElementIntermediateEvent,
				Kind:        kind,
				Event:       &external,
				Timeout:     branchTimeout,
				WrappedKind: kind,
			})

			if event.FormReplied != nil {
				formActivity := event.FormReplied.FormID
				if _, ok := g.nodes[formActivity]; !ok {
					return nil, &ActivityNotFoundError{WorkflowID: workflow.ID, ActivityID: formActivity}
				}

				g.addEdge(formActivity, nodeID)
			}

			g.addEdge(nodeID, targetID)
			parentID = nodeID
		}

		if activity.On.IsAllOf() && event.IsBlocking() {
			g.joinRequired[targetID].add(parentID)
		}
	}

	return expired, nil
}

// wireExpired attaches an activity-expired node under the event or gateway
// nodes of the watched activity, falling back to the activity itself when it
// has no event trigger of its own.
func (b *Builder) wireExpired(g *DirectGraph, workflow *models.Workflow, ref expiredRef) error {
	watchedID := ref.event.ActivityRef()

	watched, ok := g.nodes[watchedID]
	if !ok {
		return &ActivityNotFoundError{WorkflowID: workflow.ID, ActivityID: watchedID}
	}

	nodeID := b.eventNodeID(g, ref.targetID, models.EventActivityExpired)
	timeout := ref.timeout

	var eventParents []string

	for parentID := range g.parents[watchedID] {
		parent := g.nodes[parentID]
		if parent == nil || (!parent.IsEvent() && parent.Element != ElementGateway) {
			continue
		}

		eventParents = append(eventParents, parentID)

		if timeout == "" {
			timeout = parent.Timeout
		}
	}

	expiredEvent := ref.event
	g.addNode(&Node{
		ID:          nodeID,
		Element:     ElementIntermediateEvent,
		Kind:        models.EventActivityExpired,
		Event:       &expiredEvent,
		Timeout:     timeout,
		WrappedKind: models.EventActivityExpired,
	})

	if len(eventParents) == 0 {
		g.addEdge(watched.ID, nodeID)
	} else {
		for _, parentID := range eventParents {
			g.addEdge(parentID, nodeID)
		}
	}

	g.addEdge(nodeID, ref.targetID)

	return nil
}

// eventNodeID derives a unique node id for an event declared on an activity.
func (b *Builder) eventNodeID(g *DirectGraph, activityID, kind string) string {
	id := activityID + ":" + kind
	if _, exists := g.nodes[id]; !exists {
		return id
	}

	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s:%s-%d", activityID, kind, i)
		if _, exists := g.nodes[candidate]; !exists {
			return candidate
		}
	}
}

// finalize promotes parentless event nodes to start events and rejects
// unreachable activities and gateways.
func (b *Builder) finalize(g *DirectGraph, workflow *models.Workflow) error {
	for id, node := range g.nodes {
		if len(g.parents[id]) > 0 {
			continue
		}

		if !node.IsEvent() {
			return &BuildError{
				WorkflowID: workflow.ID,
				NodeID:     id,
				Reason:     "node is unreachable: no incoming edge and not an event",
			}
		}

		node.Element = ElementStartEvent
		g.startEvents.add(id)
	}

	return nil
}
