package compiler

import (
	"time"

	"github.com/chatflow-io/chatflow/pkg/graph"
	"github.com/chatflow-io/chatflow/pkg/models"
)

// NodeBuilder builds the executable form of one node kind. Implementations
// receive the node, its traversal parent, the flow handle built so far and
// the shared build context.
type NodeBuilder interface {
	Kind() string
	Build(node *graph.Node, parentID string, flow *FlowBuilder, ctx *BuildContext) (*FlowBuilder, error)
}

// catchEventBuilder is the default builder for event nodes.
type catchEventBuilder struct{}

func (b *catchEventBuilder) Kind() string { return "" }

func (b *catchEventBuilder) Build(node *graph.Node, _ string, flow *FlowBuilder, _ *BuildContext) (*FlowBuilder, error) {
	flow.addStep(node)

	return flow, nil
}

// formRepliedBuilder opens a nested sub-process for the form's flow: a
// timeout scope when the trigger declares one, an event scope otherwise.
type formRepliedBuilder struct{}

func (b *formRepliedBuilder) Kind() string { return models.EventFormReplied }

func (b *formRepliedBuilder) Build(node *graph.Node, _ string, flow *FlowBuilder, ctx *BuildContext) (*FlowBuilder, error) {
	step := flow.addStep(node)

	kind := ScopeEvent
	if node.Timeout != "" {
		kind = ScopeTimeout
	}

	ctx.PushSubProcess(kind, step)

	return flow, nil
}

// activityBuilder is the default builder for activity nodes.
type activityBuilder struct{}

func (b *activityBuilder) Kind() string { return "" }

func (b *activityBuilder) Build(node *graph.Node, _ string, flow *FlowBuilder, _ *BuildContext) (*FlowBuilder, error) {
	flow.addStep(node)

	return flow, nil
}

// joinGatewayBuilder compiles synchronizing joins: the step records which
// parents must arrive before the gateway advances.
type joinGatewayBuilder struct{}

func (b *joinGatewayBuilder) Kind() string { return graph.KindJoinGateway }

func (b *joinGatewayBuilder) Build(node *graph.Node, _ string, flow *FlowBuilder, ctx *BuildContext) (*FlowBuilder, error) {
	step := flow.addStep(node)
	step.Required = ctx.graph.JoinRequired(node.ID)

	return flow, nil
}

// activityFailedBuilder compiles a declared failure handler: the watched
// activity's step routes to this node instead of failing the instance.
type activityFailedBuilder struct{}

func (b *activityFailedBuilder) Kind() string { return models.EventActivityFailed }

func (b *activityFailedBuilder) Build(node *graph.Node, _ string, flow *FlowBuilder, ctx *BuildContext) (*FlowBuilder, error) {
	step := flow.addStep(node)

	for _, parentID := range ctx.Parents(node.ID) {
		parent, ok := ctx.Node(parentID)
		if !ok || parent.Element != graph.ElementActivity {
			continue
		}

		watched, ok := ctx.process.Steps[parentID]
		if !ok {
			return nil, &CompileError{
				WorkflowID: ctx.graph.WorkflowID,
				NodeID:     node.ID,
				Reason:     "failure handler built before its watched activity",
			}
		}

		watched.OnFailure = step.NodeID
	}

	return flow, nil
}

// activityExpiredBuilder resolves timeout boundaries. With a form-reply
// ancestor it closes the open sub-process and becomes its boundary target;
// without one it becomes a timer attached directly to the nearest open
// catch-event or gateway.
type activityExpiredBuilder struct{}

func (b *activityExpiredBuilder) Kind() string { return models.EventActivityExpired }

func (b *activityExpiredBuilder) Build(node *graph.Node, parentID string, flow *FlowBuilder, ctx *BuildContext) (*FlowBuilder, error) {
	step := flow.addStep(node)

	if b.hasFormReplyParent(node, ctx) {
		switch {
		case ctx.HasTimeoutSubProcess():
			scope := ctx.PopTimeoutSubProcess()

			duration, err := b.timeout(node, ctx)
			if err != nil {
				return nil, err
			}

			b.attach(scope, ctx, &Boundary{Kind: BoundaryTimer, Duration: duration, Target: step.NodeID})

		case ctx.HasEventSubProcess():
			// The enclosing sub-process is not closed yet: close it and
			// extend with an error boundary instead of a timer.
			scope := ctx.PopEventSubProcess()
			b.attach(scope, ctx, &Boundary{Kind: BoundaryError, Target: step.NodeID})

		default:
			return nil, &CompileError{
				WorkflowID: ctx.graph.WorkflowID,
				NodeID:     node.ID,
				Reason:     "activity-expired has no open sub-process to close",
			}
		}

		return flow, nil
	}

	duration, err := b.timeout(node, ctx)
	if err != nil {
		return nil, err
	}

	parent, ok := ctx.process.Steps[parentID]
	if !ok {
		return nil, &CompileError{
			WorkflowID: ctx.graph.WorkflowID,
			NodeID:     node.ID,
			Reason:     "activity-expired has no built parent to attach a timer to",
		}
	}

	switch parent.Element {
	case graph.ElementStartEvent, graph.ElementIntermediateEvent, graph.ElementGateway:
		parent.Boundary = &Boundary{Kind: BoundaryTimer, Duration: duration, Target: step.NodeID}
	default:
		return nil, &CompileError{
			WorkflowID: ctx.graph.WorkflowID,
			NodeID:     node.ID,
			Reason:     "timer boundary requires a catch-event or gateway parent",
		}
	}

	return flow, nil
}

func (b *activityExpiredBuilder) attach(scope *Scope, ctx *BuildContext, boundary *Boundary) {
	scope.Boundary = boundary

	if owner, ok := ctx.process.Steps[scope.Owner]; ok {
		owner.Boundary = boundary
	}
}

func (b *activityExpiredBuilder) hasFormReplyParent(node *graph.Node, ctx *BuildContext) bool {
	for _, parentID := range ctx.Parents(node.ID) {
		if parent, ok := ctx.Node(parentID); ok && parent.Kind == models.EventFormReplied {
			return true
		}
	}

	return false
}

func (b *activityExpiredBuilder) timeout(node *graph.Node, ctx *BuildContext) (time.Duration, error) {
	if node.Timeout == "" {
		return 0, &CompileError{
			WorkflowID: ctx.graph.WorkflowID,
			NodeID:     node.ID,
			Reason:     "activity-expired declares no timeout",
		}
	}

	duration, err := time.ParseDuration(node.Timeout)
	if err != nil {
		return 0, &CompileError{
			WorkflowID: ctx.graph.WorkflowID,
			NodeID:     node.ID,
			Reason:     "invalid timeout duration " + node.Timeout,
		}
	}

	return duration, nil
}
