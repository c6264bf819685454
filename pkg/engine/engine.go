// Package engine executes compiled workflow processes. Inbound events flow
// through a single dispatch pass: start predicates may create new instances,
// parked waits may resume existing ones. Each instance serializes its own
// transitions; instances of different workflows never contend.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/chatflow-io/chatflow/pkg/audit"
	"github.com/chatflow-io/chatflow/pkg/compiler"
	"github.com/chatflow-io/chatflow/pkg/correlation"
	"github.com/chatflow-io/chatflow/pkg/events"
	"github.com/chatflow-io/chatflow/pkg/executors"
	"github.com/chatflow-io/chatflow/pkg/gateway"
	"github.com/chatflow-io/chatflow/pkg/graph"
	"github.com/chatflow-io/chatflow/pkg/models"
)

// Deployment is one live (workflow id, version) with its armed start timers.
type Deployment struct {
	ID      string
	Process *compiler.Process

	timers []*timerHandle
}

type Engine struct {
	logger      *slog.Logger
	correlation *correlation.Registry
	executors   *executors.Registry
	platform    gateway.Platform
	trail       audit.Trail
	clock       clockwork.Clock

	mu          sync.Mutex
	deployments map[string]*Deployment
	instances   map[string]*Instance
}

func New(logger *slog.Logger, registry *correlation.Registry, execs *executors.Registry,
	platform gateway.Platform, trail audit.Trail, clock clockwork.Clock) *Engine {
	if trail == nil {
		trail = audit.Nop{}
	}

	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Engine{
		logger:      logger.With("module", "engine"),
		correlation: registry,
		executors:   execs,
		platform:    platform,
		trail:       trail,
		clock:       clock,
		deployments: make(map[string]*Deployment),
		instances:   make(map[string]*Instance),
	}
}

// Deploy activates a compiled process. A prior deployment of the same
// workflow id is undeployed first; instances started under it keep running
// against their pinned process.
func (e *Engine) Deploy(process *compiler.Process) (*Deployment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	deployment := &Deployment{
		ID:      uuid.New().String(),
		Process: process,
	}

	// Every start is validated before the prior deployment is touched: a
	// rejected process leaves the live one fully in place.
	entries := make([]correlation.StartEntry, 0, len(process.Starts))

	var timerStarts []string

	for _, nodeID := range process.Starts {
		step, ok := process.Step(nodeID)
		if !ok || step.Event == nil {
			return nil, fmt.Errorf("workflow %s has no start event step %s", process.WorkflowID, nodeID)
		}

		matcher := correlation.For(step.Event)

		if step.Kind == models.EventTimerFired {
			matcher.TimerID = nodeID
			timerStarts = append(timerStarts, nodeID)
		}

		entries = append(entries, correlation.StartEntry{
			WorkflowID: process.WorkflowID,
			NodeID:     nodeID,
			Matcher:    matcher,
		})
	}

	if prior, ok := e.deployments[process.WorkflowID]; ok {
		e.undeployLocked(process.WorkflowID, prior)
	}

	for _, nodeID := range timerStarts {
		step, _ := process.Step(nodeID)
		if handle := e.scheduleStartTimer(process.WorkflowID, nodeID, step.Event.TimerFired); handle != nil {
			deployment.timers = append(deployment.timers, handle)
		}
	}

	e.correlation.RegisterStarts(process.WorkflowID, entries)
	e.deployments[process.WorkflowID] = deployment

	e.trail.OnDeploy(deployment.ID, process.WorkflowID, process.WorkflowID)
	e.logger.Info("Deployed workflow", "workflow_id", process.WorkflowID, "version", process.Version)

	return deployment, nil
}

// Undeploy deactivates a workflow's start predicates and scheduled start
// timers. Active instances are untouched and run to completion.
func (e *Engine) Undeploy(workflowID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	deployment, ok := e.deployments[workflowID]
	if !ok {
		return
	}

	e.undeployLocked(workflowID, deployment)
}

func (e *Engine) undeployLocked(workflowID string, deployment *Deployment) {
	for _, handle := range deployment.timers {
		handle.stop()
	}

	e.correlation.UnregisterWorkflow(workflowID)
	delete(e.deployments, workflowID)

	e.trail.OnUndeploy(deployment.ID, workflowID)
	e.logger.Info("Undeployed workflow", "workflow_id", workflowID)
}

// Deployed returns the live deployment of a workflow id, if any.
func (e *Engine) Deployed(workflowID string) (*Deployment, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	deployment, ok := e.deployments[workflowID]

	return deployment, ok
}

// Instance returns a running or finished instance by id.
func (e *Engine) Instance(instanceID string) (*Instance, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	instance, ok := e.instances[instanceID]

	return instance, ok
}

// Instances returns every known instance, oldest first.
func (e *Engine) Instances() []*Instance {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Instance, 0, len(e.instances))
	for _, instance := range e.instances {
		out = append(out, instance)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].createdAt.Equal(out[j].createdAt) {
			return out[i].createdAt.Before(out[j].createdAt)
		}

		return out[i].ID < out[j].ID
	})

	return out
}

// OnEvent runs one dispatch pass: the event is offered to every deployed
// start predicate, then to every parked wait. Dispatch order over instances
// is deterministic.
func (e *Engine) OnEvent(ctx context.Context, ev events.Event) error {
	for _, entry := range e.correlation.MatchStarts(ev) {
		if err := e.startInstance(ctx, entry, ev); err != nil {
			e.logger.Error("Failed to start instance",
				"workflow_id", entry.WorkflowID, "node_id", entry.NodeID, "error", err)
		}
	}

	for _, wait := range e.correlation.MatchWaits(ev) {
		e.resumeInstance(ctx, wait, ev)
	}

	return nil
}

func (e *Engine) startInstance(ctx context.Context, entry correlation.StartEntry, ev events.Event) error {
	e.mu.Lock()

	deployment, ok := e.deployments[entry.WorkflowID]
	if !ok {
		e.mu.Unlock()

		return fmt.Errorf("workflow %s is not deployed", entry.WorkflowID)
	}

	process := deployment.Process

	instance := &Instance{
		ID:         uuid.New().String(),
		WorkflowID: process.WorkflowID,
		Version:    process.Version,
		status:     StatusPending,
		tokens:     make(map[string]struct{}),
		joins:      make(map[string]map[string]bool),
		vars:       newVariables(e.clock, process.Variables),
		timers:     make(map[string]*timerHandle),
		createdAt:  e.clock.Now(),
		process:    process,
	}

	e.instances[instance.ID] = instance
	e.mu.Unlock()

	e.trail.OnProcessLifecycle("start", instance.ID, process.WorkflowID, nil)
	e.logger.Info("Starting instance",
		"workflow_id", process.WorkflowID, "version", process.Version, "instance_id", instance.ID)

	instance.mu.Lock()
	defer instance.mu.Unlock()

	instance.status = StatusActive

	e.applyEvent(instance, ev)

	step, ok := process.Step(entry.NodeID)
	if !ok {
		return fmt.Errorf("start step %s missing from process %s", entry.NodeID, process.WorkflowID)
	}

	for _, next := range step.Next {
		e.activateStep(ctx, instance, next, entry.NodeID)
	}

	e.checkCompletion(instance)

	return nil
}

func (e *Engine) resumeInstance(ctx context.Context, wait correlation.Wait, ev events.Event) {
	e.mu.Lock()
	instance, ok := e.instances[wait.InstanceID]
	e.mu.Unlock()

	if !ok {
		return
	}

	instance.mu.Lock()
	defer instance.mu.Unlock()

	if instance.terminal() || !instance.hasToken(wait.NodeID) {
		return
	}

	// Clears both the event wait and any boundary wait parked on the node.
	e.correlation.Unpark(instance.ID, wait.NodeID)
	instance.stopTimer(wait.NodeID)
	instance.removeToken(wait.NodeID)

	// A join gateway timing out gives up on its pending branches: their
	// parked feeder waits are cancelled with it.
	if step, ok := instance.process.Step(wait.NodeID); ok && step.Element == graph.ElementGateway {
		for _, parentID := range step.Required {
			if !instance.hasToken(parentID) {
				continue
			}

			e.correlation.Unpark(instance.ID, parentID)
			instance.stopTimer(parentID)
			instance.removeToken(parentID)
		}

		instance.clearArrivals(wait.NodeID)
	}

	e.applyEvent(instance, ev)

	if ev.Kind == events.KindTimerFired && ev.Timer != nil {
		e.trail.OnTimerFired(ev.Timer.TimerID, instance.ID, instance.WorkflowID, wait.NodeID)
	}

	var targets []string
	if wait.Target != "" {
		targets = append(targets, wait.Target)
	} else if step, ok := instance.process.Step(wait.NodeID); ok {
		targets = step.Next
	}

	for _, next := range targets {
		e.activateStep(ctx, instance, next, wait.NodeID)
	}

	e.checkCompletion(instance)
}

// activateStep moves a token into a step. Caller holds the instance lock.
func (e *Engine) activateStep(ctx context.Context, instance *Instance, nodeID, fromID string) {
	if instance.terminal() {
		return
	}

	step, ok := instance.process.Step(nodeID)
	if !ok {
		e.logger.Error("Unknown step", "instance_id", instance.ID, "node_id", nodeID)

		return
	}

	switch {
	case step.Element == graph.ElementGateway:
		if !instance.recordArrival(nodeID, fromID, step.Required) {
			// Keep the instance alive while the join waits for the rest of
			// its required parents. The timer boundary is armed on the
			// first arrival only.
			if !instance.hasToken(nodeID) {
				instance.addToken(nodeID)
				e.armTimerBoundary(instance, step)
			}

			return
		}

		instance.clearArrivals(nodeID)
		instance.removeToken(nodeID)
		instance.stopTimer(nodeID)
		e.correlation.Unpark(instance.ID, nodeID)

		for _, next := range step.Next {
			e.activateStep(ctx, instance, next, nodeID)
		}
	case step.IsWait():
		e.parkWait(instance, step)
	case step.Element == graph.ElementActivity:
		e.executeActivity(ctx, instance, step)
	default:
		// Pass-through: failure and expiration handler events complete as
		// soon as the engine routes a token into them.
		for _, next := range step.Next {
			e.activateStep(ctx, instance, next, nodeID)
		}
	}
}

// parkWait leaves a token on a catch event and registers its predicates. A
// timer boundary on the enclosing scope parks a second wait on the same node
// targeting the handler.
func (e *Engine) parkWait(instance *Instance, step *compiler.Step) {
	instance.addToken(step.NodeID)

	matcher := correlation.For(step.Event)

	if step.Kind == models.EventTimerFired {
		matcher.TimerID = step.NodeID

		if handle := e.scheduleTimerEvent(instance, step.NodeID, step.Event.TimerFired); handle != nil {
			instance.timers[step.NodeID] = handle
		}
	}

	e.correlation.Park(correlation.Wait{
		WorkflowID: instance.WorkflowID,
		InstanceID: instance.ID,
		NodeID:     step.NodeID,
		Matcher:    matcher,
	})

	e.armTimerBoundary(instance, step)
}

// armTimerBoundary parks a timer wait targeting the step's boundary handler
// and schedules its firing. No-op when neither the step nor its scope chain
// carries a timer boundary.
func (e *Engine) armTimerBoundary(instance *Instance, step *compiler.Step) {
	boundary := step.Boundary
	if boundary == nil {
		boundary = instance.process.ScopeBoundary(step, compiler.BoundaryTimer)
	}

	if boundary == nil || boundary.Kind != compiler.BoundaryTimer || boundary.Duration <= 0 {
		return
	}

	e.correlation.Park(correlation.Wait{
		WorkflowID: instance.WorkflowID,
		InstanceID: instance.ID,
		NodeID:     step.NodeID,
		Target:     boundary.Target,
		Matcher:    correlation.Matcher{Kind: events.KindTimerFired, TimerID: step.NodeID},
	})

	instance.timers[step.NodeID] = e.scheduleBoundary(instance, step.NodeID, boundary.Duration)
}

func (e *Engine) executeActivity(ctx context.Context, instance *Instance, step *compiler.Step) {
	execContext := executors.NewContext(step.Activity, e.platform, instance.vars.Snapshot())
	execContext.EventStreamID = instance.lastStreamID
	execContext.LastMessageID = instance.lastMessageID

	e.trail.OnExecute(instance.ID, instance.WorkflowID, step.Activity.ID, step.Activity.ID, step.Kind)

	executor, err := e.executors.Lookup(step.Kind)
	if err == nil {
		err = executor.Execute(ctx, execContext)
	}

	if err != nil {
		e.failActivity(ctx, instance, step, err)

		return
	}

	for name, value := range execContext.Outputs() {
		e.setVariable(instance, fmt.Sprintf("%s.outputs.%s", step.NodeID, name), value)

		switch name {
		case "message_id":
			if messageID, ok := value.(string); ok {
				instance.lastMessageID = messageID
			}
		case "stream_id":
			if streamID, ok := value.(string); ok && instance.lastStreamID == "" {
				instance.lastStreamID = streamID
			}
		}
	}

	for _, next := range step.Next {
		e.activateStep(ctx, instance, next, step.NodeID)
	}
}

// failActivity routes a failed activity to its declared handler, then to the
// innermost error boundary, and fails the instance when neither exists.
func (e *Engine) failActivity(ctx context.Context, instance *Instance, step *compiler.Step, err error) {
	e.logger.Error("Activity failed",
		"instance_id", instance.ID, "activity_id", step.Activity.ID, "error", err)

	e.setVariable(instance, fmt.Sprintf("%s.error", step.NodeID), err.Error())

	if step.OnFailure != "" {
		e.activateStep(ctx, instance, step.OnFailure, step.NodeID)

		return
	}

	if boundary := instance.process.ScopeBoundary(step, compiler.BoundaryError); boundary != nil {
		e.activateStep(ctx, instance, boundary.Target, step.NodeID)

		return
	}

	e.finish(instance, StatusFailed, "fail")
}

func (e *Engine) setVariable(instance *Instance, name string, value any) {
	instance.vars.Set(name, value)
	e.trail.OnVariableWritten(instance.ID, name, value)
}

// applyEvent records the correlated event's context on the instance and seeds
// event variables readable by downstream activities.
func (e *Engine) applyEvent(instance *Instance, ev events.Event) {
	if ev.Initiator != "" {
		e.setVariable(instance, "event.initiator", ev.Initiator)
	}

	switch {
	case ev.Message != nil:
		instance.lastStreamID = ev.Message.StreamID
		instance.lastMessageID = ev.Message.MessageID

		e.setVariable(instance, "event.stream_id", ev.Message.StreamID)
		e.setVariable(instance, "event.content", ev.Message.Content)
	case ev.Form != nil:
		if ev.Form.StreamID != "" {
			instance.lastStreamID = ev.Form.StreamID
		}

		for name, value := range ev.Form.Values {
			e.setVariable(instance, fmt.Sprintf("%s.%s", ev.Form.ActivityID, name), value)
		}
	case ev.Room != nil:
		if ev.Room.StreamID != "" {
			instance.lastStreamID = ev.Room.StreamID
			e.setVariable(instance, "event.stream_id", ev.Room.StreamID)
		}
	case ev.Request != nil:
		for name, value := range ev.Request.Arguments {
			e.setVariable(instance, fmt.Sprintf("event.arguments.%s", name), value)
		}
	}
}

// checkCompletion completes the instance once no tokens remain. Caller holds
// the instance lock.
func (e *Engine) checkCompletion(instance *Instance) {
	if instance.terminal() || len(instance.tokens) > 0 {
		return
	}

	e.finish(instance, StatusCompleted, "complete")
}

func (e *Engine) finish(instance *Instance, status Status, eventType string) {
	instance.status = status
	instance.stopAllTimers()

	e.correlation.DropInstance(instance.ID)

	duration := e.clock.Now().Sub(instance.createdAt)
	e.trail.OnProcessLifecycle(eventType, instance.ID, instance.WorkflowID, &duration)

	e.logger.Info("Instance finished",
		"instance_id", instance.ID, "workflow_id", instance.WorkflowID, "status", status,
		"duration", duration.Round(time.Millisecond))
}
