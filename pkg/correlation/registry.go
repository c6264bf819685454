package correlation

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/chatflow-io/chatflow/pkg/events"
)

// StartEntry is one active start-event predicate of a deployed workflow.
type StartEntry struct {
	WorkflowID string
	NodeID     string
	Matcher    Matcher
}

// Wait is one parked intermediate catch-event of an ACTIVE instance. Target,
// when set, overrides the parked step's success path on resume; boundary
// timers use it to route into their handler node.
type Wait struct {
	WorkflowID string
	InstanceID string
	NodeID     string
	Target     string
	Matcher    Matcher
}

// Registry holds start predicates per deployed workflow and parked waits per
// instance. Safe for concurrent registration and dispatch.
type Registry struct {
	mu     sync.RWMutex
	starts map[string][]StartEntry // workflow id -> predicates
	waits  map[string][]Wait       // instance id -> parked waits
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		starts: make(map[string][]StartEntry),
		waits:  make(map[string][]Wait),
		logger: logger.With("module", "correlation"),
	}
}

// RegisterStarts replaces the start predicates of a workflow.
func (r *Registry) RegisterStarts(workflowID string, entries []StartEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.starts[workflowID] = entries
}

// UnregisterWorkflow removes a workflow's start predicates. Parked waits of
// already-running instances are left untouched.
func (r *Registry) UnregisterWorkflow(workflowID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.starts, workflowID)
}

// Park registers a wait for an instance's parked token.
func (r *Registry) Park(wait Wait) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.waits[wait.InstanceID] = append(r.waits[wait.InstanceID], wait)
}

// Unpark removes the wait parked at one node of an instance.
func (r *Registry) Unpark(instanceID, nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	waits := r.waits[instanceID]
	kept := waits[:0]

	for _, wait := range waits {
		if wait.NodeID != nodeID {
			kept = append(kept, wait)
		}
	}

	if len(kept) == 0 {
		delete(r.waits, instanceID)

		return
	}

	r.waits[instanceID] = kept
}

// DropInstance removes every wait of a terminated instance.
func (r *Registry) DropInstance(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.waits, instanceID)
}

// MatchStarts returns every start predicate the event satisfies. A single
// event may start instances of several workflows.
func (r *Registry) MatchStarts(ev events.Event) []StartEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []StartEntry

	for _, entries := range r.starts {
		for _, entry := range entries {
			if entry.Matcher.Matches(ev) {
				matched = append(matched, entry)
			}
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].WorkflowID != matched[j].WorkflowID {
			return matched[i].WorkflowID < matched[j].WorkflowID
		}

		return matched[i].NodeID < matched[j].NodeID
	})

	return matched
}

// MatchWaits returns at most one satisfied wait per instance: first match
// wins. Timer events only ever resume the instance they were scheduled for.
func (r *Registry) MatchWaits(ev events.Event) []Wait {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instanceIDs := make([]string, 0, len(r.waits))
	for instanceID := range r.waits {
		instanceIDs = append(instanceIDs, instanceID)
	}

	sort.Strings(instanceIDs)

	var matched []Wait

	for _, instanceID := range instanceIDs {
		if ev.Kind == events.KindTimerFired && ev.Timer != nil &&
			ev.Timer.InstanceID != "" && ev.Timer.InstanceID != instanceID {
			continue
		}

		for _, wait := range r.waits[instanceID] {
			if wait.Matcher.Matches(ev) {
				matched = append(matched, wait)

				break
			}
		}
	}

	return matched
}
