package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/chatflow-io/chatflow/pkg/compiler"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Instance is one execution of a deployed workflow. All state transitions are
// serialized through mu: concurrent instances make progress independently,
// operations on the same instance never interleave.
type Instance struct {
	ID         string
	WorkflowID string
	Version    string

	mu        sync.Mutex
	status    Status
	tokens    map[string]struct{}
	joins     map[string]map[string]bool // gateway id -> arrived parent ids
	vars      *Variables
	timers    map[string]*timerHandle // wait node id -> boundary/schedule timer
	createdAt time.Time

	// process is pinned at creation: redeploying the workflow never affects
	// instances created under a prior version.
	process *compiler.Process

	lastStreamID  string
	lastMessageID string
}

func (i *Instance) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.status
}

func (i *Instance) Variables() *Variables {
	return i.vars
}

// Tokens returns the node ids currently awaiting completion or an event.
func (i *Instance) Tokens() []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := make([]string, 0, len(i.tokens))
	for id := range i.tokens {
		out = append(out, id)
	}

	sort.Strings(out)

	return out
}

func (i *Instance) terminal() bool {
	return i.status == StatusCompleted || i.status == StatusFailed
}

func (i *Instance) addToken(nodeID string) {
	i.tokens[nodeID] = struct{}{}
}

func (i *Instance) removeToken(nodeID string) {
	delete(i.tokens, nodeID)
}

func (i *Instance) hasToken(nodeID string) bool {
	_, ok := i.tokens[nodeID]

	return ok
}

// recordArrival marks a parent's arrival at a join gateway and reports
// whether every required parent has now arrived.
func (i *Instance) recordArrival(gatewayID, fromID string, required []string) bool {
	if i.joins[gatewayID] == nil {
		i.joins[gatewayID] = make(map[string]bool)
	}

	i.joins[gatewayID][fromID] = true

	for _, parentID := range required {
		if !i.joins[gatewayID][parentID] {
			return false
		}
	}

	return true
}

func (i *Instance) clearArrivals(gatewayID string) {
	delete(i.joins, gatewayID)
}

func (i *Instance) stopTimer(nodeID string) {
	if handle, ok := i.timers[nodeID]; ok {
		handle.stop()
		delete(i.timers, nodeID)
	}
}

func (i *Instance) stopAllTimers() {
	for nodeID, handle := range i.timers {
		handle.stop()
		delete(i.timers, nodeID)
	}
}
