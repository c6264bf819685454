package engine

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Revision is one write to the variable store.
type Revision struct {
	Name       string
	Value      any
	Revision   int
	UpdateTime time.Time
}

// Variables is the per-instance variable store. Every write bumps a monotonic
// revision and appends to the history; entries are never overwritten or
// reordered. Safe for concurrent readers.
type Variables struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	current  map[string]any
	history  []Revision
	revision int
}

func newVariables(clock clockwork.Clock, defaults map[string]any) *Variables {
	v := &Variables{
		clock:   clock,
		current: make(map[string]any),
	}

	for name, value := range defaults {
		v.Set(name, value)
	}

	return v
}

func (v *Variables) Set(name string, value any) Revision {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.revision++

	revision := Revision{
		Name:       name,
		Value:      value,
		Revision:   v.revision,
		UpdateTime: v.clock.Now(),
	}

	v.history = append(v.history, revision)
	v.current[name] = value

	return revision
}

func (v *Variables) Get(name string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	value, ok := v.current[name]

	return value, ok
}

// Snapshot returns a copy of the current values.
func (v *Variables) Snapshot() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make(map[string]any, len(v.current))
	for name, value := range v.current {
		out[name] = value
	}

	return out
}

// History returns every revision of one variable in write order.
func (v *Variables) History(name string) []Revision {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var out []Revision

	for _, revision := range v.history {
		if revision.Name == name {
			out = append(out, revision)
		}
	}

	return out
}

// Revision returns the latest revision number.
func (v *Variables) Revision() int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.revision
}
