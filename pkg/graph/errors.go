package graph

import "fmt"

// ActivityNotFoundError reports a "next"/"on" reference naming an activity id
// absent from the definition. It always carries the unresolved id.
type ActivityNotFoundError struct {
	WorkflowID string
	ActivityID string
}

func (e *ActivityNotFoundError) Error() string {
	return fmt.Sprintf("workflow %s references unknown activity %q", e.WorkflowID, e.ActivityID)
}

// BuildError reports a definition that cannot form a valid graph for reasons
// other than an unresolved reference.
type BuildError struct {
	WorkflowID string
	NodeID     string
	Reason     string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("workflow %s: node %q: %s", e.WorkflowID, e.NodeID, e.Reason)
}
