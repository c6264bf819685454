package compiler

import "fmt"

// CompileError reports a graph that cannot be compiled into a legal process
// model. It always carries the offending node id.
type CompileError struct {
	WorkflowID string
	NodeID     string
	Reason     string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("workflow %s cannot be compiled at node %q: %s", e.WorkflowID, e.NodeID, e.Reason)
}
