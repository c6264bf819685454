package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound indicates no record exists for the workflow id.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrVersionNotFound indicates no record exists for the exact
	// (workflowID, version) pair.
	ErrVersionNotFound = errors.New("workflow version not found")
)

// VersionError wraps lookup failures with the exact identifiers the caller
// asked for.
type VersionError struct {
	WorkflowID string
	Version    string
	Err        error
}

func (e *VersionError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("workflow %s: %v", e.WorkflowID, e.Err)
	}

	return fmt.Sprintf("workflow %s version %s: %v", e.WorkflowID, e.Version, e.Err)
}

func (e *VersionError) Unwrap() error {
	return e.Err
}

func (e *VersionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsWorkflowNotFound checks if an error indicates a missing workflow.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsVersionNotFound checks if an error indicates a missing version.
func IsVersionNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}
