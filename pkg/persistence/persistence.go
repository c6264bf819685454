// Package persistence provides the storage abstraction for versioned workflow
// records.
package persistence

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// VersionedWorkflow is one persisted (workflowID, version) record. Drafts are
// stored with ToPublish false and at most one draft is retained per workflow.
type VersionedWorkflow struct {
	WorkflowID     string
	Version        string
	Path           string
	SWADL          string
	DeploymentID   string
	ToPublish      bool
	ExpirationDate *time.Time
	CreatedAt      time.Time
}

type Store interface {
	Save(ctx context.Context, workflow *VersionedWorkflow) error
	ByID(ctx context.Context, workflowID string) ([]*VersionedWorkflow, error)
	ByIDVersion(ctx context.Context, workflowID, version string) (*VersionedWorkflow, error)
	ByPath(ctx context.Context, path string) ([]*VersionedWorkflow, error)
	Latest(ctx context.Context, workflowID string) (*VersionedWorkflow, error)
	Delete(ctx context.Context, workflowID string) error
	DeleteVersion(ctx context.Context, workflowID, version string) error

	Close(ctx context.Context) error
}

// CompareVersions orders version labels: dotted numeric labels compare
// numerically segment by segment, anything else falls back to lexicographic
// ordering. Returns -1, 0 or 1.
func CompareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aerr := strconv.Atoi(as[i])
		bn, berr := strconv.Atoi(bs[i])

		if aerr != nil || berr != nil {
			if as[i] == bs[i] {
				continue
			}

			if as[i] < bs[i] {
				return -1
			}

			return 1
		}

		if an != bn {
			if an < bn {
				return -1
			}

			return 1
		}
	}

	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}

	return 0
}
