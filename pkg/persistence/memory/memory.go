// Package memory provides an in-memory Store implementation used for tests
// and single-process local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/chatflow-io/chatflow/pkg/persistence"
)

type Store struct {
	mu      sync.RWMutex
	records []*persistence.VersionedWorkflow
}

func NewStore() *Store {
	return &Store{}
}

// Save appends a new version record. Draft saves replace the previous draft
// of the same workflow: only one draft is retained per id.
func (s *Store) Save(_ context.Context, workflow *persistence.VersionedWorkflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := *workflow
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	if !record.ToPublish {
		s.records = s.deleteDraftLocked(record.WorkflowID)
	}

	s.records = append(s.records, &record)

	return nil
}

func (s *Store) ByID(_ context.Context, workflowID string) ([]*persistence.VersionedWorkflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*persistence.VersionedWorkflow

	for _, record := range s.records {
		if record.WorkflowID == workflowID {
			out = append(out, record)
		}
	}

	if len(out) == 0 {
		return nil, &persistence.VersionError{WorkflowID: workflowID, Err: persistence.ErrWorkflowNotFound}
	}

	return out, nil
}

func (s *Store) ByIDVersion(_ context.Context, workflowID, version string) (*persistence.VersionedWorkflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.WorkflowID == workflowID && record.Version == version {
			return record, nil
		}
	}

	return nil, &persistence.VersionError{WorkflowID: workflowID, Version: version, Err: persistence.ErrVersionNotFound}
}

func (s *Store) ByPath(_ context.Context, path string) ([]*persistence.VersionedWorkflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*persistence.VersionedWorkflow

	for _, record := range s.records {
		if record.Path == path {
			out = append(out, record)
		}
	}

	return out, nil
}

// Latest resolves the record with the highest version ordering, falling back
// to the most recent save when labels tie.
func (s *Store) Latest(ctx context.Context, workflowID string) (*persistence.VersionedWorkflow, error) {
	records, err := s.ByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	latest := records[0]

	for _, record := range records[1:] {
		switch persistence.CompareVersions(record.Version, latest.Version) {
		case 1:
			latest = record
		case 0:
			if record.CreatedAt.After(latest.CreatedAt) {
				latest = record
			}
		}
	}

	return latest, nil
}

func (s *Store) Delete(_ context.Context, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]

	for _, record := range s.records {
		if record.WorkflowID != workflowID {
			kept = append(kept, record)
		}
	}

	s.records = kept

	return nil
}

func (s *Store) DeleteVersion(_ context.Context, workflowID, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	found := false

	for _, record := range s.records {
		if record.WorkflowID == workflowID && record.Version == version {
			found = true

			continue
		}

		kept = append(kept, record)
	}

	s.records = kept

	if !found {
		return &persistence.VersionError{WorkflowID: workflowID, Version: version, Err: persistence.ErrVersionNotFound}
	}

	return nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

func (s *Store) deleteDraftLocked(workflowID string) []*persistence.VersionedWorkflow {
	kept := s.records[:0]

	for _, record := range s.records {
		if record.WorkflowID == workflowID && !record.ToPublish {
			continue
		}

		kept = append(kept, record)
	}

	return kept
}
