// Package postgresql provides the PostgreSQL implementation of the versioned
// workflow store.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/chatflow-io/chatflow/pkg/persistence"
)

// Store implements persistence.Store on PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*Store, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{
		db:     database,
		logger: logger.With("module", "postgres_store"),
	}

	if err := store.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS versioned_workflows (
			workflow_id     TEXT        NOT NULL,
			version         TEXT        NOT NULL DEFAULT '',
			path            TEXT        NOT NULL,
			swadl           TEXT        NOT NULL,
			deployment_id   TEXT        NOT NULL,
			to_publish      BOOLEAN     NOT NULL,
			expiration_date TIMESTAMPTZ,
			created_at      TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (workflow_id, version, created_at)
		);
		CREATE INDEX IF NOT EXISTS versioned_workflows_path_idx ON versioned_workflows (path);
	`)

	return err
}

func (s *Store) Save(ctx context.Context, workflow *persistence.VersionedWorkflow) error {
	createdAt := workflow.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if !workflow.ToPublish {
		// Only one draft is retained per workflow id.
		_, err = tx.ExecContext(ctx,
			`DELETE FROM versioned_workflows WHERE workflow_id = $1 AND to_publish = FALSE`,
			workflow.WorkflowID)
		if err != nil {
			return fmt.Errorf("failed to replace draft: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO versioned_workflows
			(workflow_id, version, path, swadl, deployment_id, to_publish, expiration_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		workflow.WorkflowID, workflow.Version, workflow.Path, workflow.SWADL,
		workflow.DeploymentID, workflow.ToPublish, workflow.ExpirationDate, createdAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow version: %w", err)
	}

	return tx.Commit()
}

func (s *Store) ByID(ctx context.Context, workflowID string) ([]*persistence.VersionedWorkflow, error) {
	records, err := s.query(ctx,
		`SELECT workflow_id, version, path, swadl, deployment_id, to_publish, expiration_date, created_at
		 FROM versioned_workflows WHERE workflow_id = $1 ORDER BY created_at`, workflowID)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, &persistence.VersionError{WorkflowID: workflowID, Err: persistence.ErrWorkflowNotFound}
	}

	return records, nil
}

func (s *Store) ByIDVersion(ctx context.Context, workflowID, version string) (*persistence.VersionedWorkflow, error) {
	records, err := s.query(ctx,
		`SELECT workflow_id, version, path, swadl, deployment_id, to_publish, expiration_date, created_at
		 FROM versioned_workflows WHERE workflow_id = $1 AND version = $2
		 ORDER BY created_at DESC LIMIT 1`, workflowID, version)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, &persistence.VersionError{WorkflowID: workflowID, Version: version, Err: persistence.ErrVersionNotFound}
	}

	return records[0], nil
}

func (s *Store) ByPath(ctx context.Context, path string) ([]*persistence.VersionedWorkflow, error) {
	return s.query(ctx,
		`SELECT workflow_id, version, path, swadl, deployment_id, to_publish, expiration_date, created_at
		 FROM versioned_workflows WHERE path = $1 ORDER BY created_at`, path)
}

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

func (s *Store) Delete(ctx context.Context, workflowID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM versioned_workflows WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", workflowID, err)
	}

	return nil
}

func (s *Store) DeleteVersion(ctx context.Context, workflowID, version string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM versioned_workflows WHERE workflow_id = $1 AND version = $2`, workflowID, version)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s version %s: %w", workflowID, version, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return &persistence.VersionError{WorkflowID: workflowID, Version: version, Err: persistence.ErrVersionNotFound}
	}

	return nil
}

func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*persistence.VersionedWorkflow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*persistence.VersionedWorkflow

	for rows.Next() {
		var (
			record     persistence.VersionedWorkflow
			expiration sql.NullTime
		)

		err := rows.Scan(&record.WorkflowID, &record.Version, &record.Path, &record.SWADL,
			&record.DeploymentID, &record.ToPublish, &expiration, &record.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow version: %w", err)
		}

		if expiration.Valid {
			record.ExpirationDate = &expiration.Time
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read workflow versions: %w", err)
	}

	return records, nil
}
