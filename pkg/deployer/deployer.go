// Package deployer binds workflow source files to live engine deployments.
// Each source path is an exclusive resource: add, modify and delete passes
// for the same path never run concurrently.
package deployer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chatflow-io/chatflow/pkg/compiler"
	"github.com/chatflow-io/chatflow/pkg/engine"
	"github.com/chatflow-io/chatflow/pkg/graph"
	"github.com/chatflow-io/chatflow/pkg/models"
	"github.com/chatflow-io/chatflow/pkg/persistence"
	"github.com/chatflow-io/chatflow/pkg/swadl"
)

// pathState is the last applied outcome for one source path, compared on
// re-add so unchanged files never trigger a second deploy pass.
type pathState struct {
	workflowID string
	published  bool
	checksum   string
}

type Deployer struct {
	logger   *slog.Logger
	engine   *engine.Engine
	store    persistence.Store
	clock    clockwork.Clock
	builder  *graph.Builder
	compiler *compiler.Compiler

	mu          sync.Mutex
	paths       map[string]*pathState
	pathLocks   map[string]*sync.Mutex
	expirations map[string]clockwork.Timer // workflow id -> scheduled undeploy
}

func New(logger *slog.Logger, eng *engine.Engine, store persistence.Store, clock clockwork.Clock) *Deployer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Deployer{
		logger:      logger.With("module", "deployer"),
		engine:      eng,
		store:       store,
		clock:       clock,
		builder:     graph.NewBuilder(),
		compiler:    compiler.New(logger),
		paths:       make(map[string]*pathState),
		pathLocks:   make(map[string]*sync.Mutex),
		expirations: make(map[string]clockwork.Timer),
	}
}

// AddAllFromFolder deploys every workflow source file in a folder. A bad file
// is logged and skipped; it never aborts the rest of the scan.
func (d *Deployer) AddAllFromFolder(ctx context.Context, folder string) error {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return fmt.Errorf("failed to read workflows folder %s: %w", folder, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(folder, entry.Name())
		if !isWorkflowFile(path) {
			continue
		}

		if err := d.Add(ctx, path); err != nil {
			d.logger.Error("Failed to add workflow", "path", path, "error", err)
		}
	}

	return nil
}

// Add parses, compiles and applies one workflow source file. Publishable
// definitions replace any prior deployment of the same workflow id; drafts
// are recorded without deploying and undeploy a previously published file.
func (d *Deployer) Add(ctx context.Context, path string) error {
	if !isWorkflowFile(path) {
		return nil
	}

	unlock := d.lockPath(path)
	defer unlock()

	workflow, source, err := swadl.FromFile(path)
	if err != nil {
		if errors.Is(err, swadl.ErrEmptyDocument) {
			d.logger.Debug("Skipping empty workflow file", "path", path)

			return nil
		}

		return err
	}

	checksum := checksumOf(source)

	d.mu.Lock()
	prior := d.paths[path]
	d.mu.Unlock()

	if prior != nil && prior.workflowID == workflow.ID &&
		prior.checksum == checksum && prior.published == workflow.IsToPublish() {
		d.logger.Debug("Workflow unchanged, skipping", "path", path, "workflow_id", workflow.ID)

		return nil
	}

	directGraph, err := d.builder.Build(workflow)
	if err != nil {
		return err
	}

	process, err := d.compiler.Compile(directGraph)
	if err != nil {
		return err
	}

	if !workflow.IsToPublish() {
		return d.addDraft(ctx, path, workflow, source, prior, checksum)
	}

	deployment, err := d.engine.Deploy(process)
	if err != nil {
		return err
	}

	if workflow.Version != "" {
		record := &persistence.VersionedWorkflow{
			WorkflowID:   workflow.ID,
			Version:      workflow.Version,
			Path:         path,
			SWADL:        source,
			DeploymentID: deployment.ID,
			ToPublish:    true,
		}

		if expiration, err := parseExpiration(workflow.ExpirationDate); err != nil {
			d.logger.Error("Invalid expiration date", "path", path, "workflow_id", workflow.ID, "error", err)
		} else if expiration != nil {
			record.ExpirationDate = expiration
			d.scheduleExpiration(ctx, workflow.ID, *expiration)
		}

		if err := d.store.Save(ctx, record); err != nil {
			return err
		}
	}

	d.rememberPath(path, workflow.ID, true, checksum)
	d.logger.Info("Deployed workflow file",
		"path", path, "workflow_id", workflow.ID, "version", workflow.Version)

	return nil
}

// addDraft records a draft without deploying it. A file that was previously
// published and turned into a draft is taken out of service.
func (d *Deployer) addDraft(ctx context.Context, path string, workflow *models.Workflow, source string, prior *pathState, checksum string) error {
	if prior != nil && prior.published {
		d.cancelExpiration(prior.workflowID)
		d.engine.Undeploy(prior.workflowID)
	}

	record := &persistence.VersionedWorkflow{
		WorkflowID: workflow.ID,
		Version:    workflow.Version,
		Path:       path,
		SWADL:      source,
		ToPublish:  false,
	}

	if err := d.store.Save(ctx, record); err != nil {
		return err
	}

	d.rememberPath(path, workflow.ID, false, checksum)
	d.logger.Info("Recorded workflow draft", "path", path, "workflow_id", workflow.ID)

	return nil
}

// Delete undeploys the workflow bound to a source path and removes its
// version and draft records.
func (d *Deployer) Delete(ctx context.Context, path string) error {
	unlock := d.lockPath(path)
	defer unlock()

	d.mu.Lock()
	state := d.paths[path]
	delete(d.paths, path)
	d.mu.Unlock()

	records, err := d.store.ByPath(ctx, path)
	if err != nil {
		return err
	}

	for _, record := range records {
		if err := d.store.DeleteVersion(ctx, record.WorkflowID, record.Version); err != nil {
			d.logger.Error("Failed to delete workflow record",
				"workflow_id", record.WorkflowID, "version", record.Version, "error", err)
		}
	}

	if state != nil {
		d.cancelExpiration(state.workflowID)
		d.engine.Undeploy(state.workflowID)
		d.logger.Info("Undeployed workflow file", "path", path, "workflow_id", state.workflowID)
	}

	return nil
}

// WorkflowExists reports whether any version of a workflow id is stored.
func (d *Deployer) WorkflowExists(ctx context.Context, workflowID string) bool {
	_, err := d.store.ByID(ctx, workflowID)

	return err == nil
}

// WorkflowExistsVersion reports whether one (id, version) pair is stored.
func (d *Deployer) WorkflowExistsVersion(ctx context.Context, workflowID, version string) bool {
	_, err := d.store.ByIDVersion(ctx, workflowID, version)

	return err == nil
}

// PathsByID resolves every stored source path of a workflow id, oldest first.
func (d *Deployer) PathsByID(ctx context.Context, workflowID string) ([]string, error) {
	records, err := d.store.ByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(records))
	for _, record := range records {
		paths = append(paths, record.Path)
	}

	return paths, nil
}

// PathByIDVersion resolves the source path of one (id, version) pair.
func (d *Deployer) PathByIDVersion(ctx context.Context, workflowID, version string) (string, error) {
	record, err := d.store.ByIDVersion(ctx, workflowID, version)
	if err != nil {
		return "", err
	}

	return record.Path, nil
}

func (d *Deployer) lockPath(path string) func() {
	d.mu.Lock()

	lock, ok := d.pathLocks[path]
	if !ok {
		lock = &sync.Mutex{}
		d.pathLocks[path] = lock
	}

	d.mu.Unlock()

	lock.Lock()

	return lock.Unlock
}

func (d *Deployer) rememberPath(path, workflowID string, published bool, checksum string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.paths[path] = &pathState{workflowID: workflowID, published: published, checksum: checksum}
}

// scheduleExpiration arms an automatic undeploy at the workflow's declared
// expiration instant. Replaces any previously armed expiration for the id.
func (d *Deployer) scheduleExpiration(ctx context.Context, workflowID string, at time.Time) {
	d.cancelExpiration(workflowID)

	duration := at.Sub(d.clock.Now())
	if duration < 0 {
		duration = 0
	}

	timer := d.clock.AfterFunc(duration, func() {
		d.logger.Info("Workflow expired, undeploying", "workflow_id", workflowID)
		d.engine.Undeploy(workflowID)

		if err := d.store.Delete(ctx, workflowID); err != nil {
			d.logger.Error("Failed to delete expired workflow", "workflow_id", workflowID, "error", err)
		}
	})

	d.mu.Lock()
	d.expirations[workflowID] = timer
	d.mu.Unlock()
}

func (d *Deployer) cancelExpiration(workflowID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.expirations[workflowID]; ok {
		timer.Stop()
		delete(d.expirations, workflowID)
	}
}

func isWorkflowFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}

	return false
}

func checksumOf(source string) string {
	sum := sha256.Sum256([]byte(source))

	return hex.EncodeToString(sum[:])
}

func parseExpiration(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid expiration date %q: %w", value, err)
	}

	return &at, nil
}
