package deployer

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow-io/chatflow/pkg/audit"
	"github.com/chatflow-io/chatflow/pkg/correlation"
	"github.com/chatflow-io/chatflow/pkg/engine"
	"github.com/chatflow-io/chatflow/pkg/executors"
	"github.com/chatflow-io/chatflow/pkg/gateway"
	"github.com/chatflow-io/chatflow/pkg/persistence"
	"github.com/chatflow-io/chatflow/pkg/persistence/memory"
)

const publishedSource = `id: greeter
version: "1.0"
activities:
  - send-message:
      id: greet
      on:
        message-received:
          content: /hello
      content: hi
`

const draftSource = `id: greeter
version: "1.1"
to-publish: false
activities:
  - send-message:
      id: greet
      on:
        message-received:
          content: /hello
      content: hi there
`

func newTestDeployer(t *testing.T) (*Deployer, *engine.Engine, *memory.Store, *clockwork.FakeClock) {
	t.Helper()

	logger := slog.Default()
	clock := clockwork.NewFakeClock()
	platform := gateway.NewLogging(logger)

	eng := engine.New(logger,
		correlation.NewRegistry(logger),
		executors.NewRegistry(platform, logger),
		platform, audit.Nop{}, clock)

	store := memory.NewStore()

	return New(logger, eng, store, clock), eng, store, clock
}

func writeWorkflow(t *testing.T, dir, name, source string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(source), 0o600))

	return path
}

func TestAddPublishesWorkflow(t *testing.T) {
	dep, eng, store, _ := newTestDeployer(t)
	path := writeWorkflow(t, t.TempDir(), "greeter.yaml", publishedSource)

	require.NoError(t, dep.Add(t.Context(), path))

	deployment, ok := eng.Deployed("greeter")
	require.True(t, ok)
	assert.Equal(t, "1.0", deployment.Process.Version)

	record, err := store.ByIDVersion(t.Context(), "greeter", "1.0")
	require.NoError(t, err)
	assert.Equal(t, path, record.Path)
	assert.Equal(t, deployment.ID, record.DeploymentID)
	assert.True(t, record.ToPublish)
}

func TestAddDraftNeverDeploys(t *testing.T) {
	dep, eng, store, _ := newTestDeployer(t)
	path := writeWorkflow(t, t.TempDir(), "greeter.yaml", draftSource)

	require.NoError(t, dep.Add(t.Context(), path))

	_, ok := eng.Deployed("greeter")
	assert.False(t, ok)

	records, err := store.ByID(t.Context(), "greeter")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].ToPublish)
}

func TestAddTurningPublishedIntoDraftUndeploys(t *testing.T) {
	dep, eng, _, _ := newTestDeployer(t)
	dir := t.TempDir()
	path := writeWorkflow(t, dir, "greeter.yaml", publishedSource)

	require.NoError(t, dep.Add(t.Context(), path))

	_, ok := eng.Deployed("greeter")
	require.True(t, ok)

	writeWorkflow(t, dir, "greeter.yaml", draftSource)
	require.NoError(t, dep.Add(t.Context(), path))

	_, ok = eng.Deployed("greeter")
	assert.False(t, ok)
}

func TestAddUnchangedFileIsIdempotent(t *testing.T) {
	dep, eng, _, _ := newTestDeployer(t)
	path := writeWorkflow(t, t.TempDir(), "greeter.yaml", publishedSource)

	require.NoError(t, dep.Add(t.Context(), path))

	first, ok := eng.Deployed("greeter")
	require.True(t, ok)

	require.NoError(t, dep.Add(t.Context(), path))

	second, ok := eng.Deployed("greeter")
	require.True(t, ok)
	assert.Equal(t, first.ID, second.ID, "unchanged file must not redeploy")
}

func TestAddSkipsEmptyFile(t *testing.T) {
	dep, _, store, _ := newTestDeployer(t)
	path := writeWorkflow(t, t.TempDir(), "empty.yaml", "   \n")

	require.NoError(t, dep.Add(t.Context(), path))

	_, err := store.ByPath(t.Context(), path)
	require.NoError(t, err)
}

func TestAddIgnoresUnrecognizedExtension(t *testing.T) {
	dep, eng, _, _ := newTestDeployer(t)
	path := writeWorkflow(t, t.TempDir(), "greeter.txt", publishedSource)

	require.NoError(t, dep.Add(t.Context(), path))

	_, ok := eng.Deployed("greeter")
	assert.False(t, ok)
}

func TestAddBrokenFileLeavesPriorDeployment(t *testing.T) {
	dep, eng, _, _ := newTestDeployer(t)
	dir := t.TempDir()
	path := writeWorkflow(t, dir, "greeter.yaml", publishedSource)

	require.NoError(t, dep.Add(t.Context(), path))

	broken := `id: greeter
activities:
  - send-message:
      id: greet
      on:
        activity-completed:
          activity-id: does-not-exist
      content: hi
`
	writeWorkflow(t, dir, "greeter.yaml", broken)
	require.Error(t, dep.Add(t.Context(), path))

	deployment, ok := eng.Deployed("greeter")
	require.True(t, ok)
	assert.Equal(t, "1.0", deployment.Process.Version)
}

func TestDeleteUndeploysAndRemovesRecords(t *testing.T) {
	dep, eng, store, _ := newTestDeployer(t)
	path := writeWorkflow(t, t.TempDir(), "greeter.yaml", publishedSource)

	require.NoError(t, dep.Add(t.Context(), path))
	require.NoError(t, dep.Delete(t.Context(), path))

	_, ok := eng.Deployed("greeter")
	assert.False(t, ok)

	_, err := store.ByID(t.Context(), "greeter")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestAddAllFromFolderSkipsBadFiles(t *testing.T) {
	dep, eng, _, _ := newTestDeployer(t)
	dir := t.TempDir()

	writeWorkflow(t, dir, "good.yaml", publishedSource)
	writeWorkflow(t, dir, "bad.yaml", "id: [unclosed")
	writeWorkflow(t, dir, "notes.txt", "not a workflow")

	require.NoError(t, dep.AddAllFromFolder(t.Context(), dir))

	_, ok := eng.Deployed("greeter")
	assert.True(t, ok)
}

func TestExpirationUndeploysAutomatically(t *testing.T) {
	dep, eng, store, clock := newTestDeployer(t)

	expiring := `id: ephemeral
version: "1.0"
expiration-date: "` + clock.Now().Add(time.Hour).UTC().Format(time.RFC3339) + `"
activities:
  - send-message:
      id: greet
      on:
        message-received:
          content: /hello
      content: hi
`
	path := writeWorkflow(t, t.TempDir(), "ephemeral.yaml", expiring)

	require.NoError(t, dep.Add(t.Context(), path))

	_, ok := eng.Deployed("ephemeral")
	require.True(t, ok)

	clock.Advance(time.Hour + time.Minute)

	require.Eventually(t, func() bool {
		_, deployed := eng.Deployed("ephemeral")

		return !deployed
	}, 2*time.Second, 10*time.Millisecond)

	_, err := store.ByID(t.Context(), "ephemeral")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestLookupSurface(t *testing.T) {
	dep, _, _, _ := newTestDeployer(t)
	path := writeWorkflow(t, t.TempDir(), "greeter.yaml", publishedSource)

	require.NoError(t, dep.Add(t.Context(), path))

	assert.True(t, dep.WorkflowExists(t.Context(), "greeter"))
	assert.False(t, dep.WorkflowExists(t.Context(), "missing"))

	assert.True(t, dep.WorkflowExistsVersion(t.Context(), "greeter", "1.0"))
	assert.False(t, dep.WorkflowExistsVersion(t.Context(), "greeter", "9.9"))

	paths, err := dep.PathsByID(t.Context(), "greeter")
	require.NoError(t, err)
	assert.Equal(t, []string{path}, paths)

	resolved, err := dep.PathByIDVersion(t.Context(), "greeter", "1.0")
	require.NoError(t, err)
	assert.Equal(t, path, resolved)

	_, err = dep.PathByIDVersion(t.Context(), "greeter", "9.9")
	require.Error(t, err)
	assert.True(t, persistence.IsVersionNotFound(err))

	var versionErr *persistence.VersionError
	require.ErrorAs(t, err, &versionErr)
	assert.Equal(t, "greeter", versionErr.WorkflowID)
	assert.Equal(t, "9.9", versionErr.Version)
}
