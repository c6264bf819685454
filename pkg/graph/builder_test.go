package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow-io/chatflow/pkg/models"
	"github.com/chatflow-io/chatflow/pkg/swadl"
)

func buildSource(t *testing.T, source string) (*DirectGraph, error) {
	t.Helper()

	workflow, err := swadl.FromYAML([]byte(source))
	require.NoError(t, err)

	return NewBuilder().Build(workflow)
}

func TestBuildSimpleWorkflow(t *testing.T) {
	g, err := buildSource(t, `
id: hello
version: "1.0"
activities:
  - send-message:
      id: sayOk
      on:
        message-received:
          content: /go
      content: ok
`)
	require.NoError(t, err)

	assert.Equal(t, "hello", g.WorkflowID)
	assert.Equal(t, []string{"sayOk:message-received"}, g.StartEvents())

	start, ok := g.Node("sayOk:message-received")
	require.True(t, ok)
	assert.Equal(t, ElementStartEvent, start.Element)
	assert.Equal(t, models.EventMessageReceived, start.Kind)
	assert.Equal(t, models.EventMessageReceived, start.WrappedKind)

	assert.Equal(t, []string{"sayOk"}, g.Children("sayOk:message-received"))
	assert.Equal(t, []string{"sayOk:message-received"}, g.Parents("sayOk"))
}

func TestBuildGraphHasNoDanglingReferences(t *testing.T) {
	g, err := buildSource(t, `
id: fanout
activities:
  - send-message:
      id: kick
      on:
        message-received:
          content: /start
      content: hi
  - send-message:
      id: left
      on:
        activity-completed:
          activity-id: kick
      content: L
  - send-message:
      id: right
      on:
        activity-completed:
          activity-id: kick
      content: R
  - send-message:
      id: done
      on:
        all-of:
          - activity-completed:
              activity-id: left
          - activity-completed:
              activity-id: right
      content: done
`)
	require.NoError(t, err)

	starts := map[string]bool{}
	for _, id := range g.StartEvents() {
		starts[id] = true
	}

	for _, node := range g.Nodes() {
		if !starts[node.ID] {
			assert.NotEmpty(t, g.Parents(node.ID), "node %s has no parent", node.ID)
		}

		for _, parentID := range g.Parents(node.ID) {
			_, ok := g.Node(parentID)
			assert.True(t, ok, "parent %s of %s missing from dictionary", parentID, node.ID)
		}

		for _, childID := range g.Children(node.ID) {
			_, ok := g.Node(childID)
			assert.True(t, ok, "child %s of %s missing from dictionary", childID, node.ID)
		}
	}
}

func TestBuildJoinGatewayRequiredParents(t *testing.T) {
	g, err := buildSource(t, `
id: sync
activities:
  - send-message:
      id: a
      on:
        message-received:
          content: /a
      content: A
  - send-message:
      id: b
      on:
        message-received:
          content: /b
      content: B
  - send-message:
      id: both
      on:
        all-of:
          - activity-completed:
              activity-id: a
          - activity-completed:
              activity-id: b
            blocking: false
      content: done
`)
	require.NoError(t, err)

	gateway, ok := g.Node("both:join")
	require.True(t, ok)
	assert.Equal(t, ElementGateway, gateway.Element)
	assert.Equal(t, KindJoinGateway, gateway.Kind)

	// The non-blocking branch still wires an edge but is excluded from the
	// required set.
	assert.Equal(t, []string{"a", "b"}, g.Parents("both:join"))
	assert.Equal(t, []string{"a"}, g.JoinRequired("both:join"))
}

func TestBuildUnknownActivityReference(t *testing.T) {
	_, err := buildSource(t, `
id: broken
activities:
  - send-message:
      id: first
      on:
        message-received:
          content: /go
      content: hi
  - send-message:
      id: second
      on:
        activity-completed:
          activity-id: missing
      content: bye
`)
	require.Error(t, err)

	var notFound *ActivityNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.ActivityID)
	assert.Contains(t, err.Error(), "missing")
}

func TestBuildDuplicateActivityID(t *testing.T) {
	_, err := buildSource(t, `
id: dupes
activities:
  - send-message:
      id: same
      on:
        message-received:
          content: /go
      content: one
  - pin-message:
      id: same
      content: two
`)
	require.Error(t, err)

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "same", buildErr.NodeID)
}

func TestBuildFirstActivityWithoutTrigger(t *testing.T) {
	_, err := buildSource(t, `
id: headless
activities:
  - send-message:
      id: first
      content: hi
`)
	require.Error(t, err)

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "first", buildErr.NodeID)
}

func TestBuildImplicitFallthrough(t *testing.T) {
	g, err := buildSource(t, `
id: chain
activities:
  - send-message:
      id: first
      on:
        message-received:
          content: /go
      content: hi
  - pin-message:
      id: second
`)
	require.NoError(t, err)

	assert.Equal(t, []string{"second"}, g.Children("first"))
	assert.Equal(t, []string{"first"}, g.Parents("second"))
}

func TestBuildExpiredInheritsParentTimeout(t *testing.T) {
	g, err := buildSource(t, `
id: approval
activities:
  - send-message:
      id: form
      on:
        message-received:
          content: /approve
      content: "please reply"
  - send-message:
      id: confirmed
      on:
        form-replied:
          form-id: form
        timeout: 1s
      content: thanks
  - send-message:
      id: expired
      on:
        activity-expired:
          activity-id: confirmed
      content: too late
`)
	require.NoError(t, err)

	expired, ok := g.Node("expired:activity-expired")
	require.True(t, ok)
	assert.Equal(t, "1s", expired.Timeout)
	assert.Equal(t, []string{"confirmed:form-replied"}, g.Parents("expired:activity-expired"))
	assert.Equal(t, []string{"expired"}, g.Children("expired:activity-expired"))
}

func TestBuildAllOfTimeoutBelongsToJoinGateway(t *testing.T) {
	g, err := buildSource(t, `
id: signoff
activities:
  - send-message:
      id: ask
      on:
        message-received:
          content: /signoff
      content: "reply please"
  - send-message:
      id: note
      on:
        activity-completed:
          activity-id: ask
      content: noted
  - send-message:
      id: done
      on:
        all-of:
          - activity-completed:
              activity-id: note
          - form-replied:
              form-id: ask
        timeout: 2s
      content: done
  - send-message:
      id: late
      on:
        activity-expired:
          activity-id: done
      content: too late
`)
	require.NoError(t, err)

	join, ok := g.Node("done:join")
	require.True(t, ok)
	assert.Equal(t, ElementGateway, join.Element)
	assert.Equal(t, "2s", join.Timeout)

	// Branch events never carry the composite trigger's timeout.
	form, ok := g.Node("done:form-replied")
	require.True(t, ok)
	assert.Empty(t, form.Timeout)

	expired, ok := g.Node("late:activity-expired")
	require.True(t, ok)
	assert.Equal(t, "2s", expired.Timeout)
	assert.Equal(t, []string{"done:join"}, g.Parents("late:activity-expired"))
	assert.Equal(t, []string{"late"}, g.Children("late:activity-expired"))
}
