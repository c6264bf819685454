package correlation

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow-io/chatflow/pkg/events"
)

func messageMatcher(content string) Matcher {
	return Matcher{Kind: events.KindMessageReceived, ContentPattern: content}
}

func TestRegistryMatchStartsAcrossWorkflows(t *testing.T) {
	registry := NewRegistry(slog.Default())

	registry.RegisterStarts("wf-a", []StartEntry{
		{WorkflowID: "wf-a", NodeID: "start", Matcher: messageMatcher("/go")},
	})
	registry.RegisterStarts("wf-b", []StartEntry{
		{WorkflowID: "wf-b", NodeID: "start", Matcher: messageMatcher("")},
	})

	matched := registry.MatchStarts(events.NewMessageReceived("123", "/go", "alice"))
	require.Len(t, matched, 2)
	assert.Equal(t, "wf-a", matched[0].WorkflowID)
	assert.Equal(t, "wf-b", matched[1].WorkflowID)

	matched = registry.MatchStarts(events.NewMessageReceived("123", "hello", "alice"))
	require.Len(t, matched, 1)
	assert.Equal(t, "wf-b", matched[0].WorkflowID)
}

func TestRegistryUnregisterWorkflow(t *testing.T) {
	registry := NewRegistry(slog.Default())

	registry.RegisterStarts("wf-a", []StartEntry{
		{WorkflowID: "wf-a", NodeID: "start", Matcher: messageMatcher("/go")},
	})
	registry.UnregisterWorkflow("wf-a")

	assert.Empty(t, registry.MatchStarts(events.NewMessageReceived("123", "/go", "alice")))
}

func TestRegistryFirstMatchWinsPerInstance(t *testing.T) {
	registry := NewRegistry(slog.Default())

	registry.Park(Wait{WorkflowID: "wf", InstanceID: "inst-1", NodeID: "n1", Matcher: messageMatcher("")})
	registry.Park(Wait{WorkflowID: "wf", InstanceID: "inst-1", NodeID: "n2", Matcher: messageMatcher("")})
	registry.Park(Wait{WorkflowID: "wf", InstanceID: "inst-2", NodeID: "n1", Matcher: messageMatcher("")})

	matched := registry.MatchWaits(events.NewMessageReceived("123", "anything", "alice"))
	require.Len(t, matched, 2)
	assert.Equal(t, "inst-1", matched[0].InstanceID)
	assert.Equal(t, "n1", matched[0].NodeID)
	assert.Equal(t, "inst-2", matched[1].InstanceID)
}

func TestRegistryTimerEventsOnlyResumeOwnInstance(t *testing.T) {
	registry := NewRegistry(slog.Default())

	timerWait := Matcher{Kind: events.KindTimerFired, TimerID: "node"}
	registry.Park(Wait{WorkflowID: "wf", InstanceID: "inst-1", NodeID: "node", Matcher: timerWait})
	registry.Park(Wait{WorkflowID: "wf", InstanceID: "inst-2", NodeID: "node", Matcher: timerWait})

	matched := registry.MatchWaits(events.NewTimerFired("node", "wf", "inst-2", "node"))
	require.Len(t, matched, 1)
	assert.Equal(t, "inst-2", matched[0].InstanceID)
}

func TestRegistryUnparkRemovesAllWaitsAtNode(t *testing.T) {
	registry := NewRegistry(slog.Default())

	// An event wait and its boundary wait share the node id.
	registry.Park(Wait{WorkflowID: "wf", InstanceID: "inst-1", NodeID: "node", Matcher: messageMatcher("")})
	registry.Park(Wait{
		WorkflowID: "wf", InstanceID: "inst-1", NodeID: "node", Target: "handler",
		Matcher: Matcher{Kind: events.KindTimerFired, TimerID: "node"},
	})

	registry.Unpark("inst-1", "node")

	assert.Empty(t, registry.MatchWaits(events.NewMessageReceived("123", "hello", "alice")))
	assert.Empty(t, registry.MatchWaits(events.NewTimerFired("node", "wf", "inst-1", "node")))
}

func TestRegistryDropInstance(t *testing.T) {
	registry := NewRegistry(slog.Default())

	registry.Park(Wait{WorkflowID: "wf", InstanceID: "inst-1", NodeID: "n1", Matcher: messageMatcher("")})
	registry.Park(Wait{WorkflowID: "wf", InstanceID: "inst-1", NodeID: "n2", Matcher: messageMatcher("")})

	registry.DropInstance("inst-1")

	assert.Empty(t, registry.MatchWaits(events.NewMessageReceived("123", "hello", "alice")))
}
