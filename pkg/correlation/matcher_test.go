package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chatflow-io/chatflow/pkg/events"
	"github.com/chatflow-io/chatflow/pkg/models"
)

func TestMatcherMessageCommandPrefix(t *testing.T) {
	matcher := For(&models.Event{
		MessageReceived: &models.MessageReceivedEvent{Content: "/go"},
	})

	cases := []struct {
		content string
		want    bool
	}{
		{"/go", true},
		{"/go now", true},
		{"  /go  ", true},
		{"/gone", false},
		{"say /go", false},
		{"", false},
	}

	for _, tc := range cases {
		ev := events.NewMessageReceived("123", tc.content, "alice")
		assert.Equal(t, tc.want, matcher.Matches(ev), "content=%q", tc.content)
	}
}

func TestMatcherMessageWildcardContent(t *testing.T) {
	matcher := For(&models.Event{
		MessageReceived: &models.MessageReceivedEvent{StreamID: "123"},
	})

	assert.True(t, matcher.Matches(events.NewMessageReceived("123", "anything at all", "alice")))
	assert.False(t, matcher.Matches(events.NewMessageReceived("456", "anything at all", "alice")))
}

func TestMatcherMessageBotMention(t *testing.T) {
	matcher := For(&models.Event{
		MessageReceived: &models.MessageReceivedEvent{RequiresBotMention: true},
	})

	plain := events.NewMessageReceived("123", "hello", "alice")
	assert.False(t, matcher.Matches(plain))

	mentioned := events.NewMessageReceived("123", "hello", "alice")
	mentioned.Message.MentionBot = true
	assert.True(t, matcher.Matches(mentioned))
}

func TestMatcherFormReplied(t *testing.T) {
	matcher := For(&models.Event{
		FormReplied: &models.FormRepliedEvent{FormID: "approval"},
	})

	assert.True(t, matcher.Matches(events.NewFormReplied("approval", "approval", "123", "bob", nil)))
	assert.False(t, matcher.Matches(events.NewFormReplied("other", "other", "123", "bob", nil)))
	assert.False(t, matcher.Matches(events.NewMessageReceived("123", "approval", "bob")))
}

func TestMatcherTimerScopedByID(t *testing.T) {
	matcher := Matcher{Kind: events.KindTimerFired, TimerID: "node-1"}

	assert.True(t, matcher.Matches(events.NewTimerFired("node-1", "wf", "inst", "node-1")))
	assert.False(t, matcher.Matches(events.NewTimerFired("node-2", "wf", "inst", "node-2")))
}

func TestMatcherKindMismatch(t *testing.T) {
	matcher := For(&models.Event{
		RoomCreated: &models.RoomEvent{StreamID: "123"},
	})

	assert.False(t, matcher.Matches(events.NewMessageReceived("123", "hello", "alice")))

	room := events.New(events.KindRoomCreated)
	room.Room = &events.Room{StreamID: "123"}
	assert.True(t, matcher.Matches(room))
}
