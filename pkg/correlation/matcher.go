// Package correlation maps inbound platform events to deployed start-event
// predicates and parked instance waits.
package correlation

import (
	"strings"

	"github.com/chatflow-io/chatflow/pkg/events"
	"github.com/chatflow-io/chatflow/pkg/models"
)

// Matcher is one compiled event predicate. Structured fields are exact-key;
// message content is prefix-matched with an any-content wildcard when empty.
type Matcher struct {
	Kind events.Kind

	StreamID           string
	FormID             string
	UserID             string
	Token              string
	TimerID            string
	ContentPattern     string
	RequiresBotMention bool
}

// For compiles a definition event into a matcher. Timer matchers get their
// TimerID assigned by the scheduler, not here.
func For(event *models.Event) Matcher {
	switch event.Kind() {
	case models.EventMessageReceived:
		return Matcher{
			Kind:               events.KindMessageReceived,
			StreamID:           event.MessageReceived.StreamID,
			ContentPattern:     event.MessageReceived.Content,
			RequiresBotMention: event.MessageReceived.RequiresBotMention,
		}
	case models.EventFormReplied:
		return Matcher{Kind: events.KindFormReplied, FormID: event.FormReplied.FormID}
	case models.EventTimerFired:
		return Matcher{Kind: events.KindTimerFired}
	case models.EventRoomCreated:
		return Matcher{Kind: events.KindRoomCreated, StreamID: event.RoomCreated.StreamID}
	case models.EventRoomUpdated:
		return Matcher{Kind: events.KindRoomUpdated, StreamID: event.RoomUpdated.StreamID}
	case models.EventUserJoined:
		return Matcher{Kind: events.KindUserJoined, StreamID: event.UserJoined.StreamID, UserID: event.UserJoined.UserID}
	case models.EventUserLeft:
		return Matcher{Kind: events.KindUserLeft, StreamID: event.UserLeft.StreamID, UserID: event.UserLeft.UserID}
	case models.EventConnectionRequested:
		return Matcher{Kind: events.KindConnectionRequested, UserID: event.ConnectionRequested.UserID}
	case models.EventConnectionAccepted:
		return Matcher{Kind: events.KindConnectionAccepted, UserID: event.ConnectionAccepted.UserID}
	case models.EventRequestReceived:
		return Matcher{Kind: events.KindRequestReceived, Token: event.RequestReceived.Token}
	}

	return Matcher{}
}

func (m Matcher) Matches(ev events.Event) bool {
	if m.Kind == "" || m.Kind != ev.Kind {
		return false
	}

	switch ev.Kind {
	case events.KindMessageReceived, events.KindMessageSuppressed:
		return m.matchesMessage(ev.Message)
	case events.KindFormReplied:
		return ev.Form != nil && ev.Form.FormID == m.FormID
	case events.KindTimerFired:
		return ev.Timer != nil && (m.TimerID == "" || ev.Timer.TimerID == m.TimerID)
	case events.KindRoomCreated, events.KindRoomUpdated, events.KindRoomDeactivated:
		return ev.Room != nil && (m.StreamID == "" || ev.Room.StreamID == m.StreamID)
	case events.KindUserJoined, events.KindUserLeft:
		if ev.Room == nil {
			return false
		}

		if m.StreamID != "" && ev.Room.StreamID != m.StreamID {
			return false
		}

		return m.UserID == "" || ev.Room.UserID == m.UserID
	case events.KindConnectionRequested, events.KindConnectionAccepted:
		return ev.Connection != nil && (m.UserID == "" || ev.Connection.UserID == m.UserID)
	case events.KindRequestReceived:
		return ev.Request != nil && (m.Token == "" || ev.Request.Token == m.Token)
	}

	return false
}

func (m Matcher) matchesMessage(message *events.Message) bool {
	if message == nil {
		return false
	}

	if m.StreamID != "" && message.StreamID != m.StreamID {
		return false
	}

	if m.RequiresBotMention && !message.MentionBot {
		return false
	}

	// Empty pattern is the any-content wildcard; otherwise the pattern is a
	// command prefix: "/go" matches "/go" and "/go now" but not "/gone".
	if m.ContentPattern == "" {
		return true
	}

	content := strings.TrimSpace(message.Content)

	return content == m.ContentPattern || strings.HasPrefix(content, m.ContentPattern+" ")
}
