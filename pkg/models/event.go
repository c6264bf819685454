package models

// Event kinds as they appear in SWADL "on" blocks.
const (
	EventMessageReceived     = "message-received"
	EventFormReplied         = "form-replied"
	EventActivityCompleted   = "activity-completed"
	EventActivityFailed      = "activity-failed"
	EventActivityExpired     = "activity-expired"
	EventTimerFired          = "timer-fired"
	EventRoomCreated         = "room-created"
	EventRoomUpdated         = "room-updated"
	EventUserJoined          = "user-joined"
	EventUserLeft            = "user-left"
	EventConnectionRequested = "connection-requested"
	EventConnectionAccepted  = "connection-accepted"
	EventRequestReceived     = "request-received"
)

// Event is one declared event inside a trigger block. Exactly one payload
// pointer is set.
type Event struct {
	MessageReceived     *MessageReceivedEvent `yaml:"message-received"`
	FormReplied         *FormRepliedEvent     `yaml:"form-replied"`
	ActivityCompleted   *ActivityRefEvent     `yaml:"activity-completed"`
	ActivityFailed      *ActivityRefEvent     `yaml:"activity-failed"`
	ActivityExpired     *ActivityRefEvent     `yaml:"activity-expired"`
	TimerFired          *TimerFiredEvent      `yaml:"timer-fired"`
	RoomCreated         *RoomEvent            `yaml:"room-created"`
	RoomUpdated         *RoomEvent            `yaml:"room-updated"`
	UserJoined          *RoomMemberEvent      `yaml:"user-joined"`
	UserLeft            *RoomMemberEvent      `yaml:"user-left"`
	ConnectionRequested *ConnectionEvent      `yaml:"connection-requested"`
	ConnectionAccepted  *ConnectionEvent      `yaml:"connection-accepted"`
	RequestReceived     *RequestReceivedEvent `yaml:"request-received"`

	// Blocking opts a branch out of a synchronizing join when false.
	// Only meaningful inside all-of.
	Blocking *bool `yaml:"blocking"`
}

func (e *Event) IsBlocking() bool {
	return e.Blocking == nil || *e.Blocking
}

func (e *Event) IsEmpty() bool {
	return e.Kind() == ""
}

// Kind returns the tag of the payload that is set, or "" when none is.
func (e *Event) Kind() string {
	switch {
	case e.MessageReceived != nil:
		return EventMessageReceived
	case e.FormReplied != nil:
		return EventFormReplied
	case e.ActivityCompleted != nil:
		return EventActivityCompleted
	case e.ActivityFailed != nil:
		return EventActivityFailed
	case e.ActivityExpired != nil:
		return EventActivityExpired
	case e.TimerFired != nil:
		return EventTimerFired
	case e.RoomCreated != nil:
		return EventRoomCreated
	case e.RoomUpdated != nil:
		return EventRoomUpdated
	case e.UserJoined != nil:
		return EventUserJoined
	case e.UserLeft != nil:
		return EventUserLeft
	case e.ConnectionRequested != nil:
		return EventConnectionRequested
	case e.ConnectionAccepted != nil:
		return EventConnectionAccepted
	case e.RequestReceived != nil:
		return EventRequestReceived
	}

	return ""
}

// ActivityRef returns the referenced activity id for activity-completed,
// activity-failed and activity-expired events.
func (e *Event) ActivityRef() string {
	switch {
	case e.ActivityCompleted != nil:
		return e.ActivityCompleted.ActivityID
	case e.ActivityFailed != nil:
		return e.ActivityFailed.ActivityID
	case e.ActivityExpired != nil:
		return e.ActivityExpired.ActivityID
	}

	return ""
}

type MessageReceivedEvent struct {
	Content            string `yaml:"content"` // command prefix, empty matches any content
	RequiresBotMention bool   `yaml:"requires-bot-mention"`
	StreamID           string `yaml:"stream-id"` // empty matches any stream
}

type FormRepliedEvent struct {
	FormID string `yaml:"form-id" validate:"required"`
}

type ActivityRefEvent struct {
	ActivityID string `yaml:"activity-id" validate:"required"`
}

type TimerFiredEvent struct {
	At     string `yaml:"at"`     // RFC3339 instant, one-shot
	Repeat string `yaml:"repeat"` // cron expression, recurring
}

type RoomEvent struct {
	StreamID string `yaml:"stream-id"` // empty matches any room
}

type RoomMemberEvent struct {
	StreamID string `yaml:"stream-id"`
	UserID   string `yaml:"user-id"`
}

type ConnectionEvent struct {
	UserID string `yaml:"user-id"`
}

type RequestReceivedEvent struct {
	Token string `yaml:"token"`
}
