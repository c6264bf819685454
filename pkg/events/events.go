// Package events defines the tagged union of inbound platform events.
package events

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindMessageReceived     Kind = "message_received"
	KindMessageSuppressed   Kind = "message_suppressed"
	KindFormReplied         Kind = "form_replied"
	KindRoomCreated         Kind = "room_created"
	KindRoomUpdated         Kind = "room_updated"
	KindRoomDeactivated     Kind = "room_deactivated"
	KindUserJoined          Kind = "user_joined"
	KindUserLeft            Kind = "user_left"
	KindConnectionRequested Kind = "connection_requested"
	KindConnectionAccepted  Kind = "connection_accepted"
	KindTimerFired          Kind = "timer_fired"
	KindRequestReceived     Kind = "request_received"
)

// Event is the single entry type accepted by the engine's OnEvent path. The
// Kind tag selects which payload pointer is set; all others are nil.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Initiator string    `json:"initiator,omitempty"` // user id that caused the event

	Message    *Message    `json:"message,omitempty"`
	Form       *Form       `json:"form,omitempty"`
	Room       *Room       `json:"room,omitempty"`
	Connection *Connection `json:"connection,omitempty"`
	Timer      *Timer      `json:"timer,omitempty"`
	Request    *Request    `json:"request,omitempty"`
}

type Message struct {
	MessageID  string `json:"message_id"`
	StreamID   string `json:"stream_id"`
	Content    string `json:"content"`
	MentionBot bool   `json:"mention_bot"`
}

type Form struct {
	FormID     string         `json:"form_id"`
	ActivityID string         `json:"activity_id"` // activity that sent the form
	StreamID   string         `json:"stream_id"`
	Values     map[string]any `json:"values"`
}

type Room struct {
	StreamID string `json:"stream_id"`
	Name     string `json:"name,omitempty"`
	UserID   string `json:"user_id,omitempty"` // member for joined/left events
}

type Connection struct {
	UserID string `json:"user_id"`
}

// Timer is a synthetic event delivered through the same correlation path as
// externally sourced events.
type Timer struct {
	TimerID    string `json:"timer_id"`
	WorkflowID string `json:"workflow_id,omitempty"`
	InstanceID string `json:"instance_id,omitempty"`
	NodeID     string `json:"node_id,omitempty"`
}

type Request struct {
	Token     string         `json:"token"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

func New(kind Kind) Event {
	return Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
}

func NewMessageReceived(streamID, content, initiator string) Event {
	ev := New(KindMessageReceived)
	ev.Initiator = initiator
	ev.Message = &Message{
		MessageID: uuid.New().String(),
		StreamID:  streamID,
		Content:   content,
	}

	return ev
}

func NewFormReplied(formID, activityID, streamID, initiator string, values map[string]any) Event {
	ev := New(KindFormReplied)
	ev.Initiator = initiator
	ev.Form = &Form{
		FormID:     formID,
		ActivityID: activityID,
		StreamID:   streamID,
		Values:     values,
	}

	return ev
}

func NewTimerFired(timerID, workflowID, instanceID, nodeID string) Event {
	ev := New(KindTimerFired)
	ev.Timer = &Timer{
		TimerID:    timerID,
		WorkflowID: workflowID,
		InstanceID: instanceID,
		NodeID:     nodeID,
	}

	return ev
}
