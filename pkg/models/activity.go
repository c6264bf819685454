package models

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Built-in activity kinds. The executor registry is keyed by these tags.
const (
	ActivitySendMessage      = "send-message"
	ActivityPinMessage       = "pin-message"
	ActivityUnpinMessage     = "unpin-message"
	ActivityCreateRoom       = "create-room"
	ActivityAddRoomMember    = "add-room-member"
	ActivityRemoveRoomMember = "remove-room-member"
	ActivityPromoteRoomOwner = "promote-room-owner"
	ActivityGetUser          = "get-user"
	ActivityGetUserStreams   = "get-user-streams"
	ActivityExecuteRequest   = "execute-request"
)

// Activity is one declaration in the SWADL activities list. In the source
// document each list item is a single-key mapping whose key names the
// activity kind:
//
//	activities:
//	  - send-message:
//	      id: sayOk
//	      content: ok
type Activity struct {
	Kind       string
	ID         string
	On         *Trigger
	OBO        string         // on-behalf-of user id, empty for bot session
	Parameters map[string]any // kind-specific fields
}

type activityBody struct {
	ID  string   `yaml:"id"`
	On  *Trigger `yaml:"on"`
	OBO string   `yaml:"obo"`
}

func (a *Activity) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]yaml.Node
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if len(raw) != 1 {
		return fmt.Errorf("activity must declare exactly one kind, got %d", len(raw))
	}

	for kind, node := range raw {
		var body activityBody
		if err := node.Decode(&body); err != nil {
			return fmt.Errorf("activity %q: %w", kind, err)
		}

		params := make(map[string]any)
		if err := node.Decode(&params); err != nil {
			return fmt.Errorf("activity %q: %w", kind, err)
		}

		delete(params, "id")
		delete(params, "on")
		delete(params, "obo")

		a.Kind = kind
		a.ID = body.ID
		a.On = body.On
		a.OBO = body.OBO
		a.Parameters = params
	}

	return nil
}

// Trigger is the "on" block of an activity: a single inline event, a one-of
// alternative set, or an all-of synchronizing set, optionally bounded by a
// timeout that compiles to an enclosing sub-process boundary timer.
type Trigger struct {
	Event   `yaml:",inline"`
	OneOf   []Event `yaml:"one-of"`
	AllOf   []Event `yaml:"all-of"`
	Timeout string  `yaml:"timeout"` // Go duration string, e.g. "1s", "24h"
}

// Events flattens the trigger into its declared event list.
func (t *Trigger) Events() []Event {
	var out []Event

	if !t.Event.IsEmpty() {
		out = append(out, t.Event)
	}

	out = append(out, t.OneOf...)
	out = append(out, t.AllOf...)

	return out
}

func (t *Trigger) IsAllOf() bool {
	return len(t.AllOf) > 0
}
