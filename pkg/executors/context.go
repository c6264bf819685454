// Package executors implements the activity executor contract: thin adapters
// over the platform gateway, looked up through an explicit registration table
// built once at startup.
package executors

import (
	"github.com/chatflow-io/chatflow/pkg/gateway"
	"github.com/chatflow-io/chatflow/pkg/models"
)

// Context is what an executor receives: the activity's parsed parameters, a
// handle to the platform gateway, a read view of the instance variables and
// an output-variable sink.
type Context struct {
	Activity  *models.Activity
	Gateway   gateway.Platform
	Variables map[string]any
	OBO       string

	// StreamID of the event that most recently advanced the instance, used
	// as the default target when an activity names no stream.
	EventStreamID string

	// MessageID produced by the previous message activity, the default
	// target for pin/unpin.
	LastMessageID string

	outputs map[string]any
}

func NewContext(activity *models.Activity, platform gateway.Platform, variables map[string]any) *Context {
	return &Context{
		Activity:  activity,
		Gateway:   platform,
		Variables: variables,
		OBO:       activity.OBO,
		outputs:   make(map[string]any),
	}
}

// SetOutput records a declared output variable of the activity.
func (c *Context) SetOutput(name string, value any) {
	c.outputs[name] = value
}

func (c *Context) Outputs() map[string]any {
	return c.outputs
}

func (c *Context) StringParam(name string) string {
	value, _ := c.Activity.Parameters[name].(string)

	return value
}

func (c *Context) StringsParam(name string) []string {
	raw, ok := c.Activity.Parameters[name].([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(raw))

	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}

	return out
}

func (c *Context) MapParam(name string) map[string]any {
	value, _ := c.Activity.Parameters[name].(map[string]any)

	return value
}

// StreamID resolves the target stream: the explicit parameter when present,
// else the stream of the correlated event.
func (c *Context) StreamID() string {
	if streamID := c.StringParam("stream-id"); streamID != "" {
		return streamID
	}

	return c.EventStreamID
}
